// Package boltstore provides a single-file persistent cache on top of BoltDB.
//
// It is the default backend for the site's collections: values survive
// restarts without an external process, the same way a browser profile keeps
// its local storage.
package boltstore

import (
	"context"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"

	"luxury_villas/internal/adapters/observability"
)

const bucketName = "villas"

// entry wraps a stored value with its optional expiry.
type entry struct {
	Value     json.RawMessage `json:"v"`
	ExpiresAt *time.Time      `json:"exp,omitempty"`
}

type Cache struct {
	db  *bolt.DB
	now func() time.Time
}

// New opens (or creates) the database at path and ensures the bucket exists.
func New(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close releases the database file lock.
func (c *Cache) Close() error { return c.db.Close() }

// Get decodes the value stored under key into dst. A missing or expired key
// is a miss; a value that does not decode is reported as (true, err).
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	var raw []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucketName)).Get([]byte(key)); v != nil {
			// bolt memory is only valid inside the transaction
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if raw == nil {
		observability.ObserveCache("bolt", "miss")
		return false, nil
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return true, err
	}
	if e.ExpiresAt != nil && !c.now().Before(*e.ExpiresAt) {
		observability.ObserveCache("bolt", "miss")
		return false, nil
	}
	observability.ObserveCache("bolt", "hit")
	return true, json.Unmarshal(e.Value, dst)
}

// Set overwrites key with v. ttlSec <= 0 keeps the value until overwritten.
func (c *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := entry{Value: b}
	if ttlSec > 0 {
		exp := c.now().Add(time.Duration(ttlSec) * time.Second)
		e.ExpiresAt = &exp
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	observability.ObserveCache("bolt", "set")
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
}

// Del removes key; deleting a missing key is not an error.
func (c *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache("bolt", "del")
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}
