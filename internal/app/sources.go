package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"luxury_villas/internal/domain"
)

// Tier identifies which source served a resolution.
type Tier string

const (
	TierRemote Tier = "remote"
	TierCache  Tier = "cache"
	TierStatic Tier = "static"
	TierNone   Tier = "none"
)

type Source interface {
	Tier() Tier
	Fetch(ctx context.Context) ([]domain.Raw, error)
}

// RemoteSource is the only source that suspends on I/O, so it is the only one
// with a timeout.
type RemoteSource struct {
	fetch   func(ctx context.Context) ([]domain.Raw, error)
	timeout time.Duration
}

func NewRemoteSource(fetch func(ctx context.Context) ([]domain.Raw, error), timeout time.Duration) *RemoteSource {
	return &RemoteSource{fetch: fetch, timeout: timeout}
}

func (s *RemoteSource) Tier() Tier              { return TierRemote }
func (s *RemoteSource) Timeout() time.Duration { return s.timeout }

func (s *RemoteSource) Fetch(ctx context.Context) ([]domain.Raw, error) {
	return s.fetch(ctx)
}

// CacheSource reads the last-known-good collection of one kind.
type CacheSource struct {
	coll *Collections
	kind domain.Kind
}

func NewCacheSource(coll *Collections, kind domain.Kind) *CacheSource {
	return &CacheSource{coll: coll, kind: kind}
}

func (s *CacheSource) Tier() Tier { return TierCache }

func (s *CacheSource) Fetch(ctx context.Context) ([]domain.Raw, error) {
	return s.coll.Read(ctx, s.kind), nil
}

// StaticSource serves a compiled-in collection.
type StaticSource struct {
	records []domain.Raw
	err     error
}

// StaticFromJSON decodes a JSON array once; a broken document makes every
// Fetch fail instead of panicking at startup.
func StaticFromJSON(b []byte) *StaticSource {
	var recs []domain.Raw
	if err := json.Unmarshal(b, &recs); err != nil {
		return &StaticSource{err: fmt.Errorf("decode static records: %w", err)}
	}
	return &StaticSource{records: recs}
}

// StaticFromValues serves v (a slice of records) in its JSON form.
func StaticFromValues(v any) *StaticSource {
	b, err := json.Marshal(v)
	if err != nil {
		return &StaticSource{err: fmt.Errorf("encode static records: %w", err)}
	}
	return StaticFromJSON(b)
}

func (s *StaticSource) Tier() Tier { return TierStatic }

func (s *StaticSource) Fetch(context.Context) ([]domain.Raw, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}
