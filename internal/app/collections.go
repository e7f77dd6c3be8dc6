package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"luxury_villas/internal/domain"
)

// Collections persists one whole collection per kind in the cache tier, plus
// a high-water mark of issued ids.
type Collections struct {
	cache domain.Cache
}

func NewCollections(c domain.Cache) *Collections {
	return &Collections{cache: c}
}

func collectionKey(kind domain.Kind) string { return fmt.Sprintf("collection:%s", kind) }
func seqKey(kind domain.Kind) string        { return fmt.Sprintf("seq:%s", kind) }

// Read returns the stored collection. Absent or undecodable values read as an
// empty collection.
func (c *Collections) Read(ctx context.Context, kind domain.Kind) []domain.Raw {
	var out []domain.Raw
	ok, err := c.cache.Get(ctx, collectionKey(kind), &out)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("cached collection unreadable, treating as empty")
		return []domain.Raw{}
	}
	if !ok || out == nil {
		return []domain.Raw{}
	}
	return out
}

// Write replaces the stored collection. Last write wins; no expiry.
func (c *Collections) Write(ctx context.Context, kind domain.Kind, collection any) error {
	if err := c.cache.Set(ctx, collectionKey(kind), collection, 0); err != nil {
		return fmt.Errorf("write %s collection: %w", kind, err)
	}
	return nil
}

// NextID issues max(highWater, max(present))+1 and records it, so ids of
// deleted records are never handed out again.
func (c *Collections) NextID(ctx context.Context, kind domain.Kind, present []int64) (int64, error) {
	next := c.highWater(ctx, kind)
	for _, id := range present {
		if id > next {
			next = id
		}
	}
	next++
	if err := c.cache.Set(ctx, seqKey(kind), next, 0); err != nil {
		return 0, fmt.Errorf("store %s sequence: %w", kind, err)
	}
	return next, nil
}

// Observe raises the high-water mark to id when an id was issued elsewhere.
func (c *Collections) Observe(ctx context.Context, kind domain.Kind, id int64) {
	if id <= c.highWater(ctx, kind) {
		return
	}
	if err := c.cache.Set(ctx, seqKey(kind), id, 0); err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Int64("id", id).Msg("sequence update failed")
	}
}

func (c *Collections) highWater(ctx context.Context, kind domain.Kind) int64 {
	var hw int64
	if ok, err := c.cache.Get(ctx, seqKey(kind), &hw); err != nil || !ok {
		return 0
	}
	return hw
}
