package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"luxury_villas/internal/adapters/observability"
	"luxury_villas/internal/domain"
)

// Result is the outcome of one resolution. Callers must check OK; when it is
// false the collection is empty and ServedBy is TierNone.
type Result[T any] struct {
	Collection []T  `json:"collection"`
	ServedBy   Tier `json:"servedBy"`
	OK         bool `json:"ok"`
}

// Normalizer turns loosely-typed records into the canonical shape T.
type Normalizer[T any] interface {
	Normalize(raw domain.Raw) (T, error)
	ID(v T) int64
}

// Resolver walks its sources in priority order and returns the first
// non-empty, normalized collection, writing it through to the cache tier.
type Resolver[T any] struct {
	kind    domain.Kind
	norm    Normalizer[T]
	coll    *Collections // write-through target; nil disables it
	sources []Source
}

func NewResolver[T any](kind domain.Kind, norm Normalizer[T], coll *Collections, sources ...Source) *Resolver[T] {
	return &Resolver[T]{kind: kind, norm: norm, coll: coll, sources: sources}
}

// Resolve never fails: every source error degrades to the next tier.
func (r *Resolver[T]) Resolve(ctx context.Context) Result[T] {
	for _, s := range r.sources {
		tier := s.Tier()
		raws, err := fetch(ctx, s)
		if err != nil {
			log.Warn().Err(err).Str("kind", string(r.kind)).Str("tier", string(tier)).Msg("source unavailable")
			observability.ObserveSourceFailure(string(r.kind), string(tier), "error")
			continue
		}
		items := r.normalizeAll(raws, tier)
		if len(items) == 0 {
			log.Debug().Str("kind", string(r.kind)).Str("tier", string(tier)).Msg("source returned no records")
			observability.ObserveSourceFailure(string(r.kind), string(tier), "empty")
			continue
		}

		if r.coll != nil {
			if err := r.coll.Write(ctx, r.kind, items); err != nil {
				log.Warn().Err(err).Str("kind", string(r.kind)).Msg("cache write-through failed")
			}
		}
		observability.ObserveResolution(string(r.kind), string(tier))
		log.Debug().Str("kind", string(r.kind)).Str("tier", string(tier)).Int("count", len(items)).Msg("resolved")
		return Result[T]{Collection: items, ServedBy: tier, OK: true}
	}

	observability.ObserveResolution(string(r.kind), string(TierNone))
	log.Warn().Str("kind", string(r.kind)).Msg("all sources exhausted")
	return Result[T]{Collection: []T{}, ServedBy: TierNone, OK: false}
}

// normalizeAll drops malformed records and later duplicates of an id.
func (r *Resolver[T]) normalizeAll(raws []domain.Raw, tier Tier) []T {
	out := make([]T, 0, len(raws))
	seen := make(map[int64]struct{}, len(raws))
	for i, raw := range raws {
		v, err := r.norm.Normalize(raw)
		if err != nil {
			log.Warn().Err(err).Str("kind", string(r.kind)).Str("tier", string(tier)).Int("index", i).Msg("dropping record")
			continue
		}
		id := r.norm.ID(v)
		if _, dup := seen[id]; dup {
			log.Warn().Int64("id", id).Str("kind", string(r.kind)).Str("tier", string(tier)).Msg("dropping duplicate id")
			continue
		}
		seen[id] = struct{}{}
		out = append(out, v)
	}
	return out
}

// fetch bounds sources that declare a timeout and turns panics into errors.
func fetch(ctx context.Context, s Source) ([]domain.Raw, error) {
	ts, ok := s.(interface{ Timeout() time.Duration })
	if !ok || ts.Timeout() <= 0 {
		return safeFetch(ctx, s)
	}

	ctx, cancel := context.WithTimeout(ctx, ts.Timeout())
	defer cancel()

	type outcome struct {
		raws []domain.Raw
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		raws, err := safeFetch(ctx, s)
		ch <- outcome{raws, err}
	}()

	select {
	case o := <-ch:
		return o.raws, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s tier: %v", domain.ErrSourceUnavailable, s.Tier(), ctx.Err())
	}
}

func safeFetch(ctx context.Context, s Source) (raws []domain.Raw, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s tier panicked: %v", domain.ErrSourceUnavailable, s.Tier(), p)
		}
	}()
	return s.Fetch(ctx)
}
