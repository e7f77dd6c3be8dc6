package app

import (
	"sync"
	"time"

	"luxury_villas/internal/domain"
)

// Store is the in-memory copy of the last listings resolution. It always
// mirrors the tier that won, including local mutations made afterwards.
type Store struct {
	mu         sync.RWMutex
	listings   Result[domain.Listing]
	resolvedAt time.Time
	loaded     bool
}

func NewStore() *Store { return &Store{} }

func (s *Store) SetListings(r Result[domain.Listing]) {
	cp := make([]domain.Listing, len(r.Collection))
	copy(cp, r.Collection)
	r.Collection = cp

	s.mu.Lock()
	s.listings = r
	s.resolvedAt = time.Now()
	s.loaded = true
	s.mu.Unlock()
}

// Listings returns a copy of the held result; false until the first resolution.
func (s *Store) Listings() (Result[domain.Listing], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return Result[domain.Listing]{Collection: []domain.Listing{}, ServedBy: TierNone}, false
	}
	r := s.listings
	r.Collection = make([]domain.Listing, len(s.listings.Collection))
	copy(r.Collection, s.listings.Collection)
	return r, true
}

func (s *Store) Listing(id int64) (domain.Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.listings.Collection {
		if l.ID == id {
			return l, true
		}
	}
	return domain.Listing{}, false
}

func (s *Store) ResolvedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolvedAt
}
