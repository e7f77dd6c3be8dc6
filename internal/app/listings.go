package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"luxury_villas/internal/domain"
)

type ListingService struct {
	sheet    domain.SheetClient // nil when no endpoint is configured
	coll     *Collections
	store    *Store
	resolver *Resolver[domain.Listing]

	mu sync.Mutex // serializes local writes
}

// NewListingService wires the listings resolver: the sheet (when configured),
// then the cached collection, then the compiled-in defaults.
func NewListingService(sheet domain.SheetClient, coll *Collections, store *Store, remoteTimeout time.Duration, defaults []byte) *ListingService {
	var sources []Source
	if sheet != nil {
		sources = append(sources, NewRemoteSource(sheet.GetListings, remoteTimeout))
	}
	sources = append(sources, NewCacheSource(coll, domain.KindListings), StaticFromJSON(defaults))

	return &ListingService{
		sheet:    sheet,
		coll:     coll,
		store:    store,
		resolver: NewResolver[domain.Listing](domain.KindListings, ListingNormalizer{}, coll, sources...),
	}
}

// List resolves the listings and replaces the in-memory copy.
func (s *ListingService) List(ctx context.Context) Result[domain.Listing] {
	res := s.resolver.Resolve(ctx)
	s.store.SetListings(res)
	return res
}

// current returns the held listings, resolving once if nothing is loaded yet.
func (s *ListingService) current(ctx context.Context) Result[domain.Listing] {
	if res, ok := s.store.Listings(); ok {
		return res
	}
	return s.List(ctx)
}

// Get looks the listing up in the held copy and re-resolves once on a miss.
func (s *ListingService) Get(ctx context.Context, id int64) (domain.Listing, error) {
	l, ok := s.store.Listing(id)
	if !ok {
		s.List(ctx)
		l, ok = s.store.Listing(id)
	}
	if !ok {
		return domain.Listing{}, fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
	}
	return l, nil
}

// Save creates (ID 0) or wholesale-replaces a listing. The sheet is tried
// first; when it cannot be reached the listing is upserted locally.
func (s *ListingService) Save(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	if err := validateStruct(l); err != nil {
		return domain.Listing{}, err
	}
	if l.ID < 0 {
		return domain.Listing{}, fmt.Errorf("%w: negative id", domain.ErrValidation)
	}
	l = sanitizeListing(l)

	if s.sheet != nil {
		id, err := s.sheet.SaveListing(ctx, l)
		switch {
		case err == nil:
			l.ID = id
			s.coll.Observe(ctx, domain.KindListings, id)
			s.List(ctx)
			if saved, ok := s.store.Listing(id); ok {
				return saved, nil
			}
			// reload did not reach the sheet; keep the saved copy locally
			return s.saveLocal(ctx, l)
		case !errors.Is(err, domain.ErrSourceUnavailable):
			return domain.Listing{}, err
		}
		log.Warn().Err(err).Int64("id", l.ID).Msg("sheet unavailable, saving listing locally")
	}
	return s.saveLocal(ctx, l)
}

func (s *ListingService) saveLocal(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.current(ctx).Collection
	if l.ID == 0 {
		id, err := s.coll.NextID(ctx, domain.KindListings, listingIDs(items))
		if err != nil {
			return domain.Listing{}, err
		}
		l.ID = id
	} else {
		s.coll.Observe(ctx, domain.KindListings, l.ID)
	}

	replaced := false
	for i := range items {
		if items[i].ID == l.ID {
			items[i] = l
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, l)
	}
	if err := s.commit(ctx, items); err != nil {
		return domain.Listing{}, err
	}
	return l, nil
}

// Delete removes a listing from the local collection only; the sheet has no
// delete action.
func (s *ListingService) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.current(ctx).Collection
	out := items[:0]
	found := false
	for _, l := range items {
		if l.ID == id {
			found = true
			continue
		}
		out = append(out, l)
	}
	if !found {
		return fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
	}
	// keep the mark above the deleted id
	s.coll.Observe(ctx, domain.KindListings, id)
	return s.commit(ctx, out)
}

// commit persists a locally mutated collection; the cache is now the tier the
// in-memory copy mirrors.
func (s *ListingService) commit(ctx context.Context, items []domain.Listing) error {
	if err := s.coll.Write(ctx, domain.KindListings, items); err != nil {
		return err
	}
	res := Result[domain.Listing]{Collection: items, ServedBy: TierCache, OK: true}
	if len(items) == 0 {
		res.ServedBy, res.OK = TierNone, false
	}
	s.store.SetListings(res)
	return nil
}

func listingIDs(items []domain.Listing) []int64 {
	ids := make([]int64, len(items))
	for i, l := range items {
		ids[i] = l.ID
	}
	return ids
}
