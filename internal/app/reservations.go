package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"luxury_villas/internal/domain"
)

const publishTimeout = 3 * time.Second

type ReservationService struct {
	sheet    domain.SheetClient
	listings *ListingService
	accounts *AccountService // maps local account ids to sheet ids; nil passes them through
	coll     *Collections
	events   domain.EventPublisher // optional
	resolver *Resolver[domain.Reservation]
	now      func() time.Time

	mu       sync.Mutex
	inflight sync.WaitGroup // event publishes
}

func NewReservationService(sheet domain.SheetClient, listings *ListingService, accounts *AccountService, coll *Collections, events domain.EventPublisher) *ReservationService {
	return &ReservationService{
		sheet:    sheet,
		listings: listings,
		accounts: accounts,
		coll:     coll,
		events:   events,
		resolver: NewResolver[domain.Reservation](domain.KindReservations, ReservationNormalizer{}, coll,
			NewCacheSource(coll, domain.KindReservations),
		),
		now: time.Now,
	}
}

// TotalPrice is the nightly price times the number of nights, rounded to cents.
func TotalPrice(pricePerNight float64, nights int) float64 {
	return math.Round(pricePerNight*float64(nights)*100) / 100
}

// Create books a listing. The total is always derived from the listing price.
func (s *ReservationService) Create(ctx context.Context, req domain.BookingRequest) (domain.Reservation, error) {
	if err := validateStruct(req); err != nil {
		return domain.Reservation{}, err
	}
	if req.CheckIn.IsZero() || req.CheckOut.IsZero() {
		return domain.Reservation{}, fmt.Errorf("%w: check-in and check-out are required", domain.ErrValidation)
	}
	nights := domain.Nights(req.CheckIn, req.CheckOut)
	if nights <= 0 {
		return domain.Reservation{}, domain.ErrInvalidDates
	}

	listing, err := s.listings.Get(ctx, req.ListingID)
	if err != nil {
		return domain.Reservation{}, err
	}

	r := domain.Reservation{
		AccountID:       req.AccountID,
		ListingID:       listing.ID,
		ListingName:     listing.Name,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		GuestCount:      req.GuestCount,
		SpecialRequests: req.SpecialRequests,
		TotalPrice:      TotalPrice(listing.Price, nights),
		Status:          domain.StatusConfirmed,
		CreatedAt:       s.now().UTC(),
	}

	stored, err := s.store(ctx, r)
	if err != nil {
		return domain.Reservation{}, err
	}
	s.publish(ctx, stored)
	return stored, nil
}

func (s *ReservationService) store(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	if s.sheet != nil {
		saved, err := s.storeRemote(ctx, r)
		switch {
		case err == nil:
			return saved, nil
		case !errors.Is(err, domain.ErrSourceUnavailable):
			return domain.Reservation{}, err
		}
		log.Warn().Err(err).Msg("sheet unavailable, storing reservation locally")
	}
	if err := s.appendLocal(ctx, &r, false); err != nil {
		return domain.Reservation{}, err
	}
	return r, nil
}

// storeRemote books through the sheet under the sheet's own account id and
// mirrors the result locally under the local one.
func (s *ReservationService) storeRemote(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	accountID, ok := s.sheetAccountID(ctx, r.AccountID)
	if !ok {
		return domain.Reservation{}, fmt.Errorf("%w: account %d is not known to the sheet", domain.ErrSourceUnavailable, r.AccountID)
	}
	out := r
	out.AccountID = accountID
	saved, err := s.sheet.CreateReservation(ctx, out)
	if err != nil {
		return domain.Reservation{}, err
	}
	if saved.ID > 0 {
		r.ID = saved.ID
	}
	if err := s.appendLocal(ctx, &r, saved.ID > 0); err != nil {
		log.Warn().Err(err).Int64("id", r.ID).Msg("mirror reservation failed")
	}
	return r, nil
}

func (s *ReservationService) sheetAccountID(ctx context.Context, localID int64) (int64, bool) {
	if s.accounts == nil {
		return localID, true
	}
	return s.accounts.sheetAccountID(ctx, localID)
}

// appendLocal adds r to the local collection. A sheet-issued id is the
// reservation's identity: a local booking already holding it is moved to a
// fresh local id.
func (s *ReservationService) appendLocal(ctx context.Context, r *domain.Reservation, remote bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.resolver.Resolve(ctx).Collection
	ids := make([]int64, len(items)+1)
	clash := -1
	for i, it := range items {
		ids[i] = it.ID
		if it.ID == r.ID {
			clash = i
		}
	}

	if !remote {
		id, err := s.coll.NextID(ctx, domain.KindReservations, ids[:len(items)])
		if err != nil {
			return err
		}
		r.ID = id
		return s.coll.Write(ctx, domain.KindReservations, append(items, *r))
	}

	s.coll.Observe(ctx, domain.KindReservations, r.ID)
	if clash >= 0 {
		ids[len(items)] = r.ID
		id, err := s.coll.NextID(ctx, domain.KindReservations, ids)
		if err != nil {
			return err
		}
		log.Warn().Int64("from", items[clash].ID).Int64("to", id).Msg("local reservation renumbered, sheet issued its id")
		items[clash].ID = id
	}
	return s.coll.Write(ctx, domain.KindReservations, append(items, *r))
}

// publish announces the booking in the background; failures never fail the
// booking.
func (s *ReservationService) publish(ctx context.Context, r domain.Reservation) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		s.send(ctx, r)
	}()
}

// Wait blocks until every started event publish has finished.
func (s *ReservationService) Wait() { s.inflight.Wait() }

func (s *ReservationService) send(ctx context.Context, r domain.Reservation) {
	ev := domain.ReservationConfirmed{
		ReservationID: r.ID,
		AccountID:     r.AccountID,
		ListingID:     r.ListingID,
		ListingName:   r.ListingName,
		CheckIn:       r.CheckIn.String(),
		CheckOut:      r.CheckOut.String(),
		GuestCount:    r.GuestCount,
		TotalPrice:    r.TotalPrice,
		ConfirmedAt:   r.CreatedAt.Format(time.RFC3339),
	}
	if err := s.events.PublishReservationConfirmed(ctx, ev); err != nil {
		log.Warn().Err(err).Int64("reservation_id", r.ID).Msg("publish reservation.confirmed failed")
	}
}

// All resolves every locally known reservation.
func (s *ReservationService) All(ctx context.Context) Result[domain.Reservation] {
	return s.resolver.Resolve(ctx)
}

// ListForAccount returns the account's reservations, newest check-in first.
func (s *ReservationService) ListForAccount(ctx context.Context, accountID int64) []domain.Reservation {
	out := []domain.Reservation{}
	for _, r := range s.resolver.Resolve(ctx).Collection {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckIn.After(out[j].CheckIn.Time) })
	return out
}
