package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"luxury_villas/internal/app"
	"luxury_villas/internal/domain"
)

// ---- fakes ----

// memCache stores JSON like the real backends do, so values round-trip
// through encoding exactly as they would in Redis or Bolt.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    map[string]int
	failSet bool
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, sets: map[string]int{}}
}

func (c *memCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	b, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.failSet {
		return errors.New("disk full")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = b
	c.sets[key]++
	c.mu.Unlock()
	return nil
}

func (c *memCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

func (c *memCache) raw(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.data[key])
}

func (c *memCache) putRaw(key, v string) {
	c.mu.Lock()
	c.data[key] = []byte(v)
	c.mu.Unlock()
}

func (c *memCache) setCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[key]
}

// fakeSource is a scripted tier.
type fakeSource struct {
	tier  string
	raws  []domain.Raw
	err   error
	block bool
	panic bool
	calls int
}

func (s *fakeSource) Tier() app.Tier { return app.Tier(s.tier) }

func (s *fakeSource) Fetch(ctx context.Context) ([]domain.Raw, error) {
	s.calls++
	if s.panic {
		panic("boom")
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.raws, s.err
}

// fakeSheet is a scripted sheet endpoint. Nil funcs answer "unavailable".
type fakeSheet struct {
	listings    func() ([]domain.Raw, error)
	save        func(domain.Listing) (int64, error)
	register    func(domain.Registration) (domain.Account, error)
	login       func(email, pw string) (domain.Account, error)
	reserve     func(domain.Reservation) (domain.Reservation, error)
	registered  int
	reservedReq []domain.Reservation
}

var errDown = fmt.Errorf("%w: connection refused", domain.ErrSourceUnavailable)

func (f *fakeSheet) GetListings(ctx context.Context) ([]domain.Raw, error) {
	if f.listings == nil {
		return nil, errDown
	}
	return f.listings()
}

func (f *fakeSheet) SaveListing(ctx context.Context, l domain.Listing) (int64, error) {
	if f.save == nil {
		return 0, errDown
	}
	return f.save(l)
}

func (f *fakeSheet) RegisterAccount(ctx context.Context, r domain.Registration) (domain.Account, error) {
	f.registered++
	if f.register == nil {
		return domain.Account{}, errDown
	}
	return f.register(r)
}

func (f *fakeSheet) Login(ctx context.Context, email, pw string) (domain.Account, error) {
	if f.login == nil {
		return domain.Account{}, errDown
	}
	return f.login(email, pw)
}

func (f *fakeSheet) CreateReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	f.reservedReq = append(f.reservedReq, r)
	if f.reserve == nil {
		return domain.Reservation{}, errDown
	}
	return f.reserve(r)
}

type fakeEvents struct {
	mu   sync.Mutex
	got  []domain.ReservationConfirmed
	fail bool
	hold chan struct{} // when set, publishes wait for it to close
}

func (f *fakeEvents) PublishReservationConfirmed(ctx context.Context, ev domain.ReservationConfirmed) error {
	if f.hold != nil {
		select {
		case <-f.hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.fail {
		return errors.New("broker down")
	}
	f.mu.Lock()
	f.got = append(f.got, ev)
	f.mu.Unlock()
	return nil
}

func (f *fakeEvents) published() []domain.ReservationConfirmed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ReservationConfirmed(nil), f.got...)
}

// fakeRepo is an in-memory SheetRepository with auto-increment ids.
type fakeRepo struct {
	listings     map[int64]domain.Listing
	accounts     map[string]domain.Credential
	reservations []domain.Reservation
	nextListing  int64
	nextAccount  int64
	nextBooking  int64
}

func newFakeRepo(ls ...domain.Listing) *fakeRepo {
	r := &fakeRepo{listings: map[int64]domain.Listing{}, accounts: map[string]domain.Credential{}}
	for _, l := range ls {
		r.listings[l.ID] = l
		if l.ID > r.nextListing {
			r.nextListing = l.ID
		}
	}
	return r
}

func (r *fakeRepo) ListListings(ctx context.Context) ([]domain.Listing, error) {
	out := make([]domain.Listing, 0, len(r.listings))
	for _, l := range r.listings {
		out = append(out, l)
	}
	return out, nil
}

func (r *fakeRepo) GetListing(ctx context.Context, id int64) (domain.Listing, error) {
	l, ok := r.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (r *fakeRepo) SaveListing(ctx context.Context, l domain.Listing) (int64, error) {
	if l.ID == 0 {
		r.nextListing++
		l.ID = r.nextListing
	}
	r.listings[l.ID] = l
	return l.ID, nil
}

func (r *fakeRepo) InsertAccount(ctx context.Context, c domain.Credential) (int64, error) {
	if _, ok := r.accounts[strings.ToLower(c.Email)]; ok {
		return 0, domain.ErrDuplicateAccount
	}
	r.nextAccount++
	c.ID = r.nextAccount
	r.accounts[strings.ToLower(c.Email)] = c
	return c.ID, nil
}

func (r *fakeRepo) GetCredential(ctx context.Context, email string) (domain.Credential, error) {
	c, ok := r.accounts[email]
	if !ok {
		return domain.Credential{}, domain.ErrNotFound
	}
	return c, nil
}

func (r *fakeRepo) InsertReservation(ctx context.Context, res domain.Reservation) (int64, error) {
	r.nextBooking++
	res.ID = r.nextBooking
	r.reservations = append(r.reservations, res)
	return res.ID, nil
}

// ---- helpers ----

func listingRaw(id int64, name string, price any) domain.Raw {
	return domain.Raw{"id": float64(id), "name": name, "price": price}
}

func day(s string) domain.Date {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
