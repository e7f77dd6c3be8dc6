package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"luxury_villas/internal/domain"
)

// Endpoint is the sheet backend: the authoritative store the site's remote
// tier talks to. Inputs arrive as loose records and go through the same
// normalizers the site uses.
type Endpoint struct {
	repo domain.SheetRepository
	cost int
	now  func() time.Time
}

func NewEndpoint(repo domain.SheetRepository, bcryptCost int) *Endpoint {
	return &Endpoint{repo: repo, cost: bcryptCost, now: time.Now}
}

func (e *Endpoint) ListListings(ctx context.Context) ([]domain.Listing, error) {
	ls, err := e.repo.ListListings(ctx)
	if err != nil {
		return nil, err
	}
	if ls == nil {
		ls = []domain.Listing{}
	}
	return ls, nil
}

// SaveListing inserts (no id) or replaces the listing and returns its id.
func (e *Endpoint) SaveListing(ctx context.Context, raw domain.Raw) (int64, error) {
	l, err := normalizeListing(raw, false)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := validateStruct(l); err != nil {
		return 0, err
	}
	return e.repo.SaveListing(ctx, l)
}

func (e *Endpoint) RegisterAccount(ctx context.Context, reg domain.Registration) (domain.Account, error) {
	reg.Email = normalizeEmail(reg.Email)
	if err := validateStruct(reg); err != nil {
		return domain.Account{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), e.cost)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}
	c := domain.Credential{
		Account: domain.Account{
			FirstName: reg.FirstName,
			LastName:  reg.LastName,
			Email:     reg.Email,
			Phone:     reg.Phone,
			Role:      domain.RoleGuest,
		},
		PasswordHash: string(hash),
	}
	id, err := e.repo.InsertAccount(ctx, c)
	if err != nil {
		return domain.Account{}, err
	}
	c.ID = id
	return c.Account, nil
}

func (e *Endpoint) Login(ctx context.Context, email, password string) (domain.Account, error) {
	c, err := e.repo.GetCredential(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Account{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.Account{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
		return domain.Account{}, domain.ErrInvalidCredentials
	}
	return c.Account, nil
}

// CreateReservation stores a booking; the total is recomputed from the
// stored listing whatever the caller sent.
func (e *Endpoint) CreateReservation(ctx context.Context, raw domain.Raw) (domain.Reservation, error) {
	r, err := normalizeReservation(raw, false)
	if errors.Is(err, domain.ErrInvalidDates) {
		return domain.Reservation{}, domain.ErrInvalidDates
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	l, err := e.repo.GetListing(ctx, r.ListingID)
	if err != nil {
		return domain.Reservation{}, err
	}
	r.ID = 0
	r.ListingName = l.Name
	r.TotalPrice = TotalPrice(l.Price, domain.Nights(r.CheckIn, r.CheckOut))
	r.Status = domain.StatusConfirmed
	if r.CreatedAt.IsZero() {
		r.CreatedAt = e.now().UTC()
	}
	id, err := e.repo.InsertReservation(ctx, r)
	if err != nil {
		return domain.Reservation{}, err
	}
	r.ID = id
	return r, nil
}
