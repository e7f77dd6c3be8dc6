package domain

import "context"

// Cache is a persistent key/value store of JSON values.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// SheetClient is the remote data endpoint. Every method may fail with
// ErrSourceUnavailable; definitive answers use the other sentinel errors.
type SheetClient interface {
	GetListings(ctx context.Context) ([]Raw, error)
	SaveListing(ctx context.Context, l Listing) (int64, error)
	RegisterAccount(ctx context.Context, r Registration) (Account, error)
	Login(ctx context.Context, email, password string) (Account, error)
	CreateReservation(ctx context.Context, r Reservation) (Reservation, error)
}

// SheetRepository is the storage behind the sheet endpoint.
type SheetRepository interface {
	ListListings(ctx context.Context) ([]Listing, error)
	GetListing(ctx context.Context, id int64) (Listing, error)
	SaveListing(ctx context.Context, l Listing) (int64, error)
	InsertAccount(ctx context.Context, c Credential) (int64, error)
	GetCredential(ctx context.Context, email string) (Credential, error)
	InsertReservation(ctx context.Context, r Reservation) (int64, error)
}

type EventPublisher interface {
	PublishReservationConfirmed(ctx context.Context, ev ReservationConfirmed) error
}
