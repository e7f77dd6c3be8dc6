package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	mysqldrv "github.com/go-sql-driver/mysql"

	"luxury_villas/internal/domain"
)

const errDupEntry = 1062

func valID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

// valJSON stores nil slices as empty arrays so reads never see NULL.
func valJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

func isDuplicate(err error) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}

// Repo is the sheet endpoint's storage.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

type rowScanner interface{ Scan(dest ...any) error }

func scanListing(s rowScanner) (domain.Listing, error) {
	var (
		l                                      domain.Listing
		place, img, desc                       sql.NullString
		images, features, safety, reviewsBytes []byte
	)
	if err := s.Scan(&l.ID, &l.Name, &place, &l.Price, &img, &images, &features, &safety, &desc, &reviewsBytes); err != nil {
		return domain.Listing{}, err
	}
	l.Place, l.PrimaryImage, l.Description = place.String, img.String, desc.String

	l.Images, l.Features, l.SafetyNotes = []string{}, []string{}, []string{}
	l.Reviews = []domain.Review{}
	// columns are written by SaveListing; a broken value degrades to empty
	_ = json.Unmarshal(images, &l.Images)
	_ = json.Unmarshal(features, &l.Features)
	_ = json.Unmarshal(safety, &l.SafetyNotes)
	_ = json.Unmarshal(reviewsBytes, &l.Reviews)
	return l, nil
}

func (r *Repo) ListListings(ctx context.Context) ([]domain.Listing, error) {
	rows, err := r.db.QueryContext(ctx, listListingsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) GetListing(ctx context.Context, id int64) (domain.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, getListingSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
	}
	return l, err
}

func (r *Repo) SaveListing(ctx context.Context, l domain.Listing) (int64, error) {
	cols := make([]string, 4)
	for i, v := range []any{l.Images, l.Features, l.SafetyNotes, l.Reviews} {
		s, err := valJSON(v)
		if err != nil {
			return 0, err
		}
		cols[i] = s
	}
	res, err := r.db.ExecContext(ctx, upsertListingSQL,
		valID(l.ID),
		l.Name,
		l.Place,
		l.Price,
		l.PrimaryImage,
		cols[0], cols[1], cols[2],
		l.Description,
		cols[3],
	)
	if err != nil {
		return 0, err
	}
	if l.ID > 0 {
		return l.ID, nil
	}
	return res.LastInsertId()
}

func (r *Repo) InsertAccount(ctx context.Context, c domain.Credential) (int64, error) {
	role := c.Role
	if role == "" {
		role = domain.RoleGuest
	}
	res, err := r.db.ExecContext(ctx, insertAccountSQL,
		c.FirstName, c.LastName, c.Email, c.Phone, string(role), c.PasswordHash)
	if isDuplicate(err) {
		return 0, fmt.Errorf("%s: %w", c.Email, domain.ErrDuplicateAccount)
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) GetCredential(ctx context.Context, email string) (domain.Credential, error) {
	var c domain.Credential
	var role string
	err := r.db.QueryRowContext(ctx, getCredentialSQL, email).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &role, &c.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Credential{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Credential{}, err
	}
	c.Role = domain.Role(role)
	return c, nil
}

func (r *Repo) InsertReservation(ctx context.Context, res domain.Reservation) (int64, error) {
	status := res.Status
	if status == "" {
		status = domain.StatusConfirmed
	}
	out, err := r.db.ExecContext(ctx, insertReservationSQL,
		res.AccountID,
		res.ListingID,
		res.ListingName,
		res.CheckIn.String(),
		res.CheckOut.String(),
		res.GuestCount,
		res.SpecialRequests,
		res.TotalPrice,
		string(status),
		res.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return out.LastInsertId()
}
