package domain

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar day (UTC midnight) encoded as YYYY-MM-DD.
type Date struct{ time.Time }

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	// tolerate full timestamps, keep the day part
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	p, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = p
	return nil
}

// Nights between check-in and check-out; zero or negative when the range is invalid.
func Nights(in, out Date) int {
	return int(out.Sub(in.Time).Hours() / 24)
}

type ReservationStatus string

const StatusConfirmed ReservationStatus = "confirmed"

type Reservation struct {
	ID              int64             `json:"id"`
	AccountID       int64             `json:"accountId"`
	ListingID       int64             `json:"listingId"`
	ListingName     string            `json:"listingName"`
	CheckIn         Date              `json:"checkIn"`
	CheckOut        Date              `json:"checkOut"`
	GuestCount      int               `json:"guestCount"`
	SpecialRequests string            `json:"specialRequests"`
	TotalPrice      float64           `json:"totalPrice"`
	Status          ReservationStatus `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
}

type BookingRequest struct {
	AccountID       int64  `json:"accountId" validate:"required,gt=0"`
	ListingID       int64  `json:"listingId" validate:"required,gt=0"`
	CheckIn         Date   `json:"checkIn"`
	CheckOut        Date   `json:"checkOut"`
	GuestCount      int    `json:"guestCount" validate:"required,gte=1,lte=50"`
	SpecialRequests string `json:"specialRequests" validate:"max=2000"`
}

// ReservationConfirmed is published once a booking has been stored.
type ReservationConfirmed struct {
	ReservationID int64   `json:"reservation_id"`
	AccountID     int64   `json:"account_id"`
	ListingID     int64   `json:"listing_id"`
	ListingName   string  `json:"listing_name"`
	CheckIn       string  `json:"check_in"`
	CheckOut      string  `json:"check_out"`
	GuestCount    int     `json:"guest_count"`
	TotalPrice    float64 `json:"total_price"`
	ConfirmedAt   string  `json:"confirmed_at"`
}
