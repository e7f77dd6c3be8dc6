package domain

// Raw is a loosely-typed record as received from any source.
type Raw = map[string]any

type Kind string

const (
	KindListings     Kind = "listings"
	KindAccounts     Kind = "accounts"
	KindReservations Kind = "reservations"
)

type Listing struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name" validate:"required"`
	Place        string   `json:"place"`
	Price        float64  `json:"price" validate:"gte=0"`
	PrimaryImage string   `json:"primaryImage"`
	Images       []string `json:"images"`
	Features     []string `json:"features"`
	SafetyNotes  []string `json:"safetyNotes"`
	Description  string   `json:"description"`
	Reviews      []Review `json:"reviews"`
}

type Review struct {
	Author string `json:"author"`
	Date   string `json:"date"`
	Rating int    `json:"rating"` // 1..5
	Text   string `json:"text"`
}
