package app

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"luxury_villas/internal/domain"
)

/********** alias registries (single source of truth) **********/

// The sheet lower-cases its headers and older browser builds used other
// names, so each canonical field accepts several spellings.
var listingAliases = map[string][]string{
	"id":           {"id", "villaId", "listingId"},
	"name":         {"name", "title"},
	"place":        {"place", "location", "address.city"},
	"price":        {"price", "pricePerNight", "price_per_night"},
	"primaryImage": {"primaryImage", "image", "imageUrl", "image_url"},
	"images":       {"images", "photos", "gallery"},
	"features":     {"features", "amenities"},
	"safetyNotes":  {"safetyNotes", "safety", "safety_notes"},
	"description":  {"description", "desc"},
	"reviews":      {"reviews"},
}

var reviewAliases = map[string][]string{
	"author": {"author", "name", "userName", "reviewer", "reviewer.name"},
	"date":   {"date", "createdAt", "created_at"},
	"rating": {"rating", "stars", "score"},
	"text":   {"text", "comment", "review", "body"},
}

var accountAliases = map[string][]string{
	"id":           {"id", "userId", "accountId"},
	"firstName":    {"firstName", "first_name", "firstname"},
	"lastName":     {"lastName", "last_name", "lastname"},
	"email":        {"email"},
	"phone":        {"phone", "mobile"},
	"role":         {"role"},
	"passwordHash": {"passwordHash", "password_hash"},
	"remoteId":     {"remoteId", "sheetId"},
}

var reservationAliases = map[string][]string{
	"id":              {"id", "bookingId", "reservationId"},
	"accountId":       {"accountId", "userId"},
	"listingId":       {"listingId", "villaId"},
	"listingName":     {"listingName", "villaName"},
	"checkIn":         {"checkIn", "check_in"},
	"checkOut":        {"checkOut", "check_out"},
	"guestCount":      {"guestCount", "guests"},
	"specialRequests": {"specialRequests", "special_requests"},
	"totalPrice":      {"totalPrice", "total_price"},
	"status":          {"status"},
	"createdAt":       {"createdAt", "created_at", "bookingDate"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the trimmed string at path or "". Numbers are formatted.
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// firstAlias: first non-empty string for a named alias set, or "".
func firstAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// present reports whether any alias of key exists with a non-nil value.
func present(m map[string]any, aliases map[string][]string, key string) (any, bool) {
	for _, p := range aliases[key] {
		if v := lookupAny(m, p); v != nil {
			return v, true
		}
	}
	return nil, false
}

// getFloatFlexible: number from several paths (float64/int/string like "₹15,000").
func getFloatFlexible(m map[string]any, paths ...string) (float64, bool) {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		case string:
			s := stripNumber(v)
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
			return 0, false
		}
	}
	return 0, false
}

// stripNumber drops currency symbols, spaces and thousands separators.
func stripNumber(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// firstInt64Flexible: int64 from several paths (float64/int/string).
func firstInt64Flexible(m map[string]any, paths ...string) (int64, bool) {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			if v != math.Trunc(v) {
				return 0, false
			}
			return int64(v), true
		case int:
			return int64(v), true
		case int64:
			return v, true
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			n, err := strconv.ParseInt(s, 10, 64)
			return n, err == nil
		}
	}
	return 0, false
}

// arrayField returns the array stored under the first present alias. A JSON
// encoded string is parsed; a parse failure or any other type yields an empty
// slice, never an error.
func arrayField(m map[string]any, aliases map[string][]string, key string) []any {
	v, ok := present(m, aliases, key)
	if !ok {
		return []any{}
	}
	switch t := v.(type) {
	case []any:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return []any{}
		}
		var out []any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			log.Debug().Err(err).Str("field", key).Msg("unparseable array field, using []")
			return []any{}
		}
		if out == nil {
			return []any{}
		}
		return out
	}
	return []any{}
}

// stringsOf accepts strings or {url/src/name} objects.
func stringsOf(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, it := range raw {
		switch t := it.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			for _, k := range []string{"url", "src", "name"} {
				if u, ok := t[k].(string); ok && u != "" {
					out = append(out, u)
					break
				}
			}
		}
	}
	return out
}

// uniqueStrings keeps the first occurrence of each entry (features and
// safety notes are sets).
func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrRecordMalformed, fmt.Sprintf(format, args...))
}

/********** listings **********/

type ListingNormalizer struct{}

func (ListingNormalizer) ID(l domain.Listing) int64 { return l.ID }

func (ListingNormalizer) Normalize(raw domain.Raw) (domain.Listing, error) {
	return normalizeListing(raw, true)
}

// normalizeListing maps a raw record; requireID is false for incoming writes,
// where a missing id means "assign one".
func normalizeListing(raw domain.Raw, requireID bool) (domain.Listing, error) {
	var l domain.Listing
	if raw == nil {
		return l, malformed("nil record")
	}

	if _, ok := present(raw, listingAliases, "id"); ok {
		id, ok := firstInt64Flexible(raw, listingAliases["id"]...)
		if !ok || id < 0 {
			return l, malformed("listing id %v is not a positive integer", lookupAny(raw, "id"))
		}
		l.ID = id
	}
	if requireID && l.ID <= 0 {
		return l, malformed("listing without id")
	}

	price, ok := getFloatFlexible(raw, listingAliases["price"]...)
	if !ok || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return l, malformed("listing %d: price %v is not a non-negative number", l.ID, lookupAny(raw, "price"))
	}
	l.Price = price

	l.Name = firstAlias(raw, listingAliases, "name")
	l.Place = firstAlias(raw, listingAliases, "place")
	l.PrimaryImage = firstAlias(raw, listingAliases, "primaryImage")
	l.Description = firstAlias(raw, listingAliases, "description")
	l.Images = stringsOf(arrayField(raw, listingAliases, "images"))
	l.Features = uniqueStrings(stringsOf(arrayField(raw, listingAliases, "features")))
	l.SafetyNotes = uniqueStrings(stringsOf(arrayField(raw, listingAliases, "safetyNotes")))
	l.Reviews = normalizeReviews(arrayField(raw, listingAliases, "reviews"))

	if l.PrimaryImage == "" && len(l.Images) > 0 {
		l.PrimaryImage = l.Images[0]
	}
	return l, nil
}

func normalizeReviews(raw []any) []domain.Review {
	out := make([]domain.Review, 0, len(raw))
	for _, it := range raw {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		rating, ok := getFloatFlexible(m, reviewAliases["rating"]...)
		if !ok || rating < 1 || rating > 5 {
			log.Debug().Interface("rating", lookupAny(m, "rating")).Msg("dropping review with rating outside 1..5")
			continue
		}
		out = append(out, domain.Review{
			Author: firstAlias(m, reviewAliases, "author"),
			Date:   firstAlias(m, reviewAliases, "date"),
			Rating: int(math.Round(rating)),
			Text:   firstAlias(m, reviewAliases, "text"),
		})
	}
	return out
}

// sanitizeListing applies the read-side invariants to a typed write.
func sanitizeListing(l domain.Listing) domain.Listing {
	b, err := json.Marshal(l)
	if err != nil {
		return l
	}
	var raw domain.Raw
	if err := json.Unmarshal(b, &raw); err != nil {
		return l
	}
	out, err := normalizeListing(raw, false)
	if err != nil {
		return l
	}
	return out
}

/********** accounts **********/

type CredentialNormalizer struct{}

func (CredentialNormalizer) ID(c domain.Credential) int64 { return c.ID }

func (CredentialNormalizer) Normalize(raw domain.Raw) (domain.Credential, error) {
	var c domain.Credential
	id, ok := firstInt64Flexible(raw, accountAliases["id"]...)
	if !ok || id <= 0 {
		return c, malformed("account without a positive id")
	}
	email := normalizeEmail(firstAlias(raw, accountAliases, "email"))
	if email == "" {
		return c, malformed("account %d without email", id)
	}
	role := domain.RoleGuest
	if strings.EqualFold(firstAlias(raw, accountAliases, "role"), string(domain.RoleAdmin)) {
		role = domain.RoleAdmin
	}
	if admin, _ := lookupAny(raw, "isAdmin").(bool); admin {
		role = domain.RoleAdmin
	}
	c.Account = domain.Account{
		ID:        id,
		FirstName: firstAlias(raw, accountAliases, "firstName"),
		LastName:  firstAlias(raw, accountAliases, "lastName"),
		Email:     email,
		Phone:     firstAlias(raw, accountAliases, "phone"),
		Role:      role,
	}
	c.PasswordHash = firstAlias(raw, accountAliases, "passwordHash")
	if rid, ok := firstInt64Flexible(raw, accountAliases["remoteId"]...); ok && rid > 0 {
		c.RemoteID = rid
	}
	return c, nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

/********** reservations **********/

type ReservationNormalizer struct{}

func (ReservationNormalizer) ID(r domain.Reservation) int64 { return r.ID }

func (ReservationNormalizer) Normalize(raw domain.Raw) (domain.Reservation, error) {
	return normalizeReservation(raw, true)
}

func normalizeReservation(raw domain.Raw, requireID bool) (domain.Reservation, error) {
	var r domain.Reservation
	if id, ok := firstInt64Flexible(raw, reservationAliases["id"]...); ok && id > 0 {
		r.ID = id
	} else if requireID {
		return r, malformed("reservation without a positive id")
	}

	r.AccountID, _ = firstInt64Flexible(raw, reservationAliases["accountId"]...)
	r.ListingID, _ = firstInt64Flexible(raw, reservationAliases["listingId"]...)
	if r.AccountID <= 0 || r.ListingID <= 0 {
		return r, malformed("reservation %d: missing account or listing", r.ID)
	}

	var err error
	if r.CheckIn, err = domain.ParseDate(firstAlias(raw, reservationAliases, "checkIn")); err != nil {
		return r, malformed("reservation %d: check-in: %v", r.ID, err)
	}
	if r.CheckOut, err = domain.ParseDate(firstAlias(raw, reservationAliases, "checkOut")); err != nil {
		return r, malformed("reservation %d: check-out: %v", r.ID, err)
	}
	if !r.CheckOut.After(r.CheckIn.Time) {
		return r, fmt.Errorf("%w: reservation %d: %w", domain.ErrRecordMalformed, r.ID, domain.ErrInvalidDates)
	}

	guests, ok := firstInt64Flexible(raw, reservationAliases["guestCount"]...)
	if !ok {
		guests = 1
	}
	if guests < 1 {
		return r, malformed("reservation %d: guest count %d", r.ID, guests)
	}
	r.GuestCount = int(guests)

	r.ListingName = firstAlias(raw, reservationAliases, "listingName")
	r.SpecialRequests = firstAlias(raw, reservationAliases, "specialRequests")
	r.TotalPrice, _ = getFloatFlexible(raw, reservationAliases["totalPrice"]...)
	r.Status = domain.StatusConfirmed

	if s := firstAlias(raw, reservationAliases, "createdAt"); s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			r.CreatedAt = t.UTC()
		} else if d, err := domain.ParseDate(s); err == nil {
			r.CreatedAt = d.Time
		}
	}
	return r, nil
}
