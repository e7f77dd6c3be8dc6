package app

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"luxury_villas/internal/domain"
)

// Principal is the identity carried by a session token.
type Principal struct {
	AccountID int64
	Email     string
	Role      domain.Role
}

func (p Principal) IsAdmin() bool { return p.Role == domain.RoleAdmin }

// Sessions issues and verifies HS256 session tokens. Tokens do not expire;
// a session lasts until the client drops it.
type Sessions struct {
	secret []byte
	now    func() time.Time
}

func NewSessions(secret string) *Sessions {
	return &Sessions{secret: []byte(secret), now: time.Now}
}

func (s *Sessions) Issue(a domain.Account) (string, error) {
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(a.ID, 10),
		"email": a.Email,
		"role":  string(a.Role),
		"iat":   s.now().UTC().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (s *Sessions) Parse(raw string) (Principal, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return Principal{}, fmt.Errorf("%w: bad session token", domain.ErrInvalidCredentials)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, fmt.Errorf("%w: bad session claims", domain.ErrInvalidCredentials)
	}
	sub, _ := claims.GetSubject()
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, fmt.Errorf("%w: bad subject", domain.ErrInvalidCredentials)
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if role != string(domain.RoleAdmin) {
		role = string(domain.RoleGuest)
	}
	return Principal{AccountID: id, Email: email, Role: domain.Role(role)}, nil
}
