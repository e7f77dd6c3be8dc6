// internal/adapters/sheets/client.go
package sheets

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"luxury_villas/internal/adapters/observability"
	"luxury_villas/internal/domain"
)

// Client talks to the sheet endpoint: one GET for listings and one POST per
// mutation, each POST carrying {"action": ..., "data": ...}.
type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
}

func New(base string, rps int) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("sheet endpoint URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid sheet endpoint URL: %w", err)
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 20 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- Public API ----

func (c *Client) GetListings(ctx context.Context) ([]domain.Raw, error) {
	var out struct {
		Listings []domain.Raw `json:"listings"`
		Villas   []domain.Raw `json:"villas"` // older deployments
	}
	u := c.base + "?action=getListings"
	if strings.Contains(c.base, "?") {
		u = c.base + "&action=getListings"
	}
	if err := c.do(ctx, "getListings", http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	if out.Listings != nil {
		return out.Listings, nil
	}
	if out.Villas != nil {
		return out.Villas, nil
	}
	return []domain.Raw{}, nil
}

func (c *Client) SaveListing(ctx context.Context, l domain.Listing) (int64, error) {
	var out struct {
		ID any `json:"id"`
	}
	if err := c.post(ctx, "saveListing", l, &out); err != nil {
		return 0, err
	}
	id, ok := toInt64(out.ID)
	if !ok {
		// the write may have happened but we cannot tell which record it is
		return 0, fmt.Errorf("%w: saveListing returned no id", domain.ErrSourceUnavailable)
	}
	return id, nil
}

func (c *Client) RegisterAccount(ctx context.Context, r domain.Registration) (domain.Account, error) {
	return c.accountCall(ctx, "registerAccount", r)
}

func (c *Client) Login(ctx context.Context, email, password string) (domain.Account, error) {
	return c.accountCall(ctx, "login", map[string]string{"email": email, "password": password})
}

func (c *Client) CreateReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	var out struct {
		Reservation *domain.Reservation `json:"reservation"`
		ID          any                 `json:"id"`
	}
	if err := c.post(ctx, "createReservation", r, &out); err != nil {
		return domain.Reservation{}, err
	}
	if out.Reservation != nil && out.Reservation.ID != 0 {
		return *out.Reservation, nil
	}
	if id, ok := toInt64(out.ID); ok {
		r.ID = id
		return r, nil
	}
	return domain.Reservation{}, fmt.Errorf("%w: createReservation returned no id", domain.ErrSourceUnavailable)
}

// ---- Internals ----

func (c *Client) accountCall(ctx context.Context, action string, data any) (domain.Account, error) {
	var out struct {
		Account map[string]any `json:"account"`
		User    map[string]any `json:"user"` // older deployments
	}
	if err := c.post(ctx, action, data, &out); err != nil {
		return domain.Account{}, err
	}
	raw := out.Account
	if raw == nil {
		raw = out.User
	}
	acc, ok := accountFromRaw(raw)
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: %s returned no account", domain.ErrSourceUnavailable, action)
	}
	return acc, nil
}

func (c *Client) post(ctx context.Context, action string, data, out any) error {
	body, err := json.Marshal(map[string]any{"action": action, "data": data})
	if err != nil {
		return err
	}
	return c.do(ctx, action, http.MethodPost, c.base, body, out)
}

// do performs one call with client-side rate limiting, retries and JSON
// decoding. GETs retry on 429 and transient 5xx; POSTs retry only on 429,
// where the endpoint has not processed the request.
func (c *Client) do(ctx context.Context, action, method, u string, body []byte, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return unavailable(err)
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rdr)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "luxury-villas/1.0")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("sheets", action, 0, time.Since(start))
			if ctx.Err() != nil {
				return unavailable(ctx.Err())
			}
			lastErr = err
			if method == http.MethodGet && i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return unavailable(lastErr)
		}
		observability.ObserveExternal("sheets", action, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode == http.StatusTooManyRequests ||
			(method == http.MethodGet && resp.StatusCode >= 500):
			wait := retryAfter(resp)
			drain(resp)
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			return unavailable(lastErr)

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
			resp.Body.Close()
			if err != nil {
				return unavailable(err)
			}
			return decode(b, resp.StatusCode, out)

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return statusError(resp.StatusCode, remoteMessage(b))
		}
	}
	return unavailable(lastErr)
}

// decode handles the endpoint's habit of answering errors with 200 and an
// {"error": "..."} body.
func decode(b []byte, status int, out any) error {
	var env struct {
		Error   string `json:"error"`
		Success *bool  `json:"success"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return unavailable(fmt.Errorf("decode envelope: %w", err))
	}
	if env.Error != "" {
		return messageError(env.Error)
	}
	if env.Success != nil && !*env.Success {
		return fmt.Errorf("%w: endpoint reported failure (status %d)", domain.ErrSourceUnavailable, status)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return unavailable(fmt.Errorf("decode body: %w", err))
	}
	return nil
}

func statusError(status int, msg string) error {
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrValidation, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrDuplicateAccount, msg)
	}
	return fmt.Errorf("%w: bad status %d: %s", domain.ErrSourceUnavailable, status, msg)
}

// messageError classifies an error message returned with a 2xx status.
func messageError(msg string) error {
	low := strings.ToLower(msg)
	switch {
	case strings.Contains(low, "already exists"):
		return fmt.Errorf("%w: %s", domain.ErrDuplicateAccount, msg)
	case strings.Contains(low, "invalid email or password"):
		return fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, msg)
	case strings.Contains(low, "not found"):
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case strings.Contains(low, "invalid"):
		return fmt.Errorf("%w: %s", domain.ErrValidation, msg)
	}
	return fmt.Errorf("%w: %s", domain.ErrSourceUnavailable, msg)
}

func remoteMessage(b []byte) string {
	var env struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &env) == nil && env.Error != "" {
		return env.Error
	}
	return strings.TrimSpace(string(b))
}

func unavailable(err error) error {
	if err == nil {
		err = errors.New("no response")
	}
	return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func accountFromRaw(m map[string]any) (domain.Account, bool) {
	if m == nil {
		return domain.Account{}, false
	}
	id, ok := toInt64(m["id"])
	if !ok {
		return domain.Account{}, false
	}
	str := func(k string) string {
		s, _ := m[k].(string)
		return s
	}
	role := domain.Role(str("role"))
	if admin, _ := m["isAdmin"].(bool); admin {
		role = domain.RoleAdmin
	}
	if role != domain.RoleAdmin {
		role = domain.RoleGuest
	}
	return domain.Account{
		ID:        id,
		FirstName: str("firstName"),
		LastName:  str("lastName"),
		Email:     str("email"),
		Phone:     str("phone"),
		Role:      role,
	}, true
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), t > 0
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns 100ms, 200ms, 400ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 100 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
