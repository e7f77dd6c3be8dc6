// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"luxury_villas/internal/app"
	"luxury_villas/internal/domain"
)

const maxBody = 1 << 20

type Handlers struct {
	Listings     *app.ListingService
	Accounts     *app.AccountService
	Reservations *app.ReservationService
	Sessions     *app.Sessions
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/v1/listings", h.listListings)
	s.mux.Get("/v1/listings/{id}", h.getListing)
	s.mux.Post("/v1/accounts", h.register)
	s.mux.Post("/v1/sessions", h.login)

	s.mux.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.Sessions))
		r.Get("/v1/me", h.me)
		r.Post("/v1/reservations", h.createReservation)
		r.Get("/v1/reservations", h.listReservations)

		r.With(RequireAdmin).Post("/v1/listings", h.saveListing)
		r.With(RequireAdmin).Delete("/v1/listings/{id}", h.deleteListing)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, title := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		detail = ""
	}
	writeProblem(w, status, title, detail)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return 0, false
	}
	return id, true
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// listListings always answers 200: an exhausted resolution is reported in the
// body as ok=false with an empty collection.
func (h *Handlers) listListings(w http.ResponseWriter, r *http.Request) {
	res := h.Listings.List(r.Context())

	etag, body := calcETagAndBody(res)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("X-Served-By", string(res.ServedBy))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listListings body")
	}
}

func (h *Handlers) getListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, err := h.Listings.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) saveListing(w http.ResponseWriter, r *http.Request) {
	var in domain.Listing
	if !decodeBody(w, r, &in) {
		return
	}
	created := in.ID == 0
	l, err := h.Listings.Save(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, l)
}

func (h *Handlers) deleteListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Listings.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var in domain.Registration
	if !decodeBody(w, r, &in) {
		return
	}
	acc, err := h.Accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token   string         `json:"token"`
	Account domain.Account `json:"account"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !decodeBody(w, r, &in) {
		return
	}
	acc, err := h.Accounts.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	tok, err := h.Sessions.Issue(acc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: tok, Account: acc})
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	acc, err := h.Accounts.Get(r.Context(), p.AccountID)
	if errors.Is(err, domain.ErrNotFound) {
		// account only known to the sheet; the token is all we have
		acc = domain.Account{ID: p.AccountID, Email: p.Email, Role: p.Role}
	} else if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *Handlers) createReservation(w http.ResponseWriter, r *http.Request) {
	var in domain.BookingRequest
	if !decodeBody(w, r, &in) {
		return
	}
	p, _ := principalFrom(r.Context())
	in.AccountID = p.AccountID

	res, err := h.Reservations.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) listReservations(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"reservations": h.Reservations.ListForAccount(r.Context(), p.AccountID),
	})
}
