package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"luxury_villas/internal/app"
	"luxury_villas/internal/domain"
)

// MountEndpoint serves the sheet endpoint protocol: GET /exec?action=... for
// reads and POST /exec with {"action", "data"} for writes. Errors are
// {"error": "..."} bodies with a matching status code.
func (s *Server) MountEndpoint(e *app.Endpoint) {
	h := &endpointHandlers{e: e}
	s.mux.Get("/exec", h.get)
	s.mux.Post("/exec", h.post)
}

type endpointHandlers struct{ e *app.Endpoint }

type actionRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

func (h *endpointHandlers) get(w http.ResponseWriter, r *http.Request) {
	switch action := r.URL.Query().Get("action"); action {
	case "getListings":
		ls, err := h.e.ListListings(r.Context())
		if err != nil {
			writeActionError(w, action, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"listings": ls})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid action"})
	}
}

func (h *endpointHandlers) post(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	ctx := r.Context()
	switch req.Action {
	case "saveListing":
		var raw domain.Raw
		if !decodeData(w, req.Data, &raw) {
			return
		}
		id, err := h.e.SaveListing(ctx, raw)
		if err != nil {
			writeActionError(w, req.Action, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})

	case "registerAccount":
		var reg domain.Registration
		if !decodeData(w, req.Data, &reg) {
			return
		}
		acc, err := h.e.RegisterAccount(ctx, reg)
		if err != nil {
			writeActionError(w, req.Action, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "account": acc})

	case "login":
		var in loginRequest
		if !decodeData(w, req.Data, &in) {
			return
		}
		acc, err := h.e.Login(ctx, in.Email, in.Password)
		if err != nil {
			writeActionError(w, req.Action, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "account": acc})

	case "createReservation":
		var raw domain.Raw
		if !decodeData(w, req.Data, &raw) {
			return
		}
		res, err := h.e.CreateReservation(ctx, raw)
		if err != nil {
			writeActionError(w, req.Action, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": res.ID, "reservation": res})

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid action"})
	}
}

func decodeData(w http.ResponseWriter, data json.RawMessage, dst any) bool {
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request: missing data"})
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request: " + err.Error()})
		return false
	}
	return true
}

// writeActionError keeps the messages the site's client classifies on.
func writeActionError(w http.ResponseWriter, action string, err error) {
	status, _ := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusUnauthorized:
		msg = "Invalid email or password"
	case http.StatusConflict:
		msg = "Email already exists"
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		log.Error().Err(err).Str("action", action).Msg("endpoint action failed")
		status, msg = http.StatusInternalServerError, "Internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
