package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/doorcrew/scanner-server-go/internal/middleware"
	"github.com/doorcrew/scanner-server-go/internal/service"
)

// OrganizerHandler serves the organizer-side API: issuing pairing
// credentials, watching connected scanners and revoking access.
type OrganizerHandler struct {
	pairingService    *service.PairingService
	sessionService    *service.SessionService
	revocationService *service.RevocationService
}

func NewOrganizerHandler(
	pairingService *service.PairingService,
	sessionService *service.SessionService,
	revocationService *service.RevocationService,
) *OrganizerHandler {
	return &OrganizerHandler{
		pairingService:    pairingService,
		sessionService:    sessionService,
		revocationService: revocationService,
	}
}

func (h *OrganizerHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/pairings", h.CreatePairing)
	r.Get("/pairings", h.ListPairings)
	r.Delete("/pairings/{pairingID}", h.CancelPairing)
	r.Get("/events/{eventID}/scanners", h.ListScanners)
	r.Post("/sessions/{sessionID}/revoke", h.RevokeSession)
	r.Post("/events/{eventID}/revoke-all", h.RevokeAll)
	r.Post("/events/{eventID}/end", h.EndEvent)

	return r
}

// POST /v1/pairings
func (h *OrganizerHandler) CreatePairing(w http.ResponseWriter, r *http.Request) {
	organizerID := middleware.GetOrganizerID(r.Context())

	var req struct {
		EventID string `json:"eventId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EventID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "eventId is required"})
		return
	}

	pairing, err := h.pairingService.CreatePairingSession(r.Context(), req.EventID, organizerID)
	if err != nil {
		log.Error().Err(err).Str("eventId", req.EventID).Msg("failed to create pairing session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        pairing.ID,
		"eventId":   pairing.EventID,
		"code":      pairing.Code,
		"qrPayload": pairing.QRPayload,
		"expiresAt": pairing.ExpiresAt.Format(time.RFC3339),
	})
}

// GET /v1/pairings?eventId=
func (h *OrganizerHandler) ListPairings(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "eventId is required"})
		return
	}

	pairings, err := h.pairingService.ListActivePairings(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pairings": pairings,
		"total":    len(pairings),
	})
}

// DELETE /v1/pairings/{pairingID}
func (h *OrganizerHandler) CancelPairing(w http.ResponseWriter, r *http.Request) {
	pairingID := chi.URLParam(r, "pairingID")

	if err := h.pairingService.CancelPairingSession(r.Context(), pairingID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GET /v1/events/{eventID}/scanners
func (h *OrganizerHandler) ListScanners(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	scanners, err := h.sessionService.GetConnectedScanners(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scanners": scanners,
		"total":    len(scanners),
	})
}

// POST /v1/sessions/{sessionID}/revoke
func (h *OrganizerHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	organizerID := middleware.GetOrganizerID(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.revocationService.RevokeSession(r.Context(), sessionID, organizerID)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("revoke failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session":   session,
		"revokedAt": formatTime(session.RevokedAt),
	})
}

// POST /v1/events/{eventID}/revoke-all
func (h *OrganizerHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	organizerID := middleware.GetOrganizerID(r.Context())
	eventID := chi.URLParam(r, "eventID")

	result, err := h.revocationService.RevokeAllSessions(r.Context(), eventID, organizerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/events/{eventID}/end
//
// Called by the Event Service when an event reaches end of life.
func (h *OrganizerHandler) EndEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	count, err := h.revocationService.ExpireSessionsForEndedEvent(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"expired": count})
}
