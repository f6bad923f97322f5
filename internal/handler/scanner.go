package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
	"github.com/doorcrew/scanner-server-go/internal/middleware"
	"github.com/doorcrew/scanner-server-go/internal/model"
	"github.com/doorcrew/scanner-server-go/internal/service"
)

// ScannerHandler serves the device-side API: claiming a pairing credential,
// refreshing the local session view and validating ticket scans.
type ScannerHandler struct {
	sessionService *service.SessionService
	scanService    *service.ScanService
}

func NewScannerHandler(
	sessionService *service.SessionService,
	scanService *service.ScanService,
) *ScannerHandler {
	return &ScannerHandler{
		sessionService: sessionService,
		scanService:    scanService,
	}
}

// POST /v1/scanners/claim
//
// Accepts either a scanned QR payload or the typed fallback code.
func (h *ScannerHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payload    string `json:"payload"`
		Code       string `json:"code"`
		DeviceID   string `json:"deviceId"`
		DeviceName string `json:"deviceName"`
		Platform   string `json:"platform"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.DeviceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "deviceId is required"})
		return
	}
	if (req.Payload == "") == (req.Code == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exactly one of payload or code is required"})
		return
	}

	var (
		result *service.ConnectResult
		err    error
	)
	if req.Payload != "" {
		result, err = h.sessionService.ConnectWithQR(r.Context(), req.Payload, req.DeviceID, req.DeviceName, req.Platform)
	} else {
		result, err = h.sessionService.ConnectWithCode(r.Context(), req.Code, req.DeviceID, req.DeviceName, req.Platform)
	}
	if err != nil {
		log.Warn().Err(err).Str("deviceId", req.DeviceID).Msg("claim failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GET /v1/scanners/session
//
// Pull-based reconciliation: re-reads the authoritative record so a device
// learns about revocation or expiry on its next poll.
func (h *ScannerHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetScannerSession(r.Context())
	if session == nil {
		writeError(w, apperrors.Unauthorized("missing scanner session"))
		return
	}

	current, err := h.sessionService.RefreshSession(r.Context(), session.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session": current,
		"valid":   current.Status == model.SessionStatusActive,
	})
}

// POST /v1/scanners/rename
func (h *ScannerHandler) Rename(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetScannerSession(r.Context())
	if session == nil {
		writeError(w, apperrors.Unauthorized("missing scanner session"))
		return
	}

	var req struct {
		DeviceName string `json:"deviceName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "deviceName is required"})
		return
	}

	device, err := h.sessionService.RenameDevice(r.Context(), session.DeviceID, req.DeviceName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"device": device})
}

// POST /v1/scans
func (h *ScannerHandler) ValidateScan(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetScannerSession(r.Context())
	if session == nil {
		writeError(w, apperrors.Unauthorized("missing scanner session"))
		return
	}

	var req struct {
		EventID  string `json:"eventId"`
		TicketQR string `json:"ticketQr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.EventID == "" || req.TicketQR == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "eventId and ticketQr are required"})
		return
	}

	result, err := h.scanService.ValidateScan(r.Context(), model.ScanRequest{
		SessionID: session.ID,
		EventID:   req.EventID,
		DeviceID:  session.DeviceID,
		TicketQR:  req.TicketQR,
	})
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("scan validation error")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
