package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/doorcrew/scanner-server-go/internal/analytics"
	"github.com/doorcrew/scanner-server-go/internal/config"
	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
	"github.com/doorcrew/scanner-server-go/internal/model"
	"github.com/doorcrew/scanner-server-go/internal/payload"
	"github.com/doorcrew/scanner-server-go/internal/registry"
	"github.com/doorcrew/scanner-server-go/internal/sse"
	"github.com/doorcrew/scanner-server-go/internal/util"
)

// ConnectResult is returned to a device after a successful claim. The
// session token is shown once and stored only as a hash.
type ConnectResult struct {
	Session      *model.ScannerSession `json:"session"`
	Device       *model.ScannerDevice  `json:"device"`
	SessionToken string                `json:"sessionToken"`
}

// ConnectedScanner is the organizer-facing projection of an active session
// joined with its device metadata.
type ConnectedScanner struct {
	Session model.ScannerSession `json:"session"`
	Device  *model.ScannerDevice `json:"device,omitempty"`
}

// SessionService owns the claim flow: it converts a valid pairing credential
// into an event-scoped scanner session.
type SessionService struct {
	pairings registry.PairingRegistry
	sessions registry.SessionRegistry
	devices  registry.DeviceRegistry
	recorder *analytics.Recorder
	broker   sse.Publisher
}

func NewSessionService(
	pairings registry.PairingRegistry,
	sessions registry.SessionRegistry,
	devices registry.DeviceRegistry,
	recorder *analytics.Recorder,
	broker sse.Publisher,
) *SessionService {
	return &SessionService{
		pairings: pairings,
		sessions: sessions,
		devices:  devices,
		recorder: recorder,
		broker:   broker,
	}
}

// ConnectWithQR claims the pairing session referenced by a scanned QR
// payload. A payload whose event does not match the pairing record is
// treated as not found rather than burning the claim.
func (s *SessionService) ConnectWithQR(ctx context.Context, rawPayload, deviceID, deviceName, platform string) (*ConnectResult, error) {
	if deviceID == "" {
		return nil, apperrors.MissingRequired("deviceId")
	}

	pp, err := payload.ParsePair(rawPayload)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	existing, err := s.pairings.FindByID(ctx, pp.SessionID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.EventID != pp.EventID {
		return nil, apperrors.PairingNotFound()
	}

	claimed, err := s.pairings.Claim(ctx, pp.SessionID, deviceID, now)
	if err != nil {
		return nil, err
	}

	return s.completeClaim(ctx, claimed, deviceID, deviceName, platform, now)
}

// ConnectWithCode claims a pairing session by its typed fallback code.
func (s *SessionService) ConnectWithCode(ctx context.Context, code, deviceID, deviceName, platform string) (*ConnectResult, error) {
	if deviceID == "" {
		return nil, apperrors.MissingRequired("deviceId")
	}

	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, apperrors.MissingRequired("code")
	}

	now := time.Now()

	claimed, err := s.pairings.ClaimByCode(ctx, normalized, deviceID, now)
	if err != nil {
		return nil, err
	}

	return s.completeClaim(ctx, claimed, deviceID, deviceName, platform, now)
}

func (s *SessionService) completeClaim(ctx context.Context, claimed *model.PairingSession, deviceID, deviceName, platform string, now time.Time) (*ConnectResult, error) {
	device, err := s.devices.Upsert(ctx, deviceID, deviceName, platform, now)
	if err != nil {
		return nil, err
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("failed to generate session token").WithCause(err)
	}

	session := &model.ScannerSession{
		ID:          uuid.NewString(),
		EventID:     claimed.EventID,
		OrganizerID: claimed.OrganizerID,
		DeviceID:    deviceID,
		TokenHash:   util.HashToken(token),
		Status:      model.SessionStatusActive,
		PairedAt:    now,
		ExpiresAt:   now.Add(config.SessionTTL),
	}

	// A device re-pairing for the same event replaces its previous session.
	// Insert and replace happen under one registry lock so concurrent claims
	// by the same device cannot leave two live credentials.
	replaced, err := s.sessions.CreateReplacing(ctx, session)
	if err != nil {
		return nil, err
	}
	for _, prev := range replaced {
		log.Info().
			Str("sessionId", prev.ID).
			Str("deviceId", deviceID).
			Msg("previous session replaced by new claim")
		emit(s.recorder, analytics.Record{
			Type:      analytics.EventSessionExpired,
			EventID:   prev.EventID,
			SessionID: prev.ID,
			DeviceID:  prev.DeviceID,
		})
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("eventId", session.EventID).
		Str("deviceId", deviceID).
		Time("expiresAt", session.ExpiresAt).
		Msg("scanner session created")

	emit(s.recorder, analytics.Record{
		Type:      analytics.EventPaired,
		EventID:   session.EventID,
		SessionID: session.ID,
		DeviceID:  deviceID,
	})
	publish(ctx, s.broker, session.EventID, "scanner_paired", map[string]any{
		"sessionId":  session.ID,
		"deviceId":   deviceID,
		"deviceName": device.DeviceName,
	})

	return &ConnectResult{
		Session:      session,
		Device:       device,
		SessionToken: token,
	}, nil
}

// GetActiveSessions lists the event's valid sessions, most recently paired
// first.
func (s *SessionService) GetActiveSessions(ctx context.Context, eventID string) ([]model.ScannerSession, error) {
	return s.sessions.ListActiveByEvent(ctx, eventID, time.Now())
}

// GetConnectedScanners joins active sessions with their device records.
func (s *SessionService) GetConnectedScanners(ctx context.Context, eventID string) ([]ConnectedScanner, error) {
	sessions, err := s.sessions.ListActiveByEvent(ctx, eventID, time.Now())
	if err != nil {
		return nil, err
	}

	scanners := make([]ConnectedScanner, 0, len(sessions))
	for _, session := range sessions {
		device, err := s.devices.FindByID(ctx, session.DeviceID)
		if err != nil {
			return nil, err
		}
		scanners = append(scanners, ConnectedScanner{Session: session, Device: device})
	}
	return scanners, nil
}

// RefreshSession re-reads the authoritative session record. A session past
// its expiry is transitioned on the spot so the caller sees the terminal
// status instead of a stale active one.
func (s *SessionService) RefreshSession(ctx context.Context, sessionID string) (*model.ScannerSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.SessionNotFound()
	}

	now := time.Now()
	if session.Status == model.SessionStatusActive && !now.Before(session.ExpiresAt) {
		session, err = s.sessions.MarkExpired(ctx, sessionID, now)
		if err != nil {
			return nil, err
		}
		emit(s.recorder, analytics.Record{
			Type:      analytics.EventSessionExpired,
			EventID:   session.EventID,
			SessionID: session.ID,
			DeviceID:  session.DeviceID,
		})
	}

	return session, nil
}

// RenameDevice updates a previously seen device's display name.
func (s *SessionService) RenameDevice(ctx context.Context, deviceID, newName string) (*model.ScannerDevice, error) {
	if newName == "" {
		return nil, apperrors.MissingRequired("deviceName")
	}
	return s.devices.Rename(ctx, deviceID, newName, time.Now())
}
