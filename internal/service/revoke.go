package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/doorcrew/scanner-server-go/internal/analytics"
	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
	"github.com/doorcrew/scanner-server-go/internal/model"
	"github.com/doorcrew/scanner-server-go/internal/registry"
	"github.com/doorcrew/scanner-server-go/internal/sse"
)

// RevokeFailure describes one failed revoke inside a batch.
type RevokeFailure struct {
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
}

// RevokeAllResult aggregates a continue-on-error batch revoke.
type RevokeAllResult struct {
	Revoked  int             `json:"revoked"`
	Failed   int             `json:"failed"`
	Failures []RevokeFailure `json:"failures,omitempty"`
}

// RevocationService handles organizer-triggered invalidation and bulk
// end-of-event expiry. Both transitions are terminal.
type RevocationService struct {
	sessions registry.SessionRegistry
	recorder *analytics.Recorder
	broker   sse.Publisher
}

func NewRevocationService(
	sessions registry.SessionRegistry,
	recorder *analytics.Recorder,
	broker sse.Publisher,
) *RevocationService {
	return &RevocationService{
		sessions: sessions,
		recorder: recorder,
		broker:   broker,
	}
}

// RevokeSession irreversibly revokes one session. Only the organizer who
// created the pairing may revoke it; failure leaves the session untouched.
func (s *RevocationService) RevokeSession(ctx context.Context, sessionID, organizerID string) (*model.ScannerSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.SessionNotFound()
	}
	if session.OrganizerID != organizerID {
		return nil, apperrors.Unauthorized("session belongs to a different organizer")
	}

	revoked, err := s.sessions.MarkRevoked(ctx, sessionID, organizerID, time.Now())
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("eventId", revoked.EventID).
		Str("organizerId", organizerID).
		Msg("scanner session revoked")

	emit(s.recorder, analytics.Record{
		Type:      analytics.EventRevoked,
		EventID:   revoked.EventID,
		SessionID: revoked.ID,
		DeviceID:  revoked.DeviceID,
	})
	publish(ctx, s.broker, revoked.EventID, "session_revoked", map[string]any{
		"sessionId": revoked.ID,
		"deviceId":  revoked.DeviceID,
	})

	return revoked, nil
}

// RevokeAllSessions revokes every active session for the event. One failing
// revoke does not abort the batch; callers get the aggregate.
func (s *RevocationService) RevokeAllSessions(ctx context.Context, eventID, organizerID string) (*RevokeAllResult, error) {
	sessions, err := s.sessions.ListActiveByEvent(ctx, eventID, time.Now())
	if err != nil {
		return nil, err
	}

	result := &RevokeAllResult{}
	for _, session := range sessions {
		if _, err := s.RevokeSession(ctx, session.ID, organizerID); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, RevokeFailure{
				SessionID: session.ID,
				Error:     err.Error(),
			})
			continue
		}
		result.Revoked++
	}

	log.Info().
		Str("eventId", eventID).
		Int("revoked", result.Revoked).
		Int("failed", result.Failed).
		Msg("bulk revoke completed")

	return result, nil
}

// ExpireSessionsForEndedEvent transitions all of the event's active sessions
// to expired. Re-invocation is a no-op for sessions already terminal.
func (s *RevocationService) ExpireSessionsForEndedEvent(ctx context.Context, eventID string) (int, error) {
	now := time.Now()
	expired, err := s.sessions.ExpireAllForEvent(ctx, eventID, now)
	if err != nil {
		return 0, err
	}

	for _, session := range expired {
		emit(s.recorder, analytics.Record{
			Type:      analytics.EventSessionExpired,
			EventID:   session.EventID,
			SessionID: session.ID,
			DeviceID:  session.DeviceID,
		})
	}

	if len(expired) > 0 {
		publish(ctx, s.broker, eventID, "sessions_expired", map[string]any{
			"count": len(expired),
		})
	}

	log.Info().
		Str("eventId", eventID).
		Int("count", len(expired)).
		Msg("sessions expired for ended event")

	return len(expired), nil
}
