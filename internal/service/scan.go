package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/doorcrew/scanner-server-go/internal/analytics"
	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
	"github.com/doorcrew/scanner-server-go/internal/model"
	"github.com/doorcrew/scanner-server-go/internal/payload"
	"github.com/doorcrew/scanner-server-go/internal/registry"
	"github.com/doorcrew/scanner-server-go/internal/sse"
	"github.com/doorcrew/scanner-server-go/internal/ticket"
)

// ScanService runs the ticket-scan validation pipeline. Every stage is
// fail-fast and produces a distinct ScanResult status; the only call that
// may block is the bounded ticket-status lookup.
type ScanService struct {
	sessions      registry.SessionRegistry
	devices       registry.DeviceRegistry
	tickets       ticket.Client
	recorder      *analytics.Recorder
	broker        sse.Publisher
	lookupTimeout time.Duration
}

func NewScanService(
	sessions registry.SessionRegistry,
	devices registry.DeviceRegistry,
	tickets ticket.Client,
	recorder *analytics.Recorder,
	broker sse.Publisher,
	lookupTimeout time.Duration,
) *ScanService {
	return &ScanService{
		sessions:      sessions,
		devices:       devices,
		tickets:       tickets,
		recorder:      recorder,
		broker:        broker,
		lookupTimeout: lookupTimeout,
	}
}

// ValidateScan validates one ticket scan against session state, event scope
// and ticket truth. Pipeline outcomes are returned as ScanResult statuses;
// only a failed ticket-service lookup surfaces as an error, so a dependency
// outage is never mistaken for an invalid ticket.
func (s *ScanService) ValidateScan(ctx context.Context, req model.ScanRequest) (*model.ScanResult, error) {
	now := time.Now()

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return s.reject(ctx, req, "", model.ScanStatusSessionInvalid, "Unknown scanner session"), nil
	}

	if !session.IsValid(now) {
		if session.Status == model.SessionStatusActive {
			// Past expiry but not yet swept; settle it now.
			if _, err := s.sessions.MarkExpired(ctx, req.SessionID, now); err != nil {
				return nil, err
			}
		}
		return s.reject(ctx, req, "", model.ScanStatusSessionInvalid, "Session has been revoked or expired"), nil
	}

	if session.EventID != req.EventID {
		return s.reject(ctx, req, "", model.ScanStatusWrongEvent, "Session is not authorized for this event"), nil
	}

	tp, err := payload.ParseTicket(req.TicketQR)
	if err != nil {
		return s.reject(ctx, req, "", model.ScanStatusInvalidTicket, "Unrecognized ticket payload"), nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	info, err := s.tickets.FetchTicketStatus(lookupCtx, tp.TicketID, session.EventID)
	if err != nil {
		// Deliberately not coerced into an invalidTicket result.
		return nil, err
	}

	switch info.Status {
	case ticket.StatusValid:
		return s.accept(ctx, session, info, now)
	case ticket.StatusUsed:
		return s.reject(ctx, req, tp.TicketID, model.ScanStatusAlreadyUsed, "Ticket has already been scanned"), nil
	case ticket.StatusRefunded:
		return s.reject(ctx, req, tp.TicketID, model.ScanStatusRefunded, "Ticket was refunded"), nil
	default:
		return s.reject(ctx, req, tp.TicketID, model.ScanStatusInvalidTicket, "Ticket does not exist for this event"), nil
	}
}

func (s *ScanService) accept(ctx context.Context, session *model.ScannerSession, info *ticket.Info, now time.Time) (*model.ScanResult, error) {
	// The session may have been revoked between validation and commit; the
	// registry re-checks under its own lock.
	if err := s.sessions.RecordScan(ctx, session.ID, now); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeSessionInvalid) || apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound) {
			return &model.ScanResult{
				TicketID: info.TicketID,
				Status:   model.ScanStatusSessionInvalid,
				Message:  "Session has been revoked or expired",
			}, nil
		}
		return nil, err
	}

	if err := s.devices.Touch(ctx, session.DeviceID, now); err != nil {
		log.Warn().Err(err).Str("deviceId", session.DeviceID).Msg("failed to touch device")
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("eventId", session.EventID).
		Str("ticketId", info.TicketID).
		Msg("ticket accepted")

	emit(s.recorder, analytics.Record{
		Type:      analytics.EventScanSuccess,
		EventID:   session.EventID,
		SessionID: session.ID,
		DeviceID:  session.DeviceID,
		TicketID:  info.TicketID,
	})
	publish(ctx, s.broker, session.EventID, "scan_recorded", map[string]any{
		"sessionId": session.ID,
		"ticketId":  info.TicketID,
	})

	return &model.ScanResult{
		TicketID:     info.TicketID,
		Status:       model.ScanStatusValid,
		AttendeeName: info.AttendeeName,
		TicketType:   info.TicketType,
		Message:      "Ticket accepted",
	}, nil
}

func (s *ScanService) reject(ctx context.Context, req model.ScanRequest, ticketID string, status model.ScanStatus, message string) *model.ScanResult {
	log.Info().
		Str("sessionId", req.SessionID).
		Str("eventId", req.EventID).
		Str("scanStatus", string(status)).
		Msg("scan rejected")

	emit(s.recorder, analytics.Record{
		Type:      analytics.EventScanInvalid,
		EventID:   req.EventID,
		SessionID: req.SessionID,
		DeviceID:  req.DeviceID,
		TicketID:  ticketID,
	})

	return &model.ScanResult{
		TicketID: ticketID,
		Status:   status,
		Message:  message,
	}
}
