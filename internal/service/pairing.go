package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
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

// Ambiguous characters (0/O, 1/I) are excluded so codes survive being read
// off a screen and typed on a phone.
const pairingCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const pairingCodeLength = 6

// PairingService issues and cancels the short-lived pairing credentials an
// organizer hands to a scanner device.
type PairingService struct {
	pairings registry.PairingRegistry
	recorder *analytics.Recorder
	broker   sse.Publisher
}

func NewPairingService(
	pairings registry.PairingRegistry,
	recorder *analytics.Recorder,
	broker sse.Publisher,
) *PairingService {
	return &PairingService{
		pairings: pairings,
		recorder: recorder,
		broker:   broker,
	}
}

// CreatePairingSession allocates a pairing session with a code unique among
// currently-live codes. Event existence is deliberately not checked here;
// the scan pipeline enforces event scope at validation time.
func (s *PairingService) CreatePairingSession(ctx context.Context, eventID, organizerID string) (*model.PairingSession, error) {
	if eventID == "" {
		return nil, apperrors.MissingRequired("eventId")
	}
	if organizerID == "" {
		return nil, apperrors.MissingRequired("organizerId")
	}

	now := time.Now()
	p := &model.PairingSession{
		ID:          uuid.NewString(),
		EventID:     eventID,
		OrganizerID: organizerID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(config.PairingTTL),
	}
	p.QRPayload = payload.EncodePair(p.ID, eventID)

	var err error
	for attempts := 0; attempts < 10; attempts++ {
		p.Code = generatePairingCode()
		err = s.pairings.Create(ctx, p)
		if err == nil {
			break
		}
		if !apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists) {
			return nil, err
		}
	}
	if err != nil {
		return nil, apperrors.Internal("could not allocate a unique pairing code").WithCause(err)
	}

	log.Info().
		Str("pairingId", p.ID).
		Str("eventId", eventID).
		Str("organizerId", organizerID).
		Str("code", util.MaskCode(p.Code)).
		Time("expiresAt", p.ExpiresAt).
		Msg("pairing session created")

	emit(s.recorder, analytics.Record{
		Type:      analytics.EventPairingCreated,
		EventID:   eventID,
		SessionID: p.ID,
	})
	publish(ctx, s.broker, eventID, "pairing_created", map[string]any{
		"pairingId": p.ID,
		"expiresAt": p.ExpiresAt.Format(time.RFC3339),
	})

	return p, nil
}

// CancelPairingSession removes a pairing session. Removing an unknown or
// already-removed session is a no-op.
func (s *PairingService) CancelPairingSession(ctx context.Context, id string) error {
	if err := s.pairings.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Str("pairingId", id).Msg("pairing session cancelled")
	return nil
}

func (s *PairingService) ListActivePairings(ctx context.Context, eventID string) ([]model.PairingSession, error) {
	return s.pairings.ListActiveByEvent(ctx, eventID, time.Now())
}

func generatePairingCode() string {
	chars := []byte(pairingCodeChars)
	code := make([]byte, pairingCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		code[i] = chars[n.Int64()]
	}
	return string(code)
}

// emit records an analytics event if a recorder is configured.
func emit(recorder *analytics.Recorder, rec analytics.Record) {
	if recorder == nil {
		return
	}
	rec.ID = uuid.NewString()
	recorder.Emit(rec)
}

// publish pushes a dashboard event if a broker is configured. Failures are
// logged and swallowed; SSE delivery is best-effort.
func publish(ctx context.Context, broker sse.Publisher, eventID, eventType string, data any) {
	if broker == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := broker.Publish(ctx, eventID, sse.Event{Type: eventType, Data: raw}); err != nil {
		log.Debug().Err(err).Str("eventId", eventID).Str("type", eventType).Msg("sse publish failed")
	}
}
