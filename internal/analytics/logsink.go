package analytics

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogSink writes analytics records to the structured log. Used when no
// DATABASE_URL is configured.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Write(ctx context.Context, rec Record) error {
	e := log.Info().
		Str("analytics", "usage").
		Str("event_type", string(rec.Type)).
		Time("occurred_at", rec.OccurredAt)

	if rec.EventID != "" {
		e = e.Str("event_id", rec.EventID)
	}
	if rec.SessionID != "" {
		e = e.Str("session_id", rec.SessionID)
	}
	if rec.DeviceID != "" {
		e = e.Str("device_id", rec.DeviceID)
	}
	if rec.TicketID != "" {
		e = e.Str("ticket_id", rec.TicketID)
	}

	e.Msg("analytics event")
	return nil
}
