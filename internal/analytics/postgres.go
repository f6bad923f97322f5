package analytics

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// PostgresSink appends analytics records to the scan_events table.
type PostgresSink struct {
	db *sqlx.DB
}

func NewPostgresSink(db *sqlx.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_events (id, event_type, event_id, session_id, device_id, ticket_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.Type, rec.EventID, rec.SessionID, rec.DeviceID, rec.TicketID, rec.OccurredAt)
	return err
}
