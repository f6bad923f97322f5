// Package analytics records best-effort usage events for the external
// analytics pipeline. Recording never blocks a caller: records flow through
// a buffered channel to a background worker, and are dropped with a warning
// when the buffer is full.
package analytics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventPairingCreated EventType = "pairing_session_created"
	EventPaired         EventType = "paired"
	EventRevoked        EventType = "revoked"
	EventScanSuccess    EventType = "scan_success"
	EventScanInvalid    EventType = "scan_invalid"
	EventSessionExpired EventType = "session_expired"
)

type Record struct {
	ID         string    `db:"id"`
	Type       EventType `db:"event_type"`
	EventID    string    `db:"event_id"`
	SessionID  string    `db:"session_id"`
	DeviceID   string    `db:"device_id"`
	TicketID   string    `db:"ticket_id"`
	OccurredAt time.Time `db:"occurred_at"`
}

// Sink persists a single record. Implementations must tolerate being called
// concurrently with service traffic; failures are logged, never surfaced.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

const writeTimeout = 5 * time.Second

type Recorder struct {
	sink    Sink
	records chan Record
	done    chan struct{}
}

func NewRecorder(sink Sink, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	return &Recorder{
		sink:    sink,
		records: make(chan Record, buffer),
		done:    make(chan struct{}),
	}
}

func (r *Recorder) Start() {
	go r.run()
	log.Info().Msg("analytics recorder started")
}

// Stop drains buffered records and waits for the worker to exit.
func (r *Recorder) Stop() {
	close(r.records)
	<-r.done
	log.Info().Msg("analytics recorder stopped")
}

// Emit enqueues a record without blocking.
func (r *Recorder) Emit(rec Record) {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now()
	}

	select {
	case r.records <- rec:
	default:
		log.Warn().
			Str("eventType", string(rec.Type)).
			Msg("analytics buffer full, dropping record")
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	for rec := range r.records {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.sink.Write(ctx, rec); err != nil {
			log.Warn().
				Err(err).
				Str("eventType", string(rec.Type)).
				Msg("analytics write failed")
		}
		cancel()
	}
}
