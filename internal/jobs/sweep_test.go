package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorcrew/scanner-server-go/internal/analytics"
	"github.com/doorcrew/scanner-server-go/internal/model"
	"github.com/doorcrew/scanner-server-go/internal/registry"
)

// gatedPairingRegistry blocks DeleteExpired until released, to hold a sweep
// mid-flight.
type gatedPairingRegistry struct {
	registry.PairingRegistry
	gate chan struct{}
}

func (r *gatedPairingRegistry) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	<-r.gate
	return r.PairingRegistry.DeleteExpired(ctx, cutoff)
}

type countingSink struct {
	records chan analytics.Record
}

func (s *countingSink) Write(ctx context.Context, rec analytics.Record) error {
	s.records <- rec
	return nil
}

func TestSweepJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewSweepJob(registry.NewPairingRegistry(), registry.NewSessionRegistry(), nil, 5*time.Minute)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
	})

	t.Run("starts and stops without panic", func(t *testing.T) {
		job := NewSweepJob(registry.NewPairingRegistry(), registry.NewSessionRegistry(), nil, 100*time.Millisecond)

		job.Start()
		time.Sleep(50 * time.Millisecond)
		job.Stop()
	})

	t.Run("sweep deletes stale pairings and expires overdue sessions", func(t *testing.T) {
		ctx := context.Background()
		now := time.Now()

		pairings := registry.NewPairingRegistry()
		require.NoError(t, pairings.Create(ctx, &model.PairingSession{
			ID:        "p-stale",
			EventID:   "evt-1",
			Code:      "AAAAAA",
			CreatedAt: now.Add(-30 * time.Minute),
			ExpiresAt: now.Add(-25 * time.Minute),
		}))
		require.NoError(t, pairings.Create(ctx, &model.PairingSession{
			ID:        "p-live",
			EventID:   "evt-1",
			Code:      "BBBBBB",
			CreatedAt: now,
			ExpiresAt: now.Add(5 * time.Minute),
		}))

		sessions := registry.NewSessionRegistry()
		require.NoError(t, sessions.Create(ctx, &model.ScannerSession{
			ID:        "s-overdue",
			EventID:   "evt-1",
			DeviceID:  "dev-1",
			Status:    model.SessionStatusActive,
			PairedAt:  now.Add(-9 * time.Hour),
			ExpiresAt: now.Add(-time.Hour),
		}))
		require.NoError(t, sessions.Create(ctx, &model.ScannerSession{
			ID:        "s-live",
			EventID:   "evt-1",
			DeviceID:  "dev-2",
			Status:    model.SessionStatusActive,
			PairedAt:  now,
			ExpiresAt: now.Add(8 * time.Hour),
		}))

		job := NewSweepJob(pairings, sessions, nil, time.Hour)
		job.sweep()

		stale, err := pairings.FindByID(ctx, "p-stale")
		require.NoError(t, err)
		assert.Nil(t, stale)

		live, err := pairings.FindByID(ctx, "p-live")
		require.NoError(t, err)
		assert.NotNil(t, live)

		overdue, err := sessions.FindByID(ctx, "s-overdue")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusExpired, overdue.Status)

		liveSession, err := sessions.FindByID(ctx, "s-live")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusActive, liveSession.Status)
	})

	t.Run("stop waits for in-flight sweep before returning", func(t *testing.T) {
		ctx := context.Background()
		now := time.Now()

		gate := make(chan struct{})
		pairings := &gatedPairingRegistry{
			PairingRegistry: registry.NewPairingRegistry(),
			gate:            gate,
		}

		sessions := registry.NewSessionRegistry()
		require.NoError(t, sessions.Create(ctx, &model.ScannerSession{
			ID:        "s-overdue",
			EventID:   "evt-1",
			DeviceID:  "dev-1",
			Status:    model.SessionStatusActive,
			PairedAt:  now.Add(-9 * time.Hour),
			ExpiresAt: now.Add(-time.Hour),
		}))

		sink := &countingSink{records: make(chan analytics.Record, 4)}
		recorder := analytics.NewRecorder(sink, 16)
		recorder.Start()

		job := NewSweepJob(pairings, sessions, recorder, time.Hour)
		job.Start()

		stopDone := make(chan struct{})
		go func() {
			job.Stop()
			close(stopDone)
		}()

		select {
		case <-stopDone:
			t.Fatal("Stop returned while a sweep was still running")
		case <-time.After(50 * time.Millisecond):
		}

		close(gate)

		select {
		case <-stopDone:
		case <-time.After(time.Second):
			t.Fatal("Stop did not return after the sweep finished")
		}

		// The sweep has fully finished, so stopping the recorder now must
		// not race with a late Emit.
		recorder.Stop()

		select {
		case rec := <-sink.records:
			assert.Equal(t, analytics.EventSessionExpired, rec.Type)
			assert.Equal(t, "s-overdue", rec.SessionID)
		default:
			t.Fatal("expected a session_expired record")
		}
	})

	t.Run("recently expired pairing survives one retention window", func(t *testing.T) {
		ctx := context.Background()
		now := time.Now()

		pairings := registry.NewPairingRegistry()
		require.NoError(t, pairings.Create(ctx, &model.PairingSession{
			ID:        "p-grace",
			EventID:   "evt-1",
			Code:      "AAAAAA",
			CreatedAt: now.Add(-6 * time.Minute),
			ExpiresAt: now.Add(-time.Minute),
		}))

		job := NewSweepJob(pairings, registry.NewSessionRegistry(), nil, time.Hour)
		job.sweep()

		found, err := pairings.FindByID(ctx, "p-grace")
		require.NoError(t, err)
		assert.NotNil(t, found)
	})
}
