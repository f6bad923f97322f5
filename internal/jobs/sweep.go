package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/doorcrew/scanner-server-go/internal/analytics"
	"github.com/doorcrew/scanner-server-go/internal/config"
	"github.com/doorcrew/scanner-server-go/internal/registry"
)

// SweepJob is the single periodic reaper replacing per-credential timers:
// it deletes stale pairing records and settles overdue scanner sessions.
// Expiry is still enforced lazily on every read, so the sweep only bounds
// how long stale records linger.
type SweepJob struct {
	pairings registry.PairingRegistry
	sessions registry.SessionRegistry
	recorder *analytics.Recorder
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

func NewSweepJob(
	pairings registry.PairingRegistry,
	sessions registry.SessionRegistry,
	recorder *analytics.Recorder,
	interval time.Duration,
) *SweepJob {
	return &SweepJob{
		pairings: pairings,
		sessions: sessions,
		recorder: recorder,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("sweep job started")
}

// Stop waits for an in-flight sweep to finish so the recorder can be
// stopped safely afterwards.
func (j *SweepJob) Stop() {
	close(j.done)
	<-j.stopped
	log.Info().Msg("sweep job stopped")
}

func (j *SweepJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()

	cutoff := now.Add(-config.ExpiredPairingRetention)
	count, err := j.pairings.DeleteExpired(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to sweep pairing sessions")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("swept pairing sessions")
	}

	expired, err := j.sessions.ExpireOverdue(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("failed to sweep scanner sessions")
		return
	}

	for _, session := range expired {
		if j.recorder != nil {
			j.recorder.Emit(analytics.Record{
				ID:        uuid.NewString(),
				Type:      analytics.EventSessionExpired,
				EventID:   session.EventID,
				SessionID: session.ID,
				DeviceID:  session.DeviceID,
			})
		}
	}

	if len(expired) > 0 {
		log.Info().Int("count", len(expired)).Msg("expired overdue scanner sessions")
	}
}
