package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
	"github.com/doorcrew/scanner-server-go/internal/model"
)

// SessionRegistry is the authoritative store for scanner sessions. Status
// transitions are monotonic: active is the only non-terminal state, and every
// mutation is guarded so a terminal session can never become active again.
type SessionRegistry interface {
	Create(ctx context.Context, s *model.ScannerSession) error
	// CreateReplacing inserts the session and, under the same lock, expires
	// any active session held by the same device for the same event. It
	// returns the replaced sessions so the caller can report them.
	CreateReplacing(ctx context.Context, s *model.ScannerSession) ([]model.ScannerSession, error)
	FindByID(ctx context.Context, id string) (*model.ScannerSession, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.ScannerSession, error)
	FindActiveByDevice(ctx context.Context, deviceID, eventID string, now time.Time) (*model.ScannerSession, error)
	ListActiveByEvent(ctx context.Context, eventID string, now time.Time) ([]model.ScannerSession, error)
	MarkRevoked(ctx context.Context, id, revokedBy string, now time.Time) (*model.ScannerSession, error)
	// MarkExpired transitions an active session to expired. Calling it on a
	// session that is already terminal is a no-op.
	MarkExpired(ctx context.Context, id string, now time.Time) (*model.ScannerSession, error)
	// ExpireAllForEvent transitions every active session for the event to
	// expired and returns the transitioned sessions. Idempotent.
	ExpireAllForEvent(ctx context.Context, eventID string, now time.Time) ([]model.ScannerSession, error)
	// RecordScan atomically bumps scanCount and lastScanAt for an active session.
	RecordScan(ctx context.Context, id string, now time.Time) error
	// ExpireOverdue transitions every active session past its expiry and
	// returns the transitioned sessions.
	ExpireOverdue(ctx context.Context, now time.Time) ([]model.ScannerSession, error)
}

type memorySessionRegistry struct {
	mu          sync.RWMutex
	byID        map[string]*model.ScannerSession
	byTokenHash map[string]string // token hash -> session id
}

func NewSessionRegistry() SessionRegistry {
	return &memorySessionRegistry{
		byID:        make(map[string]*model.ScannerSession),
		byTokenHash: make(map[string]string),
	}
}

func (r *memorySessionRegistry) Create(ctx context.Context, s *model.ScannerSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[s.ID]; ok {
		return apperrors.AlreadyExists("scanner session")
	}

	clone := *s
	r.byID[s.ID] = &clone
	if s.TokenHash != "" {
		r.byTokenHash[s.TokenHash] = s.ID
	}
	return nil
}

func (r *memorySessionRegistry) CreateReplacing(ctx context.Context, s *model.ScannerSession) ([]model.ScannerSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[s.ID]; ok {
		return nil, apperrors.AlreadyExists("scanner session")
	}

	var replaced []model.ScannerSession
	for _, existing := range r.byID {
		if existing.DeviceID == s.DeviceID && existing.EventID == s.EventID &&
			existing.Status == model.SessionStatusActive {
			existing.Status = model.SessionStatusExpired
			replaced = append(replaced, *existing)
		}
	}

	clone := *s
	r.byID[s.ID] = &clone
	if s.TokenHash != "" {
		r.byTokenHash[s.TokenHash] = s.ID
	}
	return replaced, nil
}

func (r *memorySessionRegistry) FindByID(ctx context.Context, id string) (*model.ScannerSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (r *memorySessionRegistry) FindByTokenHash(ctx context.Context, tokenHash string) (*model.ScannerSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTokenHash[tokenHash]
	if !ok {
		return nil, nil
	}
	s, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (r *memorySessionRegistry) FindActiveByDevice(ctx context.Context, deviceID, eventID string, now time.Time) (*model.ScannerSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.byID {
		if s.DeviceID == deviceID && s.EventID == eventID && s.IsValid(now) {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memorySessionRegistry) ListActiveByEvent(ctx context.Context, eventID string, now time.Time) ([]model.ScannerSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.ScannerSession
	for _, s := range r.byID {
		if s.EventID == eventID && s.IsValid(now) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PairedAt.After(out[j].PairedAt)
	})
	return out, nil
}

func (r *memorySessionRegistry) MarkRevoked(ctx context.Context, id, revokedBy string, now time.Time) (*model.ScannerSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return nil, apperrors.SessionNotFound()
	}
	if s.Status != model.SessionStatusActive {
		return nil, apperrors.SessionInvalid("session is already " + string(s.Status))
	}

	revokedAt := now
	s.Status = model.SessionStatusRevoked
	s.RevokedAt = &revokedAt
	s.RevokedBy = &revokedBy

	clone := *s
	return &clone, nil
}

func (r *memorySessionRegistry) MarkExpired(ctx context.Context, id string, now time.Time) (*model.ScannerSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return nil, apperrors.SessionNotFound()
	}
	if s.Status == model.SessionStatusActive {
		s.Status = model.SessionStatusExpired
	}

	clone := *s
	return &clone, nil
}

func (r *memorySessionRegistry) ExpireAllForEvent(ctx context.Context, eventID string, now time.Time) ([]model.ScannerSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []model.ScannerSession
	for _, s := range r.byID {
		if s.EventID == eventID && s.Status == model.SessionStatusActive {
			s.Status = model.SessionStatusExpired
			expired = append(expired, *s)
		}
	}
	return expired, nil
}

func (r *memorySessionRegistry) RecordScan(ctx context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return apperrors.SessionNotFound()
	}
	if !s.IsValid(now) {
		return apperrors.SessionInvalid("session is not active")
	}

	lastScanAt := now
	s.ScanCount++
	s.LastScanAt = &lastScanAt
	return nil
}

func (r *memorySessionRegistry) ExpireOverdue(ctx context.Context, now time.Time) ([]model.ScannerSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []model.ScannerSession
	for _, s := range r.byID {
		if s.Status == model.SessionStatusActive && !now.Before(s.ExpiresAt) {
			s.Status = model.SessionStatusExpired
			expired = append(expired, *s)
		}
	}
	return expired, nil
}
