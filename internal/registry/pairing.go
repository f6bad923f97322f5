package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
	"github.com/doorcrew/scanner-server-go/internal/model"
)

// PairingRegistry is the authoritative store for pairing sessions. The
// in-memory implementation below is the deployment default; persistence sits
// behind the same contract.
type PairingRegistry interface {
	Create(ctx context.Context, p *model.PairingSession) error
	FindByID(ctx context.Context, id string) (*model.PairingSession, error)
	// Claim atomically marks the pairing session used. Under concurrent
	// claims exactly one caller succeeds; the rest observe PAIRING_EXPIRED.
	Claim(ctx context.Context, id, deviceID string, now time.Time) (*model.PairingSession, error)
	// ClaimByCode resolves the code to its live pairing session and claims it.
	ClaimByCode(ctx context.Context, code, deviceID string, now time.Time) (*model.PairingSession, error)
	Delete(ctx context.Context, id string) error
	ListActiveByEvent(ctx context.Context, eventID string, now time.Time) ([]model.PairingSession, error)
	// DeleteExpired removes records whose expiry is before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type memoryPairingRegistry struct {
	mu   sync.RWMutex
	byID map[string]*model.PairingSession
}

func NewPairingRegistry() PairingRegistry {
	return &memoryPairingRegistry{
		byID: make(map[string]*model.PairingSession),
	}
}

func (r *memoryPairingRegistry) Create(ctx context.Context, p *model.PairingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; ok {
		return apperrors.AlreadyExists("pairing session")
	}
	for _, existing := range r.byID {
		if existing.Code == p.Code && existing.IsValid(p.CreatedAt) {
			return apperrors.AlreadyExists("pairing code")
		}
	}

	clone := *p
	r.byID[p.ID] = &clone
	return nil
}

func (r *memoryPairingRegistry) FindByID(ctx context.Context, id string) (*model.PairingSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (r *memoryPairingRegistry) Claim(ctx context.Context, id, deviceID string, now time.Time) (*model.PairingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, apperrors.PairingNotFound()
	}
	return claimLocked(p, deviceID, now)
}

func (r *memoryPairingRegistry) ClaimByCode(ctx context.Context, code, deviceID string, now time.Time) (*model.PairingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Codes are unique among live records only; an expired record may share a
	// code with a live one, so prefer the claimable match.
	var fallback *model.PairingSession
	for _, p := range r.byID {
		if p.Code != code {
			continue
		}
		if p.IsValid(now) {
			return claimLocked(p, deviceID, now)
		}
		fallback = p
	}

	if fallback != nil {
		return nil, apperrors.PairingExpired()
	}
	return nil, apperrors.PairingNotFound()
}

func claimLocked(p *model.PairingSession, deviceID string, now time.Time) (*model.PairingSession, error) {
	if !p.IsValid(now) {
		return nil, apperrors.PairingExpired()
	}

	usedAt := now
	p.UsedAt = &usedAt
	p.UsedByDeviceID = &deviceID

	clone := *p
	return &clone, nil
}

func (r *memoryPairingRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, id)
	return nil
}

func (r *memoryPairingRegistry) ListActiveByEvent(ctx context.Context, eventID string, now time.Time) ([]model.PairingSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.PairingSession
	for _, p := range r.byID {
		if p.EventID == eventID && p.IsValid(now) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memoryPairingRegistry) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for id, p := range r.byID {
		if p.ExpiresAt.Before(cutoff) {
			delete(r.byID, id)
			count++
		}
	}
	return count, nil
}
