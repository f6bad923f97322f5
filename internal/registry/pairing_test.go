package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
	"github.com/doorcrew/scanner-server-go/internal/model"
)

func newPairing(id, eventID, code string, now time.Time) *model.PairingSession {
	return &model.PairingSession{
		ID:          id,
		EventID:     eventID,
		OrganizerID: "org-1",
		Code:        code,
		CreatedAt:   now,
		ExpiresAt:   now.Add(5 * time.Minute),
	}
}

func TestPairingRegistryCreate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("creates and finds by id", func(t *testing.T) {
		reg := NewPairingRegistry()
		require.NoError(t, reg.Create(ctx, newPairing("p1", "evt-1", "AAAAAA", now)))

		found, err := reg.FindByID(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "evt-1", found.EventID)
	})

	t.Run("returns nil for unknown id", func(t *testing.T) {
		reg := NewPairingRegistry()
		found, err := reg.FindByID(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("rejects duplicate live code", func(t *testing.T) {
		reg := NewPairingRegistry()
		require.NoError(t, reg.Create(ctx, newPairing("p1", "evt-1", "AAAAAA", now)))

		err := reg.Create(ctx, newPairing("p2", "evt-2", "AAAAAA", now))
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeAlreadyExists, apperrors.GetCode(err))
	})

	t.Run("allows code reuse after original expires", func(t *testing.T) {
		reg := NewPairingRegistry()
		old := newPairing("p1", "evt-1", "AAAAAA", now.Add(-10*time.Minute))
		require.NoError(t, reg.Create(ctx, old))

		assert.NoError(t, reg.Create(ctx, newPairing("p2", "evt-1", "AAAAAA", now)))
	})

	t.Run("does not alias caller's struct", func(t *testing.T) {
		reg := NewPairingRegistry()
		p := newPairing("p1", "evt-1", "AAAAAA", now)
		require.NoError(t, reg.Create(ctx, p))

		p.EventID = "mutated"

		found, err := reg.FindByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "evt-1", found.EventID)
	})
}

func TestPairingRegistryClaim(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("claim marks session used", func(t *testing.T) {
		reg := NewPairingRegistry()
		require.NoError(t, reg.Create(ctx, newPairing("p1", "evt-1", "AAAAAA", now)))

		claimed, err := reg.Claim(ctx, "p1", "dev-1", now)
		require.NoError(t, err)
		require.NotNil(t, claimed.UsedAt)
		require.NotNil(t, claimed.UsedByDeviceID)
		assert.Equal(t, "dev-1", *claimed.UsedByDeviceID)
	})

	t.Run("second claim observes expired", func(t *testing.T) {
		reg := NewPairingRegistry()
		require.NoError(t, reg.Create(ctx, newPairing("p1", "evt-1", "AAAAAA", now)))

		_, err := reg.Claim(ctx, "p1", "dev-1", now)
		require.NoError(t, err)

		_, err = reg.Claim(ctx, "p1", "dev-2", now)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePairingExpired, apperrors.GetCode(err))
	})

	t.Run("claim of unknown id is not found", func(t *testing.T) {
		reg := NewPairingRegistry()
		_, err := reg.Claim(ctx, "missing", "dev-1", now)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePairingNotFound, apperrors.GetCode(err))
	})

	t.Run("claim past expiry is expired", func(t *testing.T) {
		reg := NewPairingRegistry()
		require.NoError(t, reg.Create(ctx, newPairing("p1", "evt-1", "AAAAAA", now)))

		_, err := reg.Claim(ctx, "p1", "dev-1", now.Add(6*time.Minute))
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePairingExpired, apperrors.GetCode(err))
	})

	t.Run("exactly one concurrent claim wins", func(t *testing.T) {
		reg := NewPairingRegistry()
		require.NoError(t, reg.Create(ctx, newPairing("p1", "evt-1", "AAAAAA", now)))

		const claimers = 50
		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0

		for i := 0; i < claimers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := reg.Claim(ctx, "p1", fmt.Sprintf("dev-%d", i), now); err == nil {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
	})
}

func TestPairingRegistryClaimByCode(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("claims live session by code", func(t *testing.T) {
		reg := NewPairingRegistry()
		require.NoError(t, reg.Create(ctx, newPairing("p1", "evt-1", "AAAAAA", now)))

		claimed, err := reg.ClaimByCode(ctx, "AAAAAA", "dev-1", now)
		require.NoError(t, err)
		assert.Equal(t, "p1", claimed.ID)
	})

	t.Run("unknown code is not found", func(t *testing.T) {
		reg := NewPairingRegistry()
		_, err := reg.ClaimByCode(ctx, "ZZZZZZ", "dev-1", now)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePairingNotFound, apperrors.GetCode(err))
	})

	t.Run("code of used session is expired not missing", func(t *testing.T) {
		reg := NewPairingRegistry()
		require.NoError(t, reg.Create(ctx, newPairing("p1", "evt-1", "AAAAAA", now)))
		_, err := reg.ClaimByCode(ctx, "AAAAAA", "dev-1", now)
		require.NoError(t, err)

		_, err = reg.ClaimByCode(ctx, "AAAAAA", "dev-2", now)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePairingExpired, apperrors.GetCode(err))
	})

	t.Run("prefers live record when expired one shares the code", func(t *testing.T) {
		reg := NewPairingRegistry()
		require.NoError(t, reg.Create(ctx, newPairing("p-old", "evt-1", "AAAAAA", now.Add(-10*time.Minute))))
		require.NoError(t, reg.Create(ctx, newPairing("p-new", "evt-1", "AAAAAA", now)))

		claimed, err := reg.ClaimByCode(ctx, "AAAAAA", "dev-1", now)
		require.NoError(t, err)
		assert.Equal(t, "p-new", claimed.ID)
	})
}

func TestPairingRegistryDelete(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("delete removes record", func(t *testing.T) {
		reg := NewPairingRegistry()
		require.NoError(t, reg.Create(ctx, newPairing("p1", "evt-1", "AAAAAA", now)))
		require.NoError(t, reg.Delete(ctx, "p1"))

		found, err := reg.FindByID(ctx, "p1")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("delete of unknown id is a no-op", func(t *testing.T) {
		reg := NewPairingRegistry()
		assert.NoError(t, reg.Delete(ctx, "missing"))
	})
}

func TestPairingRegistryListActiveByEvent(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	reg := NewPairingRegistry()
	older := newPairing("p1", "evt-1", "AAAAAA", now.Add(-time.Minute))
	newer := newPairing("p2", "evt-1", "BBBBBB", now)
	otherEvent := newPairing("p3", "evt-2", "CCCCCC", now)
	expired := newPairing("p4", "evt-1", "DDDDDD", now.Add(-10*time.Minute))
	require.NoError(t, reg.Create(ctx, older))
	require.NoError(t, reg.Create(ctx, newer))
	require.NoError(t, reg.Create(ctx, otherEvent))
	require.NoError(t, reg.Create(ctx, expired))

	list, err := reg.ListActiveByEvent(ctx, "evt-1", now)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p2", list[0].ID)
	assert.Equal(t, "p1", list[1].ID)
}

func TestPairingRegistryDeleteExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	reg := NewPairingRegistry()
	require.NoError(t, reg.Create(ctx, newPairing("live", "evt-1", "AAAAAA", now)))
	require.NoError(t, reg.Create(ctx, newPairing("stale", "evt-1", "BBBBBB", now.Add(-20*time.Minute))))

	count, err := reg.DeleteExpired(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	found, err := reg.FindByID(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, found)

	found, err = reg.FindByID(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, found)
}
