package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
	"github.com/doorcrew/scanner-server-go/internal/model"
	"github.com/doorcrew/scanner-server-go/internal/registry"
)

func createActiveSession(t *testing.T, sessions registry.SessionRegistry, id, eventID, organizerID string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, sessions.Create(context.Background(), &model.ScannerSession{
		ID:          id,
		EventID:     eventID,
		OrganizerID: organizerID,
		DeviceID:    "dev-" + id,
		Status:      model.SessionStatusActive,
		PairedAt:    now,
		ExpiresAt:   now.Add(8 * time.Hour),
	}))
}

func TestRevokeSession(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes active session", func(t *testing.T) {
		sessions := registry.NewSessionRegistry()
		svc := NewRevocationService(sessions, nil, nil)
		createActiveSession(t, sessions, "s1", "evt-1", "org-1")

		revoked, err := svc.RevokeSession(ctx, "s1", "org-1")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusRevoked, revoked.Status)
		require.NotNil(t, revoked.RevokedBy)
		assert.Equal(t, "org-1", *revoked.RevokedBy)
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		svc := NewRevocationService(registry.NewSessionRegistry(), nil, nil)

		_, err := svc.RevokeSession(ctx, "missing", "org-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.GetCode(err))
	})

	t.Run("other organizer's session is refused", func(t *testing.T) {
		sessions := registry.NewSessionRegistry()
		svc := NewRevocationService(sessions, nil, nil)
		createActiveSession(t, sessions, "s1", "evt-1", "org-1")

		_, err := svc.RevokeSession(ctx, "s1", "org-other")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))

		s, err := sessions.FindByID(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusActive, s.Status)
	})

	t.Run("revoking twice fails and keeps first revocation", func(t *testing.T) {
		sessions := registry.NewSessionRegistry()
		svc := NewRevocationService(sessions, nil, nil)
		createActiveSession(t, sessions, "s1", "evt-1", "org-1")

		first, err := svc.RevokeSession(ctx, "s1", "org-1")
		require.NoError(t, err)

		_, err = svc.RevokeSession(ctx, "s1", "org-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeSessionInvalid, apperrors.GetCode(err))

		s, err := sessions.FindByID(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, first.RevokedAt, s.RevokedAt)
	})
}

func TestRevokeAllSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes every active session for event", func(t *testing.T) {
		sessions := registry.NewSessionRegistry()
		svc := NewRevocationService(sessions, nil, nil)
		createActiveSession(t, sessions, "s1", "evt-1", "org-1")
		createActiveSession(t, sessions, "s2", "evt-1", "org-1")
		createActiveSession(t, sessions, "s3", "evt-2", "org-1")

		result, err := svc.RevokeAllSessions(ctx, "evt-1", "org-1")
		require.NoError(t, err)
		assert.Equal(t, 2, result.Revoked)
		assert.Equal(t, 0, result.Failed)

		active, err := sessions.ListActiveByEvent(ctx, "evt-1", time.Now())
		require.NoError(t, err)
		assert.Empty(t, active)

		other, err := sessions.ListActiveByEvent(ctx, "evt-2", time.Now())
		require.NoError(t, err)
		assert.Len(t, other, 1)
	})

	t.Run("one failure does not abort the batch", func(t *testing.T) {
		sessions := registry.NewSessionRegistry()
		svc := NewRevocationService(sessions, nil, nil)
		createActiveSession(t, sessions, "s1", "evt-1", "org-1")
		createActiveSession(t, sessions, "s2", "evt-1", "org-other")
		createActiveSession(t, sessions, "s3", "evt-1", "org-1")

		result, err := svc.RevokeAllSessions(ctx, "evt-1", "org-1")
		require.NoError(t, err)
		assert.Equal(t, 2, result.Revoked)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Failures, 1)
		assert.Equal(t, "s2", result.Failures[0].SessionID)
	})

	t.Run("empty event yields zero counts", func(t *testing.T) {
		svc := NewRevocationService(registry.NewSessionRegistry(), nil, nil)

		result, err := svc.RevokeAllSessions(ctx, "evt-empty", "org-1")
		require.NoError(t, err)
		assert.Equal(t, 0, result.Revoked)
		assert.Equal(t, 0, result.Failed)
	})
}

func TestExpireSessionsForEndedEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("expires all active sessions", func(t *testing.T) {
		sessions := registry.NewSessionRegistry()
		svc := NewRevocationService(sessions, nil, nil)
		createActiveSession(t, sessions, "s1", "evt-1", "org-1")
		createActiveSession(t, sessions, "s2", "evt-1", "org-1")

		count, err := svc.ExpireSessionsForEndedEvent(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		s1, err := sessions.FindByID(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusExpired, s1.Status)
	})

	t.Run("second invocation expires nothing", func(t *testing.T) {
		sessions := registry.NewSessionRegistry()
		svc := NewRevocationService(sessions, nil, nil)
		createActiveSession(t, sessions, "s1", "evt-1", "org-1")

		_, err := svc.ExpireSessionsForEndedEvent(ctx, "evt-1")
		require.NoError(t, err)

		count, err := svc.ExpireSessionsForEndedEvent(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("revoked sessions keep revoked status", func(t *testing.T) {
		sessions := registry.NewSessionRegistry()
		svc := NewRevocationService(sessions, nil, nil)
		createActiveSession(t, sessions, "s1", "evt-1", "org-1")
		_, err := svc.RevokeSession(ctx, "s1", "org-1")
		require.NoError(t, err)

		count, err := svc.ExpireSessionsForEndedEvent(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		s1, err := sessions.FindByID(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusRevoked, s1.Status)
	})
}
