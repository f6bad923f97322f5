package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
)

func TestPairPayload(t *testing.T) {
	t.Run("round trips session and event", func(t *testing.T) {
		raw := EncodePair("sess-123", "evt-456")

		parsed, err := ParsePair(raw)
		require.NoError(t, err)
		assert.Equal(t, "sess-123", parsed.SessionID)
		assert.Equal(t, "evt-456", parsed.EventID)
	})

	t.Run("rejects unknown scheme", func(t *testing.T) {
		_, err := ParsePair("https://pair?session=s&event=e")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("rejects ticket payload as pairing payload", func(t *testing.T) {
		_, err := ParsePair(EncodeTicket("tkt-1"))
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("rejects payload missing event", func(t *testing.T) {
		_, err := ParsePair("doorcrew://pair?session=sess-123")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("rejects free-form garbage", func(t *testing.T) {
		_, err := ParsePair("not a payload at all")
		require.Error(t, err)
	})
}

func TestTicketPayload(t *testing.T) {
	t.Run("round trips ticket id", func(t *testing.T) {
		raw := EncodeTicket("tkt-789")

		parsed, err := ParseTicket(raw)
		require.NoError(t, err)
		assert.Equal(t, "tkt-789", parsed.TicketID)
	})

	t.Run("rejects pairing payload as ticket payload", func(t *testing.T) {
		_, err := ParseTicket(EncodePair("sess-1", "evt-1"))
		require.Error(t, err)
	})

	t.Run("rejects payload missing ticket id", func(t *testing.T) {
		_, err := ParseTicket("doorcrew://ticket")
		require.Error(t, err)
	})

	t.Run("preserves ids that need escaping", func(t *testing.T) {
		raw := EncodeTicket("tkt/with spaces&chars")

		parsed, err := ParseTicket(raw)
		require.NoError(t, err)
		assert.Equal(t, "tkt/with spaces&chars", parsed.TicketID)
	})
}
