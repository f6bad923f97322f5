package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Run("generates token of expected length", func(t *testing.T) {
		token, err := GenerateToken()
		require.NoError(t, err)
		assert.Len(t, token, 64) // 32 bytes hex-encoded
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		token1, err := GenerateToken()
		require.NoError(t, err)
		token2, err := GenerateToken()
		require.NoError(t, err)
		assert.NotEqual(t, token1, token2)
	})
}

func TestHashToken(t *testing.T) {
	t.Run("produces deterministic hash", func(t *testing.T) {
		hash1 := HashToken("my-token")
		hash2 := HashToken("my-token")
		assert.Equal(t, hash1, hash2)
	})

	t.Run("different tokens produce different hashes", func(t *testing.T) {
		assert.NotEqual(t, HashToken("token-a"), HashToken("token-b"))
	})

	t.Run("hash is hex-encoded sha256", func(t *testing.T) {
		assert.Len(t, HashToken("anything"), 64)
	})
}

func TestHmacSHA256(t *testing.T) {
	t.Run("same secret and data produce same signature", func(t *testing.T) {
		sig1 := HmacSHA256("secret", "org-123")
		sig2 := HmacSHA256("secret", "org-123")
		assert.Equal(t, sig1, sig2)
	})

	t.Run("different secrets produce different signatures", func(t *testing.T) {
		assert.NotEqual(t, HmacSHA256("secret-a", "org-123"), HmacSHA256("secret-b", "org-123"))
	})
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual("abc", "abc"))
	assert.False(t, ConstantTimeEqual("abc", "abd"))
	assert.False(t, ConstantTimeEqual("abc", "abcd"))
	assert.True(t, ConstantTimeEqual("", ""))
}

func TestMaskCode(t *testing.T) {
	t.Run("masks short codes entirely", func(t *testing.T) {
		assert.Equal(t, "****", MaskCode("A"))
		assert.Equal(t, "****", MaskCode("AB"))
	})

	t.Run("reveals at most two characters", func(t *testing.T) {
		assert.Equal(t, "AB****", MaskCode("ABCD"))
		assert.Equal(t, "AB****", MaskCode("ABCDEF"))
		assert.Equal(t, "AB****", MaskCode("ABCDEFGH"))
	})
}
