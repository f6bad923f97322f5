package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
)

func TestWriteError(t *testing.T) {
	t.Run("writes app error with mapped status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.PairingExpired())

		assert.Equal(t, http.StatusGone, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, apperrors.ErrCodePairingExpired, resp.Code)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("plain errors become 500 without leaking the message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("sensitive internal detail"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "sensitive internal detail")
	})
}

func TestStatusFromCode(t *testing.T) {
	cases := []struct {
		code   apperrors.ErrorCode
		status int
	}{
		{apperrors.ErrCodeInvalidInput, http.StatusBadRequest},
		{apperrors.ErrCodeMissingRequired, http.StatusBadRequest},
		{apperrors.ErrCodeInvalidTicket, http.StatusBadRequest},
		{apperrors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{apperrors.ErrCodeWrongEvent, http.StatusForbidden},
		{apperrors.ErrCodePairingNotFound, http.StatusNotFound},
		{apperrors.ErrCodeSessionNotFound, http.StatusNotFound},
		{apperrors.ErrCodeDeviceNotFound, http.StatusNotFound},
		{apperrors.ErrCodeSessionInvalid, http.StatusConflict},
		{apperrors.ErrCodePairingExpired, http.StatusGone},
		{apperrors.ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{apperrors.ErrCodeTicketLookup, http.StatusBadGateway},
		{apperrors.ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, statusFromCode(tc.code), string(tc.code))
	}
}
