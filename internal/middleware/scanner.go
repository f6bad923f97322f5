package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/doorcrew/scanner-server-go/internal/model"
	"github.com/doorcrew/scanner-server-go/internal/registry"
	"github.com/doorcrew/scanner-server-go/internal/util"
)

const ScannerSessionContextKey contextKey = "scannerSession"

func GetScannerSession(ctx context.Context) *model.ScannerSession {
	if session, ok := ctx.Value(ScannerSessionContextKey).(*model.ScannerSession); ok {
		return session
	}
	return nil
}

// ScannerAuthMiddleware resolves the bearer session token issued at claim
// time to its scanner session. Terminal sessions still resolve: the refresh
// endpoint must be able to report a revoked or expired status back to the
// device, so validity is enforced by the services, not here.
type ScannerAuthMiddleware struct {
	sessions registry.SessionRegistry
}

func NewScannerAuthMiddleware(sessions registry.SessionRegistry) *ScannerAuthMiddleware {
	return &ScannerAuthMiddleware{sessions: sessions}
}

func (m *ScannerAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		tokenHash := util.HashToken(token)
		session, err := m.sessions.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("scanner auth: registry error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if session == nil {
			log.Warn().Msg("scanner auth: invalid token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), ScannerSessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
