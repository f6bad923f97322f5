package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/doorcrew/scanner-server-go/internal/util"
)

const OrganizerIDContextKey contextKey = "organizerID"

// GetOrganizerID returns the authenticated organizer id, or "" if the request
// did not pass organizer auth.
func GetOrganizerID(ctx context.Context) string {
	if id, ok := ctx.Value(OrganizerIDContextKey).(string); ok {
		return id
	}
	return ""
}

// OrganizerAuthMiddleware authenticates organizer requests with a signed
// bearer token of the form "<organizerID>.<hex hmac>". The signature is an
// HMAC-SHA256 of the organizer id under a shared secret, so the server stays
// stateless about organizer identities.
type OrganizerAuthMiddleware struct {
	secret string
}

func NewOrganizerAuthMiddleware(secret string) *OrganizerAuthMiddleware {
	return &OrganizerAuthMiddleware{secret: secret}
}

// OrganizerToken mints a token for the given organizer id.
func OrganizerToken(secret, organizerID string) string {
	return organizerID + "." + util.HmacSHA256(secret, organizerID)
}

func (m *OrganizerAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		organizerID, ok := m.verify(token)
		if !ok {
			log.Warn().Msg("organizer auth: invalid token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), OrganizerIDContextKey, organizerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *OrganizerAuthMiddleware) verify(token string) (string, bool) {
	idx := strings.LastIndex(token, ".")
	if idx <= 0 || idx == len(token)-1 {
		return "", false
	}

	organizerID := token[:idx]
	signature := token[idx+1:]

	expected := util.HmacSHA256(m.secret, organizerID)
	if !util.ConstantTimeEqual(signature, expected) {
		return "", false
	}
	return organizerID, true
}

func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
