package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sfp-labs/fellowship-portal/internal/sessions"
)

// AuthMiddleware guards admin routes with a static API key
type AuthMiddleware struct {
	apiKey string
}

// NewAuthMiddleware creates new auth middleware. An empty key disables the
// admin routes altogether.
func NewAuthMiddleware(apiKey string) *AuthMiddleware {
	return &AuthMiddleware{apiKey: apiKey}
}

// Enabled reports whether an admin key is configured
func (m *AuthMiddleware) Enabled() bool {
	return m.apiKey != ""
}

// Authenticate verifies the API key from the Authorization header
// Supports formats: "Bearer <key>" or "<key>", and the X-API-Key header
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := extractAPIKey(r)
		if apiKey == "" {
			respondError(w, http.StatusUnauthorized, "missing_api_key", "provide Authorization header with Bearer token or X-API-Key header")
			return
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(m.apiKey)) != 1 {
			slog.Warn("invalid api key attempt", "key_prefix", maskKey(apiKey), "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusUnauthorized, "invalid_api_key", "the provided api key is not valid")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// sessionContext opens the session named in the URL and stores it in the
// request context
func (s *Server) sessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		sess, err := s.sessions.Open(r.Context(), key)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_session_key", "session key is empty or contains unsupported characters")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
	})
}

// extractAPIKey extracts API key from request headers
func extractAPIKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

// maskKey returns first 8 chars of key for safe logging
func maskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:8] + "..."
}

// sessionOrPanic is used by handlers mounted behind sessionContext
func sessionOrPanic(r *http.Request) *sessions.Session {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		panic("api: session handler mounted without sessionContext")
	}
	return sess
}
