package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/micro-nova/upm6720d/internal/models"
)

const (
	apiKeyHeader     = "X-API-Key"
	apiKeyQueryParam = "api-key"
)

// Middleware rejects requests without a valid key with 401.
// In open mode (no keys configured), all requests pass through.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IsOpenMode() {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			key = r.URL.Query().Get(apiKeyQueryParam)
		}
		if name, ok := s.Verify(key); ok {
			slog.Debug("auth: request authorised", "key", name, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(models.ErrUnauthorized.Status)
		_ = json.NewEncoder(w).Encode(models.ErrUnauthorized)
	})
}
