package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"livecharge-api/internal/observability/metrics"
	"livecharge-api/internal/tokens"
)

// APIKeyHeader carries the public api key.
const APIKeyHeader = "api-key"

// APIKeyMiddleware guards the public API with metered api keys.
type APIKeyMiddleware struct {
	service *tokens.Service
	logger  *zap.Logger
}

// NewAPIKeyMiddleware constructs the middleware.
func NewAPIKeyMiddleware(service *tokens.Service, logger *zap.Logger) (*APIKeyMiddleware, error) {
	if service == nil {
		return nil, errors.New("api key middleware: nil token service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIKeyMiddleware{service: service, logger: logger}, nil
}

// Wrap rejects requests without a known api key. Missing keys get 401,
// unknown keys 403.
func (m *APIKeyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
		if key == "" {
			metrics.IncAuthFailure("missing_api_key")
			http.Error(w, "api key is missing", http.StatusUnauthorized)
			return
		}
		if _, err := m.service.Authorize(r.Context(), key); err != nil {
			if errors.Is(err, tokens.ErrUnknownKey) {
				metrics.IncAuthFailure("unknown_api_key")
				http.Error(w, "api key is invalid", http.StatusForbidden)
				return
			}
			m.logger.Error("api key check failed", zap.Error(err))
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), key)))
	})
}
