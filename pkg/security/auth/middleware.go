package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// KeySource defines where to extract a key from.
type KeySource struct {
	Type   string // header, query
	Name   string // Header name or query param
	Scheme string // "Bearer", etc. (optional)
}

// DefaultSources reads a bearer token or an X-Admin-Key header.
func DefaultSources() []KeySource {
	return []KeySource{
		{Type: "header", Name: "Authorization", Scheme: "Bearer"},
		{Type: "header", Name: "X-Admin-Key"},
	}
}

// Middleware rejects requests that do not carry a valid admin key.
type Middleware struct {
	store   KeyStore
	sources []KeySource
	logger  *slog.Logger
}

// NewMiddleware creates the guard. A nil logger uses slog.Default().
func NewMiddleware(store KeyStore, sources []KeySource, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		store:   store,
		sources: sources,
		logger:  logger,
	}
}

// Handle wraps an HTTP handler with key authentication.
func (m *Middleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := m.store.Validate(m.extractKey(r))
		if err != nil {
			m.logger.WarnContext(r.Context(), "admin request rejected",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="throttle"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		m.logger.DebugContext(r.Context(), "admin key authenticated",
			"key", key.Name,
			"path", r.URL.Path,
		)

		ctx := context.WithValue(r.Context(), keyContextKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractKey returns the first key found, or "" when none is present.
func (m *Middleware) extractKey(r *http.Request) string {
	for _, source := range m.sources {
		switch source.Type {
		case "header":
			value := r.Header.Get(source.Name)
			if value == "" {
				continue
			}
			if source.Scheme == "" {
				return value
			}
			if rest, ok := strings.CutPrefix(value, source.Scheme+" "); ok {
				return rest
			}

		case "query":
			if value := r.URL.Query().Get(source.Name); value != "" {
				return value
			}
		}
	}
	return ""
}

type contextKey string

// #nosec G101 - This is a context key constant, not a credential
const keyContextKey contextKey = "admin_key"

// KeyFromContext returns the key that authenticated the request.
func KeyFromContext(ctx context.Context) (*Key, bool) {
	key, ok := ctx.Value(keyContextKey).(*Key)
	return key, ok
}
