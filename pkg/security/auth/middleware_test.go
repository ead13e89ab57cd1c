package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewMiddleware(t *testing.T) {
	validator := NewKeyValidator(nil)
	middleware := NewMiddleware(validator, DefaultSources(), nil)

	if middleware == nil {
		t.Fatal("NewMiddleware returned nil")
	}
	if middleware.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
	if len(middleware.sources) != 2 {
		t.Errorf("Expected 2 sources, got %d", len(middleware.sources))
	}
}

func TestMiddleware_Handle(t *testing.T) {
	ops := &Key{Name: "ops", Secret: "ops-secret-0001", Enabled: true}
	retired := &Key{Name: "retired", Secret: "retired-secret-0002", Enabled: false}

	tests := []struct {
		name           string
		sources        []KeySource
		setupRequest   func(*http.Request)
		expectedStatus int
		expectedKey    string
	}{
		{
			name:    "valid bearer token",
			sources: DefaultSources(),
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer ops-secret-0001")
			},
			expectedStatus: http.StatusOK,
			expectedKey:    "ops",
		},
		{
			name:    "valid admin header",
			sources: DefaultSources(),
			setupRequest: func(r *http.Request) {
				r.Header.Set("X-Admin-Key", "ops-secret-0001")
			},
			expectedStatus: http.StatusOK,
			expectedKey:    "ops",
		},
		{
			name:    "valid query parameter",
			sources: []KeySource{{Type: "query", Name: "admin_key"}},
			setupRequest: func(r *http.Request) {
				q := r.URL.Query()
				q.Add("admin_key", "ops-secret-0001")
				r.URL.RawQuery = q.Encode()
			},
			expectedStatus: http.StatusOK,
			expectedKey:    "ops",
		},
		{
			name:           "missing key",
			sources:        DefaultSources(),
			setupRequest:   func(r *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:    "invalid key",
			sources: DefaultSources(),
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer not-a-key")
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:    "disabled key",
			sources: DefaultSources(),
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer retired-secret-0002")
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:    "wrong bearer scheme format",
			sources: []KeySource{{Type: "header", Name: "Authorization", Scheme: "Bearer"}},
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "ops-secret-0001") // Missing "Bearer " prefix
			},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewKeyValidator([]*Key{ops, retired})
			middleware := NewMiddleware(validator, tt.sources, nil)

			var gotKey string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if key, ok := KeyFromContext(r.Context()); ok {
					gotKey = key.Name
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/v1/limiters/api/reset", nil)
			tt.setupRequest(req)
			rec := httptest.NewRecorder()

			middleware.Handle(handler).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if gotKey != tt.expectedKey {
				t.Errorf("Expected key %q in context, got %q", tt.expectedKey, gotKey)
			}
			if tt.expectedStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("Expected WWW-Authenticate header on 401")
			}
		})
	}
}

func TestKeyFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := KeyFromContext(req.Context()); ok {
		t.Error("Expected no key in a fresh context")
	}
}
