package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// LimiterKey is the context key for the limiter guarding a request.
	LimiterKey contextKey = "limiter"

	// ClientKeyKey is the context key for the caller's client key.
	ClientKeyKey contextKey = "client_key"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithLimiter adds a limiter name to the context.
func WithLimiter(ctx context.Context, limiter string) context.Context {
	return context.WithValue(ctx, LimiterKey, limiter)
}

// GetLimiter retrieves the limiter name from the context.
func GetLimiter(ctx context.Context) string {
	if limiter, ok := ctx.Value(LimiterKey).(string); ok {
		return limiter
	}
	return ""
}

// WithClientKey adds a client key to the context.
func WithClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ClientKeyKey, key)
}

// GetClientKey retrieves the client key from the context.
func GetClientKey(ctx context.Context) string {
	if key, ok := ctx.Value(ClientKeyKey).(string); ok {
		return key
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
// Returns a slice of key-value pairs suitable for logger.With().
func extractContextFields(ctx context.Context, maskKeys bool) []any {
	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}

	if limiter := GetLimiter(ctx); limiter != "" {
		fields = append(fields, "limiter", limiter)
	}

	if key := GetClientKey(ctx); key != "" {
		if maskKeys {
			key = MaskKey(key)
		}
		fields = append(fields, "client_key", key)
	}

	return fields
}

// MaskKey keeps the first four characters of a key and hides the rest.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return "***"
	}
	return key[:4] + "***"
}
