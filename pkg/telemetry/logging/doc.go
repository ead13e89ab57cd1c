// Package logging provides structured logging for the throttle service.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON, text, and console formats
//   - Context-aware logging with request IDs and limiter names
//   - Masking of client keys taken from request headers
//   - Configurable log levels (debug, info, warn, error)
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	ctx = logging.WithLimiter(ctx, "api")
//	logger.InfoContext(ctx, "request admitted") // includes request_id and limiter
package logging
