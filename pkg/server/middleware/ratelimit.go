package middleware

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/throttle/pkg/limits"
	"mercator-hq/throttle/pkg/limits/ratelimit"
	"mercator-hq/throttle/pkg/telemetry/logging"
	"mercator-hq/throttle/pkg/telemetry/metrics"
)

// Admission modes.
const (
	ModeReject = "reject"
	ModeWait   = "wait"
)

// waitTimeoutRetry is advertised after a wait-mode timeout. Probing the
// limiter for the real wait would consume a permit.
const waitTimeoutRetry = time.Second

// Client admission outcomes.
const (
	OutcomeAdmitted = "admitted"
	OutcomeRejected = "rejected"
	OutcomeTimeout  = "timeout"
)

// Admitter is the subset of the limits manager used by RateLimit.
type Admitter interface {
	TryAcquire(ctx context.Context, name string) (ratelimit.Result, error)
	Acquire(ctx context.Context, name string) error
	Available(name string) (uint64, error)
	Definition(name string) (limits.Definition, bool)
}

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	// Limiter names the limiter guarding the route.
	Limiter string

	// Mode is ModeReject or ModeWait. Empty means ModeReject.
	Mode string

	// WaitTimeout bounds the wait in ModeWait. 0 waits as long as the
	// request context allows.
	WaitTimeout time.Duration

	// ClientKeyHeader is copied into the log context and client metrics.
	ClientKeyHeader string

	Logger    *logging.Logger
	Collector *metrics.Collector
}

// RateLimit admits requests through the named limiter.
//
// Admitted responses carry X-RateLimit-Limit (the burst) and
// X-RateLimit-Remaining. Denied requests receive 429 with a Retry-After
// header in whole seconds rounded up and a JSON body carrying
// retry_after_ms.
func RateLimit(admitter Admitter, opts RateLimitOptions) func(http.Handler) http.Handler {
	if opts.Mode == "" {
		opts.Mode = ModeReject
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.WithLimiter(r.Context(), opts.Limiter)

			clientKey := ""
			if opts.ClientKeyHeader != "" {
				clientKey = r.Header.Get(opts.ClientKeyHeader)
				if clientKey != "" {
					ctx = logging.WithClientKey(ctx, clientKey)
				}
			}
			r = r.WithContext(ctx)

			var admitted bool
			if opts.Mode == ModeWait {
				admitted = waitForPermit(w, r, admitter, opts, clientKey)
			} else {
				admitted = tryPermit(w, r, admitter, opts, clientKey)
			}
			if !admitted {
				return
			}

			opts.Collector.RecordClientAdmission(clientKey, OutcomeAdmitted)
			setLimitHeaders(w, admitter, opts.Limiter)
			next.ServeHTTP(w, r)
		})
	}
}

func tryPermit(w http.ResponseWriter, r *http.Request, admitter Admitter, opts RateLimitOptions, clientKey string) bool {
	res, err := admitter.TryAcquire(r.Context(), opts.Limiter)
	if err != nil {
		writeInternal(w, r, opts, err)
		return false
	}
	if res.IsAllowed() {
		return true
	}

	opts.Collector.RecordClientAdmission(clientKey, OutcomeRejected)
	setLimitHeaders(w, admitter, opts.Limiter)
	WriteExceeded(w, r, ratelimit.Exceeded(res.WaitTime()), ErrorTypeRateLimited)
	return false
}

func waitForPermit(w http.ResponseWriter, r *http.Request, admitter Admitter, opts RateLimitOptions, clientKey string) bool {
	ctx := r.Context()
	if opts.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.WaitTimeout)
		defer cancel()
	}

	err := admitter.Acquire(ctx, opts.Limiter)
	switch {
	case err == nil:
		return true

	case r.Context().Err() != nil:
		// Client went away; nobody is listening for a response.
		return false

	case errors.Is(err, context.DeadlineExceeded):
		opts.Collector.RecordClientAdmission(clientKey, OutcomeTimeout)

		setLimitHeaders(w, admitter, opts.Limiter)
		WriteExceeded(w, r, ratelimit.Exceeded(waitTimeoutRetry), ErrorTypeWaitTimeout)
		return false

	default:
		writeInternal(w, r, opts, err)
		return false
	}
}

func setLimitHeaders(w http.ResponseWriter, admitter Admitter, name string) {
	if def, ok := admitter.Definition(name); ok {
		w.Header().Set("X-RateLimit-Limit", strconv.FormatUint(def.Config.Burst, 10))
	}
	if n, err := admitter.Available(name); err == nil {
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatUint(n, 10))
	}
}

// WriteExceeded writes a 429 with a Retry-After header and the wait in
// milliseconds. Handlers that admit requests themselves use it too.
func WriteExceeded(w http.ResponseWriter, r *http.Request, exceeded *ratelimit.ExceededError, errType string) {
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(exceeded.RetryAfter()), 10))
	WriteError(w, http.StatusTooManyRequests, ErrorDetail{
		Type:         errType,
		Message:      exceeded.Error(),
		RetryAfterMs: exceeded.RetryAfterMs,
		RequestID:    logging.GetRequestID(r.Context()),
	})
}

func writeInternal(w http.ResponseWriter, r *http.Request, opts RateLimitOptions, err error) {
	if opts.Logger != nil {
		opts.Logger.ErrorContext(r.Context(), "admission check failed", "error", err)
	}
	WriteError(w, http.StatusInternalServerError, ErrorDetail{
		Type:      ErrorTypeInternal,
		Message:   "admission check failed",
		RequestID: logging.GetRequestID(r.Context()),
	})
}

// retryAfterSeconds rounds up to whole seconds with a floor of 1, since
// Retry-After cannot express sub-second waits.
func retryAfterSeconds(d time.Duration) int64 {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
