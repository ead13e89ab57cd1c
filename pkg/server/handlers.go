package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/throttle/pkg/audit"
	"mercator-hq/throttle/pkg/limits"
	"mercator-hq/throttle/pkg/limits/ratelimit"
	"mercator-hq/throttle/pkg/server/middleware"
	"mercator-hq/throttle/pkg/telemetry/logging"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000

	// maxAcquireTimeout caps the ?timeout of the acquire endpoint.
	maxAcquireTimeout = 30 * time.Second
)

type apiHandler struct {
	limiters LimiterService
	audit    audit.Storage
	logger   *logging.Logger
}

type limiterList struct {
	Limiters []limits.Status `json:"limiters"`
}

type admissionResponse struct {
	Allowed   bool   `json:"allowed"`
	Limiter   string `json:"limiter"`
	Available uint64 `json:"available"`
}

type auditResponse struct {
	Events []*audit.Event `json:"events"`
	Total  int64          `json:"total"`
}

func (h *apiHandler) listLimiters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, limiterList{Limiters: h.limiters.Snapshot()})
}

func (h *apiHandler) getLimiter(w http.ResponseWriter, r *http.Request) {
	status, err := h.limiters.Status(r.PathValue("name"))
	if err != nil {
		h.writeLimiterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *apiHandler) tryAcquire(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	res, err := h.limiters.TryAcquire(r.Context(), name)
	if err != nil {
		h.writeLimiterError(w, r, err)
		return
	}
	if res.IsDenied() {
		middleware.WriteExceeded(w, r, ratelimit.Exceeded(res.WaitTime()), middleware.ErrorTypeRateLimited)
		return
	}
	h.writeAdmitted(w, name)
}

// acquire blocks until admitted or the ?timeout (default and cap
// maxAcquireTimeout) expires.
func (h *apiHandler) acquire(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	timeout := maxAcquireTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeBadRequest(w, r, "timeout must be a positive duration")
			return
		}
		timeout = min(d, maxAcquireTimeout)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	err := h.limiters.Acquire(ctx, name)
	switch {
	case err == nil:
		h.writeAdmitted(w, name)
	case r.Context().Err() != nil:
		return
	case errors.Is(err, context.DeadlineExceeded):
		middleware.WriteExceeded(w, r, ratelimit.Exceeded(time.Second), middleware.ErrorTypeWaitTimeout)
	default:
		h.writeLimiterError(w, r, err)
	}
}

func (h *apiHandler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.limiters.Reset(r.Context(), r.PathValue("name")); err != nil {
		h.writeLimiterError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) queryAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit query failed", "error", err)
		writeInternalError(w, r)
		return
	}

	countFilter := filter
	countFilter.Limit = 0
	total, err := h.audit.Count(r.Context(), countFilter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit count failed", "error", err)
		writeInternalError(w, r)
		return
	}

	if events == nil {
		events = []*audit.Event{}
	}
	writeJSON(w, http.StatusOK, auditResponse{Events: events, Total: total})
}

func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		Limiter: q.Get("limiter"),
		Limit:   defaultAuditLimit,
	}

	if raw := q.Get("kind"); raw != "" {
		kind := audit.Kind(raw)
		if !kind.Valid() {
			return audit.Filter{}, errors.New("kind must be denied, reset or reload")
		}
		filter.Kind = kind
	}

	for _, p := range []struct {
		param string
		dst   *time.Time
	}{
		{"since", &filter.Since},
		{"until", &filter.Until},
	} {
		raw := q.Get(p.param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, errors.New(p.param + " must be an RFC 3339 timestamp")
		}
		*p.dst = t
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return audit.Filter{}, errors.New("limit must be a positive integer")
		}
		filter.Limit = min(n, maxAuditLimit)
	}

	return filter, nil
}

func (h *apiHandler) writeAdmitted(w http.ResponseWriter, name string) {
	available, _ := h.limiters.Available(name)
	writeJSON(w, http.StatusOK, admissionResponse{Allowed: true, Limiter: name, Available: available})
}

func (h *apiHandler) writeLimiterError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, limits.ErrUnknownLimiter) {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrorDetail{
			Type:      "not_found",
			Message:   err.Error(),
			RequestID: logging.GetRequestID(r.Context()),
		})
		return
	}
	h.logger.ErrorContext(r.Context(), "limiter operation failed", "error", err)
	writeInternalError(w, r)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	middleware.WriteError(w, http.StatusBadRequest, middleware.ErrorDetail{
		Type:      "invalid_request",
		Message:   msg,
		RequestID: logging.GetRequestID(r.Context()),
	})
}

func writeInternalError(w http.ResponseWriter, r *http.Request) {
	middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrorDetail{
		Type:      middleware.ErrorTypeInternal,
		Message:   "internal error",
		RequestID: logging.GetRequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
