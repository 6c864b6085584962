// Package http provides the control plane's HTTP interface.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/coreplane/adapters/metrics"
	"github.com/artpar/coreplane/app"
	"github.com/artpar/coreplane/domain/breakglass"
	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/domain/ratelimit"
	"github.com/artpar/coreplane/domain/usage"
	"github.com/artpar/coreplane/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// BreakGlassHeader carries break-glass tokens. The scheme is deliberately
// separate from Authorization so a regular bearer token can never be
// mistaken for an override credential.
const BreakGlassHeader = "X-Break-Glass-Token"

// ErrorResponseBody is the error envelope of every non-2xx response.
type ErrorResponseBody struct {
	Error             ErrorDetail `json:"error"`
	RetryAfterSeconds int         `json:"retry_after_seconds,omitempty"`
}

// ErrorDetail carries a machine-readable code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// VersionResponse is the /version payload.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// SnapshotResponse wraps a snapshot with its distribution metadata.
type SnapshotResponse struct {
	Snapshot    any    `json:"snapshot"`
	GeneratedAt string `json:"generated_at"`
	TTLSeconds  int    `json:"ttl_seconds"`
	CacheHit    bool   `json:"cache_hit"`
}

// ValidateResponse is the caller-visible shape of a token validation. The
// body never distinguishes expired from unknown tokens; the logs do.
type ValidateResponse struct {
	Valid            bool   `json:"valid"`
	AdminID          string `json:"admin_id,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
	ExpiresInSeconds int64  `json:"expires_in_seconds,omitempty"`
	Warning          string `json:"warning,omitempty"`
}

// HandlerDeps contains dependencies for Handler.
type HandlerDeps struct {
	Snapshots   *app.SnapshotService
	Quotas      *app.QuotaService
	Suspensions *app.SuspensionService
	BreakGlass  *app.BreakGlassService
	Recorder    ports.UsageRecorder // optional; enables async usage mode
	RateLimits  ports.RateLimitStore
	Clock       ports.Clock
	Log         zerolog.Logger
	Metrics     *metrics.Collector // optional
}

// HandlerConfig contains configuration for Handler.
type HandlerConfig struct {
	TriggerLimit  int           // suspension trigger invocations per window
	TriggerWindow time.Duration // suspension trigger window
	Version       string
}

// Handler serves the control plane endpoints.
type Handler struct {
	snapshots   *app.SnapshotService
	quotas      *app.QuotaService
	suspensions *app.SuspensionService
	breakglass  *app.BreakGlassService
	recorder    ports.UsageRecorder
	rateLimits  ports.RateLimitStore
	clock       ports.Clock
	log         zerolog.Logger
	metrics     *metrics.Collector

	triggerCfg ratelimit.Config
	version    string
}

// NewHandler creates a new HTTP handler.
func NewHandler(deps HandlerDeps, cfg HandlerConfig) *Handler {
	if cfg.TriggerLimit == 0 {
		cfg.TriggerLimit = 6
	}
	if cfg.TriggerWindow == 0 {
		cfg.TriggerWindow = time.Minute
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Handler{
		snapshots:   deps.Snapshots,
		quotas:      deps.Quotas,
		suspensions: deps.Suspensions,
		breakglass:  deps.BreakGlass,
		recorder:    deps.Recorder,
		rateLimits:  deps.RateLimits,
		clock:       deps.Clock,
		log:         deps.Log,
		metrics:     deps.Metrics,
		triggerCfg:  ratelimit.Config{Limit: cfg.TriggerLimit, Window: cfg.TriggerWindow},
		version:     cfg.Version,
	}
}

// Router builds the chi router with all endpoints mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if h.metrics != nil {
		r.Use(NewMetricsMiddleware(h.metrics))
	}

	r.Get("/healthz", h.Health)
	r.Get("/version", h.Version)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/projects/{projectID}/snapshot", h.GetSnapshot)
		r.Get("/projects/{projectID}/actions", h.ListActions)
		r.Post("/quota/check", h.CheckQuota)
		r.Post("/usage", h.RecordUsage)
		r.Post("/suspension/run", h.RunSuspensionCheck)

		r.Route("/breakglass", func(r chi.Router) {
			r.Post("/validate", h.ValidateToken)
			r.Post("/unlock", h.Unlock)
			r.Post("/override", h.OverrideSuspension)
			r.Post("/regenerate-keys", h.RegenerateKeys)
		})
	})

	return r
}

// GetSnapshot serves the cached, fail-closed snapshot read path.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	start := time.Now()
	res, err := h.snapshots.Get(r.Context(), projectID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMalformedProjectID):
			writeError(w, http.StatusBadRequest, "invalid_project_id", "Project id is malformed")
		case errors.Is(err, app.ErrProjectNotFound):
			writeError(w, http.StatusNotFound, "project_not_found", "No such project")
		default:
			// Fail closed: the caller keeps its last-known-good state and
			// retries; it never gets a guessed default.
			if h.metrics != nil {
				h.metrics.SnapshotBuildFailures.WithLabelValues("unavailable").Inc()
			}
			retry := int(h.snapshots.RetryAfter().Seconds())
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponseBody{
				Error:             ErrorDetail{Code: "snapshot_unavailable", Message: "Snapshot temporarily unavailable, retry with backoff"},
				RetryAfterSeconds: retry,
			})
		}
		return
	}

	if h.metrics != nil {
		if res.CacheHit {
			h.metrics.SnapshotCacheHits.Inc()
		} else {
			// A miss is a rebuild; the Get call's latency is the assembly.
			h.metrics.SnapshotCacheMisses.Inc()
			h.metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
		}
	}
	writeJSON(w, http.StatusOK, SnapshotResponse{
		Snapshot:    res.Snapshot,
		GeneratedAt: res.Snapshot.GeneratedAt.UTC().Format(time.RFC3339),
		TTLSeconds:  int(res.TTL.Seconds()),
		CacheHit:    res.CacheHit,
	})
}

// CheckQuota answers a pre-flight quota check.
func (h *Handler) CheckQuota(w http.ResponseWriter, r *http.Request) {
	var req QuotaCheckRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.quotas.Check(r.Context(), req.ProjectID, project.Service(req.Service), req.Amount)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", req.ProjectID).Msg("quota check failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Quota check could not be completed")
		return
	}

	if h.metrics != nil {
		h.metrics.QuotaChecks.WithLabelValues(req.Service, strconv.FormatBool(res.Allowed)).Inc()
		if !res.Allowed {
			h.metrics.QuotaDenials.WithLabelValues(req.Service, res.Reason).Inc()
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// RecordUsage appends a usage record, inline or queued.
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req UsageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	rec := usage.Record{
		ProjectID:      req.ProjectID,
		Service:        project.Service(req.Service),
		MetricType:     usage.MetricType(req.MetricType),
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	}

	// Async mode: metered services must never block their primary path on
	// usage accounting. Queue and acknowledge.
	if req.Async && h.recorder != nil {
		rec.RecordedAt = h.clock.Now()
		h.recorder.Record(rec)
		if h.metrics != nil {
			h.metrics.UsageRecords.WithLabelValues(req.Service, req.MetricType).Inc()
		}
		writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
		return
	}

	res, err := h.quotas.Record(r.Context(), rec)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", req.ProjectID).Msg("usage record failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Usage record could not be stored")
		return
	}
	if res.Reason != "" {
		writeError(w, http.StatusBadRequest, res.Reason, "Usage record rejected")
		return
	}

	if h.metrics != nil && res.Tracked {
		h.metrics.UsageRecords.WithLabelValues(req.Service, req.MetricType).Inc()
	}
	// Duplicate idempotency keys are acknowledged, never errored, so
	// at-least-once senders can retry blindly.
	writeJSON(w, http.StatusOK, res)
}

// RunSuspensionCheck triggers the suspension check run on demand.
// Rate-limited per caller identity.
func (h *Handler) RunSuspensionCheck(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(r)
	now := h.clock.Now()

	state, err := h.rateLimits.Get(r.Context(), caller)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "internal_error", "Rate limit state unavailable")
		return
	}
	result, newState := ratelimit.Check(state, h.triggerCfg, now)
	if err := h.rateLimits.Set(r.Context(), caller, newState); err != nil {
		h.log.Error().Err(err).Str("caller", caller).Msg("rate limit state write failed")
	}
	if !result.Allowed {
		retry := int(result.ResetAt.Sub(now).Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeJSON(w, http.StatusTooManyRequests, ErrorResponseBody{
			Error:             ErrorDetail{Code: ratelimit.ReasonLimitExceeded, Message: "Suspension trigger rate limit exceeded"},
			RetryAfterSeconds: retry,
		})
		return
	}

	report, err := h.suspensions.RunCheck(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("triggered suspension check failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Suspension check failed")
		return
	}
	if h.metrics != nil && report.SuspensionsMade > 0 {
		h.metrics.SuspensionsCreated.WithLabelValues("automatic").Add(float64(report.SuspensionsMade))
	}
	writeJSON(w, http.StatusOK, report)
}

// ValidateToken reports whether the presented break-glass token is usable.
func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	v := h.breakglass.Validate(r.Context(), r.Header.Get(BreakGlassHeader))
	if h.metrics != nil {
		h.metrics.BreakGlassValidations.WithLabelValues(strconv.FormatBool(v.Valid), v.Reason).Inc()
	}
	if !v.Valid {
		if v.Reason == breakglass.ReasonUnavailable {
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "session store unavailable")
			return
		}
		// Expired and unknown are logged apart but answered alike.
		writeJSON(w, http.StatusUnauthorized, ValidateResponse{Valid: false})
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{
		Valid:            true,
		AdminID:          v.AdminID,
		SessionID:        v.SessionID,
		ExpiresInSeconds: v.ExpiresInSeconds,
		Warning:          v.Warning,
	})
}

// Unlock reactivates a suspended project under a break-glass session.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.breakglass.Unlock(r.Context(), r.Header.Get(BreakGlassHeader), req.ProjectID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", req.ProjectID).Msg("unlock failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Unlock could not be completed")
		return
	}
	h.writeOverrideResult(w, app.ActionUnlock, res)
}

// OverrideSuspension raises a breached hard cap and unlocks the project.
func (h *Handler) OverrideSuspension(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.breakglass.OverrideSuspension(r.Context(), r.Header.Get(BreakGlassHeader), req.ProjectID, app.OverrideCapInput{
		NewHardCap:  req.NewHardCap,
		IncreasePct: req.IncreasePct,
	})
	if err != nil {
		h.log.Error().Err(err).Str("project_id", req.ProjectID).Msg("override failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Override could not be completed")
		return
	}
	h.writeOverrideResult(w, app.ActionOverrideSuspension, res)
}

// RegenerateKeys rotates a project's service key fingerprint.
func (h *Handler) RegenerateKeys(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.breakglass.RegenerateKeys(r.Context(), r.Header.Get(BreakGlassHeader), req.ProjectID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", req.ProjectID).Msg("key regeneration failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Key regeneration could not be completed")
		return
	}
	h.writeOverrideResult(w, app.ActionRegenerateKeys, res)
}

// ListActions returns recent override actions for a project.
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if !project.ValidateID(projectID) {
		writeError(w, http.StatusBadRequest, "invalid_project_id", "Project id is malformed")
		return
	}

	// The action log is only readable under a valid session; it names the
	// admins who used overrides.
	v := h.breakglass.Validate(r.Context(), r.Header.Get(BreakGlassHeader))
	if !v.Valid {
		writeJSON(w, http.StatusUnauthorized, ValidateResponse{Valid: false})
		return
	}

	records, err := h.breakglass.ListActions(r.Context(), projectID, 50)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", projectID).Msg("action log read failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Action log unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": records})
}

// writeOverrideResult maps an override outcome onto status codes.
func (h *Handler) writeOverrideResult(w http.ResponseWriter, action string, res app.OverrideResult) {
	if res.Reason == app.ReasonSessionInvalid {
		writeJSON(w, http.StatusUnauthorized, ValidateResponse{Valid: false})
		return
	}
	if !res.Applied {
		status := http.StatusConflict
		switch res.Reason {
		case app.ReasonProjectNotFound:
			status = http.StatusNotFound
		case app.ReasonInvalidParams:
			status = http.StatusBadRequest
		}
		writeError(w, status, res.Reason, "Override not applied")
		return
	}
	if h.metrics != nil {
		h.metrics.OverrideActions.WithLabelValues(action).Inc()
	}
	writeJSON(w, http.StatusOK, res)
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version reports the build version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: h.version, Service: "coreplane"})
}

// callerIdentity identifies a trigger caller: the declaring service name
// when present, the remote address otherwise.
func callerIdentity(r *http.Request) string {
	if name := r.Header.Get("X-Service-Name"); name != "" {
		return name
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponseBody{Error: ErrorDetail{Code: code, Message: message}})
}

// NewLoggingMiddleware logs HTTP requests.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if strings.HasPrefix(r.URL.Path, "/healthz") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// NewMetricsMiddleware records request metrics.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/healthz") || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			status := statusLabel(ww.Status())
			path := routePattern(r)

			m.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		})
	}
}

// routePattern returns the chi route pattern to keep label cardinality
// bounded regardless of path parameter values.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
