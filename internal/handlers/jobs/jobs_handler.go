// Package jobs exposes the operator batch jobs over HTTP for schedulers and
// runbooks. Every endpoint authenticates with a shared secret.
package jobs

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/services/ports"
	"github.com/kevin07696/royalty-service/internal/services/reconciliation"
	"github.com/kevin07696/royalty-service/pkg/resilience"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
	"go.uber.org/zap"
)

// SecretHeader carries the shared job secret
const SecretHeader = "X-Job-Secret"

const maxBodyBytes = 64 << 10

// Handler serves the /jobs endpoints
type Handler struct {
	jobs       ports.JobService
	reconciler ports.ReconciliationService
	validate   *validator.Validate
	timeouts   *resilience.TimeoutConfig
	logger     *zap.Logger
	secret     string
}

// NewHandler creates a job handler. An empty secret rejects every job request.
func NewHandler(
	jobs ports.JobService,
	reconciler ports.ReconciliationService,
	timeouts *resilience.TimeoutConfig,
	logger *zap.Logger,
	secret string,
) *Handler {
	return &Handler{
		jobs:       jobs,
		reconciler: reconciler,
		validate:   validator.New(),
		timeouts:   timeouts,
		logger:     logger.Named("jobs_handler"),
		secret:     secret,
	}
}

// RunRequest is the body shared by the collection jobs. An empty body is a dry run.
type RunRequest struct {
	Apply bool `json:"apply"`
	Force bool `json:"force"`
}

// FixPayoutRequest is the body of POST /jobs/fix-payout
type FixPayoutRequest struct {
	PayoutID string `json:"payout_id" validate:"required,uuid"`
}

// RelinkRequest is the body of POST /jobs/relink-items
type RelinkRequest struct {
	StatementID string `json:"statement_id" validate:"required,uuid"`
	Apply       bool   `json:"apply"`
}

// ReconcileAllResponse pairs the job report with the users that drifted
type ReconcileAllResponse struct {
	Report        *domain.Report           `json:"report"`
	Discrepancies []*reconciliation.Result `json:"discrepancies"`
}

type errorResponse struct {
	Fields  map[string]string      `json:"fields,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
}

// Routes registers every job endpoint on mux
func (h *Handler) Routes(mux *http.ServeMux, wrap func(route string, next http.Handler) http.Handler) {
	if wrap == nil {
		wrap = func(_ string, next http.Handler) http.Handler { return next }
	}
	register := func(pattern, route string, fn http.HandlerFunc) {
		mux.Handle(pattern, wrap(route, fn))
	}
	register("POST /jobs/reconcile-all", "/jobs/reconcile-all", h.authenticated(h.ReconcileAll))
	register("POST /jobs/link-credits", "/jobs/link-credits", h.authenticated(h.LinkCredits))
	register("POST /jobs/backfill-periods", "/jobs/backfill-periods", h.authenticated(h.BackfillPeriods))
	register("POST /jobs/backfill-invoices", "/jobs/backfill-invoices", h.authenticated(h.BackfillInvoices))
	register("POST /jobs/relink-items", "/jobs/relink-items", h.authenticated(h.RelinkItems))
	register("POST /jobs/fix-payout", "/jobs/fix-payout", h.authenticated(h.FixPayout))
	register("GET /jobs/health", "/jobs/health", h.HealthCheck)
}

// ReconcileAll handles POST /jobs/reconcile-all
func (h *Handler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := h.jobContext(r)
	defer cancel()

	report, discrepancies, err := h.jobs.ReconcileAll(ctx, req.Apply)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if discrepancies == nil {
		discrepancies = []*reconciliation.Result{}
	}
	h.respondJSON(w, reportStatus(report), ReconcileAllResponse{Report: report, Discrepancies: discrepancies})
}

// LinkCredits handles POST /jobs/link-credits
func (h *Handler) LinkCredits(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.runReport(w, r, func(ctx context.Context) (*domain.Report, error) {
		return h.jobs.LinkCredits(ctx, req.Force, req.Apply)
	})
}

// BackfillPeriods handles POST /jobs/backfill-periods
func (h *Handler) BackfillPeriods(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.runReport(w, r, func(ctx context.Context) (*domain.Report, error) {
		return h.jobs.BackfillPeriods(ctx, req.Apply)
	})
}

// BackfillInvoices handles POST /jobs/backfill-invoices
func (h *Handler) BackfillInvoices(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.runReport(w, r, func(ctx context.Context) (*domain.Report, error) {
		return h.jobs.BackfillInvoices(ctx, req.Apply)
	})
}

// RelinkItems handles POST /jobs/relink-items
func (h *Handler) RelinkItems(w http.ResponseWriter, r *http.Request) {
	var req RelinkRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.runReport(w, r, func(ctx context.Context) (*domain.Report, error) {
		return h.jobs.RelinkStatementItems(ctx, req.StatementID, req.Apply)
	})
}

// FixPayout handles POST /jobs/fix-payout
func (h *Handler) FixPayout(w http.ResponseWriter, r *http.Request) {
	var req FixPayoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	fix, err := h.reconciler.FixIncompletePayout(r.Context(), req.PayoutID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.logger.Info("Incomplete payout fixed",
		zap.String("payout_id", req.PayoutID),
		zap.String("previous_status", string(fix.Previous)),
	)
	h.respondJSON(w, http.StatusOK, fix)
}

// HealthCheck handles GET /jobs/health for monitoring
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   timeutil.Now().Format(time.RFC3339),
	})
}

func (h *Handler) runReport(w http.ResponseWriter, r *http.Request, run func(ctx context.Context) (*domain.Report, error)) {
	ctx, cancel := h.jobContext(r)
	defer cancel()

	report, err := run(ctx)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, reportStatus(report), report)
}

// jobContext detaches the job from the client connection and from the
// handler deadline, and bounds it by the job timeout instead. A scheduler
// that gives up must not roll back half a run.
func (h *Handler) jobContext(r *http.Request) (context.Context, context.CancelFunc) {
	return h.timeouts.JobContext(context.WithoutCancel(r.Context()))
}

// reportStatus is 206 when some records failed
func reportStatus(report *domain.Report) int {
	if report.HasFailures() {
		return http.StatusPartialContent
	}
	return http.StatusOK
}

func (h *Handler) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.logger.Info("Job triggered",
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("user_agent", r.UserAgent()),
		)
		if !h.authenticateRequest(r) {
			h.logger.Warn("Unauthorized job request", zap.String("remote_addr", r.RemoteAddr))
			h.respondError(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (h *Handler) authenticateRequest(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	given := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) == 1
}

// decode reads an optional JSON body into dst and validates it. It writes
// the error response itself and reports whether the handler may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			fields := make(map[string]string, len(ves))
			for _, ve := range ves {
				fields[ve.Field()] = ve.Tag()
			}
			h.respondError(w, http.StatusBadRequest, errorResponse{
				Error:  "validation failed",
				Code:   string(domain.ErrorCodeValidationFailed),
				Fields: fields,
			})
			return false
		}
		h.respondError(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Code: string(domain.GetErrorCode(err))}
	var de *domain.DomainError
	if errors.As(err, &de) {
		resp.Details = de.Details
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Job failed", zap.Error(err))
	} else {
		h.logger.Warn("Job refused", zap.Error(err))
	}
	h.respondError(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrJobLocked),
		errors.Is(err, domain.ErrStaleSnapshot),
		domain.IsManualInterventionError(err):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMoneyInvariant),
		errors.Is(err, domain.ErrStatementInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, resp errorResponse) {
	h.respondJSON(w, status, resp)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
