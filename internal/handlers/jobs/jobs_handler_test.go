package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/services/reconciliation"
	"github.com/kevin07696/royalty-service/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "s3cret"

type mockJobService struct {
	mock.Mock
}

func (m *mockJobService) ReconcileAll(ctx context.Context, apply bool) (*domain.Report, []*reconciliation.Result, error) {
	args := m.Called(ctx, apply)
	report, _ := args.Get(0).(*domain.Report)
	results, _ := args.Get(1).([]*reconciliation.Result)
	return report, results, args.Error(2)
}

func (m *mockJobService) LinkCredits(ctx context.Context, force, apply bool) (*domain.Report, error) {
	args := m.Called(ctx, force, apply)
	report, _ := args.Get(0).(*domain.Report)
	return report, args.Error(1)
}

func (m *mockJobService) RelinkStatementItems(ctx context.Context, statementID string, apply bool) (*domain.Report, error) {
	args := m.Called(ctx, statementID, apply)
	report, _ := args.Get(0).(*domain.Report)
	return report, args.Error(1)
}

func (m *mockJobService) BackfillPeriods(ctx context.Context, apply bool) (*domain.Report, error) {
	args := m.Called(ctx, apply)
	report, _ := args.Get(0).(*domain.Report)
	return report, args.Error(1)
}

func (m *mockJobService) BackfillInvoices(ctx context.Context, apply bool) (*domain.Report, error) {
	args := m.Called(ctx, apply)
	report, _ := args.Get(0).(*domain.Report)
	return report, args.Error(1)
}

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Reconcile(ctx context.Context, userID string) (*reconciliation.Result, error) {
	args := m.Called(ctx, userID)
	res, _ := args.Get(0).(*reconciliation.Result)
	return res, args.Error(1)
}

func (m *mockReconciler) Apply(ctx context.Context, res *reconciliation.Result) error {
	return m.Called(ctx, res).Error(0)
}

func (m *mockReconciler) FixIncompletePayout(ctx context.Context, payoutID string) (*reconciliation.PayoutFix, error) {
	args := m.Called(ctx, payoutID)
	fix, _ := args.Get(0).(*reconciliation.PayoutFix)
	return fix, args.Error(1)
}

type fixture struct {
	jobs       *mockJobService
	reconciler *mockReconciler
	mux        *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		jobs:       &mockJobService{},
		reconciler: &mockReconciler{},
		mux:        http.NewServeMux(),
	}
	h := NewHandler(f.jobs, f.reconciler, resilience.TestTimeoutConfig(), zap.NewNop(), testSecret)
	h.Routes(f.mux, nil)
	t.Cleanup(func() {
		f.jobs.AssertExpectations(t)
		f.reconciler.AssertExpectations(t)
	})
	return f
}

func (f *fixture) do(method, path, secret string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func report(job string, apply bool) *domain.Report {
	return domain.NewReport(job, apply, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
}

func TestAuthentication(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{name: "missing secret", secret: ""},
		{name: "wrong secret", secret: "guess"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(http.MethodPost, "/jobs/link-credits", tt.secret, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestEmptySecretRejectsEverything(t *testing.T) {
	jobs := &mockJobService{}
	h := NewHandler(jobs, &mockReconciler{}, resilience.TestTimeoutConfig(), zap.NewNop(), "")
	mux := http.NewServeMux()
	h.Routes(mux, nil)

	req := httptest.NewRequest(http.MethodPost, "/jobs/backfill-periods", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	jobs.AssertNotCalled(t, "BackfillPeriods", mock.Anything, mock.Anything)
}

func TestReportJobs(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     interface{}
		setup    func(m *mockJobService, r *domain.Report)
		failures bool
		wantCode int
	}{
		{
			name: "link credits dry run by default",
			path: "/jobs/link-credits",
			setup: func(m *mockJobService, r *domain.Report) {
				m.On("LinkCredits", mock.Anything, false, false).Return(r, nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "link credits forced and applied",
			path: "/jobs/link-credits",
			body: RunRequest{Apply: true, Force: true},
			setup: func(m *mockJobService, r *domain.Report) {
				m.On("LinkCredits", mock.Anything, true, true).Return(r, nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "backfill periods partial failure",
			path: "/jobs/backfill-periods",
			body: RunRequest{Apply: true},
			setup: func(m *mockJobService, r *domain.Report) {
				m.On("BackfillPeriods", mock.Anything, true).Return(r, nil)
			},
			failures: true,
			wantCode: http.StatusPartialContent,
		},
		{
			name: "backfill invoices",
			path: "/jobs/backfill-invoices",
			body: RunRequest{Apply: true},
			setup: func(m *mockJobService, r *domain.Report) {
				m.On("BackfillInvoices", mock.Anything, true).Return(r, nil)
			},
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r := report("job", true)
			r.Matched = 2
			if tt.failures {
				r.Fail("st-1", errors.New("boom"))
			}
			tt.setup(f.jobs, r)

			rec := f.do(http.MethodPost, tt.path, testSecret, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)

			var got domain.Report
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, 2, got.Matched)
			assert.Equal(t, tt.failures, got.HasFailures())
		})
	}
}

func TestReconcileAll(t *testing.T) {
	f := newFixture(t)
	r := report("reconcile-all", false)
	r.Unmatched = 1
	f.jobs.On("ReconcileAll", mock.Anything, false).
		Return(r, []*reconciliation.Result{{UserID: "user-1", DiscrepancyFound: true}}, nil)

	rec := f.do(http.MethodPost, "/jobs/reconcile-all", testSecret, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got ReconcileAllResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Report.Unmatched)
	require.Len(t, got.Discrepancies, 1)
	assert.Equal(t, "user-1", got.Discrepancies[0].UserID)
}

func TestReconcileAll_Locked(t *testing.T) {
	f := newFixture(t)
	f.jobs.On("ReconcileAll", mock.Anything, true).
		Return(nil, nil, domain.ErrJobLocked.WithDetail("lock", "royalty:job:reconcile-all"))

	rec := f.do(http.MethodPost, "/jobs/reconcile-all", testSecret, RunRequest{Apply: true})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), string(domain.ErrorCodeJobLocked))
}

func TestRelinkItems(t *testing.T) {
	f := newFixture(t)
	stID := uuid.NewString()
	f.jobs.On("RelinkStatementItems", mock.Anything, stID, true).Return(report("relink-items", true), nil)

	rec := f.do(http.MethodPost, "/jobs/relink-items", testSecret, RelinkRequest{StatementID: stID, Apply: true})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFixPayout(t *testing.T) {
	payoutID := uuid.NewString()

	tests := []struct {
		name     string
		body     interface{}
		err      error
		wantCode int
		wantCall bool
	}{
		{
			name:     "cancelled and refunded",
			body:     FixPayoutRequest{PayoutID: payoutID},
			wantCode: http.StatusOK,
			wantCall: true,
		},
		{
			name:     "payout with transfer needs manual intervention",
			body:     FixPayoutRequest{PayoutID: payoutID},
			err:      domain.ErrPayoutHasTransfer.WithDetail("payout_id", payoutID),
			wantCode: http.StatusConflict,
			wantCall: true,
		},
		{
			name:     "unknown payout",
			body:     FixPayoutRequest{PayoutID: payoutID},
			err:      domain.ErrPayoutNotFound,
			wantCode: http.StatusNotFound,
			wantCall: true,
		},
		{
			name:     "missing payout id",
			body:     map[string]string{},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed payout id",
			body:     FixPayoutRequest{PayoutID: "not-a-uuid"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown field",
			body:     map[string]string{"payout": payoutID},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.wantCall {
				var fix *reconciliation.PayoutFix
				if tt.err == nil {
					fix = &reconciliation.PayoutFix{
						Payout:   &domain.PayoutRequest{ID: payoutID, Status: domain.PayoutStatusCancelled},
						Previous: domain.PayoutStatusApproved,
					}
				}
				f.reconciler.On("FixIncompletePayout", mock.Anything, payoutID).Return(fix, tt.err)
			}

			rec := f.do(http.MethodPost, "/jobs/fix-payout", testSecret, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/jobs/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrStatementNotFound, http.StatusNotFound},
		{domain.ErrStaleSnapshot, http.StatusConflict},
		{domain.ErrPayoutAlreadyCancelled, http.StatusConflict},
		{domain.ErrMoneyInvariant, http.StatusUnprocessableEntity},
		{domain.ErrValidationFailed, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
