package shutdown

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManager_ReverseOrder(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)
	var order []string
	m.RegisterNoErr("database", func() { order = append(order, "database") })
	m.Register("jobs", func(context.Context) error {
		order = append(order, "jobs")
		return errors.New("job still running")
	})
	m.Register("http", func(context.Context) error {
		order = append(order, "http")
		panic("listener gone")
	})

	failures := m.Shutdown()

	assert.Equal(t, []string{"http", "jobs", "database"}, order)
	require.Len(t, failures, 2)
	assert.Contains(t, failures["http"].Error(), "panic")
	assert.EqualError(t, failures["jobs"], "job still running")
}

func TestInFlightTracker(t *testing.T) {
	tr := NewInFlightTracker("jobs", zap.NewNop())
	require.True(t, tr.Add())

	released := make(chan struct{})
	go func() {
		<-released
		tr.Done()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.Shutdown(ctx), context.DeadlineExceeded, "running job not finished")
	assert.True(t, tr.IsShuttingDown())
	assert.False(t, tr.Add(), "no new work after shutdown")

	close(released)
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestInFlightTracker_Middleware(t *testing.T) {
	tr := NewInFlightTracker("jobs", zap.NewNop())
	h := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/link-credits", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, tr.Shutdown(context.Background()))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/link-credits", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
