package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/stockcore/stockcore/internal/recon"
)

type fakeSweeper struct {
	swept int
	calls int
	err   error
}

func (f *fakeSweeper) ExpireStale(context.Context) (int, error) {
	f.calls++
	return f.swept, f.err
}

func TestReservationSweepJob(t *testing.T) {
	sweeper := &fakeSweeper{swept: 3}
	job := NewReservationSweepJob(sweeper, nil)

	require.NoError(t, job.Handle(context.Background(), NewReservationSweepTask()))
	require.Equal(t, 1, sweeper.calls)

	sweeper.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), NewReservationSweepTask()))
}

type fakeChecker struct {
	summary recon.Summary
	err     error
}

func (f *fakeChecker) CheckAll(context.Context) (recon.Summary, error) {
	return f.summary, f.err
}

func TestReconScanJob(t *testing.T) {
	checker := &fakeChecker{summary: recon.Summary{Products: 4, Mismatched: 1}}
	job := NewReconScanJob(checker, nil)
	require.NoError(t, job.Handle(context.Background(), NewReconScanTask()))

	checker.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), NewReconScanTask()))
}

func TestIdempotencyCleanupRejectsBadPayload(t *testing.T) {
	job := NewIdempotencyCleanupJob(nil, nil, 0)
	// Unconfigured store is a hard error, not a retryable payload problem.
	err := job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte(`{"retention_hours": 1}`)))
	require.Error(t, err)
}

type fakeEnqueuer struct {
	scans  int
	sweeps int
	err    error
}

func (f *fakeEnqueuer) EnqueueReconScan(context.Context) (*asynq.TaskInfo, error) {
	f.scans++
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "scan-1", Queue: QueueDefault}, nil
}

func (f *fakeEnqueuer) EnqueueReservationSweep(context.Context) (*asynq.TaskInfo, error) {
	f.sweeps++
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "sweep-1", Queue: QueueDefault}, nil
}

func TestEnqueueEndpoints(t *testing.T) {
	enq := &fakeEnqueuer{}
	handler := NewHandler(nil, enq, slog.Default())
	r := chi.NewRouter()
	handler.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/recon-scan", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "scan-1", body["task_id"])
	require.Equal(t, 1, enq.scans)

	resp, err = http.Post(srv.URL+"/reservation-sweep", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, 1, enq.sweeps)

	enq.err = errors.New("redis down")
	resp, err = http.Post(srv.URL+"/recon-scan", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestEnqueueEndpointsWithoutClient(t *testing.T) {
	handler := NewHandler(nil, nil, slog.Default())
	r := chi.NewRouter()
	handler.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/recon-scan", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
