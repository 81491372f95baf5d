package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/act/grant-enrichment/internal/enrich"
)

type stubRunner struct {
	mu      sync.Mutex
	release chan struct{}
	opts    []enrich.RunOptions
	err     error
}

func (r *stubRunner) Run(ctx context.Context, opts enrich.RunOptions) (enrich.Summary, error) {
	r.mu.Lock()
	r.opts = append(r.opts, opts)
	r.mu.Unlock()
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return enrich.Summary{}, ctx.Err()
		}
	}
	return enrich.Summary{RunID: "run-1", Total: 2, Enriched: 1, Failed: 1, DryRun: opts.DryRun}, r.err
}

func (r *stubRunner) calls() []enrich.RunOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]enrich.RunOptions(nil), r.opts...)
}

type stubHealth struct{ err error }

func (h stubHealth) Ping(context.Context) error { return h.err }

func do(s *Server, method, target, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if secret != "" {
		req.Header.Set("X-Admin-Secret", secret)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func jobStatus(t *testing.T, s *Server) backgroundJob {
	rec := do(s, http.MethodGet, "/api/v1/admin/enrich-grants/status", "s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	var job backgroundJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	return job
}

func TestHealth(t *testing.T) {
	s := NewServer(&stubRunner{}, stubHealth{}, "s3cret")
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health", "").Code)

	s = NewServer(&stubRunner{}, stubHealth{err: errors.New("connection refused")}, "s3cret")
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodGet, "/health", "").Code)
}

func TestAdminAuth(t *testing.T) {
	s := NewServer(&stubRunner{}, nil, "s3cret")
	assert.Equal(t, http.StatusUnauthorized, do(s, http.MethodPost, "/api/v1/admin/enrich-grants", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(s, http.MethodPost, "/api/v1/admin/enrich-grants", "wrong").Code)

	disabled := NewServer(&stubRunner{}, nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, do(disabled, http.MethodPost, "/api/v1/admin/enrich-grants", "anything").Code)
}

func TestEnrichGrants_ValidatesQuery(t *testing.T) {
	s := NewServer(&stubRunner{}, nil, "s3cret")
	for _, q := range []string{"?batch_size=0", "?batch_size=1000", "?id=not-a-uuid", "?dry_run=maybe"} {
		rec := do(s, http.MethodPost, "/api/v1/admin/enrich-grants"+q, "s3cret")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestEnrichGrants_RunsJobAndRejectsOverlap(t *testing.T) {
	runner := &stubRunner{release: make(chan struct{})}
	s := NewServer(runner, nil, "s3cret")
	defer func() { _ = s.Shutdown(context.Background()) }()

	rec := do(s, http.MethodPost, "/api/v1/admin/enrich-grants?dry_run=true&force=1&batch_size=10&id=7b0f7d1e-3c1a-4c41-9d1b-0d2b7d3f2a10", "s3cret")
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, "running", jobStatus(t, s).Status)
	assert.Equal(t, http.StatusConflict, do(s, http.MethodPost, "/api/v1/admin/enrich-grants", "s3cret").Code)

	close(runner.release)
	require.Eventually(t, func() bool { return jobStatus(t, s).Status == "completed" }, 2*time.Second, 10*time.Millisecond)

	job := jobStatus(t, s)
	require.NotNil(t, job.Result)
	assert.Equal(t, 1, job.Result.Enriched)
	assert.True(t, job.Result.DryRun)

	calls := runner.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, enrich.RunOptions{DryRun: true, Force: true, BatchSize: 10, GrantID: "7b0f7d1e-3c1a-4c41-9d1b-0d2b7d3f2a10", Trigger: enrich.TriggerAPI}, calls[0])
}

func TestStartJob_RecordsFailure(t *testing.T) {
	s := NewServer(&stubRunner{err: errors.New("failed to select grants: db down")}, nil, "s3cret")
	_, err := s.StartJob(enrich.RunOptions{Trigger: enrich.TriggerSchedule})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return jobStatus(t, s).Status == "failed" }, 2*time.Second, 10*time.Millisecond)
	job := jobStatus(t, s)
	assert.Equal(t, enrich.TriggerSchedule, job.Trigger)
	assert.Contains(t, job.Error, "db down")
}

func TestJobStatus_NoJob(t *testing.T) {
	s := NewServer(&stubRunner{}, nil, "s3cret")
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/v1/admin/enrich-grants/status", "s3cret").Code)
}
