package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/act/grant-enrichment/internal/enrich"
)

// ErrJobRunning is returned when an enrichment job is already in progress.
var ErrJobRunning = errors.New("an enrichment job is already running")

const maxAPIBatchSize = 100

type Runner interface {
	Run(ctx context.Context, opts enrich.RunOptions) (enrich.Summary, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Echo   *echo.Echo
	Runner Runner
	Health HealthChecker

	adminSecret string
	baseCtx     context.Context
	cancelJobs  context.CancelFunc

	// Background job tracking: the running job, or the last finished one.
	jobMu sync.Mutex
	job   *backgroundJob
	wg    sync.WaitGroup
}

type jobResult struct {
	RunID    string   `json:"run_id"`
	Total    int      `json:"total"`
	Enriched int      `json:"enriched"`
	Failed   int      `json:"failed"`
	Skipped  int      `json:"skipped"`
	DryRun   bool     `json:"dry_run"`
	Created  []string `json:"applications_created,omitempty"`
}

type backgroundJob struct {
	ID        string     `json:"id"`
	Trigger   string     `json:"trigger"`
	Status    string     `json:"status"` // running, completed, failed
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Result    *jobResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func NewServer(runner Runner, health HealthChecker, adminSecret string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().Str("component", "api").Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Echo:        e,
		Runner:      runner,
		Health:      health,
		adminSecret: strings.TrimSpace(adminSecret),
		baseCtx:     ctx,
		cancelJobs:  cancel,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	admin := s.Echo.Group("/api/v1/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/enrich-grants", s.handleEnrichGrants)
	admin.GET("/enrich-grants/status", s.handleJobStatus)
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if err := s.Health.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnrichGrants(c echo.Context) error {
	opts, err := parseRunOptions(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	jobID, err := s.StartJob(opts)
	if errors.Is(err, ErrJobRunning) {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Enrichment job started",
		"job_id":  jobID,
		"poll":    "/api/v1/admin/enrich-grants/status",
	})
}

func parseRunOptions(c echo.Context) (enrich.RunOptions, error) {
	opts := enrich.RunOptions{Trigger: enrich.TriggerAPI}

	for name, dest := range map[string]*bool{"dry_run": &opts.DryRun, "force": &opts.Force} {
		raw := strings.TrimSpace(c.QueryParam(name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid %s: %q", name, raw)
		}
		*dest = v
	}

	if raw := strings.TrimSpace(c.QueryParam("batch_size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAPIBatchSize {
			return opts, fmt.Errorf("batch_size must be between 1 and %d", maxAPIBatchSize)
		}
		opts.BatchSize = n
	}

	if raw := strings.TrimSpace(c.QueryParam("id")); raw != "" {
		if _, err := uuid.Parse(raw); err != nil {
			return opts, fmt.Errorf("invalid id: %q", raw)
		}
		opts.GrantID = raw
	}
	return opts, nil
}

// StartJob launches a background enrichment run unless one is in progress.
func (s *Server) StartJob(opts enrich.RunOptions) (string, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.job != nil && s.job.Status == "running" {
		return "", ErrJobRunning
	}

	job := &backgroundJob{
		ID:        uuid.NewString(),
		Trigger:   opts.Trigger,
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	s.job = job

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		summary, err := s.Runner.Run(s.baseCtx, opts)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		ended := time.Now().UTC()
		job.EndedAt = &ended
		job.Result = &jobResult{
			RunID:    summary.RunID,
			Total:    summary.Total,
			Enriched: summary.Enriched,
			Failed:   summary.Failed,
			Skipped:  summary.Skipped,
			DryRun:   summary.DryRun,
			Created:  summary.CreatedApplications(),
		}
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			log.Error().Str("component", "api").Str("job_id", job.ID).Err(err).Msg("enrichment job failed")
			return
		}
		job.Status = "completed"
		log.Info().Str("component", "api").Str("job_id", job.ID).Int("enriched", summary.Enriched).Msg("enrichment job completed")
	}()

	return job.ID, nil
}

func (s *Server) handleJobStatus(c echo.Context) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.job == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no enrichment job has run"})
	}
	return c.JSON(http.StatusOK, *s.job)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.adminSecret == "" {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Admin API disabled: ADMIN_SECRET not set"})
		}

		provided := c.Request().Header.Get("X-Admin-Secret")
		if provided == "" {
			authHeader := c.Request().Header.Get("Authorization")
			if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
				provided = authHeader[7:]
			}
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminSecret)) == 1 {
			return next(c)
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

// Shutdown stops the HTTP server, cancels any running job and waits for it.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	s.cancelJobs()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}
