package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/act/grant-enrichment/internal/api"
	"github.com/act/grant-enrichment/internal/app"
	"github.com/act/grant-enrichment/internal/config"
	"github.com/act/grant-enrichment/internal/db"
	"github.com/act/grant-enrichment/internal/enrich"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	config.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	pool, err := db.Connect(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.ApplyMigrations(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
	}

	store := db.NewStore(pool)
	srv := api.NewServer(app.NewPipeline(cfg, store), store, cfg.AdminSecret)

	var scheduler *cron.Cron
	if cfg.Schedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Schedule, func() {
			jobID, err := srv.StartJob(enrich.RunOptions{BatchSize: cfg.BatchSize, Trigger: enrich.TriggerSchedule})
			if errors.Is(err, api.ErrJobRunning) {
				log.Info().Str("component", "scheduler").Msg("enrichment job already running, skipping tick")
				return
			}
			if err != nil {
				log.Error().Str("component", "scheduler").Err(err).Msg("failed to start scheduled enrichment")
				return
			}
			log.Info().Str("component", "scheduler").Str("job_id", jobID).Msg("scheduled enrichment started")
		})
		if err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Schedule).Msg("Invalid ENRICH_SCHEDULE")
		}
		scheduler.Start()
		log.Info().Str("schedule", cfg.Schedule).Msg("Scheduled enrichment enabled")
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := srv.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown incomplete")
	}
}
