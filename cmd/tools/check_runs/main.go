package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/act/grant-enrichment/internal/config"
	"github.com/act/grant-enrichment/internal/db"
)

func main() {
	limit := flag.Int("limit", 10, "Number of runs to show")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		exitErr(err)
	}
	config.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	pool, err := db.Connect(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		exitErr(err)
	}
	defer pool.Close()

	runs, err := db.NewStore(pool).ListRecentRuns(ctx, *limit)
	if err != nil {
		exitErr(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Trigger", "Status", "Total", "Enriched", "Failed", "Skipped", "Duration", "Started At"})

	for _, r := range runs {
		duration := "Running..."
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{r.RunID[:8], r.Trigger, r.Status, r.Total, r.Enriched, r.Failed, r.Skipped, duration, r.StartedAt.Local().Format("2006-01-02 15:04:05")})
	}
	t.Render()
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
