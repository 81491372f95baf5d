package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/act/grant-enrichment/internal/app"
	"github.com/act/grant-enrichment/internal/config"
	"github.com/act/grant-enrichment/internal/db"
	"github.com/act/grant-enrichment/internal/enrich"
)

var rootCmd = &cobra.Command{
	Use:   "enrich_grants",
	Short: "Enrich grant opportunities from their web pages",
	Long: `Fetches each selected grant's page, extracts structured requirements,
scores ACT readiness, persists the result and auto-creates draft applications
for strong fits.

Examples:
  enrich_grants                       # next 5 unenriched grants
  enrich_grants --dry-run             # do everything except writes
  enrich_grants --force --batch-size 20
  enrich_grants --id 3f1c...          # one grant, enriched or not`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		grantID, _ := cmd.Flags().GetString("id")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := config.Load()
		if err != nil {
			exitErr(fmt.Errorf("loading config: %w", err))
		}
		config.SetupLogging(cfg.LogLevel, cfg.LogFormat)

		if !validGrantID(grantID) {
			// No grant can match a malformed id; report an empty batch.
			log.Warn().Str("id", grantID).Msg("--id is not a valid uuid, no grants selected")
			report(enrich.Summary{DryRun: dryRun, Trigger: enrich.TriggerCLI}, asJSON)
			return
		}
		if !cmd.Flags().Changed("batch-size") {
			batchSize = cfg.BatchSize
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pool, err := db.Connect(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
		if err != nil {
			exitErr(fmt.Errorf("connecting to database: %w", err))
		}
		defer pool.Close()

		if cfg.AutoMigrate {
			if err := db.ApplyMigrations(ctx, pool); err != nil {
				exitErr(fmt.Errorf("applying migrations: %w", err))
			}
		}

		pipeline := app.NewPipeline(cfg, db.NewStore(pool))
		summary, err := pipeline.Run(ctx, enrich.RunOptions{
			DryRun:    dryRun,
			Force:     force,
			BatchSize: batchSize,
			GrantID:   grantID,
			Trigger:   enrich.TriggerCLI,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			exitErr(err)
		}

		report(summary, asJSON)
		if err != nil {
			log.Warn().Err(err).Msg("run interrupted")
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().Bool("dry-run", false, "Perform every step but skip all writes")
	rootCmd.Flags().BoolP("force", "f", false, "Re-enrich grants that already have an enrichment timestamp")
	rootCmd.Flags().IntP("batch-size", "n", enrich.DefaultBatchSize, "Maximum number of grants to process")
	rootCmd.Flags().String("id", "", "Only enrich the grant with this id")
	rootCmd.Flags().Bool("json", false, "Print the summary as JSON")
}

// validGrantID reports whether raw can select a grant. An empty id means no
// id filter.
func validGrantID(raw string) bool {
	if raw == "" {
		return true
	}
	_, err := uuid.Parse(raw)
	return err == nil
}

func report(s enrich.Summary, asJSON bool) {
	if asJSON {
		printJSON(s)
		return
	}
	printReport(s)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type outcomeRow struct {
	GrantID      string `json:"grant_id"`
	Grant        string `json:"grant"`
	Status       string `json:"status"`
	Stage        string `json:"stage"`
	ReadinessPct int    `json:"readiness_pct"`
	FitScore     int    `json:"fit_score"`
	FitSource    string `json:"fit_source"`
	Application  string `json:"application,omitempty"`
	Error        string `json:"error,omitempty"`
}

func toRow(o enrich.GrantOutcome) outcomeRow {
	row := outcomeRow{
		GrantID:      o.GrantID,
		Grant:        o.GrantName,
		Status:       string(o.Status),
		Stage:        o.Stage,
		ReadinessPct: o.ReadinessPct,
		FitScore:     o.FitScore,
		FitSource:    o.FitSource,
		Application:  applicationLabel(o),
	}
	if o.Err != nil {
		row.Error = o.Err.Error()
	} else if o.CascadeErr != nil {
		row.Error = o.CascadeErr.Error()
	}
	return row
}

func applicationLabel(o enrich.GrantOutcome) string {
	switch {
	case o.WouldCreate:
		return "would create"
	case o.Cascade == nil:
		return ""
	case o.Cascade.Created:
		return "created " + o.Cascade.ApplicationID
	case o.Cascade.AlreadyExisted:
		return "exists"
	}
	return ""
}

func printReport(s enrich.Summary) {
	title := "Grant Enrichment Report"
	if s.DryRun {
		title += " (dry run)"
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Grant", "Status", "Stage", "Ready %", "Fit", "Application", "Error"})
	for _, o := range s.Outcomes {
		r := toRow(o)
		fit := "-"
		if r.FitSource != enrich.FitSourceNone && r.FitSource != "" {
			fit = fmt.Sprintf("%d (%s)", r.FitScore, r.FitSource)
		}
		t.AppendRow(table.Row{truncate(r.Grant, 48), r.Status, r.Stage, r.ReadinessPct, fit, r.Application, truncate(r.Error, 60)})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("total %d", s.Total),
		fmt.Sprintf("enriched %d", s.Enriched),
		fmt.Sprintf("failed %d", s.Failed),
		fmt.Sprintf("skipped %d", s.Skipped),
	})
	t.Render()

	if created := s.CreatedApplications(); len(created) > 0 {
		fmt.Printf("\nApplications created: %d\n", len(created))
		for _, name := range created {
			fmt.Printf("  - %s\n", name)
		}
	}
}

func printJSON(s enrich.Summary) {
	rows := make([]outcomeRow, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		rows = append(rows, toRow(o))
	}
	payload := map[string]interface{}{
		"run_id":               s.RunID,
		"dry_run":              s.DryRun,
		"total":                s.Total,
		"enriched":             s.Enriched,
		"failed":               s.Failed,
		"skipped":              s.Skipped,
		"applications_created": s.CreatedApplications(),
		"outcomes":             rows,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
