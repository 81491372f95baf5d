package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/act/grant-enrichment/internal/ai"
	"github.com/act/grant-enrichment/internal/ingest"
	"github.com/act/grant-enrichment/internal/models"
)

const (
	DefaultBatchSize = 5
	DefaultItemDelay = 2 * time.Second
)

const (
	TriggerCLI      = "cli"
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
)

type RunOptions struct {
	DryRun    bool
	Force     bool
	BatchSize int
	GrantID   string
	Trigger   string
}

// Pipeline drives fetch, extract, bridge, persist and cascade over a batch of
// grants, one grant at a time.
type Pipeline struct {
	Grants    GrantStore
	Fetcher   ingest.PageFetcher
	Extractor Extractor
	Bridge    *Bridge
	Cascade   *Cascade

	// Optional collaborators.
	Embedder   ai.Embedder
	Embeddings EmbeddingStore
	Runs       RunLedger
	Notifier   Notifier

	ItemDelay time.Duration
	Now       func() time.Time
}

// Run processes one batch. Only setup failures are returned as errors;
// per-grant failures end up in the summary.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Trigger == "" {
		opts.Trigger = TriggerCLI
	}
	startedAt := p.now()
	runID := uuid.NewString()

	logger := log.With().Str("component", "orchestrator").Str("run_id", runID).Logger()

	grants, err := p.Grants.SelectGrantsForEnrichment(ctx, GrantFilter{ID: opts.GrantID, Force: opts.Force, Limit: opts.BatchSize})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to select grants: %w", err)
	}
	logger.Info().Int("grants", len(grants)).Bool("dry_run", opts.DryRun).Bool("force", opts.Force).Msg("enrichment run starting")

	run := &models.EnrichmentRun{
		RunID:     runID,
		Trigger:   opts.Trigger,
		DryRun:    opts.DryRun,
		Status:    "running",
		Total:     len(grants),
		StartedAt: startedAt,
	}
	if !opts.DryRun && p.Runs != nil {
		if err := p.Runs.StartRun(ctx, run); err != nil {
			logger.Warn().Err(err).Msg("failed to record run start")
		}
	}

	outcomes := make([]GrantOutcome, 0, len(grants))
	var runErr error
	for i, grant := range grants {
		if i > 0 {
			if err := p.pause(ctx); err != nil {
				runErr = err
				break
			}
		}
		outcomes = append(outcomes, p.ProcessGrant(ctx, grant, opts.DryRun))
	}

	summary := Summarize(outcomes)
	summary.RunID = runID
	summary.Trigger = opts.Trigger
	summary.DryRun = opts.DryRun
	summary.StartedAt = startedAt
	summary.FinishedAt = p.now()

	logger.Info().
		Int("total", summary.Total).
		Int("enriched", summary.Enriched).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Bool("dry_run", opts.DryRun).
		Msg("enrichment run finished")

	if !opts.DryRun {
		p.finishRun(ctx, run, summary, runErr)
		p.notify(ctx, summary)
	}
	return summary, runErr
}

// ProcessGrant runs one grant to a terminal state. It never panics on
// collaborator errors and never returns an error: failures are in the outcome.
func (p *Pipeline) ProcessGrant(ctx context.Context, grant models.GrantOpportunity, dryRun bool) GrantOutcome {
	logger := log.With().Str("component", "orchestrator").Str("grant_id", grant.ID).Str("grant", grant.Name).Logger()
	out := GrantOutcome{GrantID: grant.ID, GrantName: grant.Name}

	text, err := p.Fetcher.FetchGrantPage(ctx, grant.URL)
	if err != nil {
		logger.Error().Err(err).Str("url", grant.URL).Msg("page fetch failed")
		return out.fail(StageFetch, err)
	}

	extracted, err := p.Extractor.ExtractRequirements(ctx, text, grant.Name)
	if err != nil {
		if errors.Is(err, ai.ErrNotGrantPage) {
			logger.Warn().Err(err).Msg("not a grant page, skipping")
			out.Status, out.Stage, out.Err = StatusSkipped, StageExtract, err
			return out
		}
		logger.Error().Err(err).Msg("requirement extraction failed")
		return out.fail(StageExtract, err)
	}

	readiness := p.Bridge.Assess(ctx, grant, extracted)
	patch := MergeIfAbsent(grant, extracted, readiness, p.now().UTC())
	merged := patch.ApplyTo(grant)

	out.ReadinessPct = readiness.ReadinessPct
	out.FitScore, out.FitSource = FitScore(grant, readiness)
	out.CascadeEligible = ShouldCreateApplication(out.FitScore, merged.CloseDate, p.now())
	logReadiness(logger.Info(), readiness).Int("fit_score", out.FitScore).Str("fit_source", out.FitSource).Msg("readiness assessed")

	if dryRun {
		out.Status, out.Stage = StatusEnriched, StageDone
		if !out.CascadeEligible {
			return out
		}
		if p.Cascade == nil {
			out.WouldCreate = true
			return out
		}
		res, err := p.Cascade.Preview(ctx, merged)
		switch {
		case err != nil:
			logger.Error().Err(err).Msg("application lookup failed")
			out.CascadeErr = err
		case res.AlreadyExisted:
			out.Cascade = &res
		default:
			out.WouldCreate = true
		}
		return out
	}

	if err := p.Grants.UpdateGrantEnrichment(ctx, grant.ID, patch); err != nil {
		logger.Error().Err(err).Msg("failed to persist enrichment")
		return out.fail(StagePersist, err)
	}
	out.Status, out.Stage = StatusEnriched, StageDone

	p.storeEmbedding(ctx, logger, merged, extracted)

	if out.CascadeEligible && p.Cascade != nil {
		res, err := p.Cascade.MaybeCreateApplication(ctx, merged, readiness, extracted, out.FitScore)
		if err != nil {
			logger.Error().Err(err).Msg("application cascade failed")
			out.CascadeErr = err
		} else {
			out.Cascade = &res
		}
	}
	return out
}

func (o GrantOutcome) fail(stage string, err error) GrantOutcome {
	o.Status, o.Stage, o.Err = StatusFailed, stage, err
	return o
}

func (p *Pipeline) storeEmbedding(ctx context.Context, logger zerolog.Logger, grant models.GrantOpportunity, extracted *models.ExtractedGrant) {
	if p.Embedder == nil || p.Embeddings == nil {
		return
	}
	vec, err := p.Embedder.GenerateEmbedding(ctx, ai.GrantSummary(grant, extracted))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to embed grant summary")
		return
	}
	if err := p.Embeddings.UpdateGrantEmbedding(ctx, grant.ID, vec); err != nil {
		logger.Warn().Err(err).Msg("failed to store grant embedding")
	}
}

func (p *Pipeline) finishRun(ctx context.Context, run *models.EnrichmentRun, s Summary, runErr error) {
	if p.Runs == nil {
		return
	}
	run.Enriched, run.Failed, run.Skipped = s.Enriched, s.Failed, s.Skipped
	run.Status = "completed"
	if runErr != nil {
		run.Status = "cancelled"
	}
	finished := s.FinishedAt
	run.FinishedAt = &finished

	// The run context may already be cancelled; the ledger row should still close.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.Runs.FinishRun(writeCtx, run); err != nil {
		log.Warn().Str("component", "orchestrator").Str("run_id", run.RunID).Err(err).Msg("failed to record run finish")
	}
}

func (p *Pipeline) notify(ctx context.Context, s Summary) {
	if p.Notifier == nil || s.Enriched+s.Failed == 0 {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := p.Notifier.NotifyRun(sendCtx, s); err != nil {
		log.Warn().Str("component", "orchestrator").Str("run_id", s.RunID).Err(err).Msg("failed to send run notification")
	}
}

func (p *Pipeline) pause(ctx context.Context) error {
	if p.ItemDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.ItemDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}
