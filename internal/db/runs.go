package db

import (
	"context"
	"fmt"

	"github.com/act/grant-enrichment/internal/models"
)

func (s *Store) StartRun(ctx context.Context, run *models.EnrichmentRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO enrichment_runs (run_id, trigger, dry_run, status, total, started_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6)
	`, run.RunID, run.Trigger, run.DryRun, run.Status, run.Total, run.StartedAt)
	if err != nil {
		return fmt.Errorf("insert enrichment run failed: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, run *models.EnrichmentRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE enrichment_runs
		SET status = $2, total = $3, enriched = $4, failed = $5, skipped = $6, finished_at = $7
		WHERE run_id = $1::uuid
	`, run.RunID, run.Status, run.Total, run.Enriched, run.Failed, run.Skipped, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("update enrichment run failed: %w", err)
	}
	return nil
}

func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]models.EnrichmentRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id::text, trigger, dry_run, status, total, enriched, failed, skipped, started_at, finished_at
		FROM enrichment_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs failed: %w", err)
	}
	defer rows.Close()

	var runs []models.EnrichmentRun
	for rows.Next() {
		var r models.EnrichmentRun
		if err := rows.Scan(&r.RunID, &r.Trigger, &r.DryRun, &r.Status, &r.Total, &r.Enriched, &r.Failed, &r.Skipped, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run failed: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
