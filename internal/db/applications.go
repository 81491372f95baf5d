package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/act/grant-enrichment/internal/models"
)

func (s *Store) FindApplicationByOpportunity(ctx context.Context, opportunityID string) (*models.GrantApplication, error) {
	var a models.GrantApplication
	var notes *string
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, opportunity_id::text, application_name, amount_requested::float8, status,
			project_code, auto_created, notes, created_at
		FROM grant_applications
		WHERE opportunity_id = $1::uuid
		ORDER BY created_at
		LIMIT 1
	`, opportunityID).Scan(&a.ID, &a.OpportunityID, &a.Name, &a.AmountRequested, &a.Status,
		&a.ProjectCode, &a.AutoCreated, &notes, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find application failed: %w", err)
	}
	if notes != nil {
		a.Notes = *notes
	}
	return &a, nil
}

// CreateApplication inserts app and fills in its generated id and timestamp.
func (s *Store) CreateApplication(ctx context.Context, app *models.GrantApplication) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO grant_applications
			(opportunity_id, application_name, amount_requested, status, project_code, auto_created, notes)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
		RETURNING id::text, created_at
	`, app.OpportunityID, app.Name, app.AmountRequested, app.Status, app.ProjectCode, app.AutoCreated, app.Notes,
	).Scan(&app.ID, &app.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert application failed: %w", err)
	}
	return nil
}

// CreateRequirements inserts all rows in one batch; any failure aborts the batch.
func (s *Store) CreateRequirements(ctx context.Context, reqs []models.GrantApplicationRequirement) error {
	if len(reqs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range reqs {
		batch.Queue(`
			INSERT INTO grant_application_requirements (application_id, requirement_name, asset_type, status, notes)
			VALUES ($1::uuid, $2, $3, $4, $5)
		`, r.ApplicationID, r.RequirementName, r.AssetType, r.Status, r.Notes)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin requirements insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert requirements failed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit requirements failed: %w", err)
	}
	return nil
}
