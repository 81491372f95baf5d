package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/act/grant-enrichment/internal/enrich"
	"github.com/act/grant-enrichment/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks the pool can still reach the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// grantCols is the column list shared by every grant query.
const grantCols = `id::text, name, url, description, categories, focus_areas,
	min_grant_amount::float8, max_grant_amount::float8, closes_at, fit_score, application_status,
	requirements_summary, eligibility_criteria, assessment_criteria, timeline_stages,
	funder_info, grant_structure, act_readiness, enriched_at, enrichment_source, aligned_projects, created_at`

func scanGrant(scan func(dest ...interface{}) error) (models.GrantOpportunity, error) {
	var g models.GrantOpportunity
	var url, description, requirementsSummary, enrichmentSource *string
	var eligibilityRaw, assessmentRaw, timelineRaw, funderRaw, structureRaw, readinessRaw []byte

	err := scan(
		&g.ID, &g.Name, &url, &description, &g.Categories, &g.FocusAreas,
		&g.AmountMin, &g.AmountMax, &g.CloseDate, &g.FitScore, &g.ApplicationStatus,
		&requirementsSummary, &eligibilityRaw, &assessmentRaw, &timelineRaw,
		&funderRaw, &structureRaw, &readinessRaw, &g.EnrichedAt, &enrichmentSource, &g.AlignedProjects, &g.CreatedAt,
	)
	if err != nil {
		return g, err
	}

	if url != nil {
		g.URL = *url
	}
	if description != nil {
		g.Description = *description
	}
	if requirementsSummary != nil {
		g.RequirementsSummary = *requirementsSummary
	}
	if enrichmentSource != nil {
		g.EnrichmentSource = *enrichmentSource
	}

	// A curated column that does not decode still counts as stored, so the
	// merge never overwrites it; only the typed view is lost.
	g.Stored = models.StoredFields{
		Eligibility: decodeJSON(eligibilityRaw, &g.EligibilityCriteria),
		Assessment:  decodeJSON(assessmentRaw, &g.AssessmentCriteria),
		Timeline:    decodeJSON(timelineRaw, &g.Timeline),
		Funder:      decodeJSON(funderRaw, &g.FunderInfo),
		Structure:   decodeJSON(structureRaw, &g.GrantStructure),
	}
	decodeJSON(readinessRaw, &g.Readiness)

	return g, nil
}

// decodeJSON fills dest on a best-effort basis and reports whether the column
// held a value at all (not NULL, JSON null or "").
func decodeJSON(raw []byte, dest interface{}) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", `""`:
		return false
	}
	_ = json.Unmarshal(raw, dest)
	return true
}

// buildGrantSelectQuery selects grants that have a URL and, unless forced or
// narrowed to one id, have never been enriched. Highest fit first.
func buildGrantSelectQuery(f enrich.GrantFilter) (string, []interface{}) {
	where := "WHERE url IS NOT NULL AND url <> ''"
	var args []interface{}
	argIdx := 1

	if f.ID != "" {
		where += fmt.Sprintf(" AND id = $%d::uuid", argIdx)
		args = append(args, f.ID)
		argIdx++
	} else if !f.Force {
		where += " AND enriched_at IS NULL"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = enrich.DefaultBatchSize
	}

	query := fmt.Sprintf("SELECT %s FROM grant_opportunities %s ORDER BY fit_score DESC NULLS LAST, created_at DESC LIMIT $%d", grantCols, where, argIdx)
	args = append(args, limit)
	return query, args
}

func (s *Store) SelectGrantsForEnrichment(ctx context.Context, f enrich.GrantFilter) ([]models.GrantOpportunity, error) {
	query, args := buildGrantSelectQuery(f)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("grant selection failed: %w", err)
	}
	defer rows.Close()

	var grants []models.GrantOpportunity
	for rows.Next() {
		g, err := scanGrant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan grant failed: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *Store) GetGrant(ctx context.Context, id string) (*models.GrantOpportunity, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM grant_opportunities WHERE id = $1::uuid", grantCols), id)
	g, err := scanGrant(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get grant failed: %w", err)
	}
	return &g, nil
}

// buildGrantUpdate turns a patch into a single UPDATE. Curated columns only
// appear when the patch carries them.
func buildGrantUpdate(id string, p models.GrantPatch) (string, []interface{}, error) {
	var sets []string
	var args []interface{}
	add := func(expr string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	addJSON := func(col string, v interface{}) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", col, err)
		}
		add(col+" = $%d::jsonb", string(b))
		return nil
	}

	if p.RequirementsSummary != nil {
		add("requirements_summary = $%d", *p.RequirementsSummary)
	}
	if p.EligibilityCriteria != nil {
		if err := addJSON("eligibility_criteria", p.EligibilityCriteria); err != nil {
			return "", nil, err
		}
	}
	if p.AssessmentCriteria != nil {
		if err := addJSON("assessment_criteria", p.AssessmentCriteria); err != nil {
			return "", nil, err
		}
	}
	if p.Timeline != nil {
		if err := addJSON("timeline_stages", p.Timeline); err != nil {
			return "", nil, err
		}
	}
	if p.FunderInfo != nil {
		if err := addJSON("funder_info", p.FunderInfo); err != nil {
			return "", nil, err
		}
	}
	if p.GrantStructure != nil {
		if err := addJSON("grant_structure", p.GrantStructure); err != nil {
			return "", nil, err
		}
	}
	if p.CloseDate != nil {
		add("closes_at = $%d", *p.CloseDate)
	}

	if err := addJSON("act_readiness", p.Readiness); err != nil {
		return "", nil, err
	}
	aligned := p.AlignedProjects
	if aligned == nil {
		aligned = []string{}
	}
	add("aligned_projects = $%d", aligned)
	add("enriched_at = $%d", p.EnrichedAt)
	add("enrichment_source = $%d", p.EnrichmentSource)
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE grant_opportunities SET %s WHERE id = $%d::uuid", strings.Join(sets, ", "), len(args))
	return query, args, nil
}

func (s *Store) UpdateGrantEnrichment(ctx context.Context, id string, patch models.GrantPatch) error {
	query, args, err := buildGrantUpdate(id, patch)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update grant %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update grant %s: no such grant", id)
	}
	return nil
}

func (s *Store) AdvanceApplicationStatus(ctx context.Context, id, from, to string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE grant_opportunities
		SET application_status = $3, updated_at = NOW()
		WHERE id = $1::uuid AND application_status = $2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("advance status failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) UpdateGrantEmbedding(ctx context.Context, id string, embedding []float32) error {
	_, err := s.pool.Exec(ctx, "UPDATE grant_opportunities SET embedding = $1 WHERE id = $2::uuid", pgvector.NewVector(embedding), id)
	if err != nil {
		return fmt.Errorf("update embedding failed: %w", err)
	}
	return nil
}
