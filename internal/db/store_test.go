package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/act/grant-enrichment/internal/enrich"
	"github.com/act/grant-enrichment/internal/models"
)

func TestBuildGrantSelectQuery(t *testing.T) {
	t.Run("default excludes enriched grants", func(t *testing.T) {
		query, args := buildGrantSelectQuery(enrich.GrantFilter{Limit: 5})
		assert.Contains(t, query, "url IS NOT NULL")
		assert.Contains(t, query, "enriched_at IS NULL")
		assert.True(t, strings.HasSuffix(query, "LIMIT $1"))
		assert.Equal(t, []interface{}{5}, args)
	})

	t.Run("force includes enriched grants", func(t *testing.T) {
		query, args := buildGrantSelectQuery(enrich.GrantFilter{Force: true, Limit: 20})
		assert.NotContains(t, query, "enriched_at IS NULL")
		assert.Equal(t, []interface{}{20}, args)
	})

	t.Run("id overrides the enriched filter", func(t *testing.T) {
		query, args := buildGrantSelectQuery(enrich.GrantFilter{ID: "7b0f7d1e-3c1a-4c41-9d1b-0d2b7d3f2a10"})
		assert.Contains(t, query, "id = $1::uuid")
		assert.NotContains(t, query, "enriched_at IS NULL")
		assert.Equal(t, []interface{}{"7b0f7d1e-3c1a-4c41-9d1b-0d2b7d3f2a10", enrich.DefaultBatchSize}, args)
	})
}

func TestBuildGrantUpdate_OnlyWritesPresentCuratedFields(t *testing.T) {
	enrichedAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	patch := models.GrantPatch{
		AssessmentCriteria: []models.AssessmentCriterion{{Name: "Impact", WeightPct: 100}},
		Readiness:          models.ReadinessAssessment{ReadinessPct: 50},
		EnrichedAt:         enrichedAt,
		EnrichmentSource:   models.EnrichmentSourceLLM,
	}

	query, args, err := buildGrantUpdate("g1", patch)
	require.NoError(t, err)

	assert.Contains(t, query, "assessment_criteria = $1::jsonb")
	assert.Contains(t, query, "act_readiness = $2::jsonb")
	assert.Contains(t, query, "aligned_projects = $3")
	assert.Contains(t, query, "enriched_at = $4")
	assert.Contains(t, query, "enrichment_source = $5")
	assert.Contains(t, query, "WHERE id = $6::uuid")
	for _, col := range []string{"eligibility_criteria", "timeline_stages", "funder_info", "grant_structure", "requirements_summary", "closes_at"} {
		assert.NotContains(t, query, col)
	}

	require.Len(t, args, 6)
	assert.JSONEq(t, `[{"name":"Impact","description":"","weight_pct":100,"sort_order":0}]`, args[0].(string))
	assert.Equal(t, []string{}, args[2])
	assert.Equal(t, "g1", args[5])
}

// grantRow fakes a pgx row scan for grantCols, filling the curated JSON
// columns by position.
func grantRow(eligibility, assessment, timeline, funder, structure []byte) func(dest ...interface{}) error {
	return func(dest ...interface{}) error {
		url := "https://example.org/grant"
		*dest[0].(*string) = "5b0c1a52-6c53-4d43-9d1b-0a3c6c2c6d11"
		*dest[1].(*string) = "Curated grant"
		*dest[2].(**string) = &url
		*dest[10].(*string) = models.GrantStatusNotApplied
		*dest[12].(*[]byte) = eligibility
		*dest[13].(*[]byte) = assessment
		*dest[14].(*[]byte) = timeline
		*dest[15].(*[]byte) = funder
		*dest[16].(*[]byte) = structure
		*dest[21].(*time.Time) = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
		return nil
	}
}

func extractedForMerge() *models.ExtractedGrant {
	total := 80000.0
	return &models.ExtractedGrant{
		EligibilityCriteria: []models.EligibilityCriterion{{Criterion: "Registered charity", Category: "legal"}},
		AssessmentCriteria:  []models.AssessmentCriterion{{Name: "Impact", WeightPct: 100, SortOrder: 1}},
		Timeline:            []models.TimelineStage{{Stage: "Applications close", Date: "2026-06-30", SortOrder: 1}},
		FunderInfo:          &models.FunderInfo{OrgName: "Model Foundation"},
		GrantStructure:      &models.GrantStructure{TotalAmount: &total},
	}
}

func TestScanMergeUpdate_KeepsStoredCuratedColumns(t *testing.T) {
	g, err := scanGrant(grantRow(
		[]byte(`[]`),
		nil,
		[]byte(`null`),
		[]byte(`{"name":"Curated Foundation"}`),
		[]byte(`"not an object"`),
	))
	require.NoError(t, err)
	assert.True(t, g.Stored.Eligibility)
	assert.True(t, g.Stored.Funder)
	assert.True(t, g.Stored.Structure)
	assert.False(t, g.Stored.Assessment)
	assert.False(t, g.Stored.Timeline)

	patch := enrich.MergeIfAbsent(g, extractedForMerge(), models.ReadinessAssessment{}, time.Now().UTC())
	query, _, err := buildGrantUpdate(g.ID, patch)
	require.NoError(t, err)

	assert.NotContains(t, query, "eligibility_criteria =")
	assert.NotContains(t, query, "funder_info =")
	assert.NotContains(t, query, "grant_structure =")
	assert.Contains(t, query, "assessment_criteria =")
	assert.Contains(t, query, "timeline_stages =")
}

func TestScanGrant_EmptyStringColumnIsFillable(t *testing.T) {
	g, err := scanGrant(grantRow(nil, nil, nil, []byte(`""`), nil))
	require.NoError(t, err)
	assert.False(t, g.Stored.Funder)

	patch := enrich.MergeIfAbsent(g, extractedForMerge(), models.ReadinessAssessment{}, time.Now().UTC())
	require.NotNil(t, patch.FunderInfo)
	assert.Equal(t, "Model Foundation", patch.FunderInfo.OrgName)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% match\_here`, escapeLike("100% match_here"))
	assert.Equal(t, "plain", escapeLike("plain"))
}

// TestStore_Integration runs against a real database when DATABASE_URL is reachable.
func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Connect(ctx, PoolConfig{URL: dsn})
	if err != nil {
		t.Skipf("database unreachable: %v", err)
	}
	defer pool.Close()
	require.NoError(t, ApplyMigrations(ctx, pool))

	store := NewStore(pool)
	var id string
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO grant_opportunities (name, url, fit_score) VALUES ('Integration test grant', 'https://example.org/grant', 88)
		RETURNING id::text
	`).Scan(&id))
	defer func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM grant_application_requirements WHERE application_id IN (SELECT id FROM grant_applications WHERE opportunity_id = $1::uuid)", id)
		_, _ = pool.Exec(context.Background(), "DELETE FROM grant_applications WHERE opportunity_id = $1::uuid", id)
		_, _ = pool.Exec(context.Background(), "DELETE FROM grant_opportunities WHERE id = $1::uuid", id)
	}()

	grants, err := store.SelectGrantsForEnrichment(ctx, enrich.GrantFilter{ID: id})
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, 88, *grants[0].FitScore)

	patch := enrich.MergeIfAbsent(grants[0], &models.ExtractedGrant{
		EligibilityCriteria: []models.EligibilityCriterion{{Criterion: "Charity", Category: "legal"}},
		ApplicationDeadline: "2030-01-31",
	}, models.ReadinessAssessment{ReadinessPct: 75}, time.Now().UTC())
	require.NoError(t, store.UpdateGrantEnrichment(ctx, id, patch))

	got, err := store.GetGrant(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.EligibilityCriteria, 1)
	assert.Equal(t, 75, got.Readiness.ReadinessPct)
	assert.Equal(t, "2030-01-31", got.CloseDate.UTC().Format("2006-01-02"))

	existing, err := store.FindApplicationByOpportunity(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, existing)

	app := enrich.BuildApplication(*got, *got.Readiness, nil, 88)
	require.NoError(t, store.CreateApplication(ctx, app))
	require.NoError(t, store.CreateRequirements(ctx, enrich.BuildRequirements(app.ID, &models.ExtractedGrant{EligibilityCriteria: got.EligibilityCriteria})))

	existing, err = store.FindApplicationByOpportunity(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, app.ID, existing.ID)

	advanced, err := store.AdvanceApplicationStatus(ctx, id, models.GrantStatusNotApplied, models.GrantStatusReviewing)
	require.NoError(t, err)
	assert.True(t, advanced)
	advanced, err = store.AdvanceApplicationStatus(ctx, id, models.GrantStatusNotApplied, models.GrantStatusReviewing)
	require.NoError(t, err)
	assert.False(t, advanced)

	run := &models.EnrichmentRun{RunID: uuid.NewString(), Trigger: "test", Status: "running", Total: 1, StartedAt: time.Now().UTC()}
	require.NoError(t, store.StartRun(ctx, run))
	defer func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM enrichment_runs WHERE run_id = $1::uuid", run.RunID)
	}()
	finished := time.Now().UTC()
	run.Status, run.Enriched, run.FinishedAt = "completed", 1, &finished
	require.NoError(t, store.FinishRun(ctx, run))

	runs, err := store.ListRecentRuns(ctx, 50)
	require.NoError(t, err)
	var found bool
	for _, r := range runs {
		if r.RunID == run.RunID {
			found = true
			assert.Equal(t, "completed", r.Status)
			assert.Equal(t, 1, r.Enriched)
			assert.NotNil(t, r.FinishedAt)
		}
	}
	assert.True(t, found)
}
