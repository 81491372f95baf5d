package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/act/grant-enrichment/internal/models"
)

var fixedNow = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func knowledgeFixture() *memoryStore {
	store := newMemoryStore()
	store.projects = []models.Project{{Code: "ACT-JH", Name: "JusticeHub"}}
	store.assets = []models.OrgAsset{
		{Name: "Public liability insurance", IsCurrent: true, ExpiresAt: timePtr(fixedNow.AddDate(0, 6, 0))},
		{Name: "ACNC registration", IsCurrent: true},
		{Name: "Audited financial statements FY24", IsCurrent: true, ExpiresAt: timePtr(fixedNow.AddDate(0, 0, -1))},
		{Name: "Child safeguarding policy", IsCurrent: false},
	}
	store.content = []models.ContentEntry{
		{Title: "Youth justice on Country", Type: "story", Themes: []string{"Justice", "First Nations"}},
		{Title: "Annual impact report", Type: "report", Themes: []string{"impact"}},
		{Title: "Justice reinvestment case study", Type: "case_study", Themes: []string{"justice", "youth", "community"}},
	}
	store.knowledge = map[string]int{"youth justice fund": 2, "justice": 5, "youth": 1}
	return store
}

func TestBridgeAssess_AllSteps(t *testing.T) {
	store := knowledgeFixture()
	aligner := &fakeAligner{result: []models.AlignedProject{{ProjectCode: "ACT-JH", Score: 85, Reason: "Youth justice"}}}
	b := NewBridge(store, aligner)
	b.Now = func() time.Time { return fixedNow }

	grant := models.GrantOpportunity{ID: "g1", Name: "Youth Justice Fund", Categories: []string{"Justice", "Youth"}, FocusAreas: []string{"community"}}
	extracted := &models.ExtractedGrant{EligibilityCriteria: []models.EligibilityCriterion{
		{Criterion: "Audited accounts", Category: "financial"},
		{Criterion: "Child safe", Category: "organisational"},
	}}

	got := b.Assess(context.Background(), grant, extracted)

	assert.Equal(t, 50, got.ReadinessPct)
	assert.Equal(t, []string{"Public liability insurance", "ACNC registration"}, got.Assets.Ready)
	assert.Equal(t, []string{"Audited financial statements FY24", "Child safeguarding policy"}, got.Assets.Missing)
	require.Len(t, got.AlignedProjects, 1)
	assert.Equal(t, 8, got.KnowledgeHits)
	assert.Equal(t, []string{"Need current financial statements", "Need a current child safeguarding policy"}, got.Gaps)

	require.Len(t, got.MatchedStories, 2)
	assert.Equal(t, "Justice reinvestment case study", got.MatchedStories[0].Title)
	assert.InDelta(t, 0.75, got.MatchedStories[0].Relevance, 1e-9)
	assert.Equal(t, "Youth justice on Country", got.MatchedStories[1].Title)
	assert.InDelta(t, 0.5, got.MatchedStories[1].Relevance, 1e-9)
}

func TestBridgeAssess_AlignmentFailureStillReturnsAssessment(t *testing.T) {
	store := knowledgeFixture()
	b := NewBridge(store, &fakeAligner{err: errors.New("llm timeout")})
	b.Now = func() time.Time { return fixedNow }

	got := b.Assess(context.Background(), models.GrantOpportunity{Name: "Youth Justice Fund", Categories: []string{"justice"}}, &models.ExtractedGrant{
		EligibilityCriteria: []models.EligibilityCriterion{{Criterion: "Accounts", Category: "financial"}},
	})

	assert.NotNil(t, got.AlignedProjects)
	assert.Empty(t, got.AlignedProjects)
	assert.Equal(t, 50, got.ReadinessPct)
	assert.NotEmpty(t, got.MatchedStories)
	assert.Equal(t, 7, got.KnowledgeHits)
	assert.Equal(t, []string{"Need current financial statements"}, got.Gaps)
}

func TestBridgeAssess_DegradesEachStep(t *testing.T) {
	store := knowledgeFixture()
	store.assetsErr = errors.New("relation org_assets does not exist")
	store.contentErr = errors.New("relation content_library does not exist")
	store.knowledgeErrOn = "justice"

	b := NewBridge(store, nil)
	got := b.Assess(context.Background(), models.GrantOpportunity{Name: "Youth Justice Fund", Categories: []string{"justice", "youth"}}, nil)

	assert.Equal(t, 0, got.ReadinessPct)
	assert.Empty(t, got.Assets.Ready)
	assert.Empty(t, got.Assets.Missing)
	assert.Empty(t, got.MatchedStories)
	assert.Empty(t, got.AlignedProjects)
	assert.Empty(t, got.Gaps)
	// The name lookup succeeded before "justice" failed; "youth" is never tried.
	assert.Equal(t, 2, got.KnowledgeHits)
}

func TestReadinessPct_Bounds(t *testing.T) {
	assert.Equal(t, 0, ReadinessPct(0, 0))
	assert.Equal(t, 100, ReadinessPct(3, 0))
	assert.Equal(t, 0, ReadinessPct(0, 4))
	assert.Equal(t, 67, ReadinessPct(2, 1))
	assert.Equal(t, 33, ReadinessPct(1, 2))

	for ready := 0; ready <= 20; ready++ {
		for missing := 0; missing <= 20; missing++ {
			pct := ReadinessPct(ready, missing)
			assert.GreaterOrEqual(t, pct, 0)
			assert.LessOrEqual(t, pct, 100)
		}
	}
}

func TestGrantKeywords_Dedupes(t *testing.T) {
	got := GrantKeywords(models.GrantOpportunity{Name: "Arts Fund", Categories: []string{"Arts", " arts "}, FocusAreas: []string{"Regional", ""}})
	assert.Equal(t, []string{"arts", "regional", "arts fund"}, got)
}

func TestRankStories_TopFive(t *testing.T) {
	var entries []models.ContentEntry
	for i := 0; i < 7; i++ {
		entries = append(entries, models.ContentEntry{Title: "community story", Type: "story"})
	}
	entries = append(entries, models.ContentEntry{Title: "unrelated"})

	got := RankStories(entries, []string{"community", "arts"})
	assert.Len(t, got, MaxMatchedStories)
	for _, s := range got {
		assert.Greater(t, s.Relevance, 0.0)
	}
}

func TestParseGapRules(t *testing.T) {
	rules, err := ParseGapRules(gapRulesYAML)
	require.NoError(t, err)
	assert.NotEmpty(t, rules)

	_, err = ParseGapRules([]byte("- gap: Missing categories\n  asset_keywords: [x]\n"))
	assert.Error(t, err)
}

func TestInferGaps(t *testing.T) {
	eligibility := []models.EligibilityCriterion{{Category: "Financial"}}

	assert.Equal(t, []string{"Need current financial statements"}, InferGaps(defaultGapRules, eligibility, []string{"Financial statements 2025"}))
	assert.Empty(t, InferGaps(defaultGapRules, eligibility, []string{"Insurance certificate"}))
	assert.Empty(t, InferGaps(defaultGapRules, nil, []string{"Financial statements"}))
}
