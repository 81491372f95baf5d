package enrich

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/act/grant-enrichment/internal/ingest"
	"github.com/act/grant-enrichment/internal/models"
)

var deadlineStageRegex = regexp.MustCompile(`(?i)close|deadline|due|submit`)

// MergeIfAbsent builds the write for one enrichment pass. Curated fields are
// only filled when the existing column is null or an empty string, even if
// its stored value could not be decoded; readiness, aligned projects and the
// enrichment stamp are always replaced.
func MergeIfAbsent(existing models.GrantOpportunity, extracted *models.ExtractedGrant, readiness models.ReadinessAssessment, now time.Time) models.GrantPatch {
	patch := models.GrantPatch{
		Readiness:        readiness,
		AlignedProjects:  readiness.ProjectCodes(),
		EnrichedAt:       now,
		EnrichmentSource: models.EnrichmentSourceLLM,
	}
	if patch.AlignedProjects == nil {
		patch.AlignedProjects = []string{}
	}
	if extracted == nil {
		return patch
	}

	if strings.TrimSpace(existing.RequirementsSummary) == "" && extracted.RequirementsSummary != "" {
		summary := extracted.RequirementsSummary
		patch.RequirementsSummary = &summary
	}
	if !existing.HasEligibility() && len(extracted.EligibilityCriteria) > 0 {
		patch.EligibilityCriteria = extracted.EligibilityCriteria
	}
	if !existing.HasAssessment() && len(extracted.AssessmentCriteria) > 0 {
		patch.AssessmentCriteria = extracted.AssessmentCriteria
	}
	if !existing.HasTimeline() && len(extracted.Timeline) > 0 {
		patch.Timeline = extracted.Timeline
	}
	if !existing.HasFunderInfo() && !extracted.FunderInfo.IsEmpty() {
		patch.FunderInfo = extracted.FunderInfo
	}
	if !existing.HasGrantStructure() && !extracted.GrantStructure.IsEmpty() {
		patch.GrantStructure = extracted.GrantStructure
	}
	if existing.CloseDate == nil {
		if deadline, ok := DeadlineFromExtraction(extracted); ok {
			patch.CloseDate = &deadline
		}
	}
	return patch
}

// DeadlineFromExtraction prefers application_deadline, then the first timeline
// stage (in sort order) whose label looks like a closing date and whose date
// starts with YYYY-MM-DD.
func DeadlineFromExtraction(extracted *models.ExtractedGrant) (time.Time, bool) {
	if extracted == nil {
		return time.Time{}, false
	}
	if t, ok := ingest.ParseDeadline(extracted.ApplicationDeadline); ok {
		return t, true
	}

	stages := make([]models.TimelineStage, len(extracted.Timeline))
	copy(stages, extracted.Timeline)
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].SortOrder < stages[j].SortOrder })

	for _, s := range stages {
		if !deadlineStageRegex.MatchString(s.Stage) {
			continue
		}
		if t, ok := ingest.ParseISODatePrefix(s.Date); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

const (
	FitSourceGrant     = "grant"
	FitSourceAlignment = "alignment"
	FitSourceNone      = "none"
)

// FitScore prefers the grant's own fit_score and falls back to the best
// aligned project. The two scales are not reconciled here.
func FitScore(grant models.GrantOpportunity, readiness models.ReadinessAssessment) (int, string) {
	if grant.FitScore != nil {
		return *grant.FitScore, FitSourceGrant
	}
	if top, ok := readiness.TopAlignment(); ok {
		return top.Score, FitSourceAlignment
	}
	return 0, FitSourceNone
}
