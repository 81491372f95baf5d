package models

import "time"

// GrantPatch is the set of columns one enrichment pass writes. Nil curated
// fields are left untouched; the derived fields are always written.
type GrantPatch struct {
	RequirementsSummary *string
	EligibilityCriteria []EligibilityCriterion
	AssessmentCriteria  []AssessmentCriterion
	Timeline            []TimelineStage
	FunderInfo          *FunderInfo
	GrantStructure      *GrantStructure
	CloseDate           *time.Time

	Readiness        ReadinessAssessment
	AlignedProjects  []string
	EnrichedAt       time.Time
	EnrichmentSource string
}

// ApplyTo returns g as it will look once the patch is stored.
func (p GrantPatch) ApplyTo(g GrantOpportunity) GrantOpportunity {
	if p.RequirementsSummary != nil {
		g.RequirementsSummary = *p.RequirementsSummary
	}
	if p.EligibilityCriteria != nil {
		g.EligibilityCriteria = p.EligibilityCriteria
	}
	if p.AssessmentCriteria != nil {
		g.AssessmentCriteria = p.AssessmentCriteria
	}
	if p.Timeline != nil {
		g.Timeline = p.Timeline
	}
	if p.FunderInfo != nil {
		g.FunderInfo = p.FunderInfo
	}
	if p.GrantStructure != nil {
		g.GrantStructure = p.GrantStructure
	}
	if p.CloseDate != nil {
		g.CloseDate = p.CloseDate
	}

	readiness := p.Readiness
	g.Readiness = &readiness
	g.AlignedProjects = p.AlignedProjects
	enrichedAt := p.EnrichedAt
	g.EnrichedAt = &enrichedAt
	g.EnrichmentSource = p.EnrichmentSource
	return g
}
