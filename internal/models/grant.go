package models

import (
	"time"
)

// Application status values on the grant record itself.
const (
	GrantStatusNotApplied = "not_applied"
	GrantStatusReviewing  = "reviewing"
)

// EnrichmentSourceLLM tags grants enriched by the page-extraction pipeline.
const EnrichmentSourceLLM = "llm-page-extraction"

// GrantOpportunity is a fundable opportunity discovered by an external process.
type GrantOpportunity struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	URL               string     `json:"url"`
	Description       string     `json:"description"`
	Categories        []string   `json:"categories"`
	FocusAreas        []string   `json:"focus_areas"`
	AmountMin         *float64   `json:"min_grant_amount"`
	AmountMax         *float64   `json:"max_grant_amount"`
	CloseDate         *time.Time `json:"closes_at"`
	FitScore          *int       `json:"fit_score"`
	ApplicationStatus string     `json:"application_status"`

	// Enrichment fields, nil/empty until enriched.
	RequirementsSummary string                 `json:"requirements_summary"`
	EligibilityCriteria []EligibilityCriterion `json:"eligibility_criteria"`
	AssessmentCriteria  []AssessmentCriterion  `json:"assessment_criteria"`
	Timeline            []TimelineStage        `json:"timeline_stages"`
	FunderInfo          *FunderInfo            `json:"funder_info"`
	GrantStructure      *GrantStructure        `json:"grant_structure"`
	Readiness           *ReadinessAssessment   `json:"act_readiness"`
	EnrichedAt          *time.Time             `json:"enriched_at"`
	EnrichmentSource    string                 `json:"enrichment_source"`
	AlignedProjects     []string               `json:"aligned_projects"`

	// Stored is set by the loader for curated columns that held a value,
	// including values that did not decode into the typed fields above.
	Stored StoredFields `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// StoredFields flags curated JSON columns that are not SQL NULL (or JSON null
// or an empty string) in the database.
type StoredFields struct {
	Eligibility bool
	Assessment  bool
	Timeline    bool
	Funder      bool
	Structure   bool
}

// IsEnriched reports whether the grant has been through an enrichment pass.
func (g GrantOpportunity) IsEnriched() bool {
	return g.EnrichedAt != nil
}

// HasEligibility reports whether eligibility criteria already exist, in memory
// or in storage. The same holds for the Has* helpers below.
func (g GrantOpportunity) HasEligibility() bool {
	return g.Stored.Eligibility || g.EligibilityCriteria != nil
}

func (g GrantOpportunity) HasAssessment() bool {
	return g.Stored.Assessment || g.AssessmentCriteria != nil
}

func (g GrantOpportunity) HasTimeline() bool {
	return g.Stored.Timeline || g.Timeline != nil
}

func (g GrantOpportunity) HasFunderInfo() bool {
	return g.Stored.Funder || !g.FunderInfo.IsEmpty()
}

func (g GrantOpportunity) HasGrantStructure() bool {
	return g.Stored.Structure || !g.GrantStructure.IsEmpty()
}

type EligibilityCriterion struct {
	Criterion   string `json:"criterion"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IsMet       *bool  `json:"is_met"`
}

type AssessmentCriterion struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	WeightPct   float64 `json:"weight_pct"`
	SortOrder   int     `json:"sort_order"`
}

type TimelineStage struct {
	Stage       string `json:"stage"`
	Date        string `json:"date"`
	Description string `json:"description"`
	IsCompleted bool   `json:"is_completed"`
	SortOrder   int    `json:"sort_order"`
}

type FunderInfo struct {
	OrgName      string `json:"org_name"`
	Website      string `json:"website"`
	ContactEmail string `json:"contact_email"`
	About        string `json:"about"`
}

// IsEmpty reports whether none of the funder fields carry a value.
func (f *FunderInfo) IsEmpty() bool {
	return f == nil || (f.OrgName == "" && f.Website == "" && f.ContactEmail == "" && f.About == "")
}

type GrantStructure struct {
	AmountPerYear   *float64 `json:"amount_per_year"`
	Duration        string   `json:"duration"`
	TotalAmount     *float64 `json:"total_amount"`
	PriorityCohorts []string `json:"priority_cohorts"`
}

// IsEmpty reports whether the structure carries no usable data.
func (s *GrantStructure) IsEmpty() bool {
	return s == nil || (s.AmountPerYear == nil && s.Duration == "" && s.TotalAmount == nil && len(s.PriorityCohorts) == 0)
}

// ExtractedGrant is the structured object the requirement extractor returns.
type ExtractedGrant struct {
	EligibilityCriteria []EligibilityCriterion `json:"eligibility_criteria"`
	AssessmentCriteria  []AssessmentCriterion  `json:"assessment_criteria"`
	Timeline            []TimelineStage        `json:"timeline"`
	FunderInfo          *FunderInfo            `json:"funder_info"`
	GrantStructure      *GrantStructure        `json:"grant_structure"`
	ApplicationDeadline string                 `json:"application_deadline"`
	RequirementsSummary string                 `json:"requirements_summary"`
}

// TotalAmount returns the extractor's total funding estimate, if any.
func (e *ExtractedGrant) TotalAmount() *float64 {
	if e == nil || e.GrantStructure == nil {
		return nil
	}
	return e.GrantStructure.TotalAmount
}
