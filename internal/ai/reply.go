package ai

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/act/grant-enrichment/internal/ingest"
	"github.com/act/grant-enrichment/internal/models"
)

// The reply types mirror models.ExtractedGrant but tolerate the type slips
// models make in practice: "40%" for a weight, "$50,000" for an amount,
// "1" for a sort order, "yes" for a flag.

type looseNumber struct {
	value float64
	set   bool
}

func (n *looseNumber) UnmarshalJSON(b []byte) error {
	*n = looseNumber{}
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = looseNumber{value: f, set: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Objects, arrays and booleans carry no number.
		return nil
	}
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64); err == nil {
		*n = looseNumber{value: f, set: true}
		return nil
	}
	if lo, hi, _ := ingest.ParseAmount(s); hi > 0 {
		*n = looseNumber{value: hi, set: true}
	} else if lo > 0 {
		*n = looseNumber{value: lo, set: true}
	}
	return nil
}

func (n looseNumber) ptr() *float64 {
	if !n.set {
		return nil
	}
	v := n.value
	return &v
}

func (n looseNumber) int() int {
	return int(math.Round(n.value))
}

type looseBool struct {
	value bool
	set   bool
}

func (v *looseBool) UnmarshalJSON(b []byte) error {
	*v = looseBool{}
	var flag bool
	if err := json.Unmarshal(b, &flag); err == nil && strings.TrimSpace(string(b)) != "null" {
		*v = looseBool{value: flag, set: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "met", "completed", "done":
		*v = looseBool{value: true, set: true}
	case "false", "no", "n", "not met", "pending":
		*v = looseBool{value: false, set: true}
	}
	return nil
}

func (v looseBool) ptr() *bool {
	if !v.set {
		return nil
	}
	b := v.value
	return &b
}

// looseString accepts numbers where text was asked for ("date": 2026).
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	raw := strings.TrimSpace(string(b))
	if raw == "null" || strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		*s = ""
		return nil
	}
	*s = looseString(raw)
	return nil
}

// looseStrings accepts a single string where a list was asked for.
type looseStrings []string

func (l *looseStrings) UnmarshalJSON(b []byte) error {
	var list []looseString
	if err := json.Unmarshal(b, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, s := range list {
			if t := strings.TrimSpace(string(s)); t != "" {
				out = append(out, t)
			}
		}
		*l = out
		return nil
	}
	var one looseString
	_ = json.Unmarshal(b, &one)
	if t := strings.TrimSpace(string(one)); t != "" {
		*l = []string{t}
	} else {
		*l = nil
	}
	return nil
}

// looseList accepts a single object where a list was asked for and drops a
// value that is neither.
type looseList[T any] []T

func (l *looseList[T]) UnmarshalJSON(b []byte) error {
	var list []T
	if err := json.Unmarshal(b, &list); err == nil {
		*l = list
		return nil
	}
	var one T
	if strings.HasPrefix(strings.TrimSpace(string(b)), "{") && json.Unmarshal(b, &one) == nil {
		*l = []T{one}
		return nil
	}
	*l = nil
	return nil
}

type eligibilityReply struct {
	Criterion   looseString `json:"criterion"`
	Description looseString `json:"description"`
	Category    looseString `json:"category"`
	IsMet       looseBool   `json:"is_met"`
}

type assessmentReply struct {
	Name        looseString `json:"name"`
	Description looseString `json:"description"`
	WeightPct   looseNumber `json:"weight_pct"`
	SortOrder   looseNumber `json:"sort_order"`
}

type timelineReply struct {
	Stage       looseString `json:"stage"`
	Date        looseString `json:"date"`
	Description looseString `json:"description"`
	IsCompleted looseBool   `json:"is_completed"`
	SortOrder   looseNumber `json:"sort_order"`
}

type funderReply struct {
	OrgName      looseString `json:"org_name"`
	Website      looseString `json:"website"`
	ContactEmail looseString `json:"contact_email"`
	About        looseString `json:"about"`
}

// A bare string is taken as the funder's name.
func (f *funderReply) UnmarshalJSON(b []byte) error {
	type plain funderReply
	var v plain
	if err := json.Unmarshal(b, &v); err == nil {
		*f = funderReply(v)
		return nil
	}
	var name looseString
	_ = json.Unmarshal(b, &name)
	*f = funderReply{OrgName: name}
	return nil
}

type structureReply struct {
	AmountPerYear   looseNumber  `json:"amount_per_year"`
	Duration        looseString  `json:"duration"`
	TotalAmount     looseNumber  `json:"total_amount"`
	PriorityCohorts looseStrings `json:"priority_cohorts"`
}

// Anything other than an object leaves the structure empty.
func (s *structureReply) UnmarshalJSON(b []byte) error {
	type plain structureReply
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		*s = structureReply{}
		return nil
	}
	*s = structureReply(v)
	return nil
}

type extractionReply struct {
	EligibilityCriteria looseList[eligibilityReply] `json:"eligibility_criteria"`
	AssessmentCriteria  looseList[assessmentReply]  `json:"assessment_criteria"`
	Timeline            looseList[timelineReply]    `json:"timeline"`
	FunderInfo          *funderReply                `json:"funder_info"`
	GrantStructure      *structureReply             `json:"grant_structure"`
	ApplicationDeadline looseString                 `json:"application_deadline"`
	RequirementsSummary looseString                 `json:"requirements_summary"`
}

func (r extractionReply) toModel() models.ExtractedGrant {
	e := models.ExtractedGrant{
		ApplicationDeadline: string(r.ApplicationDeadline),
		RequirementsSummary: string(r.RequirementsSummary),
	}
	for _, c := range r.EligibilityCriteria {
		e.EligibilityCriteria = append(e.EligibilityCriteria, models.EligibilityCriterion{
			Criterion:   string(c.Criterion),
			Description: string(c.Description),
			Category:    string(c.Category),
			IsMet:       c.IsMet.ptr(),
		})
	}
	for _, a := range r.AssessmentCriteria {
		e.AssessmentCriteria = append(e.AssessmentCriteria, models.AssessmentCriterion{
			Name:        string(a.Name),
			Description: string(a.Description),
			WeightPct:   a.WeightPct.value,
			SortOrder:   a.SortOrder.int(),
		})
	}
	for _, t := range r.Timeline {
		e.Timeline = append(e.Timeline, models.TimelineStage{
			Stage:       string(t.Stage),
			Date:        string(t.Date),
			Description: string(t.Description),
			IsCompleted: t.IsCompleted.value,
			SortOrder:   t.SortOrder.int(),
		})
	}
	if f := r.FunderInfo; f != nil {
		e.FunderInfo = &models.FunderInfo{
			OrgName:      string(f.OrgName),
			Website:      string(f.Website),
			ContactEmail: string(f.ContactEmail),
			About:        string(f.About),
		}
	}
	if s := r.GrantStructure; s != nil {
		e.GrantStructure = &models.GrantStructure{
			AmountPerYear:   s.AmountPerYear.ptr(),
			Duration:        string(s.Duration),
			TotalAmount:     s.TotalAmount.ptr(),
			PriorityCohorts: []string(s.PriorityCohorts),
		}
	}
	return e
}
