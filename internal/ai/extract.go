package ai

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"

	"github.com/act/grant-enrichment/internal/models"
)

const (
	DefaultExtractMaxTokens = 2000
	OperationExtract        = "grant-requirement-extraction"
)

// RequirementExtractor turns reduced page text into an ExtractedGrant with a
// single completion call.
type RequirementExtractor struct {
	LLM       Completer
	Model     string
	MaxTokens int
}

func NewRequirementExtractor(llm Completer, model string) *RequirementExtractor {
	return &RequirementExtractor{LLM: llm, Model: model, MaxTokens: DefaultExtractMaxTokens}
}

// ExtractRequirements returns ErrNoJSON (wrapped) when the reply holds no usable
// object and ErrNotGrantPage when the model flags the page as irrelevant.
// Loosely typed values inside the object are coerced rather than rejected.
func (e *RequirementExtractor) ExtractRequirements(ctx context.Context, pageText, grantName string) (*models.ExtractedGrant, error) {
	prompt := buildExtractionPrompt(pageText, grantName)

	resp, err := e.LLM.Complete(ctx, prompt, CompletionOptions{
		Model:     e.Model,
		MaxTokens: e.MaxTokens,
		Operation: OperationExtract,
		JSONMode:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	outcome := ParseObject[extractionReply](resp)
	if outcome.Status != ParseOK {
		log.Debug().Str("component", "extractor").Str("grant", grantName).Str("status", outcome.Status.String()).Str("reason", outcome.Reason).Msg("extraction not usable")
		return nil, outcome.Err()
	}

	extracted := outcome.Value.toModel()
	sanitizeExtracted(&extracted)
	return &extracted, nil
}

func buildExtractionPrompt(pageText, grantName string) string {
	return fmt.Sprintf(`You are an expert grant analyst for an Australian community organisation. Read the grant page below and extract its requirements.

Grant name: %s

Page text:
%s

Return ONLY a JSON object with exactly this shape:
{
  "eligibility_criteria": [{"criterion": "string", "description": "string", "category": "legal|financial|geographic|organisational|project|other", "is_met": null}],
  "assessment_criteria": [{"name": "string", "description": "string", "weight_pct": number, "sort_order": number}],
  "timeline": [{"stage": "string", "date": "YYYY-MM-DD or description", "description": "string", "is_completed": false, "sort_order": number}],
  "funder_info": {"org_name": "string", "website": "string", "contact_email": "string", "about": "string"},
  "grant_structure": {"amount_per_year": number or null, "duration": "string", "total_amount": number or null, "priority_cohorts": ["string"]},
  "application_deadline": "YYYY-MM-DD or null",
  "requirements_summary": "one paragraph summary of what an applicant must provide"
}

Rules:
1. Assessment criteria weights should sum to about 100. Estimate them if the page does not state them.
2. Use ISO dates (YYYY-MM-DD) wherever the date can be determined, otherwise a short description.
3. For application_deadline look for wording like "closes", "closing date", "due", "deadline" or "submit by".
4. Do not invent criteria that the page does not support.
5. If the page does not describe a grant or funding opportunity, return exactly {"error": "not_a_grant_page"}.`, grantName, pageText)
}

var textPolicy = bluemonday.StrictPolicy()

// cleanText strips any markup the model echoed back from the page. The policy
// escapes entities, so the result is unescaped again for storage as plain text.
func cleanText(s string) string {
	if s == "" {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func sanitizeExtracted(e *models.ExtractedGrant) {
	e.RequirementsSummary = cleanText(e.RequirementsSummary)
	e.ApplicationDeadline = strings.TrimSpace(e.ApplicationDeadline)

	eligibility := e.EligibilityCriteria[:0]
	for _, c := range e.EligibilityCriteria {
		c.Criterion = cleanText(c.Criterion)
		c.Description = cleanText(c.Description)
		c.Category = strings.ToLower(strings.TrimSpace(c.Category))
		if c.Criterion == "" {
			continue
		}
		eligibility = append(eligibility, c)
	}
	e.EligibilityCriteria = eligibility

	for i := range e.AssessmentCriteria {
		e.AssessmentCriteria[i].Name = cleanText(e.AssessmentCriteria[i].Name)
		e.AssessmentCriteria[i].Description = cleanText(e.AssessmentCriteria[i].Description)
	}
	for i := range e.Timeline {
		e.Timeline[i].Stage = cleanText(e.Timeline[i].Stage)
		e.Timeline[i].Description = cleanText(e.Timeline[i].Description)
	}
	if e.FunderInfo != nil {
		e.FunderInfo.OrgName = cleanText(e.FunderInfo.OrgName)
		e.FunderInfo.About = cleanText(e.FunderInfo.About)
	}
}
