package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/act/grant-enrichment/internal/models"
)

const (
	MinAlignmentScore      = 30
	MaxAlignedProjects     = 5
	DefaultAlignMaxTokens  = 800
	OperationAlignProjects = "grant-project-alignment"
)

// ProjectAligner scores how well a grant fits each internal project.
type ProjectAligner struct {
	LLM       Completer
	Model     string
	MaxTokens int
}

func NewProjectAligner(llm Completer, model string) *ProjectAligner {
	return &ProjectAligner{LLM: llm, Model: model, MaxTokens: DefaultAlignMaxTokens}
}

type alignmentReply struct {
	ProjectCode string  `json:"project_code"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason"`
}

// AlignProjects returns at most five projects scoring at least 30, best first.
// Codes the model invents are dropped.
func (a *ProjectAligner) AlignProjects(ctx context.Context, grant models.GrantOpportunity, extracted *models.ExtractedGrant, projects []models.Project) ([]models.AlignedProject, error) {
	if len(projects) == 0 {
		return nil, nil
	}

	resp, err := a.LLM.Complete(ctx, buildAlignmentPrompt(grant, extracted, projects), CompletionOptions{
		Model:     a.Model,
		MaxTokens: a.MaxTokens,
		Operation: OperationAlignProjects,
	})
	if err != nil {
		return nil, fmt.Errorf("alignment call failed: %w", err)
	}

	outcome := ParseArray[alignmentReply](resp)
	if err := outcome.Err(); err != nil {
		return nil, err
	}

	return rankAlignments(outcome.Value, projects), nil
}

func rankAlignments(replies []alignmentReply, projects []models.Project) []models.AlignedProject {
	known := make(map[string]string, len(projects))
	for _, p := range projects {
		known[strings.ToUpper(p.Code)] = p.Code
	}

	seen := make(map[string]bool)
	out := make([]models.AlignedProject, 0, len(replies))
	for _, r := range replies {
		code, exists := known[strings.ToUpper(strings.TrimSpace(r.ProjectCode))]
		if !exists || seen[code] {
			continue
		}
		score := int(r.Score + 0.5)
		if score > 100 {
			score = 100
		}
		if score < MinAlignmentScore {
			continue
		}
		seen[code] = true
		out = append(out, models.AlignedProject{
			ProjectCode: code,
			Score:       score,
			Reason:      cleanText(r.Reason),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > MaxAlignedProjects {
		out = out[:MaxAlignedProjects]
	}
	return out
}

func buildAlignmentPrompt(grant models.GrantOpportunity, extracted *models.ExtractedGrant, projects []models.Project) string {
	var pb strings.Builder
	for _, p := range projects {
		fmt.Fprintf(&pb, "- %s: %s (%s) %s\n", p.Code, p.Name, p.Category, p.Description)
	}

	return fmt.Sprintf(`You match grant opportunities to an organisation's internal projects.

PROJECTS:
%s
GRANT:
%s

Score each project from 0 to 100 for how well the grant could fund it. Return ONLY a JSON array of the top %d projects scoring %d or more, best first:
[{"project_code": "CODE", "score": 0, "reason": "one sentence"}]
Use only project codes from the list above. Return [] if none fit.`, pb.String(), GrantSummary(grant, extracted), MaxAlignedProjects, MinAlignmentScore)
}

// GrantSummary is the grant text used for alignment prompts and embeddings.
func GrantSummary(grant models.GrantOpportunity, extracted *models.ExtractedGrant) string {
	var b strings.Builder
	b.WriteString("Name: " + grant.Name + "\n")
	if grant.Description != "" {
		b.WriteString("Description: " + grant.Description + "\n")
	}
	if extracted != nil {
		if extracted.RequirementsSummary != "" {
			b.WriteString("Requirements: " + extracted.RequirementsSummary + "\n")
		}
		if len(extracted.EligibilityCriteria) > 0 {
			b.WriteString("Eligibility:\n")
			for _, c := range extracted.EligibilityCriteria {
				b.WriteString("- " + c.Criterion)
				if c.Description != "" {
					b.WriteString(": " + c.Description)
				}
				b.WriteString("\n")
			}
		}
	}
	if len(grant.Categories) > 0 {
		b.WriteString("Categories: " + strings.Join(grant.Categories, ", ") + "\n")
	}
	return b.String()
}
