package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/act/grant-enrichment/internal/models"
)

// MinCascadeFitScore is the lowest fit score that auto-creates an application.
const MinCascadeFitScore = 70

// ShouldCreateApplication is the cascade gate: fit at or above 70 and a close
// date that is absent or strictly after now.
func ShouldCreateApplication(fit int, closeDate *time.Time, now time.Time) bool {
	if fit < MinCascadeFitScore {
		return false
	}
	return closeDate == nil || closeDate.After(now)
}

type CascadeResult struct {
	Created        bool
	AlreadyExisted bool
	ApplicationID  string
	Requirements   int
	StatusAdvanced bool
	// RequirementsErr is set when the application was created but its
	// requirement rows were not. The application is kept.
	RequirementsErr error
}

// Cascade creates a draft application and its requirement rows for a grant.
type Cascade struct {
	Apps   ApplicationStore
	Grants GrantStore
}

func NewCascade(apps ApplicationStore, grants GrantStore) *Cascade {
	return &Cascade{Apps: apps, Grants: grants}
}

// Preview is the read-only half of MaybeCreateApplication used by dry runs:
// it reports an existing application, or an empty result when one would be created.
func (c *Cascade) Preview(ctx context.Context, grant models.GrantOpportunity) (CascadeResult, error) {
	existing, err := c.Apps.FindApplicationByOpportunity(ctx, grant.ID)
	if err != nil {
		return CascadeResult{}, fmt.Errorf("failed to check existing application: %w", err)
	}
	if existing != nil {
		return CascadeResult{AlreadyExisted: true, ApplicationID: existing.ID}, nil
	}
	return CascadeResult{}, nil
}

// MaybeCreateApplication is a no-op when an application already references the
// grant. Callers are expected to have checked ShouldCreateApplication.
func (c *Cascade) MaybeCreateApplication(ctx context.Context, grant models.GrantOpportunity, readiness models.ReadinessAssessment, extracted *models.ExtractedGrant, fit int) (CascadeResult, error) {
	logger := log.With().Str("component", "cascade").Str("grant_id", grant.ID).Str("grant", grant.Name).Logger()

	if res, err := c.Preview(ctx, grant); err != nil || res.AlreadyExisted {
		if res.AlreadyExisted {
			logger.Info().Str("application_id", res.ApplicationID).Msg("application already exists, skipping")
		}
		return res, err
	}

	app := BuildApplication(grant, readiness, extracted, fit)
	if err := c.Apps.CreateApplication(ctx, app); err != nil {
		return CascadeResult{}, fmt.Errorf("failed to create application: %w", err)
	}
	res := CascadeResult{Created: true, ApplicationID: app.ID}
	logger.Info().Str("application_id", app.ID).Int("fit_score", fit).Msg("draft application created")

	if c.Grants != nil {
		advanced, err := c.Grants.AdvanceApplicationStatus(ctx, grant.ID, models.GrantStatusNotApplied, models.GrantStatusReviewing)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to move grant to reviewing")
		}
		res.StatusAdvanced = advanced
	}

	reqs := BuildRequirements(app.ID, extracted)
	if len(reqs) == 0 {
		return res, nil
	}
	if err := c.Apps.CreateRequirements(ctx, reqs); err != nil {
		res.RequirementsErr = err
		logger.Error().Err(err).Int("requirements", len(reqs)).Msg("requirement rows not created, application kept")
		return res, nil
	}
	res.Requirements = len(reqs)
	return res, nil
}

// BuildApplication derives the draft application for a grant.
func BuildApplication(grant models.GrantOpportunity, readiness models.ReadinessAssessment, extracted *models.ExtractedGrant, fit int) *models.GrantApplication {
	opportunityID := grant.ID
	app := &models.GrantApplication{
		OpportunityID: &opportunityID,
		Name:          grant.Name,
		Status:        models.ApplicationStatusDraft,
		AutoCreated:   true,
	}

	switch {
	case grant.AmountMax != nil:
		app.AmountRequested = grant.AmountMax
	case grant.AmountMin != nil:
		app.AmountRequested = grant.AmountMin
	default:
		app.AmountRequested = extracted.TotalAmount()
	}

	top, ok := readiness.TopAlignment()
	if ok {
		code := top.ProjectCode
		app.ProjectCode = &code
	}
	app.Notes = applicationNotes(fit, top.Reason)
	return app
}

func applicationNotes(fit int, reason string) string {
	if reason == "" {
		return fmt.Sprintf("Auto-created by grant enrichment (fit score %d).", fit)
	}
	return fmt.Sprintf("Auto-created by grant enrichment (fit score %d). Top alignment: %s", fit, reason)
}

// BuildRequirements fans the eligibility criteria out into pending requirement rows.
func BuildRequirements(applicationID string, extracted *models.ExtractedGrant) []models.GrantApplicationRequirement {
	if extracted == nil || len(extracted.EligibilityCriteria) == 0 {
		return nil
	}
	reqs := make([]models.GrantApplicationRequirement, 0, len(extracted.EligibilityCriteria))
	for _, c := range extracted.EligibilityCriteria {
		assetType := c.Category
		if assetType == "" {
			assetType = models.DefaultAssetType
		}
		reqs = append(reqs, models.GrantApplicationRequirement{
			ApplicationID:   applicationID,
			RequirementName: c.Criterion,
			AssetType:       assetType,
			Status:          models.RequirementStatusPending,
			Notes:           c.Description,
		})
	}
	return reqs
}
