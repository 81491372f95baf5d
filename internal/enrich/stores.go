package enrich

import (
	"context"

	"github.com/act/grant-enrichment/internal/models"
)

// GrantFilter narrows the selection query. A non-empty ID ignores the
// "not yet enriched" condition.
type GrantFilter struct {
	ID    string
	Force bool
	Limit int
}

type GrantStore interface {
	SelectGrantsForEnrichment(ctx context.Context, f GrantFilter) ([]models.GrantOpportunity, error)
	UpdateGrantEnrichment(ctx context.Context, id string, patch models.GrantPatch) error
	// AdvanceApplicationStatus moves a grant from one status to another only if
	// it is still at from. It reports whether a row changed.
	AdvanceApplicationStatus(ctx context.Context, id, from, to string) (bool, error)
}

type KnowledgeSource interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	// ListOrgAssets returns organisation-wide assets only.
	ListOrgAssets(ctx context.Context) ([]models.OrgAsset, error)
	// ListFunderContent returns entries tagged for funder or government audiences.
	ListFunderContent(ctx context.Context) ([]models.ContentEntry, error)
	CountKnowledgeMatches(ctx context.Context, term string) (int, error)
}

type ApplicationStore interface {
	// FindApplicationByOpportunity returns nil, nil when no application exists.
	FindApplicationByOpportunity(ctx context.Context, opportunityID string) (*models.GrantApplication, error)
	CreateApplication(ctx context.Context, app *models.GrantApplication) error
	CreateRequirements(ctx context.Context, reqs []models.GrantApplicationRequirement) error
}

type EmbeddingStore interface {
	UpdateGrantEmbedding(ctx context.Context, id string, embedding []float32) error
}

type RunLedger interface {
	StartRun(ctx context.Context, run *models.EnrichmentRun) error
	FinishRun(ctx context.Context, run *models.EnrichmentRun) error
}

type Extractor interface {
	ExtractRequirements(ctx context.Context, pageText, grantName string) (*models.ExtractedGrant, error)
}

type Aligner interface {
	AlignProjects(ctx context.Context, grant models.GrantOpportunity, extracted *models.ExtractedGrant, projects []models.Project) ([]models.AlignedProject, error)
}

// Notifier is told about every finished, non-dry run.
type Notifier interface {
	NotifyRun(ctx context.Context, s Summary) error
}
