package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/act/grant-enrichment/internal/models"
)

type memoryStore struct {
	mu sync.Mutex

	grants       []models.GrantOpportunity
	applications []models.GrantApplication
	requirements []models.GrantApplicationRequirement
	runs         map[string]models.EnrichmentRun
	embeddings   map[string][]float32

	projects  []models.Project
	assets    []models.OrgAsset
	content   []models.ContentEntry
	knowledge map[string]int

	updateErr      error
	requirementErr error
	contentErr     error
	assetsErr      error
	knowledgeErrOn string
	updates        int
}

func newMemoryStore(grants ...models.GrantOpportunity) *memoryStore {
	return &memoryStore{
		grants:     grants,
		runs:       map[string]models.EnrichmentRun{},
		embeddings: map[string][]float32{},
		knowledge:  map[string]int{},
	}
}

func (m *memoryStore) SelectGrantsForEnrichment(_ context.Context, f GrantFilter) ([]models.GrantOpportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.GrantOpportunity
	for _, g := range m.grants {
		if g.URL == "" {
			continue
		}
		if f.ID != "" {
			if g.ID != f.ID {
				continue
			}
		} else if !f.Force && g.EnrichedAt != nil {
			continue
		}
		out = append(out, g)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStore) UpdateGrantEnrichment(_ context.Context, id string, patch models.GrantPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for i, g := range m.grants {
		if g.ID == id {
			m.grants[i] = patch.ApplyTo(g)
			m.updates++
			return nil
		}
	}
	return fmt.Errorf("grant %s not found", id)
}

func (m *memoryStore) AdvanceApplicationStatus(_ context.Context, id, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, g := range m.grants {
		if g.ID == id && g.ApplicationStatus == from {
			m.grants[i].ApplicationStatus = to
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) grant(id string) models.GrantOpportunity {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.grants {
		if g.ID == id {
			return g
		}
	}
	return models.GrantOpportunity{}
}

func (m *memoryStore) ListProjects(context.Context) ([]models.Project, error) {
	return m.projects, nil
}

func (m *memoryStore) ListOrgAssets(context.Context) ([]models.OrgAsset, error) {
	if m.assetsErr != nil {
		return nil, m.assetsErr
	}
	return m.assets, nil
}

func (m *memoryStore) ListFunderContent(context.Context) ([]models.ContentEntry, error) {
	if m.contentErr != nil {
		return nil, m.contentErr
	}
	return m.content, nil
}

func (m *memoryStore) CountKnowledgeMatches(_ context.Context, term string) (int, error) {
	if m.knowledgeErrOn != "" && term == m.knowledgeErrOn {
		return 0, errors.New("knowledge table missing")
	}
	return m.knowledge[strings.ToLower(term)], nil
}

func (m *memoryStore) FindApplicationByOpportunity(_ context.Context, opportunityID string) (*models.GrantApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.applications {
		if a.OpportunityID != nil && *a.OpportunityID == opportunityID {
			app := a
			return &app, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) CreateApplication(_ context.Context, app *models.GrantApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app.ID = fmt.Sprintf("app-%d", len(m.applications)+1)
	m.applications = append(m.applications, *app)
	return nil
}

func (m *memoryStore) CreateRequirements(_ context.Context, reqs []models.GrantApplicationRequirement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requirementErr != nil {
		return m.requirementErr
	}
	m.requirements = append(m.requirements, reqs...)
	return nil
}

func (m *memoryStore) UpdateGrantEmbedding(_ context.Context, id string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[id] = embedding
	return nil
}

func (m *memoryStore) StartRun(_ context.Context, run *models.EnrichmentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.RunID] = *run
	return nil
}

func (m *memoryStore) FinishRun(_ context.Context, run *models.EnrichmentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.RunID] = *run
	return nil
}

func (m *memoryStore) applicationsFor(grantID string) []models.GrantApplication {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.GrantApplication
	for _, a := range m.applications {
		if a.OpportunityID != nil && *a.OpportunityID == grantID {
			out = append(out, a)
		}
	}
	return out
}

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) FetchGrantPage(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	return f.pages[url], nil
}

type fakeExtractor struct {
	byText map[string]*models.ExtractedGrant
	errs   map[string]error
	calls  []string
}

func (f *fakeExtractor) ExtractRequirements(_ context.Context, pageText, grantName string) (*models.ExtractedGrant, error) {
	f.calls = append(f.calls, grantName)
	if err, ok := f.errs[pageText]; ok {
		return nil, err
	}
	if e, ok := f.byText[pageText]; ok {
		cp := *e
		return &cp, nil
	}
	return &models.ExtractedGrant{}, nil
}

type fakeAligner struct {
	result []models.AlignedProject
	err    error
	calls  int
}

func (f *fakeAligner) AlignProjects(context.Context, models.GrantOpportunity, *models.ExtractedGrant, []models.Project) ([]models.AlignedProject, error) {
	f.calls++
	return f.result, f.err
}

type fakeEmbedder struct{}

func (fakeEmbedder) GenerateEmbedding(context.Context, string) ([]float32, error) {
	return []float32{0.5, 0.25}, nil
}

type recordingNotifier struct {
	summaries []Summary
}

func (r *recordingNotifier) NotifyRun(_ context.Context, s Summary) error {
	r.summaries = append(r.summaries, s)
	return nil
}
