package enrich

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/act/grant-enrichment/internal/models"
)

const (
	MaxMatchedStories = 5
	MaxKnowledgeTerms = 3
)

// Bridge cross-references a grant against ACT's projects, assets, stories and
// knowledge base. Assess never fails: each step that errors falls back to its
// empty value and the rest of the assessment is still returned.
type Bridge struct {
	Knowledge KnowledgeSource
	Aligner   Aligner
	GapRules  []GapRule
	Now       func() time.Time
}

func NewBridge(knowledge KnowledgeSource, aligner Aligner) *Bridge {
	return &Bridge{Knowledge: knowledge, Aligner: aligner, GapRules: defaultGapRules, Now: time.Now}
}

func (b *Bridge) Assess(ctx context.Context, grant models.GrantOpportunity, extracted *models.ExtractedGrant) models.ReadinessAssessment {
	logger := log.With().Str("component", "bridge").Str("grant_id", grant.ID).Logger()

	aligned, err := b.alignProjects(ctx, grant, extracted)
	if err != nil {
		logger.Warn().Err(err).Msg("project alignment unavailable")
		aligned = []models.AlignedProject{}
	}

	assets, err := b.partitionAssets(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("asset inventory unavailable")
		assets = models.AssetPartition{Ready: []string{}, Missing: []string{}}
	}

	stories, err := b.matchStories(ctx, grant)
	if err != nil {
		logger.Warn().Err(err).Msg("story matching unavailable")
		stories = []models.MatchedStory{}
	}

	// A failed lookup keeps whatever was counted before it.
	hits, err := b.countKnowledge(ctx, grant)
	if err != nil {
		logger.Debug().Err(err).Int("hits", hits).Msg("knowledge count stopped early")
	}

	var eligibility []models.EligibilityCriterion
	if extracted != nil {
		eligibility = extracted.EligibilityCriteria
	}

	return models.ReadinessAssessment{
		ReadinessPct:    ReadinessPct(len(assets.Ready), len(assets.Missing)),
		AlignedProjects: aligned,
		MatchedStories:  stories,
		Assets:          assets,
		KnowledgeHits:   hits,
		Gaps:            InferGaps(b.GapRules, eligibility, assets.Missing),
	}
}

// ReadinessPct is ready/(ready+missing) as a rounded percentage, 0 with no assets.
func ReadinessPct(ready, missing int) int {
	total := ready + missing
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(ready) * 100 / float64(total)))
}

func (b *Bridge) alignProjects(ctx context.Context, grant models.GrantOpportunity, extracted *models.ExtractedGrant) ([]models.AlignedProject, error) {
	if b.Aligner == nil {
		return nil, fmt.Errorf("no aligner configured")
	}
	projects, err := b.Knowledge.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}
	aligned, err := b.Aligner.AlignProjects(ctx, grant, extracted, projects)
	if err != nil {
		return nil, err
	}
	if aligned == nil {
		aligned = []models.AlignedProject{}
	}
	return aligned, nil
}

func (b *Bridge) partitionAssets(ctx context.Context) (models.AssetPartition, error) {
	assets, err := b.Knowledge.ListOrgAssets(ctx)
	if err != nil {
		return models.AssetPartition{}, fmt.Errorf("failed to load org assets: %w", err)
	}

	now := b.now()
	part := models.AssetPartition{Ready: []string{}, Missing: []string{}}
	for _, a := range assets {
		if a.IsReady(now) {
			part.Ready = append(part.Ready, a.Name)
		} else {
			part.Missing = append(part.Missing, a.Name)
		}
	}
	return part, nil
}

func (b *Bridge) matchStories(ctx context.Context, grant models.GrantOpportunity) ([]models.MatchedStory, error) {
	keywords := GrantKeywords(grant)
	if len(keywords) == 0 {
		return []models.MatchedStory{}, nil
	}

	entries, err := b.Knowledge.ListFunderContent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load content library: %w", err)
	}

	return RankStories(entries, keywords), nil
}

// RankStories scores each entry by the share of keywords found in its title
// and themes, keeping the top five with any match.
func RankStories(entries []models.ContentEntry, keywords []string) []models.MatchedStory {
	out := []models.MatchedStory{}
	if len(keywords) == 0 {
		return out
	}
	for _, e := range entries {
		text := strings.ToLower(e.Title + " " + strings.Join(e.Themes, " "))
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		out = append(out, models.MatchedStory{
			Title:     e.Title,
			Type:      e.Type,
			Relevance: float64(hits) / float64(len(keywords)),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if len(out) > MaxMatchedStories {
		out = out[:MaxMatchedStories]
	}
	return out
}

// GrantKeywords is the lowercased, de-duplicated set of category tags, focus
// areas and the grant name.
func GrantKeywords(grant models.GrantOpportunity) []string {
	raw := make([]string, 0, len(grant.Categories)+len(grant.FocusAreas)+1)
	raw = append(raw, grant.Categories...)
	raw = append(raw, grant.FocusAreas...)
	raw = append(raw, grant.Name)

	seen := make(map[string]bool, len(raw))
	keywords := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keywords = append(keywords, k)
	}
	return keywords
}

func (b *Bridge) countKnowledge(ctx context.Context, grant models.GrantOpportunity) (int, error) {
	terms := make([]string, 0, MaxKnowledgeTerms)
	if name := strings.TrimSpace(grant.Name); name != "" {
		terms = append(terms, name)
	}
	for _, c := range grant.Categories {
		if len(terms) == MaxKnowledgeTerms {
			break
		}
		if c = strings.TrimSpace(c); c != "" {
			terms = append(terms, c)
		}
	}

	total := 0
	for _, term := range terms {
		n, err := b.Knowledge.CountKnowledgeMatches(ctx, term)
		if err != nil {
			return total, fmt.Errorf("knowledge count for %q: %w", term, err)
		}
		total += n
	}
	return total, nil
}

func (b *Bridge) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func logReadiness(e *zerolog.Event, r models.ReadinessAssessment) *zerolog.Event {
	return e.Int("readiness_pct", r.ReadinessPct).
		Int("aligned_projects", len(r.AlignedProjects)).
		Int("matched_stories", len(r.MatchedStories)).
		Int("knowledge_hits", r.KnowledgeHits).
		Int("gaps", len(r.Gaps))
}
