package enrich

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/act/grant-enrichment/internal/models"
)

//go:embed gap_rules.yaml
var gapRulesYAML []byte

type GapRule struct {
	Gap           string   `yaml:"gap"`
	Categories    []string `yaml:"categories"`
	AssetKeywords []string `yaml:"asset_keywords"`
}

var defaultGapRules = mustParseGapRules(gapRulesYAML)

func ParseGapRules(data []byte) ([]GapRule, error) {
	var rules []GapRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse gap rules: %w", err)
	}
	for i, r := range rules {
		if r.Gap == "" || len(r.Categories) == 0 || len(r.AssetKeywords) == 0 {
			return nil, fmt.Errorf("gap rule %d is incomplete", i)
		}
	}
	return rules, nil
}

func mustParseGapRules(data []byte) []GapRule {
	rules, err := ParseGapRules(data)
	if err != nil {
		panic(err)
	}
	return rules
}

// InferGaps matches the extracted eligibility categories against the names of
// missing assets. Each rule contributes at most one gap, in rule order.
func InferGaps(rules []GapRule, eligibility []models.EligibilityCriterion, missingAssets []string) []string {
	if len(eligibility) == 0 || len(missingAssets) == 0 {
		return []string{}
	}

	categories := make(map[string]bool, len(eligibility))
	for _, c := range eligibility {
		if cat := strings.ToLower(strings.TrimSpace(c.Category)); cat != "" {
			categories[cat] = true
		}
	}

	gaps := []string{}
	for _, rule := range rules {
		if !anyCategory(rule.Categories, categories) {
			continue
		}
		if anyAssetMatches(rule.AssetKeywords, missingAssets) {
			gaps = append(gaps, rule.Gap)
		}
	}
	return gaps
}

func anyCategory(ruleCats []string, present map[string]bool) bool {
	for _, c := range ruleCats {
		if present[strings.ToLower(c)] {
			return true
		}
	}
	return false
}

func anyAssetMatches(keywords, assetNames []string) bool {
	for _, name := range assetNames {
		lower := strings.ToLower(name)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}
