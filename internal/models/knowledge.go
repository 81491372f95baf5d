package models

import "time"

// Project is an entry in ACT's internal project directory.
type Project struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// OrgAsset is an organisational compliance/evidence asset (insurance, audited
// accounts, policies). Only org-wide assets (no project code) feed readiness.
type OrgAsset struct {
	Category  string     `json:"category"`
	AssetType string     `json:"asset_type"`
	Name      string     `json:"name"`
	IsCurrent bool       `json:"is_current"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// IsReady reports whether the asset is current and not expired at now.
func (a OrgAsset) IsReady(now time.Time) bool {
	if !a.IsCurrent {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// ContentEntry is a story or case study from the content library.
type ContentEntry struct {
	Title       string   `json:"title"`
	Type        string   `json:"content_type"`
	AudienceFit []string `json:"audience_fit"`
	Themes      []string `json:"themes"`
}

// EnrichmentRun is one row of the enrichment run ledger.
type EnrichmentRun struct {
	RunID      string     `json:"run_id"`
	Trigger    string     `json:"trigger"`
	DryRun     bool       `json:"dry_run"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Enriched   int        `json:"enriched"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}
