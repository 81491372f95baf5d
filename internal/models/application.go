package models

import "time"

const (
	ApplicationStatusDraft   = "draft"
	RequirementStatusPending = "pending"
	DefaultAssetType         = "general"
)

// GrantApplication is a draft or in-progress pursuit of a grant.
type GrantApplication struct {
	ID              string    `json:"id"`
	OpportunityID   *string   `json:"opportunity_id"`
	Name            string    `json:"application_name"`
	AmountRequested *float64  `json:"amount_requested"`
	Status          string    `json:"status"`
	ProjectCode     *string   `json:"project_code"`
	AutoCreated     bool      `json:"auto_created"`
	Notes           string    `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
}

// GrantApplicationRequirement is one eligibility criterion tracked against an application.
type GrantApplicationRequirement struct {
	ID              string `json:"id"`
	ApplicationID   string `json:"application_id"`
	RequirementName string `json:"requirement_name"`
	AssetType       string `json:"asset_type"`
	Status          string `json:"status"`
	Notes           string `json:"notes"`
}
