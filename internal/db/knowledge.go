package db

import (
	"context"
	"fmt"

	"github.com/act/grant-enrichment/internal/models"
)

// funderAudiences are the content_library audience tags relevant to grant writing.
var funderAudiences = []string{"funders", "funder", "government", "philanthropy"}

func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT code, name, COALESCE(description, ''), COALESCE(category, '')
		FROM projects
		WHERE status = 'active'
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects failed: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.Code, &p.Name, &p.Description, &p.Category); err != nil {
			return nil, fmt.Errorf("scan project failed: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) ListOrgAssets(ctx context.Context) ([]models.OrgAsset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(category, ''), COALESCE(asset_type, ''), name, is_current, expires_at
		FROM org_assets
		WHERE project_code IS NULL
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list org assets failed: %w", err)
	}
	defer rows.Close()

	var assets []models.OrgAsset
	for rows.Next() {
		var a models.OrgAsset
		if err := rows.Scan(&a.Category, &a.AssetType, &a.Name, &a.IsCurrent, &a.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan org asset failed: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (s *Store) ListFunderContent(ctx context.Context) ([]models.ContentEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT title, COALESCE(content_type, ''), audience_fit, themes
		FROM content_library
		WHERE audience_fit && $1
		ORDER BY created_at DESC
		LIMIT 200
	`, funderAudiences)
	if err != nil {
		return nil, fmt.Errorf("list content failed: %w", err)
	}
	defer rows.Close()

	var entries []models.ContentEntry
	for rows.Next() {
		var e models.ContentEntry
		if err := rows.Scan(&e.Title, &e.Type, &e.AudienceFit, &e.Themes); err != nil {
			return nil, fmt.Errorf("scan content failed: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountKnowledgeMatches counts knowledge chunks containing term, case-insensitively.
func (s *Store) CountKnowledgeMatches(ctx context.Context, term string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_chunks WHERE content ILIKE '%' || $1 || '%'`, escapeLike(term)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count knowledge failed: %w", err)
	}
	return n, nil
}

// escapeLike makes user text safe inside an ILIKE pattern.
func escapeLike(s string) string {
	r := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return string(r)
}
