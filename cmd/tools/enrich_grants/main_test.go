package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/act/grant-enrichment/internal/enrich"
)

func TestValidGrantID(t *testing.T) {
	assert.True(t, validGrantID(""))
	assert.True(t, validGrantID("3f1c2d4e-5a6b-4c7d-8e9f-0a1b2c3d4e5f"))
	assert.False(t, validGrantID("not-a-uuid"))
	assert.False(t, validGrantID("42"))
}

func TestApplicationLabel(t *testing.T) {
	assert.Equal(t, "would create", applicationLabel(enrich.GrantOutcome{WouldCreate: true}))
	assert.Equal(t, "exists", applicationLabel(enrich.GrantOutcome{Cascade: &enrich.CascadeResult{AlreadyExisted: true, ApplicationID: "a1"}}))
	assert.Equal(t, "created a2", applicationLabel(enrich.GrantOutcome{Cascade: &enrich.CascadeResult{Created: true, ApplicationID: "a2"}}))
	assert.Empty(t, applicationLabel(enrich.GrantOutcome{}))
}

func TestToRow_PrefersStageErrorOverCascadeError(t *testing.T) {
	row := toRow(enrich.GrantOutcome{GrantID: "g1", Err: errors.New("fetch failed"), CascadeErr: errors.New("cascade failed")})
	assert.Equal(t, "fetch failed", row.Error)

	row = toRow(enrich.GrantOutcome{GrantID: "g2", CascadeErr: errors.New("cascade failed")})
	assert.Equal(t, "cascade failed", row.Error)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
