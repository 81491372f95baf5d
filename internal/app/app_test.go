package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/act/grant-enrichment/internal/config"
	"github.com/act/grant-enrichment/internal/db"
	"github.com/act/grant-enrichment/internal/ingest"
)

func TestNewFetcher(t *testing.T) {
	f := NewFetcher(&config.Config{FetchEngine: config.FetchEngineColly, FetchTimeout: 5 * time.Second})
	assert.IsType(t, &ingest.CollyFetcher{}, f)

	f = NewFetcher(&config.Config{FetchEngine: config.FetchEngineHTTP})
	assert.IsType(t, &ingest.HTTPFetcher{}, f)
}

func TestNewPipeline_OptionalCollaborators(t *testing.T) {
	store := db.NewStore(nil)

	p := NewPipeline(&config.Config{FetchEngine: config.FetchEngineHTTP, ItemDelay: time.Second}, store)
	assert.Nil(t, p.Notifier)
	assert.Nil(t, p.Embedder)
	assert.Equal(t, time.Second, p.ItemDelay)

	p = NewPipeline(&config.Config{FetchEngine: config.FetchEngineHTTP, EmbedEnabled: true, DiscordWebhook: "https://discord.example/webhook"}, store)
	assert.NotNil(t, p.Notifier)
	assert.NotNil(t, p.Embedder)
	assert.NotNil(t, p.Embeddings)
}
