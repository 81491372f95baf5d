// Package app wires configuration and storage into a runnable enrichment pipeline.
package app

import (
	"github.com/act/grant-enrichment/internal/ai"
	"github.com/act/grant-enrichment/internal/config"
	"github.com/act/grant-enrichment/internal/db"
	"github.com/act/grant-enrichment/internal/enrich"
	"github.com/act/grant-enrichment/internal/ingest"
	"github.com/act/grant-enrichment/internal/notify"
)

// NewFetcher picks the page fetcher named by FETCH_ENGINE.
func NewFetcher(cfg *config.Config) ingest.PageFetcher {
	if cfg.FetchEngine == config.FetchEngineColly {
		return ingest.NewCollyFetcher(cfg.FetchTimeout)
	}
	return ingest.NewHTTPFetcher(cfg.FetchTimeout)
}

// NewPipeline builds the production pipeline over a single Store.
func NewPipeline(cfg *config.Config, store *db.Store) *enrich.Pipeline {
	llm := ai.NewOllamaClient(cfg.LLMBaseURL, cfg.EmbedModel, cfg.LLMModel)

	p := &enrich.Pipeline{
		Grants:    store,
		Fetcher:   NewFetcher(cfg),
		Extractor: ai.NewRequirementExtractor(llm, cfg.ExtractModel),
		Bridge:    enrich.NewBridge(store, ai.NewProjectAligner(llm, cfg.LLMModel)),
		Cascade:   enrich.NewCascade(store, store),
		Runs:      store,
		ItemDelay: cfg.ItemDelay,
	}
	if cfg.EmbedEnabled {
		p.Embedder = llm
		p.Embeddings = store
	}
	if cfg.DiscordWebhook != "" {
		p.Notifier = notify.NewDiscordNotifier(cfg.DiscordWebhook)
	}
	return p
}
