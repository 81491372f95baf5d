package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/act/grant-enrichment/internal/ai"
	"github.com/act/grant-enrichment/internal/app"
	"github.com/act/grant-enrichment/internal/config"
	"github.com/act/grant-enrichment/internal/enrich"
	"github.com/act/grant-enrichment/internal/ingest"
)

// inspect_page runs fetch (and optionally extraction) for a single URL
// without touching the database. Useful for checking why a grant fails.
func main() {
	pageURL := flag.String("url", "", "Grant page URL to inspect")
	name := flag.String("name", "", "Grant name passed to the extractor")
	extract := flag.Bool("extract", false, "Also run requirement extraction against the LLM")
	preview := flag.Int("preview", 600, "Characters of page text to print")
	flag.Parse()

	if *pageURL == "" {
		log.Fatal().Msg("Please provide a page URL using -url flag")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	config.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	fetcher := app.NewFetcher(cfg)

	log.Info().Str("url", *pageURL).Str("engine", cfg.FetchEngine).Msg("fetching page")
	text, err := fetcher.FetchGrantPage(ctx, *pageURL)
	if err != nil {
		log.Fatal().Err(err).Msg("fetch returned no page")
	}
	fmt.Printf("Fetched %d characters\n\n%s\n", len([]rune(text)), ingest.TruncateText(text, *preview))

	if !*extract {
		return
	}

	llm := ai.NewOllamaClient(cfg.LLMBaseURL, cfg.EmbedModel, cfg.LLMModel)
	extracted, err := ai.NewRequirementExtractor(llm, cfg.ExtractModel).ExtractRequirements(ctx, text, *name)
	if err != nil {
		log.Fatal().Err(err).Msg("extraction failed")
	}

	out, _ := json.MarshalIndent(extracted, "", "  ")
	fmt.Printf("\n%s\n", out)

	if deadline, ok := enrich.DeadlineFromExtraction(extracted); ok {
		fmt.Printf("\nDeadline: %s\n", deadline.Format("2006-01-02 15:04 MST"))
	} else {
		fmt.Fprintln(os.Stderr, "\nNo deadline could be derived")
	}
}
