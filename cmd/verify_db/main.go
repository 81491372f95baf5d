package main

import (
	"context"
	"fmt"
	"log"

	"github.com/act/grant-enrichment/internal/config"
	"github.com/act/grant-enrichment/internal/db"
)

var requiredTables = []string{
	"grant_opportunities",
	"projects",
	"org_assets",
	"content_library",
	"knowledge_chunks",
	"grant_applications",
	"grant_application_requirements",
	"enrichment_runs",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	missing := 0
	for _, table := range requiredTables {
		var exists bool
		if err := pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", "public."+table).Scan(&exists); err != nil {
			log.Fatalf("Query failed: %v", err)
		}
		if !exists {
			fmt.Printf("MISSING table %s\n", table)
			missing++
		}
	}
	if missing > 0 {
		log.Fatalf("%d required tables missing; run with DB_AUTO_MIGRATE=true", missing)
	}

	var total, withURL, enriched, embedded, autoApps int
	err = pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE url IS NOT NULL AND url <> ''),
			count(enriched_at),
			count(embedding),
			(SELECT count(*) FROM grant_applications WHERE auto_created)
		FROM grant_opportunities
	`).Scan(&total, &withURL, &enriched, &embedded, &autoApps)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Total grants: %d\n", total)
	fmt.Printf("With URL: %d\n", withURL)
	fmt.Printf("Enriched: %d\n", enriched)
	fmt.Printf("With embedding: %d\n", embedded)
	fmt.Printf("Auto-created applications: %d\n", autoApps)
}
