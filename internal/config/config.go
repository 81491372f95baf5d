package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds pipeline configuration (optional .env + environment via Viper).
type Config struct {
	DatabaseURL    string
	DBMaxConns     int32
	AutoMigrate    bool
	LLMBaseURL     string
	LLMModel       string
	ExtractModel   string
	EmbedModel     string
	EmbedEnabled   bool
	BatchSize      int
	ItemDelay      time.Duration
	FetchEngine    string
	FetchTimeout   time.Duration
	DiscordWebhook string
	AdminSecret    string
	Port           string
	Schedule       string
	LogLevel       string
	LogFormat      string
}

const (
	FetchEngineHTTP  = "http"
	FetchEngineColly = "colly"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("LLM_BASE_URL", "http://localhost:11434")
	v.SetDefault("LLM_MODEL", "llama3.2:latest")
	v.SetDefault("LLM_EMBED_MODEL", "nomic-embed-text")
	v.SetDefault("ENRICH_EMBEDDINGS", true)
	v.SetDefault("ENRICH_BATCH_SIZE", 5)
	v.SetDefault("ENRICH_ITEM_DELAY", "2s")
	v.SetDefault("FETCH_ENGINE", FetchEngineHTTP)
	v.SetDefault("FETCH_TIMEOUT", "15s")
	v.SetDefault("PORT", "8081")
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("DB_MAX_CONNS", 4)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// Load reads .env (if present) into the process environment, then resolves
// every key from the environment with the defaults above.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabaseURL:    strings.TrimSpace(v.GetString("DATABASE_URL")),
		DBMaxConns:     v.GetInt32("DB_MAX_CONNS"),
		AutoMigrate:    v.GetBool("DB_AUTO_MIGRATE"),
		LLMBaseURL:     strings.TrimRight(v.GetString("LLM_BASE_URL"), "/"),
		LLMModel:       v.GetString("LLM_MODEL"),
		ExtractModel:   v.GetString("LLM_EXTRACT_MODEL"),
		EmbedModel:     v.GetString("LLM_EMBED_MODEL"),
		EmbedEnabled:   v.GetBool("ENRICH_EMBEDDINGS"),
		BatchSize:      v.GetInt("ENRICH_BATCH_SIZE"),
		FetchEngine:    strings.ToLower(strings.TrimSpace(v.GetString("FETCH_ENGINE"))),
		DiscordWebhook: strings.TrimSpace(v.GetString("DISCORD_WEBHOOK_URL")),
		AdminSecret:    v.GetString("ADMIN_SECRET"),
		Port:           v.GetString("PORT"),
		Schedule:       strings.TrimSpace(v.GetString("ENRICH_SCHEDULE")),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
	}
	if cfg.ExtractModel == "" {
		cfg.ExtractModel = cfg.LLMModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.DBMaxConns < 0 {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS %d", cfg.DBMaxConns)
	}

	var err error
	if cfg.ItemDelay, err = time.ParseDuration(v.GetString("ENRICH_ITEM_DELAY")); err != nil {
		return nil, fmt.Errorf("invalid ENRICH_ITEM_DELAY: %w", err)
	}
	if cfg.FetchTimeout, err = time.ParseDuration(v.GetString("FETCH_TIMEOUT")); err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
	}
	switch cfg.FetchEngine {
	case FetchEngineHTTP, FetchEngineColly:
	default:
		return nil, fmt.Errorf("invalid FETCH_ENGINE %q (want %s or %s)", cfg.FetchEngine, FetchEngineHTTP, FetchEngineColly)
	}

	return cfg, nil
}
