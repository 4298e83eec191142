package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ControlPlanePort  string
	ControlPlaneURL   string
	MetricsPort       string
	PostgresURL       string
	TemporalAddress   string
	TemporalTaskQueue string

	LLMMode          string
	LLMProvider      string
	LLMModel         string
	LLMBaseURL       string
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	AnthropicAPIKey  string

	BraveAPIKey           string
	SemanticScholarAPIKey string
	XBearerToken          string

	DefaultDepth     string
	MaxSearchResults int
	EnrichWebResults bool
}

func Load() Config {
	controlPlanePort := getEnv("CONTROL_PLANE_PORT", "8080")
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	cfg := Config{
		ControlPlanePort:  controlPlanePort,
		ControlPlaneURL:   getEnv("CONTROL_PLANE_URL", "http://localhost:"+controlPlanePort),
		MetricsPort:       getEnv("METRICS_PORT", "9091"),
		PostgresURL:       postgresURL,
		TemporalAddress:   getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue: getEnv("TEMPORAL_TASK_QUEUE", "fathom-research"),

		LLMMode:          getEnv("LLM_MODE", "remote"),
		LLMProvider:      getEnv("LLM_PROVIDER", "openai"),
		LLMModel:         getEnv("LLM_MODEL", "gpt-4o"),
		LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),

		BraveAPIKey:           getEnv("BRAVE_API_KEY", ""),
		SemanticScholarAPIKey: getEnv("SEMANTIC_SCHOLAR_API_KEY", ""),
		XBearerToken:          getEnv("X_BEARER_TOKEN", ""),

		DefaultDepth:     getEnv("RESEARCH_DEFAULT_DEPTH", "basic"),
		MaxSearchResults: getEnvInt("RESEARCH_MAX_SEARCH_RESULTS", 10),
		EnrichWebResults: getEnvBool("RESEARCH_ENRICH_WEB_RESULTS", true),
	}
	if path := strings.TrimSpace(os.Getenv("FATHOM_CONFIG")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}
	return cfg
}

// fileConfig is the optional YAML overlay. Only keys present in the file
// override the environment-derived values.
type fileConfig struct {
	ControlPlanePort  *string `yaml:"control_plane_port"`
	ControlPlaneURL   *string `yaml:"control_plane_url"`
	MetricsPort       *string `yaml:"metrics_port"`
	PostgresURL       *string `yaml:"postgres_url"`
	TemporalAddress   *string `yaml:"temporal_address"`
	TemporalTaskQueue *string `yaml:"temporal_task_queue"`

	LLMMode          *string `yaml:"llm_mode"`
	LLMProvider      *string `yaml:"llm_provider"`
	LLMModel         *string `yaml:"llm_model"`
	LLMBaseURL       *string `yaml:"llm_base_url"`
	OpenAIAPIKey     *string `yaml:"openai_api_key"`
	OpenRouterAPIKey *string `yaml:"openrouter_api_key"`
	AnthropicAPIKey  *string `yaml:"anthropic_api_key"`

	BraveAPIKey           *string `yaml:"brave_api_key"`
	SemanticScholarAPIKey *string `yaml:"semantic_scholar_api_key"`
	XBearerToken          *string `yaml:"x_bearer_token"`

	DefaultDepth     *string `yaml:"default_depth"`
	MaxSearchResults *int    `yaml:"max_search_results"`
	EnrichWebResults *bool   `yaml:"enrich_web_results"`
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return err
	}
	setString(&cfg.ControlPlanePort, file.ControlPlanePort)
	setString(&cfg.ControlPlaneURL, file.ControlPlaneURL)
	setString(&cfg.MetricsPort, file.MetricsPort)
	setString(&cfg.PostgresURL, file.PostgresURL)
	setString(&cfg.TemporalAddress, file.TemporalAddress)
	setString(&cfg.TemporalTaskQueue, file.TemporalTaskQueue)
	setString(&cfg.LLMMode, file.LLMMode)
	setString(&cfg.LLMProvider, file.LLMProvider)
	setString(&cfg.LLMModel, file.LLMModel)
	setString(&cfg.LLMBaseURL, file.LLMBaseURL)
	setString(&cfg.OpenAIAPIKey, file.OpenAIAPIKey)
	setString(&cfg.OpenRouterAPIKey, file.OpenRouterAPIKey)
	setString(&cfg.AnthropicAPIKey, file.AnthropicAPIKey)
	setString(&cfg.BraveAPIKey, file.BraveAPIKey)
	setString(&cfg.SemanticScholarAPIKey, file.SemanticScholarAPIKey)
	setString(&cfg.XBearerToken, file.XBearerToken)
	setString(&cfg.DefaultDepth, file.DefaultDepth)
	if file.MaxSearchResults != nil {
		cfg.MaxSearchResults = *file.MaxSearchResults
	}
	if file.EnrichWebResults != nil {
		cfg.EnrichWebResults = *file.EnrichWebResults
	}
	return nil
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = *value
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "fathom")
	password := getEnv("POSTGRES_PASSWORD", "fathom")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "fathom")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
