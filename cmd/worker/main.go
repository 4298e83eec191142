package main

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/fathomhq/fathom/control-plane/internal/config"
	"github.com/fathomhq/fathom/control-plane/internal/llm"
	"github.com/fathomhq/fathom/control-plane/internal/search"
	"github.com/fathomhq/fathom/control-plane/internal/store/postgres"
	"github.com/fathomhq/fathom/control-plane/internal/workflows"
)

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	dialTemporal = client.Dial
	newStore     = func(conn string) (*postgres.PostgresStore, error) {
		return postgres.New(conn)
	}
	newActivities = func(st *postgres.PostgresStore, cfg llm.Config, adapters []search.Adapter, controlPlaneURL string, opts ...workflows.ResearchActivitiesOption) *workflows.ResearchActivities {
		return workflows.NewResearchActivities(st, cfg, adapters, controlPlaneURL, opts...)
	}
	newWorker       = worker.New
	workerInterrupt = worker.InterruptCh
	serveMetrics    = func(addr string) {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("worker metrics listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("worker metrics server stopped: %v", err)
		}
	}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	temporalClient, err := dialTemporal(client.Options{
		HostPort: cfg.TemporalAddress,
	})
	if err != nil {
		return err
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	store, err := newStore(cfg.PostgresURL)
	if err != nil {
		return err
	}

	adapters := buildAdapters(cfg)
	opts := []workflows.ResearchActivitiesOption{
		workflows.WithMaxResults(cfg.MaxSearchResults),
	}
	if cfg.EnrichWebResults {
		opts = append(opts, workflows.WithEnricher(search.NewEnricher(15*time.Second, 3)))
	}

	activities := newActivities(store, llm.Config{
		Mode:             cfg.LLMMode,
		Provider:         cfg.LLMProvider,
		Model:            cfg.LLMModel,
		BaseURL:          cfg.LLMBaseURL,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenRouterAPIKey: cfg.OpenRouterAPIKey,
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
	}, adapters, cfg.ControlPlaneURL, opts...)

	w := newWorker(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ResearchWorkflow)
	w.RegisterActivity(activities)

	go serveMetrics(":" + cfg.MetricsPort)

	log.Println("Fathom research worker started")
	if err := w.Run(workerInterrupt()); err != nil {
		return err
	}

	return nil
}

func buildAdapters(cfg config.Config) []search.Adapter {
	adapters := []search.Adapter{}
	if cfg.BraveAPIKey != "" {
		adapters = append(adapters, search.NewWebAdapter(cfg.BraveAPIKey))
	}
	adapters = append(adapters, search.NewAcademicAdapter(cfg.SemanticScholarAPIKey))
	if cfg.XBearerToken != "" {
		adapters = append(adapters, search.NewSocialAdapter(cfg.XBearerToken))
	}
	return adapters
}
