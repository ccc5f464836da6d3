package main

import (
	"fmt"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/ShayCichocki/sillysearch/internal/api"
	"github.com/ShayCichocki/sillysearch/internal/config"
	"github.com/ShayCichocki/sillysearch/internal/researcher"
	"github.com/ShayCichocki/sillysearch/internal/search"
	"github.com/ShayCichocki/sillysearch/internal/state"
	"github.com/ShayCichocki/sillysearch/internal/summarize"
	"github.com/ShayCichocki/sillysearch/internal/supervisor"
)

// pipeline holds the collaborators of a research run.
type pipeline struct {
	client     *api.Client
	supervisor *supervisor.Supervisor
	provider   string
}

// buildPipeline wires the model, search provider, summarizer, researcher and
// supervisor from cfg.
func buildPipeline(cfg *config.Config, logger *zap.Logger, allowClarification bool) (*pipeline, error) {
	var apiKey string
	if !cfg.Anthropic.UseBedrock {
		cred := config.AnthropicKey(cfg)
		if err := config.ValidateAPIKey(cred.Key); err != nil {
			return nil, fmt.Errorf("anthropic key from %s: %w", cred.Source, err)
		}
		apiKey = cred.Key
	}
	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		MaxRetries:    cfg.LLM.MaxRetries,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}

	service, provider, err := newSearchService(cfg, logger)
	if err != nil {
		return nil, err
	}

	summarizer := summarize.New(client, summarize.Config{
		Timeout:          cfg.Summarization.Timeout,
		MaxContentLength: cfg.Summarization.MaxContentLength,
		Logger:           logger,
	})

	tool := search.NewTool(service, summarizer, search.ToolConfig{
		MaxResults:             cfg.Search.MaxResults,
		Topic:                  cfg.Search.Topic,
		MaxConcurrentSummaries: cfg.Summarization.MaxConcurrent,
		Logger:                 logger,
	})

	r, err := researcher.New(
		researcher.RequiredConfig{Model: client, Searcher: tool},
		researcher.WithMaxIterations(cfg.Budget.MaxResearcherIterations),
		researcher.WithMaxConcurrentSearches(cfg.Budget.MaxConcurrentSearches),
		researcher.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	s, err := supervisor.New(
		supervisor.RequiredConfig{Model: client, Researcher: r},
		supervisor.WithMaxIterations(cfg.Budget.MaxSupervisorIterations),
		supervisor.WithMaxConcurrentResearchUnits(cfg.Budget.MaxConcurrentResearchUnits),
		supervisor.WithAllowClarification(allowClarification),
		supervisor.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &pipeline{client: client, supervisor: s, provider: provider}, nil
}

// newSearchService returns the configured search backend and its name.
// Tavily without a key falls back to DuckDuckGo.
func newSearchService(cfg *config.Config, logger *zap.Logger) (search.Service, string, error) {
	provider := cfg.EffectiveSearchProvider()
	switch provider {
	case config.ProviderTavily:
		client, err := search.NewTavilyClient(search.TavilyConfig{
			APIKey:            config.GetTavilyAPIKey(cfg),
			RequestsPerSecond: cfg.Search.RequestsPerSecond,
			Logger:            logger,
		})
		if err != nil {
			return nil, "", fmt.Errorf("create tavily client: %w", err)
		}
		return client, provider, nil
	case config.ProviderDuckDuckGo:
		if cfg.Search.Provider == config.ProviderTavily {
			logger.Warn("TAVILY_API_KEY not set, falling back to duckduckgo")
		}
		return search.NewDuckDuckGoClient(search.DuckDuckGoConfig{
			RequestsPerSecond: cfg.Search.RequestsPerSecond,
			Logger:            logger,
		}), provider, nil
	default:
		return nil, "", fmt.Errorf("unknown search provider %q", provider)
	}
}

// statePath returns the configured database path or the default one.
func statePath(cfg *config.Config) string {
	if cfg.State.Path != "" {
		return cfg.State.Path
	}
	return config.DefaultStatePath()
}

// signalsDir is where the stop file is watched, next to the database.
func signalsDir(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(statePath(cfg)), "signals")
}

// openState opens and migrates the thread database.
func openState(cfg *config.Config) (*state.DB, error) {
	db, err := state.Open(cfg.State.Driver, statePath(cfg))
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate state: %w", err)
	}
	return db, nil
}
