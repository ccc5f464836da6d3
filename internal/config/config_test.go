package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Budget.MaxSupervisorIterations != 6 {
		t.Errorf("expected max_supervisor_iterations 6, got %d", cfg.Budget.MaxSupervisorIterations)
	}
	if cfg.Budget.MaxResearcherIterations != 3 {
		t.Errorf("expected max_researcher_iterations 3, got %d", cfg.Budget.MaxResearcherIterations)
	}
	if cfg.Budget.MaxConcurrentResearchUnits != 3 {
		t.Errorf("expected max_concurrent_research_units 3, got %d", cfg.Budget.MaxConcurrentResearchUnits)
	}
	if cfg.Search.MaxResults != 5 || cfg.Search.Topic != "general" {
		t.Errorf("expected search defaults 5/general, got %d/%s", cfg.Search.MaxResults, cfg.Search.Topic)
	}
	if cfg.Summarization.Timeout != 60*time.Second {
		t.Errorf("expected summarization timeout 60s, got %v", cfg.Summarization.Timeout)
	}
	if cfg.Summarization.MaxContentLength != 50000 {
		t.Errorf("expected max_content_length 50000, got %d", cfg.Summarization.MaxContentLength)
	}
	if !cfg.Supervisor.AllowClarification {
		t.Error("expected allow_clarification to be true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  model: claude-haiku-4-5-20251001
search:
  provider: duckduckgo
  max_results: 8
  topic: news
budget:
  max_supervisor_iterations: 2
  max_concurrent_research_units: 5
summarization:
  timeout: 15s
supervisor:
  allow_clarification: false
state:
  driver: sqlite3
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}
	if cfg.Anthropic.Model != "claude-haiku-4-5-20251001" {
		t.Errorf("unexpected model %q", cfg.Anthropic.Model)
	}
	if cfg.Search.Provider != ProviderDuckDuckGo || cfg.Search.MaxResults != 8 || cfg.Search.Topic != "news" {
		t.Errorf("unexpected search config %+v", cfg.Search)
	}
	if cfg.Budget.MaxSupervisorIterations != 2 {
		t.Errorf("expected max_supervisor_iterations 2, got %d", cfg.Budget.MaxSupervisorIterations)
	}
	if cfg.Budget.MaxResearcherIterations != 3 {
		t.Errorf("unset key should keep default 3, got %d", cfg.Budget.MaxResearcherIterations)
	}
	if cfg.Summarization.Timeout != 15*time.Second {
		t.Errorf("expected timeout 15s, got %v", cfg.Summarization.Timeout)
	}
	if cfg.Supervisor.AllowClarification {
		t.Error("expected allow_clarification to be false")
	}
	if cfg.State.Driver != DriverCgo {
		t.Errorf("expected driver sqlite3, got %q", cfg.State.Driver)
	}
}

func TestLoadFromPath_ExpandsEnv(t *testing.T) {
	t.Setenv("SILLYSEARCH_TEST_TAVILY", "tvly-expanded")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "search:\n  tavily_api_key: ${SILLYSEARCH_TEST_TAVILY}\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Search.TavilyAPIKey != "tvly-expanded" {
		t.Errorf("expected expanded key, got %q", cfg.Search.TavilyAPIKey)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	t.Setenv("SILLYSEARCH_BUDGET_MAX_CONCURRENT_SEARCHES", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("expected api key from env, got %q", cfg.Anthropic.APIKey)
	}
	if cfg.Budget.MaxConcurrentSearches != 7 {
		t.Errorf("expected max_concurrent_searches 7, got %d", cfg.Budget.MaxConcurrentSearches)
	}
}

func TestSaveAndLoad(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	cfg := Default()
	cfg.Budget.MaxSupervisorIterations = 9
	cfg.Summarization.Timeout = 30 * time.Second
	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(filepath.Join(xdg, "sillysearch", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Budget.MaxSupervisorIterations != 9 {
		t.Errorf("expected 9, got %d", loaded.Budget.MaxSupervisorIterations)
	}
	if loaded.Summarization.Timeout != 30*time.Second {
		t.Errorf("expected 30s, got %v", loaded.Summarization.Timeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad provider", func(c *Config) { c.Search.Provider = "bing" }, "search.provider"},
		{"bad topic", func(c *Config) { c.Search.Topic = "sports" }, "search.topic"},
		{"too many results", func(c *Config) { c.Search.MaxResults = 50 }, "search.max_results"},
		{"zero units", func(c *Config) { c.Budget.MaxConcurrentResearchUnits = 0 }, "budget.max_concurrent_research_units"},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }, "llm.max_retries"},
		{"bad driver", func(c *Config) { c.State.Driver = "postgres" }, "state.driver"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestEffectiveSearchProvider(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")

	cfg := Default()
	if got := cfg.EffectiveSearchProvider(); got != ProviderDuckDuckGo {
		t.Errorf("without a key expected duckduckgo, got %q", got)
	}

	cfg.Search.TavilyAPIKey = "tvly-key"
	if got := cfg.EffectiveSearchProvider(); got != ProviderTavily {
		t.Errorf("with a key expected tavily, got %q", got)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	if got := getUserConfigDir(); got != "/custom/config/sillysearch" {
		t.Errorf("expected /custom/config/sillysearch, got %q", got)
	}
}
