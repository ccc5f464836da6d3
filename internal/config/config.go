// Package config handles configuration loading and management for sillysearch.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/sillysearch/internal/tools"
)

// Search providers.
const (
	ProviderTavily     = "tavily"
	ProviderDuckDuckGo = "duckduckgo"
)

// State drivers.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// Config holds all configuration for sillysearch. It is built once at
// startup and passed down by value or pointer; nothing mutates it afterwards.
type Config struct {
	Anthropic     AnthropicConfig     `mapstructure:"anthropic" yaml:"anthropic"`
	Search        SearchConfig        `mapstructure:"search" yaml:"search"`
	Budget        Budget              `mapstructure:"budget" yaml:"budget"`
	LLM           LLMConfig           `mapstructure:"llm" yaml:"llm"`
	Summarization SummarizationConfig `mapstructure:"summarization" yaml:"summarization"`
	Supervisor    SupervisorConfig    `mapstructure:"supervisor" yaml:"supervisor"`
	State         StateConfig         `mapstructure:"state" yaml:"state"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	Model      string `mapstructure:"model" yaml:"model"`
	MaxTokens  int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock" yaml:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region" yaml:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile"`
}

// SearchConfig holds web search settings.
type SearchConfig struct {
	// Provider is tavily or duckduckgo.
	Provider     string `mapstructure:"provider" yaml:"provider"`
	TavilyAPIKey string `mapstructure:"tavily_api_key" yaml:"tavily_api_key"`
	// MaxResults is the per-query default handed to the provider.
	MaxResults int `mapstructure:"max_results" yaml:"max_results"`
	// Topic is the default search topic: general, news or finance.
	Topic             string  `mapstructure:"topic" yaml:"topic"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// Budget bounds both research loops.
type Budget struct {
	MaxSupervisorIterations    int `mapstructure:"max_supervisor_iterations" yaml:"max_supervisor_iterations"`
	MaxResearcherIterations    int `mapstructure:"max_researcher_iterations" yaml:"max_researcher_iterations"`
	MaxConcurrentResearchUnits int `mapstructure:"max_concurrent_research_units" yaml:"max_concurrent_research_units"`
	MaxConcurrentSearches      int `mapstructure:"max_concurrent_searches" yaml:"max_concurrent_searches"`
}

// LLMConfig holds provider-independent model call settings.
type LLMConfig struct {
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// SummarizationConfig holds web page summarization settings.
type SummarizationConfig struct {
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxContentLength int           `mapstructure:"max_content_length" yaml:"max_content_length"`
	MaxConcurrent    int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// SupervisorConfig holds supervisor behaviour toggles.
type SupervisorConfig struct {
	AllowClarification bool `mapstructure:"allow_clarification" yaml:"allow_clarification"`
}

// StateConfig holds thread persistence settings.
type StateConfig struct {
	// Driver is sqlite (pure Go) or sqlite3 (cgo).
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Path is the database file; empty means the default under the user data dir.
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, TAVILY_API_KEY, SILLYSEARCH_*)
// 2. Project config (.sillysearch.yaml in current directory or parent)
// 3. User config (~/.config/sillysearch/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Search.TavilyAPIKey = expandEnv(cfg.Search.TavilyAPIKey)
	cfg.State.Path = expandEnv(cfg.State.Path)

	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("SILLYSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("search.tavily_api_key", "TAVILY_API_KEY")
}

// Save writes the configuration to the user config file. API keys are
// written as given; prefer ${VAR} references over literal secrets.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("search.provider", cfg.Search.Provider)
	v.Set("search.tavily_api_key", cfg.Search.TavilyAPIKey)
	v.Set("search.max_results", cfg.Search.MaxResults)
	v.Set("search.topic", cfg.Search.Topic)
	v.Set("search.requests_per_second", cfg.Search.RequestsPerSecond)
	v.Set("budget.max_supervisor_iterations", cfg.Budget.MaxSupervisorIterations)
	v.Set("budget.max_researcher_iterations", cfg.Budget.MaxResearcherIterations)
	v.Set("budget.max_concurrent_research_units", cfg.Budget.MaxConcurrentResearchUnits)
	v.Set("budget.max_concurrent_searches", cfg.Budget.MaxConcurrentSearches)
	v.Set("llm.max_retries", cfg.LLM.MaxRetries)
	v.Set("summarization.timeout", cfg.Summarization.Timeout.String())
	v.Set("summarization.max_content_length", cfg.Summarization.MaxContentLength)
	v.Set("summarization.max_concurrent", cfg.Summarization.MaxConcurrent)
	v.Set("supervisor.allow_clarification", cfg.Supervisor.AllowClarification)
	v.Set("state.driver", cfg.State.Driver)
	v.Set("state.path", cfg.State.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// DefaultStatePath returns the database location used when state.path is empty.
func DefaultStatePath() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "sillysearch", "threads.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".sillysearch", "threads.db")
	}
	return filepath.Join(home, ".local", "share", "sillysearch", "threads.db")
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", d.Anthropic.APIKey)
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)
	v.SetDefault("anthropic.use_bedrock", d.Anthropic.UseBedrock)
	v.SetDefault("anthropic.aws_region", d.Anthropic.AWSRegion)
	v.SetDefault("anthropic.aws_profile", d.Anthropic.AWSProfile)

	v.SetDefault("search.provider", d.Search.Provider)
	v.SetDefault("search.tavily_api_key", d.Search.TavilyAPIKey)
	v.SetDefault("search.max_results", d.Search.MaxResults)
	v.SetDefault("search.topic", d.Search.Topic)
	v.SetDefault("search.requests_per_second", d.Search.RequestsPerSecond)

	v.SetDefault("budget.max_supervisor_iterations", d.Budget.MaxSupervisorIterations)
	v.SetDefault("budget.max_researcher_iterations", d.Budget.MaxResearcherIterations)
	v.SetDefault("budget.max_concurrent_research_units", d.Budget.MaxConcurrentResearchUnits)
	v.SetDefault("budget.max_concurrent_searches", d.Budget.MaxConcurrentSearches)

	v.SetDefault("llm.max_retries", d.LLM.MaxRetries)

	v.SetDefault("summarization.timeout", d.Summarization.Timeout.String())
	v.SetDefault("summarization.max_content_length", d.Summarization.MaxContentLength)
	v.SetDefault("summarization.max_concurrent", d.Summarization.MaxConcurrent)

	v.SetDefault("supervisor.allow_clarification", d.Supervisor.AllowClarification)

	v.SetDefault("state.driver", d.State.Driver)
	v.SetDefault("state.path", d.State.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// getUserConfigDir returns the XDG config directory for sillysearch.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sillysearch")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "sillysearch")
	}
	return filepath.Join(home, ".config", "sillysearch")
}

// findProjectConfig searches for .sillysearch.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".sillysearch.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
		},
		Search: SearchConfig{
			Provider:          ProviderTavily,
			MaxResults:        5,
			Topic:             tools.TopicGeneral,
			RequestsPerSecond: 5,
		},
		Budget: Budget{
			MaxSupervisorIterations:    6,
			MaxResearcherIterations:    3,
			MaxConcurrentResearchUnits: 3,
			MaxConcurrentSearches:      3,
		},
		LLM: LLMConfig{
			MaxRetries: 3,
		},
		Summarization: SummarizationConfig{
			Timeout:          60 * time.Second,
			MaxContentLength: 50000,
			MaxConcurrent:    4,
		},
		Supervisor: SupervisorConfig{
			AllowClarification: true,
		},
		State: StateConfig{
			Driver: DriverModernc,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Search.Provider {
	case ProviderTavily, ProviderDuckDuckGo:
	default:
		return fmt.Errorf("search.provider: unsupported provider %q", c.Search.Provider)
	}
	if !tools.ValidTopic(c.Search.Topic) {
		return fmt.Errorf("search.topic: unsupported topic %q", c.Search.Topic)
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > tools.MaxSearchResults {
		return fmt.Errorf("search.max_results: must be between 1 and %d", tools.MaxSearchResults)
	}

	budgets := []struct {
		key string
		val int
	}{
		{"budget.max_supervisor_iterations", c.Budget.MaxSupervisorIterations},
		{"budget.max_researcher_iterations", c.Budget.MaxResearcherIterations},
		{"budget.max_concurrent_research_units", c.Budget.MaxConcurrentResearchUnits},
		{"budget.max_concurrent_searches", c.Budget.MaxConcurrentSearches},
	}
	for _, b := range budgets {
		if b.val < 1 {
			return fmt.Errorf("%s: must be at least 1", b.key)
		}
	}

	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries: must not be negative")
	}
	if c.Summarization.Timeout <= 0 {
		return fmt.Errorf("summarization.timeout: must be positive")
	}

	switch c.State.Driver {
	case DriverModernc, DriverCgo:
	default:
		return fmt.Errorf("state.driver: unsupported driver %q", c.State.Driver)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format: unsupported format %q", c.Log.Format)
	}
	return nil
}

// EffectiveSearchProvider returns the provider that will actually serve
// searches: Tavily needs a key, without one DuckDuckGo is used.
func (c *Config) EffectiveSearchProvider() string {
	if c.Search.Provider == ProviderTavily && GetTavilyAPIKey(c) == "" {
		return ProviderDuckDuckGo
	}
	return c.Search.Provider
}
