package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// Environment variables that take precedence over configured keys.
const (
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvTavilyKey    = "TAVILY_API_KEY"
)

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// Credential is a resolved API key and where it came from.
type Credential struct {
	Key    string
	Source KeySource
}

// Set reports whether a key was found.
func (c Credential) Set() bool {
	return c.Source != KeySourceNone
}

// String describes the credential with the key masked.
func (c Credential) String() string {
	if !c.Set() {
		return "(not set)"
	}
	return fmt.Sprintf("%s (%s)", MaskAPIKey(c.Key), c.Source)
}

// resolveKey prefers the environment variable, then the configured value
// after expanding ${VAR} references. An unresolved reference counts as unset.
func resolveKey(envVar, configured string) Credential {
	if key := os.Getenv(envVar); key != "" {
		return Credential{Key: key, Source: KeySourceEnv}
	}
	key := os.ExpandEnv(configured)
	if key == "" || strings.HasPrefix(key, "${") {
		return Credential{Source: KeySourceNone}
	}
	return Credential{Key: key, Source: KeySourceConfig}
}

// AnthropicKey resolves the Anthropic API key.
func AnthropicKey(cfg *Config) Credential {
	var configured string
	if cfg != nil {
		configured = cfg.Anthropic.APIKey
	}
	return resolveKey(EnvAnthropicKey, configured)
}

// TavilyKey resolves the Tavily API key.
func TavilyKey(cfg *Config) Credential {
	var configured string
	if cfg != nil {
		configured = cfg.Search.TavilyAPIKey
	}
	return resolveKey(EnvTavilyKey, configured)
}

// GetAPIKey returns the Anthropic API key, or ErrNoAPIKey.
func GetAPIKey(cfg *Config) (string, error) {
	c := AnthropicKey(cfg)
	if !c.Set() {
		return "", ErrNoAPIKey
	}
	return c.Key, nil
}

// GetTavilyAPIKey returns the Tavily key, or "" when none is configured.
func GetTavilyAPIKey(cfg *Config) string {
	return TavilyKey(cfg).Key
}

// ValidateAPIKey checks the shape of an Anthropic key without contacting
// the API.
func ValidateAPIKey(key string) error {
	switch {
	case key == "":
		return ErrNoAPIKey
	case !strings.HasPrefix(key, "sk-ant-"):
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	case len(key) < 20:
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns the key with all but its prefix and last four
// characters hidden.
func MaskAPIKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 15:
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
