package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/sillysearch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the effective configuration as YAML, with API keys masked.

Configuration is read from ~/.config/sillysearch/config.yaml, then
.sillysearch.yaml in the current directory or a parent, then
SILLYSEARCH_* environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := renderConfig(cfg)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to the user config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetUserConfigPath()
		if _, err := os.Stat(path); err == nil {
			printStatus("⚠", fmt.Sprintf("%s already exists", path), color.FgYellow)
			return nil
		}
		if err := config.Save(config.Default()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		printStatus("✓", fmt.Sprintf("Wrote %s", path), color.FgGreen)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file locations",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("user:    %s\n", config.GetUserConfigPath())
		if p := config.GetProjectConfigPath(); p != "" {
			fmt.Printf("project: %s\n", p)
		}
		fmt.Printf("state:   %s\n", statePath(cfg))
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// renderConfig returns cfg as YAML with each API key replaced by its masked
// value and source.
func renderConfig(cfg *config.Config) (string, error) {
	masked := *cfg
	masked.Anthropic.APIKey = config.AnthropicKey(cfg).String()
	masked.Search.TavilyAPIKey = config.TavilyKey(cfg).String()

	data, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
