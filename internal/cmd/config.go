package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/config"
)

// redacted replaces secrets in displayed configuration.
const redacted = "********"

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View arena configuration",
		Long: `View arena configuration.

Without arguments, displays the effective configuration: defaults, then the
config file, then ARENA_ environment variables (e.g. ARENA_SNAPSHOT_SECRET).`,
	}

	var output string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.showConfig(cmd, output)
		},
	}
	show.Flags().StringVarP(&output, "output", "o", outputYAML, "output format: yaml, json")

	path := &cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file := a.v.ConfigFileUsed()
			if file == "" {
				file = config.ConfigFile() + " (not present)"
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), file)
			return err
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with every default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeDefaultConfig(cmd, config.ConfigFile(), force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.RunE = show.RunE
	cmd.Flags().StringVarP(&output, "output", "o", outputYAML, "output format: yaml, json")
	cmd.AddCommand(show, path, initCmd)
	return cmd
}

func (a *app) showConfig(cmd *cobra.Command, output string) error {
	cfg, err := a.load()
	if err != nil {
		return err
	}
	shown := *cfg
	if shown.Snapshot.Secret != "" {
		shown.Snapshot.Secret = redacted
	}
	if shown.Providers.OpenAI.APIKey != "" {
		shown.Providers.OpenAI.APIKey = redacted
	}

	out := cmd.OutOrStdout()
	switch output {
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(shown)
	case outputYAML:
		if file := a.v.ConfigFileUsed(); file != "" {
			fmt.Fprintf(out, "# config file: %s\n", file)
		} else {
			fmt.Fprintln(out, "# config file: (none - using defaults)")
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(shown); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", output)
	}
}

func writeDefaultConfig(cmd *cobra.Command, file string, force bool) error {
	if _, err := os.Stat(file); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", file)
	}
	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	header := []byte("# Arena configuration\n# Secrets are best supplied through ARENA_SNAPSHOT_SECRET and ARENA_PROVIDERS_OPENAI_API_KEY.\n\n")
	if err := os.WriteFile(file, append(header, data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", file)
	return err
}
