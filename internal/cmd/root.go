// Package cmd implements the arena command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/config"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
)

// Execute runs the root command
func Execute() error {
	return newRootCmd().Execute()
}

// app is the state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	logLvl  string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "arena",
		Short: "Structured debates between language models",
		Long: `Arena runs structured debates between two language-model debaters and a
moderator. Each session follows a turn plan generated from the debate format,
is governed by per-provider rate limits and a token budget, and persists
encrypted snapshots so paused debates can be resumed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is $HOME/.config/arena/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLvl, "log-level", "", "override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newPlanCmd(a),
		newRunCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}

func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		// An explicitly named file must exist
		return a.v.ReadInConfig()
	}

	a.v.SetConfigName("config")
	a.v.SetConfigType("yaml")
	a.v.AddConfigPath(config.ConfigDir())
	a.v.AddConfigPath(".")

	// Read config file if it exists (ignore error if not found)
	_ = a.v.ReadInConfig()
	return nil
}

// load returns the validated configuration with flag overrides applied.
func (a *app) load() (*config.Config, error) {
	if a.logLvl != "" {
		a.v.Set("logging.level", a.logLvl)
	}
	return config.Load(a.v)
}

// logger builds the process logger from cfg.
func (a *app) logger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(cfg.LoggerOptions())
}
