package cmd

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/config"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control surface and event streams",
		Long: `Serve the engine over HTTP. Sessions are created and controlled through
JSON endpoints, and each session's events are available as a Server-Sent
Events stream at /sessions/{id}/events.

The config file is watched while serving. Log level changes apply
immediately; other changes are reported and take effect on restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.v.Set("server.addr", addr)
			}
			cfg, err := a.load()
			if err != nil {
				return err
			}
			logger, err := a.logger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			a.watchConfig(cfg, logger)
			return server.New(rt.engine, cfg.Server, logger).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}

// watchConfig reloads the config file on change. Only the log level is
// applied live; every other changed section is logged as needing a restart.
func (a *app) watchConfig(current *config.Config, logger *logging.Logger) {
	if a.v.ConfigFileUsed() == "" {
		return
	}
	var mu sync.Mutex
	log := logger.WithPhase("config")

	a.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		updated, err := config.Load(a.v)
		if err != nil {
			log.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if updated.Logging.Level != current.Logging.Level {
			logger.SetLevel(updated.Logging.Level)
			log.Info("log level changed", "level", updated.Logging.Level)
		}
		if sections := config.RestartRequired(current, updated); len(sections) > 0 {
			log.Warn("config changed; restart to apply", "sections", sections)
		}
		current = updated
	})
	a.v.WatchConfig()
	log.Debug("watching config file", "file", a.v.ConfigFileUsed())
}
