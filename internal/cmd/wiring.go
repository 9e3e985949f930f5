package cmd

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/budget"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/config"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/engine"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/event"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/provider"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/ratelimit"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/snapshot"
)

// runtime is a fully wired engine and the resources it owns.
type runtime struct {
	engine  *engine.Engine
	router  *provider.Router
	closers []io.Closer
}

// Close stops the engine, then releases the snapshot backend.
func (r *runtime) Close() error {
	r.engine.Close()
	var firstErr error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// openBackend connects the configured snapshot backend. The returned closer
// is nil for the memory backend.
func openBackend(ctx context.Context, cfg config.SnapshotConfig) (snapshot.Backend, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		b, err := snapshot.DialRedis(ctx, cfg.RedisURL, cfg.RedisPrefix, cfg.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis snapshot backend: %w", err)
		}
		return b, b, nil
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create snapshot directory: %w", err)
		}
		b, err := snapshot.OpenSQLite(ctx, cfg.SQLitePath, cfg.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite snapshot backend: %w", err)
		}
		return b, b, nil
	default:
		return snapshot.NewMemoryBackend(cfg.TTL), nil, nil
	}
}

// snapshotSecret returns the configured secret. Memory snapshots never
// outlive the process, so they get a random per-process key when none is set.
func snapshotSecret(cfg config.SnapshotConfig) string {
	if cfg.Secret != "" || cfg.Backend != config.BackendMemory {
		return cfg.Secret
	}
	return rand.Text()
}

// newRouter registers every generator the configuration can build.
func newRouter(cfg *config.Config, logger *logging.Logger) *provider.Router {
	router := provider.NewRouter()
	router.Register("simulated", &provider.Simulated{
		Latency:    cfg.Providers.Simulated.Latency,
		ChunkWords: cfg.Providers.Simulated.ChunkWords,
	})
	router.Register("openai", provider.NewOpenAI(cfg.Providers.OpenAI, logger))
	return router
}

// buildRuntime wires the engine described by cfg.
func buildRuntime(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*runtime, error) {
	router := newRouter(cfg, logger)
	for _, id := range cfg.SpeakerProviders() {
		if !router.Has(id) {
			return nil, fmt.Errorf("no generator for provider %q (available: %v)", id, router.Providers())
		}
	}

	c, err := snapshot.NewCipher(snapshotSecret(cfg.Snapshot))
	if err != nil {
		return nil, err
	}
	screener, err := provider.NewPatternScreener(cfg.Screening.Patterns)
	if err != nil {
		return nil, err
	}
	backend, closer, err := openBackend(ctx, cfg.Snapshot)
	if err != nil {
		return nil, err
	}
	rt := &runtime{router: router}
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}

	deps := engine.Dependencies{
		Store:     snapshot.NewStore(backend, c, snapshot.WithStoreLogger(logger)),
		Bus:       event.NewBus(cfg.Events.ReplaySize, logger),
		Budget:    budget.NewTracker(cfg.BudgetOptions(), budget.WithLogger(logger)),
		Limiter:   ratelimit.NewLocal(cfg.RateLimits.Providers, cfg.RateLimits.Fallback, ratelimit.WithLogger(logger)),
		Generator: router,
		Logger:    logger,
	}
	if screener.Len() > 0 {
		deps.Screener = screener
	}
	eng, err := engine.New(cfg.EngineOptions(), deps)
	if err != nil {
		for _, cl := range rt.closers {
			_ = cl.Close()
		}
		return nil, err
	}
	rt.engine = eng

	logger.Info("engine ready",
		"snapshot_backend", cfg.Snapshot.Backend,
		"providers", cfg.SpeakerProviders(),
		"screening_patterns", screener.Len(),
	)
	return rt, nil
}
