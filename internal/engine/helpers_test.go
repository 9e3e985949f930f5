package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/budget"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/event"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/ratelimit"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/snapshot"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

const waitTimeout = 5 * time.Second

var (
	cipherOnce sync.Once
	testCipher *snapshot.Cipher
)

func sharedCipher(t *testing.T) *snapshot.Cipher {
	t.Helper()
	cipherOnce.Do(func() {
		var err error
		testCipher, err = snapshot.NewCipher("engine-test-secret")
		if err != nil {
			panic(err)
		}
	})
	return testCipher
}

// genFunc adapts a function to Generator.
type genFunc func(ctx context.Context, req TurnRequest) (GenerationResult, error)

func (f genFunc) Generate(ctx context.Context, req TurnRequest) (GenerationResult, error) {
	return f(ctx, req)
}

// echoGenerator returns a short deterministic reply for every turn.
func echoGenerator() genFunc {
	return func(_ context.Context, req TurnRequest) (GenerationResult, error) {
		return GenerationResult{
			Content:      fmt.Sprintf("%s by %s", req.Turn.Label, req.Turn.Speaker),
			InputTokens:  10,
			OutputTokens: 20,
		}, nil
	}
}

// gatedGenerator blocks every call until released.
type gatedGenerator struct {
	started chan TurnRequest
	release chan struct{}
}

func newGatedGenerator() *gatedGenerator {
	return &gatedGenerator{
		started: make(chan TurnRequest, 32),
		release: make(chan struct{}, 32),
	}
}

func (g *gatedGenerator) Generate(ctx context.Context, req TurnRequest) (GenerationResult, error) {
	g.started <- req
	select {
	case <-g.release:
		return GenerationResult{Content: "ok", InputTokens: 5, OutputTokens: 5}, nil
	case <-ctx.Done():
		return GenerationResult{}, ctx.Err()
	}
}

func (g *gatedGenerator) next(t *testing.T) TurnRequest {
	t.Helper()
	select {
	case req := <-g.started:
		return req
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a generation call")
		return TurnRequest{}
	}
}

// recorder collects a session's events.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
	ch     chan event.Event
}

func record(bus *event.Bus, sessionID string) *recorder {
	r := &recorder{ch: make(chan event.Event, 1024)}
	bus.Subscribe(sessionID, func(e event.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
		r.ch <- e
	})
	return r
}

func (r *recorder) waitFor(t *testing.T, kind event.Kind) event.Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case e := <-r.ch:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
			return event.Event{}
		}
	}
}

func (r *recorder) count(kind event.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) kinds() []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

type testEnv struct {
	engine  *Engine
	store   *snapshot.Store
	backend *snapshot.MemoryBackend
	bus     *event.Bus
	budget  *budget.Tracker
}

type envOption func(*Config, *Dependencies)

func withLimiter(g ratelimit.Governor) envOption {
	return func(_ *Config, d *Dependencies) { d.Limiter = g }
}

func withScreener(s Screener) envOption {
	return func(_ *Config, d *Dependencies) { d.Screener = s }
}

func withConfig(fn func(*Config)) envOption {
	return func(c *Config, _ *Dependencies) { fn(c) }
}

func newEnv(t *testing.T, gen Generator, opts ...envOption) *testEnv {
	t.Helper()
	return newEnvWithBackend(t, snapshot.NewMemoryBackend(0), gen, opts...)
}

func newEnvWithBackend(t *testing.T, backend *snapshot.MemoryBackend, gen Generator, opts ...envOption) *testEnv {
	t.Helper()

	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 0
	store := snapshot.NewStore(backend, sharedCipher(t))
	bus := event.NewBus(100, nil)
	tracker := budget.NewTracker(budget.DefaultConfig())
	deps := Dependencies{
		Store:     store,
		Bus:       bus,
		Budget:    tracker,
		Limiter:   ratelimit.NewLocal(ratelimit.DefaultLimits(), ratelimit.DefaultFallback()),
		Generator: gen,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	e, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	return &testEnv{engine: e, store: store, backend: backend, bus: bus, budget: tracker}
}

func (env *testEnv) create(t *testing.T, turns int) *EngineState {
	t.Helper()
	st, err := env.engine.Create(context.Background(), SessionConfig{
		Topic:     "Remote work is better than office work",
		Format:    turnplan.FormatStandard,
		TurnCount: turns,
	})
	require.NoError(t, err)
	return st
}

// eventually polls cond until it holds.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func (env *testEnv) state(t *testing.T, id string) *EngineState {
	t.Helper()
	st, err := env.engine.GetState(context.Background(), id)
	require.NoError(t, err)
	return st
}

func (env *testEnv) idle(t *testing.T, id string) {
	t.Helper()
	eventually(t, func() bool {
		env.engine.mu.Lock()
		sess, ok := env.engine.sessions[id]
		env.engine.mu.Unlock()
		if !ok {
			return true
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return !sess.running
	}, "execution loop should stop")
}
