package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/budget"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/event"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/ratelimit"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/snapshot"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

// Config holds engine configuration.
type Config struct {
	// DefaultFormat is used when a session does not name one.
	DefaultFormat turnplan.Format
	// DefaultTurnCount is used when a session does not set one.
	DefaultTurnCount int
	// DefaultBudgetTokens is the token ceiling for sessions without one.
	DefaultBudgetTokens int
	// DefaultProviders assigns a provider id to each speaker.
	DefaultProviders map[turnplan.Speaker]string
	// RateWaitTimeout bounds how long a turn waits for provider capacity.
	RateWaitTimeout time.Duration
	// HeartbeatInterval is how often heartbeat events are published while a
	// turn waits for rate capacity. Zero disables them.
	HeartbeatInterval time.Duration
	// TurnTimeout, when positive, replaces every per-kind turn timeout.
	TurnTimeout time.Duration
	// PersistTimeout bounds each snapshot write.
	PersistTimeout time.Duration
	// PromptOverheadTokens is added to input token estimates for the
	// instructions wrapped around every turn.
	PromptOverheadTokens int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultFormat:       turnplan.FormatStandard,
		DefaultTurnCount:    4,
		DefaultBudgetTokens: 20000,
		DefaultProviders: map[turnplan.Speaker]string{
			turnplan.SpeakerFor:       "simulated",
			turnplan.SpeakerAgainst:   "simulated",
			turnplan.SpeakerModerator: "simulated",
		},
		RateWaitTimeout:      2 * time.Minute,
		HeartbeatInterval:    15 * time.Second,
		PersistTimeout:       5 * time.Second,
		PromptOverheadTokens: 500,
	}
}

// Dependencies are the collaborators of an Engine. Store, Bus, Budget,
// Limiter, and Generator are required.
type Dependencies struct {
	Store     *snapshot.Store
	Bus       *event.Bus
	Budget    *budget.Tracker
	Limiter   ratelimit.Governor
	Generator Generator
	Screener  Screener
	Logger    *logging.Logger
}

// session is the runtime holder of one session's state.
type session struct {
	mu    sync.Mutex
	state *EngineState
	// running is true while an execution goroutine owns the session.
	running bool
	// publishMu orders the session's events. It is taken before mu is
	// released so events reach subscribers in commit order.
	publishMu sync.Mutex
}

// Engine orchestrates debate sessions. It is safe for concurrent use.
type Engine struct {
	config Config
	deps   Dependencies
	logger *logging.Logger

	mu       sync.Mutex
	sessions map[string]*session

	// ctx is cancelled by Close to stop every execution goroutine.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now   func() time.Time
	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides session id generation, for tests.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New creates an engine.
func New(cfg Config, deps Dependencies, opts ...Option) (*Engine, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("engine: snapshot store is required")
	case deps.Bus == nil:
		return nil, errors.New("engine: event bus is required")
	case deps.Budget == nil:
		return nil, errors.New("engine: budget tracker is required")
	case deps.Limiter == nil:
		return nil, errors.New("engine: rate governor is required")
	case deps.Generator == nil:
		return nil, errors.New("engine: generator is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		config:   cfg,
		deps:     deps,
		logger:   deps.Logger.WithPhase("engine"),
		sessions: make(map[string]*session),
		ctx:      ctx,
		cancel:   cancel,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close stops every execution goroutine and waits for them to exit. Sessions
// that were mid-debate are left paused so they can be resumed later.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// Create validates cfg, generates the turn plan, and persists a pending
// session.
func (e *Engine) Create(ctx context.Context, cfg SessionConfig) (*EngineState, error) {
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		return nil, errors.NewValidationError("topic must not be empty").WithField("topic")
	}

	format := cfg.Format
	if format == "" {
		format = e.config.DefaultFormat
	}
	if !format.IsValid() {
		return nil, errors.NewValidationError("unknown debate format").WithField("format").WithValue(string(format))
	}

	turnCount := cfg.TurnCount
	if turnCount == 0 {
		turnCount = e.config.DefaultTurnCount
	}
	if turnCount < turnplan.MinTurnCount || turnCount > turnplan.MaxTurnCount {
		return nil, errors.NewValidationError(
			fmt.Sprintf("turn count must be between %d and %d", turnplan.MinTurnCount, turnplan.MaxTurnCount),
		).WithField("turnCount").WithValue(turnCount)
	}

	budgetTokens := cfg.BudgetTokens
	if budgetTokens <= 0 {
		budgetTokens = e.config.DefaultBudgetTokens
	}

	providers := make(map[turnplan.Speaker]string, 3)
	for _, sp := range []turnplan.Speaker{turnplan.SpeakerFor, turnplan.SpeakerAgainst, turnplan.SpeakerModerator} {
		p := cfg.Providers[sp]
		if p == "" {
			p = e.config.DefaultProviders[sp]
		}
		if p == "" {
			return nil, errors.NewValidationError("no provider configured for speaker").WithField("providers").WithValue(string(sp))
		}
		providers[sp] = p
	}

	plan := turnplan.GeneratePlan(format, turnCount)
	now := e.now()
	state := &EngineState{
		ID:           e.newID(),
		Topic:        topic,
		Format:       format,
		TotalTurns:   len(plan),
		Plan:         plan,
		Status:       StatusPending,
		Providers:    providers,
		BudgetTokens: budgetTokens,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	e.deps.Budget.Open(state.ID, budgetTokens)
	if err := e.deps.Store.Save(ctx, toRecord(state, e.usage(state.ID))); err != nil {
		e.deps.Budget.Forget(state.ID)
		return nil, fmt.Errorf("persist new session: %w", err)
	}

	e.mu.Lock()
	e.sessions[state.ID] = &session{state: state}
	e.mu.Unlock()

	e.logger.WithSession(state.ID).Info("session created",
		"format", string(format),
		"turn_count", turnCount,
		"plan_length", len(plan),
		"budget_tokens", budgetTokens,
	)
	return state.Clone(), nil
}

// lookup returns the runtime session for id, rehydrating it from the store
// when it is not held in memory.
func (e *Engine) lookup(ctx context.Context, id string) (*session, error) {
	e.mu.Lock()
	sess, ok := e.sessions[id]
	e.mu.Unlock()
	if ok {
		return sess, nil
	}

	rec, found, err := e.deps.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewNotFoundError("session", id)
	}

	state := fromRecord(rec)
	if rec.Usage != nil {
		e.deps.Budget.Restore(*rec.Usage)
	} else {
		e.deps.Budget.Open(state.ID, state.BudgetTokens)
	}

	e.mu.Lock()
	// Another caller may have rehydrated it first.
	if existing, ok := e.sessions[id]; ok {
		e.mu.Unlock()
		return existing, nil
	}
	sess = &session{state: state}
	// Held across the registry release so no caller sees the session before
	// an orphaned status is repaired.
	sess.mu.Lock()
	e.sessions[id] = sess
	e.mu.Unlock()
	defer sess.mu.Unlock()

	// No goroutine of this process owns a rehydrated session, so an
	// in-progress snapshot belongs to a writer that went away.
	if state.Status == StatusInProgress {
		state.Status = StatusPaused
		e.persist(sess)
		e.logger.WithSession(id).Warn("rehydrated orphaned session as paused")
	}
	e.logger.WithSession(id).Debug("session rehydrated", "status", string(state.Status))
	return sess, nil
}

func (e *Engine) usage(id string) *budget.SessionUsage {
	u, ok := e.deps.Budget.Usage(id)
	if !ok {
		return nil
	}
	return &u
}

// persist writes the session's snapshot. It must be called with sess.mu
// held. This process owns the session while it is loaded, so the in-memory
// state always wins: a snapshot changed by another writer is overwritten and
// the version continues from the higher of the two.
func (e *Engine) persist(sess *session) {
	st := sess.state
	st.UpdatedAt = e.now()
	expected := st.Version
	rec := toRecord(st, e.usage(st.ID))
	logger := e.logger.WithSession(st.ID)

	ctx, cancel := context.WithTimeout(context.Background(), e.config.PersistTimeout)
	defer cancel()

	updated, err := e.deps.Store.Update(ctx, st.ID, func(stored *snapshot.Record) error {
		version := max(stored.Version, expected)
		if stored.Version != expected {
			logger.Warn("overwriting snapshot changed by another writer",
				"stored_version", stored.Version,
				"expected_version", expected,
			)
		}
		*stored = *rec
		stored.Version = version
		return nil
	})
	switch {
	case err == nil:
		st.Version = updated.Version
		return
	case errors.Is(err, errors.ErrSessionNotFound):
		// Expired or evicted: write it back unconditionally.
		st.Version++
		rec.Version = st.Version
		err = e.deps.Store.Save(ctx, rec)
	}
	if err != nil {
		logger.Error("failed to persist snapshot",
			"status", string(st.Status),
			"version", expected,
			"error", err.Error(),
		)
	}
}

// transition applies a command under the session lock. mutate runs only if
// op is allowed from the current status. On success the lifecycle event kind
// is published before any event the execution goroutine commits afterwards.
// It reports whether the caller must start an execution goroutine.
func (e *Engine) transition(ctx context.Context, id, op string, kind event.Kind, reason string, mutate func(st *EngineState) error) (bool, error) {
	sess, err := e.lookup(ctx, id)
	if err != nil {
		return false, err
	}

	sess.mu.Lock()
	st := sess.state
	if !canApply(op, st.Status) {
		sess.mu.Unlock()
		return false, errors.NewTransitionError(op, id, string(st.Status))
	}
	if err := mutate(st); err != nil {
		sess.mu.Unlock()
		return false, err
	}
	e.persist(sess)

	spawn := st.Status == StatusInProgress && !sess.running
	if spawn {
		sess.running = true
	}
	ev := event.New(kind, id)
	ev.Reason = reason
	ev.Progress = progressOf(st)
	e.commit(sess, ev)

	if spawn {
		e.launch(sess)
	}
	return spawn, nil
}

// CanStart reports whether the session is pending and its budget is not
// exhausted.
func (e *Engine) CanStart(ctx context.Context, id string) (bool, error) {
	sess, err := e.lookup(ctx, id)
	if err != nil {
		return false, err
	}
	sess.mu.Lock()
	status := sess.state.Status
	sess.mu.Unlock()
	return status == StatusPending && !e.deps.Budget.Exhausted(id), nil
}

// Start moves a pending session to in_progress and begins executing the plan
// in the background. It returns once execution is scheduled.
func (e *Engine) Start(ctx context.Context, id string) error {
	_, err := e.transition(ctx, id, opStart, event.KindDebateStarted, "", func(st *EngineState) error {
		if e.deps.Budget.Exhausted(id) {
			return errors.NewTransitionError(opStart, id, string(st.Status)).
				WithCause(errors.ErrBudgetExhausted).
				WithReason("token budget exhausted")
		}
		now := e.now()
		st.Status = StatusInProgress
		st.StartedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.WithSession(id).Info("debate started")
	return nil
}

// Pause asks the execution goroutine to stop before the next turn. A turn
// already in flight finishes and is recorded.
func (e *Engine) Pause(ctx context.Context, id string) error {
	_, err := e.transition(ctx, id, opPause, event.KindDebatePaused, "", func(st *EngineState) error {
		st.Status = StatusPaused
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.WithSession(id).Info("debate paused")
	return nil
}

// Resume continues a paused session from the next unexecuted plan entry.
func (e *Engine) Resume(ctx context.Context, id string) error {
	spawn, err := e.transition(ctx, id, opResume, event.KindDebateResumed, "", func(st *EngineState) error {
		st.Status = StatusInProgress
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.WithSession(id).Info("debate resumed", "relaunched", spawn)
	return nil
}

// EndEarly cancels a non-terminal session. A turn in flight is allowed to
// finish but its result is discarded.
func (e *Engine) EndEarly(ctx context.Context, id, reason string) error {
	if reason == "" {
		reason = "ended by request"
	}
	_, err := e.transition(ctx, id, opEnd, event.KindDebateCancelled, reason, func(st *EngineState) error {
		now := e.now()
		st.Status = StatusCancelled
		st.EndReason = reason
		st.CompletedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.WithSession(id).Info("debate cancelled", "reason", reason)
	return nil
}

// GetState returns a copy of the session's state.
func (e *Engine) GetState(ctx context.Context, id string) (*EngineState, error) {
	sess, err := e.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.Clone(), nil
}

// GetCurrentTurnInfo returns the session's progress projection.
func (e *Engine) GetCurrentTurnInfo(ctx context.Context, id string) (*TurnInfo, error) {
	sess, err := e.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	st := sess.state
	info := &TurnInfo{
		SessionID:        st.ID,
		Status:           st.Status,
		CurrentTurnIndex: st.CurrentTurnIndex,
		TotalTurns:       st.TotalTurns,
		Progress:         st.Progress(),
		Error:            st.Error,
		ErrorCode:        st.ErrorCode,
	}
	if st.CurrentTurnIndex < len(st.Plan) && !st.Status.IsTerminal() {
		tc := st.Plan[st.CurrentTurnIndex]
		info.CurrentTurn = &tc
	}
	if n := len(st.CompletedTurns); n > 0 {
		last := st.CompletedTurns[n-1]
		info.LastTurn = &last
	}
	return info, nil
}

// Usage returns the session's token usage.
func (e *Engine) Usage(ctx context.Context, id string) (budget.SessionUsage, error) {
	if _, err := e.lookup(ctx, id); err != nil {
		return budget.SessionUsage{}, err
	}
	u, _ := e.deps.Budget.Usage(id)
	return u, nil
}

// Cleanup drops the in-memory state of a session: its runtime holder, event
// buffer, and usage ledger. The snapshot is left to backend expiry. Sessions
// that are still executing are not cleaned up.
func (e *Engine) Cleanup(id string) bool {
	e.mu.Lock()
	sess, ok := e.sessions[id]
	if ok {
		sess.mu.Lock()
		busy := sess.running
		sess.mu.Unlock()
		if busy {
			e.mu.Unlock()
			return false
		}
		delete(e.sessions, id)
	}
	e.mu.Unlock()

	e.deps.Bus.Clear(id)
	e.deps.Budget.Forget(id)
	e.logger.WithSession(id).Debug("session cleaned up", "was_loaded", ok)
	return ok
}

// ListSessions returns the ids of sessions held in memory together with
// those the snapshot store can enumerate. complete is false when the store
// cannot list its contents.
func (e *Engine) ListSessions(ctx context.Context) (ids []string, complete bool, err error) {
	e.mu.Lock()
	seen := make(map[string]struct{}, len(e.sessions))
	for id := range e.sessions {
		seen[id] = struct{}{}
	}
	e.mu.Unlock()

	stored, ok, err := e.deps.Store.ListIDs(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, id := range stored {
		seen[id] = struct{}{}
	}

	ids = make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, ok, nil
}

// Stats summarizes engine activity.
type Stats struct {
	Usage          budget.Stats   `json:"usage"`
	LoadedSessions int            `json:"loadedSessions"`
	Running        int            `json:"runningSessions"`
	ByStatus       map[Status]int `json:"byStatus"`
	StoredSessions *int           `json:"storedSessions,omitempty"`
}

// Stats returns aggregate statistics. StoredSessions is nil when the store
// cannot count its contents.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	s := Stats{
		Usage:    e.deps.Budget.Stats(),
		ByStatus: make(map[Status]int),
	}

	e.mu.Lock()
	sessions := make([]*session, 0, len(e.sessions))
	for _, sess := range e.sessions {
		sessions = append(sessions, sess)
	}
	e.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		s.ByStatus[sess.state.Status]++
		if sess.running {
			s.Running++
		}
		sess.mu.Unlock()
	}
	s.LoadedSessions = len(sessions)

	n, ok, err := e.deps.Store.Count(ctx)
	if err != nil {
		return s, err
	}
	if ok {
		s.StoredSessions = &n
	}
	return s, nil
}

// Bus returns the event bus sessions publish to. Handlers run while the
// session's events are being ordered, so they must not call Start, Pause,
// Resume, or EndEarly on the same session synchronously.
func (e *Engine) Bus() *event.Bus {
	return e.deps.Bus
}

func progressOf(st *EngineState) *event.Progress {
	return &event.Progress{
		CurrentTurn: st.CurrentTurnIndex,
		TotalTurns:  st.TotalTurns,
		Percent:     float64(int(st.Progress()*1000+0.5)) / 10,
	}
}

// commit must be called with sess.mu held; it releases it and publishes
// events in commit order.
func (e *Engine) commit(sess *session, events ...event.Event) {
	id := sess.state.ID
	sess.publishMu.Lock()
	sess.mu.Unlock()
	defer sess.publishMu.Unlock()
	e.publish(id, events...)
}

// publishOrdered publishes events that carry no state change without
// overtaking an in-progress commit.
func (e *Engine) publishOrdered(sess *session, id string, events ...event.Event) {
	sess.publishMu.Lock()
	defer sess.publishMu.Unlock()
	e.publish(id, events...)
}

func (e *Engine) publish(id string, events ...event.Event) {
	for _, ev := range events {
		e.deps.Bus.Publish(id, ev)
	}
}
