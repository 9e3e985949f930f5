package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/budget"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/event"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

// shutdownReason is recorded on sessions paused by Close.
const shutdownReason = "engine shutting down"

// launch starts the execution goroutine. The caller must have set
// sess.running.
func (e *Engine) launch(sess *session) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(sess)
	}()
}

// run executes plan entries until the plan is exhausted or the session stops
// being in_progress. It is the only code that advances CurrentTurnIndex.
func (e *Engine) run(sess *session) {
	sess.mu.Lock()
	id := sess.state.ID
	sess.mu.Unlock()
	logger := e.logger.WithSession(id)
	logger.Debug("execution loop started")

	for {
		sess.mu.Lock()
		st := sess.state
		if st.Status != StatusInProgress {
			sess.running = false
			sess.mu.Unlock()
			logger.Debug("execution loop stopped", "status", string(st.Status))
			return
		}
		if e.ctx.Err() != nil {
			e.suspendForShutdown(sess)
			return
		}
		if st.CurrentTurnIndex >= len(st.Plan) {
			e.complete(sess)
			return
		}

		req := TurnRequest{
			SessionID: st.ID,
			Topic:     st.Topic,
			Format:    st.Format,
			Turn:      st.Plan[st.CurrentTurnIndex],
			Provider:  st.ProviderFor(st.Plan[st.CurrentTurnIndex].Speaker),
			History:   append([]Turn(nil), st.CompletedTurns...),
		}
		sess.mu.Unlock()

		if !e.executeTurn(sess, req, logger.With("turn_id", req.Turn.ID)) {
			return
		}
	}
}

// complete must be called with sess.mu held; it releases it.
func (e *Engine) complete(sess *session) {
	st := sess.state
	now := e.now()
	st.Status = StatusCompleted
	st.CompletedAt = &now
	e.persist(sess)
	sess.running = false
	ev := event.New(event.KindDebateCompleted, st.ID)
	ev.Progress = progressOf(st)

	e.logger.WithSession(st.ID).Info("debate completed", "turns", len(st.CompletedTurns))
	e.commit(sess, ev)
}

// suspendForShutdown must be called with sess.mu held; it releases it.
func (e *Engine) suspendForShutdown(sess *session) {
	st := sess.state
	st.Status = StatusPaused
	e.persist(sess)
	sess.running = false
	ev := event.New(event.KindDebatePaused, st.ID)
	ev.Reason = shutdownReason
	ev.Progress = progressOf(st)

	e.logger.WithSession(st.ID).Info("debate suspended for shutdown")
	e.commit(sess, ev)
}

// estimateInputTokens approximates prompt size at four characters per token.
func (e *Engine) estimateInputTokens(req TurnRequest) int {
	chars := len(req.Topic)
	for _, t := range req.History {
		chars += len(t.Content)
	}
	return chars/4 + e.config.PromptOverheadTokens
}

// executeTurn runs one plan entry and reports whether the loop should
// continue.
func (e *Engine) executeTurn(sess *session, req TurnRequest, logger *logging.Logger) bool {
	id := req.SessionID
	tc := req.Turn
	inputEstimate := e.estimateInputTokens(req)
	projected := inputEstimate + tc.MaxTokens

	if err := e.acquireCapacity(sess, req.Provider, projected); err != nil {
		return e.handleAcquireError(sess, tc, err, logger)
	}

	e.publishOrdered(sess, id, event.ForTurn(event.KindTurnStarted, id, tc))
	startedAt := e.now()
	logger.Debug("turn started", "provider", req.Provider, "projected_tokens", projected)

	result, genErr := e.generate(req)
	completedAt := e.now()

	sess.mu.Lock()
	st := sess.state

	if e.ctx.Err() != nil && genErr != nil {
		// The call was aborted by Close, not by the provider.
		if st.Status == StatusInProgress || st.Status == StatusPaused {
			e.suspendForShutdown(sess)
		} else {
			sess.running = false
			sess.mu.Unlock()
		}
		return false
	}

	if genErr == nil {
		// Tokens were spent whether or not the result is kept.
		if _, err := e.deps.Budget.Record(id, tc.ID, req.Provider, result.InputTokens, result.OutputTokens); err != nil {
			logger.Warn("failed to record usage", "error", err.Error())
		}
	}

	if st.Status.IsTerminal() {
		sess.running = false
		sess.mu.Unlock()
		logger.Info("discarding turn result", "status", string(st.Status))
		return false
	}

	if genErr != nil {
		e.failTurn(sess, tc, genErr, logger)
		return false
	}

	turn := Turn{
		TurnConfig:   tc,
		Content:      result.Content,
		TokenCount:   result.OutputTokens,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		Provider:     req.Provider,
		StartedAt:    startedAt,
		CompletedAt:  completedAt,
	}
	st.CompletedTurns = append(st.CompletedTurns, turn)
	st.CurrentTurnIndex++

	events := []event.Event{completedEvent(id, turn), progressEvent(st)}
	if usage, ok := e.deps.Budget.Usage(id); ok && !st.WarningSent && e.deps.Budget.ShouldWarn(usage) {
		st.WarningSent = true
		events = append(events, budgetEvent(id, usage))
		logger.Warn("budget warning", "utilization_percent", usage.BudgetUtilizationPercent)
	}
	e.persist(sess)

	logger.Info("turn completed",
		"turn_number", tc.Number(),
		"kind", string(tc.Kind),
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"duration_ms", completedAt.Sub(startedAt).Milliseconds(),
	)
	e.commit(sess, events...)
	e.screen(sess, turn, logger)
	return true
}

// acquireCapacity waits for rate capacity, checks the budget, and consumes
// capacity. Capacity is re-checked if another session takes it between the
// wait and the consume.
func (e *Engine) acquireCapacity(sess *session, provider string, projected int) error {
	ctx, cancel := context.WithTimeout(e.ctx, e.config.RateWaitTimeout)
	defer cancel()

	for {
		if err := e.waitWithHeartbeat(ctx, sess, provider, projected); err != nil {
			return err
		}
		if !e.stillRunning(sess) {
			return errStopped
		}
		if !e.deps.Budget.CanAfford(sessionID(sess), projected) {
			return errors.ErrBudgetExhausted
		}
		err := e.deps.Limiter.Consume(provider, projected)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errors.ErrRateLimitTimeout) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: provider %s", errors.ErrRateLimitTimeout, provider)
		}
	}
}

// errStopped signals that the session left in_progress while waiting.
var errStopped = errors.New("session stopped")

func sessionID(sess *session) string {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.ID
}

func (e *Engine) stillRunning(sess *session) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.Status == StatusInProgress
}

// waitWithHeartbeat blocks in the rate governor, publishing heartbeat events
// while it waits.
func (e *Engine) waitWithHeartbeat(ctx context.Context, sess *session, provider string, tokens int) error {
	if e.config.HeartbeatInterval <= 0 || e.deps.Limiter.CanProceed(provider, tokens) {
		return e.deps.Limiter.WaitForCapacity(ctx, provider, tokens)
	}

	id := sessionID(sess)
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(e.config.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ev := event.New(event.KindHeartbeat, id)
				ev.Reason = "waiting for " + provider + " rate capacity"
				e.publish(id, ev)
			}
		}
	}()
	e.logger.WithSession(id).Info("waiting for rate capacity", "provider", provider, "tokens", tokens)
	return e.deps.Limiter.WaitForCapacity(ctx, provider, tokens)
}

// handleAcquireError turns a failed capacity or budget check into a session
// outcome.
func (e *Engine) handleAcquireError(sess *session, tc turnplan.TurnConfig, err error, logger *logging.Logger) bool {
	sess.mu.Lock()
	st := sess.state

	switch {
	case errors.Is(err, errStopped) || st.Status != StatusInProgress:
		sess.running = false
		sess.mu.Unlock()
		return false
	case e.ctx.Err() != nil:
		e.suspendForShutdown(sess)
		return false
	case errors.Is(err, errors.ErrBudgetExhausted):
		usage, _ := e.deps.Budget.Usage(st.ID)
		msg := fmt.Sprintf("token budget exhausted: %d of %d tokens used, next turn needs up to %d",
			usage.TotalTokens, st.BudgetTokens, tc.MaxTokens)
		e.fail(sess, msg, errors.CodeBudgetExhausted, logger)
		return false
	default:
		e.failTurn(sess, tc, err, logger)
		return false
	}
}

// generate calls the generator with the turn's timeout, streaming chunks
// when supported.
func (e *Engine) generate(req TurnRequest) (GenerationResult, error) {
	timeout := req.Turn.Timeout
	if e.config.TurnTimeout > 0 {
		timeout = e.config.TurnTimeout
	}
	if timeout <= 0 {
		timeout = turnplan.TimeoutFor(req.Turn.Kind)
	}
	ctx, cancel := context.WithTimeout(e.ctx, timeout)
	defer cancel()

	var (
		result GenerationResult
		err    error
	)
	if sg, ok := e.deps.Generator.(StreamingGenerator); ok {
		result, err = sg.GenerateStream(ctx, req, func(chunk string) {
			ev := event.ForTurn(event.KindTurnStreaming, req.SessionID, req.Turn)
			ev.Chunk = chunk
			e.publish(req.SessionID, ev)
		})
	} else {
		result, err = e.deps.Generator.Generate(ctx, req)
	}

	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && e.ctx.Err() == nil {
		return result, errors.NewTimeoutError(fmt.Sprintf("generating %s", req.Turn.Label), timeout).WithCause(err)
	}
	if err != nil {
		return result, err
	}
	if result.OutputTokens <= 0 {
		result.OutputTokens = (len(result.Content) + 3) / 4
	}
	if result.InputTokens < 0 {
		result.InputTokens = 0
	}
	return result, nil
}

// failTurn must be called with sess.mu held; it releases it. It moves the
// session to error and publishes turn_error followed by debate_error.
func (e *Engine) failTurn(sess *session, tc turnplan.TurnConfig, cause error, logger *logging.Logger) {
	st := sess.state
	code := errors.Code(cause)
	if code == errors.CodeInternal {
		code = errors.CodeGenerationFailed
	}
	msg := fmt.Sprintf("%s failed: %v", tc.Label, cause)

	turnErr := event.ForTurn(event.KindTurnError, st.ID, tc)
	turnErr.Error = msg
	turnErr.Code = code
	turnErr.Retryable = errors.IsRetryable(cause)

	e.setError(sess, msg, code)
	debateErr := e.errorEvent(st, msg, code)

	logger.Error("turn failed", "code", code, "retryable", turnErr.Retryable, "error", cause.Error())
	e.commit(sess, turnErr, debateErr)
}

// fail must be called with sess.mu held; it releases it. It moves the
// session to error and publishes debate_error.
func (e *Engine) fail(sess *session, msg, code string, logger *logging.Logger) {
	st := sess.state
	e.setError(sess, msg, code)
	ev := e.errorEvent(st, msg, code)

	logger.Error("debate failed", "code", code, "error", msg)
	e.commit(sess, ev)
}

func (e *Engine) setError(sess *session, msg, code string) {
	st := sess.state
	now := e.now()
	st.Status = StatusError
	st.Error = msg
	st.ErrorCode = code
	st.CompletedAt = &now
	sess.running = false
	e.persist(sess)
}

func (e *Engine) errorEvent(st *EngineState, msg, code string) event.Event {
	ev := event.New(event.KindDebateError, st.ID)
	ev.Error = msg
	ev.Code = code
	ev.Progress = progressOf(st)
	return ev
}

// screen consults the screener and publishes its findings.
func (e *Engine) screen(sess *session, turn Turn, logger *logging.Logger) {
	if e.deps.Screener == nil {
		return
	}
	id := sessionID(sess)
	v, flagged := e.deps.Screener.Screen(e.ctx, id, turn)
	if !flagged {
		return
	}

	violation := event.ForTurn(event.KindViolationDetected, id, turn.TurnConfig)
	violation.Reason = v.Reason

	intervention := event.ForTurn(event.KindIntervention, id, turnplan.Intervention(turn.Index))
	intervention.Content = v.Intervention
	intervention.Reason = v.Reason

	logger.Warn("content violation", "reason", v.Reason)
	e.publishOrdered(sess, id, violation, intervention)
}

func completedEvent(id string, turn Turn) event.Event {
	ev := event.ForTurn(event.KindTurnCompleted, id, turn.TurnConfig)
	ev.Content = turn.Content
	ev.TokenCount = turn.TokenCount
	return ev
}

func progressEvent(st *EngineState) event.Event {
	ev := event.New(event.KindProgressUpdate, st.ID)
	ev.Progress = progressOf(st)
	return ev
}

func budgetEvent(id string, u budget.SessionUsage) event.Event {
	ev := event.New(event.KindBudgetWarning, id)
	ev.Budget = &event.Budget{
		TotalTokens:        u.TotalTokens,
		BudgetTokens:       u.BudgetTokens,
		RemainingTokens:    u.BudgetRemainingTokens,
		UtilizationPercent: u.BudgetUtilizationPercent,
		TotalCostUSD:       u.TotalCostUSD,
	}
	return ev
}
