package engine

import (
	"context"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

// TurnRequest is everything a generator needs to produce one turn.
type TurnRequest struct {
	SessionID string
	Topic     string
	Format    turnplan.Format
	Turn      turnplan.TurnConfig
	Provider  string
	// History holds the turns completed so far, in plan order.
	History []Turn
}

// GenerationResult is the opaque output of a generator.
type GenerationResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Generator produces the content of one turn. Implementations must honor ctx
// cancellation; the engine applies the per-turn timeout through it.
type Generator interface {
	Generate(ctx context.Context, req TurnRequest) (GenerationResult, error)
}

// StreamingGenerator is a Generator that can report content incrementally.
// onChunk is called synchronously, in order, for every chunk.
type StreamingGenerator interface {
	Generator
	GenerateStream(ctx context.Context, req TurnRequest, onChunk func(chunk string)) (GenerationResult, error)
}

// Violation describes content a Screener flagged.
type Violation struct {
	Reason string
	// Intervention is the moderator statement published in response.
	Intervention string
}

// Screener inspects completed turn content. It is informational: a violation
// produces events but never changes the plan or the session status.
type Screener interface {
	Screen(ctx context.Context, sessionID string, turn Turn) (Violation, bool)
}
