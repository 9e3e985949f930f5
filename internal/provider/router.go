package provider

import (
	"context"
	"sort"
	"sync"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/engine"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
)

// Router dispatches each turn to the generator registered for the request's
// provider id.
type Router struct {
	mu         sync.RWMutex
	generators map[string]engine.Generator
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{generators: make(map[string]engine.Generator)}
}

// Register binds id to g, replacing any previous binding.
func (r *Router) Register(id string, g engine.Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[id] = g
}

// Providers returns the registered ids in sorted order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.generators))
	for id := range r.generators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has reports whether id is registered.
func (r *Router) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.generators[id]
	return ok
}

func (r *Router) lookup(id string) (engine.Generator, error) {
	r.mu.RLock()
	g, ok := r.generators[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFoundError("provider", id).WithCause(errors.ErrGenerationFailed)
	}
	return g, nil
}

// Generate implements engine.Generator.
func (r *Router) Generate(ctx context.Context, req engine.TurnRequest) (engine.GenerationResult, error) {
	g, err := r.lookup(req.Provider)
	if err != nil {
		return engine.GenerationResult{}, err
	}
	return g.Generate(ctx, req)
}

// GenerateStream streams when the target supports it and otherwise returns
// the whole result without chunks.
func (r *Router) GenerateStream(ctx context.Context, req engine.TurnRequest, onChunk func(string)) (engine.GenerationResult, error) {
	g, err := r.lookup(req.Provider)
	if err != nil {
		return engine.GenerationResult{}, err
	}
	if sg, ok := g.(engine.StreamingGenerator); ok {
		return sg.GenerateStream(ctx, req, onChunk)
	}
	return g.Generate(ctx, req)
}

var _ engine.StreamingGenerator = (*Router)(nil)
