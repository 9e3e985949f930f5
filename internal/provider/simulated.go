package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/engine"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

// Simulated generates deterministic content without any network access.
// Identical requests always produce identical content.
type Simulated struct {
	// Latency is slept before every reply. Cancellation cuts it short.
	Latency time.Duration
	// ChunkWords is the number of words per streamed chunk; zero streams the
	// whole reply as one chunk.
	ChunkWords int
}

var simulatedPoints = []string{
	"the evidence from comparable cases",
	"the long-term costs to ordinary people",
	"the practical difficulty of enforcement",
	"the precedent this would set",
	"the interests of those who are not at the table",
	"what the strongest version of the other side concedes",
}

func (s *Simulated) compose(req engine.TurnRequest) string {
	tc := req.Turn
	h := fnv.New32a()
	_, _ = h.Write([]byte(req.Topic + "|" + tc.ID))
	seed := int(h.Sum32())
	point := simulatedPoints[seed%len(simulatedPoints)]
	second := simulatedPoints[(seed/7+1)%len(simulatedPoints)]

	switch tc.Kind {
	case turnplan.KindModeratorIntro:
		return fmt.Sprintf("Welcome. Tonight's motion is %q. We will hear %s format arguments from both sides.", req.Topic, req.Format)
	case turnplan.KindModeratorTransition:
		return fmt.Sprintf("Thank you. We now move on from the %s.", lastLabel(req.History))
	case turnplan.KindModeratorSummary:
		return fmt.Sprintf("That concludes the debate on %q after %d speeches. Both sides focused on %s.", req.Topic, countDebaterTurns(req.History), point)
	case turnplan.KindModeratorIntervention:
		return "Let us keep the discussion on the arguments rather than the speakers."
	}

	side := "support"
	if tc.Speaker == turnplan.SpeakerAgainst {
		side = "oppose"
	}
	switch tc.Kind {
	case turnplan.KindRebuttal, turnplan.KindCrossExamination:
		return fmt.Sprintf("My opponent overlooks %s. That is why I still %s the motion %q, and %s only strengthens the case.", point, side, req.Topic, second)
	case turnplan.KindClosing:
		return fmt.Sprintf("In closing, I %s the motion %q. Consider %s, and consider %s.", side, req.Topic, point, second)
	default:
		return fmt.Sprintf("I %s the motion %q. My first argument concerns %s. My second concerns %s.", side, req.Topic, point, second)
	}
}

func lastLabel(history []engine.Turn) string {
	if len(history) == 0 {
		return "introduction"
	}
	return strings.ToLower(history[len(history)-1].Label)
}

func countDebaterTurns(history []engine.Turn) int {
	n := 0
	for _, t := range history {
		if t.IsDebaterTurn() {
			n++
		}
	}
	return n
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Simulated) result(req engine.TurnRequest, content string) engine.GenerationResult {
	p := BuildPrompt(req)
	return engine.GenerationResult{
		Content:      content,
		InputTokens:  estimateTokens(p.System) + estimateTokens(p.User),
		OutputTokens: estimateTokens(content),
	}
}

// Generate implements engine.Generator.
func (s *Simulated) Generate(ctx context.Context, req engine.TurnRequest) (engine.GenerationResult, error) {
	if err := s.wait(ctx); err != nil {
		return engine.GenerationResult{}, err
	}
	return s.result(req, s.compose(req)), nil
}

// GenerateStream implements engine.StreamingGenerator.
func (s *Simulated) GenerateStream(ctx context.Context, req engine.TurnRequest, onChunk func(string)) (engine.GenerationResult, error) {
	if err := s.wait(ctx); err != nil {
		return engine.GenerationResult{}, err
	}
	content := s.compose(req)
	for _, chunk := range splitWords(content, s.ChunkWords) {
		if err := ctx.Err(); err != nil {
			return engine.GenerationResult{}, err
		}
		onChunk(chunk)
	}
	return s.result(req, content), nil
}

// splitWords groups words into chunks of n, keeping the separating spaces so
// the chunks concatenate back to s.
func splitWords(s string, n int) []string {
	if n <= 0 {
		return []string{s}
	}
	words := strings.SplitAfter(s, " ")
	var chunks []string
	for i := 0; i < len(words); i += n {
		end := min(i+n, len(words))
		chunks = append(chunks, strings.Join(words[i:end], ""))
	}
	return chunks
}

var _ engine.StreamingGenerator = (*Simulated)(nil)
