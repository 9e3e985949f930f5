package provider

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/engine"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

func request(kind turnplan.Kind) engine.TurnRequest {
	plan := turnplan.GeneratePlan(turnplan.FormatStandard, 4)
	for _, tc := range plan {
		if tc.Kind == kind {
			return engine.TurnRequest{
				SessionID: "s1",
				Topic:     "Cities should ban cars",
				Format:    turnplan.FormatStandard,
				Turn:      tc,
				Provider:  "simulated",
			}
		}
	}
	panic("kind not in plan: " + string(kind))
}

func TestSimulated_Deterministic(t *testing.T) {
	sim := &Simulated{}
	req := request(turnplan.KindOpening)

	a, err := sim.Generate(context.Background(), req)
	require.NoError(t, err)
	b, err := sim.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Contains(t, a.Content, req.Topic)
	assert.Positive(t, a.InputTokens)
	assert.Positive(t, a.OutputTokens)
}

func TestSimulated_SidesDiffer(t *testing.T) {
	sim := &Simulated{}
	plan := turnplan.GeneratePlan(turnplan.FormatStandard, 4)

	var forReq, againstReq engine.TurnRequest
	for _, tc := range plan {
		req := engine.TurnRequest{Topic: "x", Format: turnplan.FormatStandard, Turn: tc}
		if tc.Kind == turnplan.KindOpening && tc.Speaker == turnplan.SpeakerFor {
			forReq = req
		}
		if tc.Kind == turnplan.KindOpening && tc.Speaker == turnplan.SpeakerAgainst {
			againstReq = req
		}
	}

	f, err := sim.Generate(context.Background(), forReq)
	require.NoError(t, err)
	a, err := sim.Generate(context.Background(), againstReq)
	require.NoError(t, err)
	assert.Contains(t, f.Content, "I support")
	assert.Contains(t, a.Content, "I oppose")
}

func TestSimulated_StreamChunksReassemble(t *testing.T) {
	sim := &Simulated{ChunkWords: 3}
	req := request(turnplan.KindClosing)

	var chunks []string
	res, err := sim.GenerateStream(context.Background(), req, func(c string) { chunks = append(chunks, c) })
	require.NoError(t, err)

	assert.Greater(t, len(chunks), 1)
	assert.Equal(t, res.Content, strings.Join(chunks, ""))
}

func TestSimulated_LatencyHonorsCancel(t *testing.T) {
	sim := &Simulated{Latency: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sim.Generate(ctx, request(turnplan.KindOpening))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSplitWords(t *testing.T) {
	assert.Equal(t, []string{"a b c"}, splitWords("a b c", 0))
	assert.Equal(t, []string{"a b ", "c"}, splitWords("a b c", 2))
}

func TestBuildPrompt(t *testing.T) {
	req := request(turnplan.KindClosing)
	for i := 0; i < 10; i++ {
		req.History = append(req.History, engine.Turn{
			TurnConfig: turnplan.TurnConfig{Label: "L", Index: i},
			Content:    "turn-content-" + string(rune('a'+i)),
		})
	}

	p := BuildPrompt(req)
	assert.Contains(t, p.System, "AGAINST")
	assert.Contains(t, p.System, "Do not introduce new arguments")
	assert.Contains(t, p.User, req.Topic)
	assert.NotContains(t, p.User, "turn-content-a", "old history is windowed out")
	assert.Contains(t, p.User, "turn-content-j")

	mod := BuildPrompt(request(turnplan.KindModeratorIntro))
	assert.Contains(t, mod.System, "moderator")
}

type plainGen struct{ content string }

func (p plainGen) Generate(context.Context, engine.TurnRequest) (engine.GenerationResult, error) {
	return engine.GenerationResult{Content: p.content}, nil
}

func TestRouter(t *testing.T) {
	r := NewRouter()
	r.Register("simulated", &Simulated{ChunkWords: 2})
	r.Register("plain", plainGen{content: "plain"})

	assert.Equal(t, []string{"plain", "simulated"}, r.Providers())
	assert.True(t, r.Has("plain"))

	req := request(turnplan.KindOpening)
	var streamed int
	_, err := r.GenerateStream(context.Background(), req, func(string) { streamed++ })
	require.NoError(t, err)
	assert.Positive(t, streamed)

	req.Provider = "plain"
	streamed = 0
	res, err := r.GenerateStream(context.Background(), req, func(string) { streamed++ })
	require.NoError(t, err)
	assert.Equal(t, "plain", res.Content)
	assert.Zero(t, streamed)

	req.Provider = "missing"
	_, err = r.Generate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.CodeGenerationFailed, errors.Code(err))
}
