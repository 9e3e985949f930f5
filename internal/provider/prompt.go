package provider

import (
	"fmt"
	"strings"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/engine"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

// Prompt is the instruction pair sent for one turn.
type Prompt struct {
	System string
	User   string
}

// historyWindow caps how many previous turns are quoted back.
const historyWindow = 6

// BuildPrompt renders the instructions for req.
func BuildPrompt(req engine.TurnRequest) Prompt {
	tc := req.Turn
	var sys strings.Builder
	switch tc.Speaker {
	case turnplan.SpeakerModerator:
		sys.WriteString("You are the neutral moderator of a formal debate. Do not take sides.")
	case turnplan.SpeakerFor:
		sys.WriteString("You are the debater arguing FOR the motion.")
	default:
		sys.WriteString("You are the debater arguing AGAINST the motion.")
	}
	fmt.Fprintf(&sys, " The format is %s.", req.Format)
	fmt.Fprintf(&sys, " Write between %d and %d tokens.", tc.MinTokens, tc.MaxTokens)
	if tc.RequiresRebuttal {
		sys.WriteString(" Respond directly to your opponent's most recent points.")
	}
	if !tc.AllowsNewArguments && tc.IsDebaterTurn() {
		sys.WriteString(" Do not introduce new arguments.")
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Motion: %s\n", req.Topic)
	fmt.Fprintf(&user, "Your turn: %s (%s).\n", tc.Label, tc.Kind)

	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	if len(history) > 0 {
		user.WriteString("\nTranscript so far:\n")
		for _, t := range history {
			fmt.Fprintf(&user, "[%s] %s\n", t.Label, t.Content)
		}
	}
	return Prompt{System: sys.String(), User: user.String()}
}

// estimateTokens approximates token count at four characters per token.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
