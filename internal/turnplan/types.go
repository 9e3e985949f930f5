package turnplan

import (
	"fmt"
	"time"
)

// Supported turn count range accepted from callers.
const (
	MinTurnCount = 2
	MaxTurnCount = 10
)

// Format identifies a debate format.
type Format string

const (
	FormatStandard       Format = "standard"
	FormatOxford         Format = "oxford"
	FormatLincolnDouglas Format = "lincoln-douglas"
)

// Formats returns every supported format in a stable order.
func Formats() []Format {
	return []Format{FormatStandard, FormatOxford, FormatLincolnDouglas}
}

// IsValid reports whether f is a supported format.
func (f Format) IsValid() bool {
	switch f {
	case FormatStandard, FormatOxford, FormatLincolnDouglas:
		return true
	}
	return false
}

// ParseFormat converts a user-supplied name into a Format.
// "lincoln_douglas" and "ld" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "standard", "":
		return FormatStandard, nil
	case "oxford":
		return FormatOxford, nil
	case "lincoln-douglas", "lincoln_douglas", "ld":
		return FormatLincolnDouglas, nil
	}
	return "", fmt.Errorf("unknown debate format %q", s)
}

// Speaker is the participant assigned to a turn.
type Speaker string

const (
	SpeakerFor       Speaker = "for"
	SpeakerAgainst   Speaker = "against"
	SpeakerModerator Speaker = "moderator"
)

// Opponent returns the other debater. The moderator has no opponent.
func (s Speaker) Opponent() Speaker {
	switch s {
	case SpeakerFor:
		return SpeakerAgainst
	case SpeakerAgainst:
		return SpeakerFor
	}
	return s
}

// Kind is the rhetorical role of a turn.
type Kind string

const (
	KindOpening               Kind = "opening"
	KindConstructive          Kind = "constructive"
	KindRebuttal              Kind = "rebuttal"
	KindCrossExamination      Kind = "cross_examination"
	KindClosing               Kind = "closing"
	KindModeratorIntro        Kind = "moderator_intro"
	KindModeratorTransition   Kind = "moderator_transition"
	KindModeratorIntervention Kind = "moderator_intervention"
	KindModeratorSummary      Kind = "moderator_summary"
)

// IsModerator reports whether the kind belongs to the moderator.
func (k Kind) IsModerator() bool {
	switch k {
	case KindModeratorIntro, KindModeratorTransition, KindModeratorIntervention, KindModeratorSummary:
		return true
	}
	return false
}

// TurnConfig is one immutable entry of a turn plan.
type TurnConfig struct {
	ID                 string        `json:"id" yaml:"id"`
	Index              int           `json:"index" yaml:"index"`
	Kind               Kind          `json:"kind" yaml:"kind"`
	Speaker            Speaker       `json:"speaker" yaml:"speaker"`
	Label              string        `json:"label" yaml:"label"`
	MinTokens          int           `json:"minTokens" yaml:"min_tokens"`
	MaxTokens          int           `json:"maxTokens" yaml:"max_tokens"`
	Timeout            time.Duration `json:"timeout" yaml:"timeout"`
	AllowsNewArguments bool          `json:"allowsNewArguments" yaml:"allows_new_arguments"`
	RequiresRebuttal   bool          `json:"requiresRebuttal" yaml:"requires_rebuttal"`
}

// Number returns the 1-based position of the turn in its plan.
func (t TurnConfig) Number() int {
	return t.Index + 1
}

// IsDebaterTurn reports whether a debater (not the moderator) speaks.
func (t TurnConfig) IsDebaterTurn() bool {
	return t.Speaker != SpeakerModerator
}

// kindProfile holds the per-kind bounds shared by every format.
type kindProfile struct {
	minTokens          int
	maxTokens          int
	timeout            time.Duration
	allowsNewArguments bool
	requiresRebuttal   bool
}

var kindProfiles = map[Kind]kindProfile{
	KindOpening:               {minTokens: 200, maxTokens: 600, timeout: 60 * time.Second, allowsNewArguments: true},
	KindConstructive:          {minTokens: 250, maxTokens: 800, timeout: 75 * time.Second, allowsNewArguments: true},
	KindRebuttal:              {minTokens: 200, maxTokens: 600, timeout: 60 * time.Second, requiresRebuttal: true},
	KindCrossExamination:      {minTokens: 100, maxTokens: 400, timeout: 45 * time.Second, allowsNewArguments: true, requiresRebuttal: true},
	KindClosing:               {minTokens: 150, maxTokens: 500, timeout: 60 * time.Second},
	KindModeratorIntro:        {minTokens: 80, maxTokens: 300, timeout: 30 * time.Second},
	KindModeratorTransition:   {minTokens: 30, maxTokens: 150, timeout: 30 * time.Second},
	KindModeratorIntervention: {minTokens: 50, maxTokens: 200, timeout: 30 * time.Second},
	KindModeratorSummary:      {minTokens: 150, maxTokens: 500, timeout: 45 * time.Second},
}

// TimeoutFor returns the per-turn ceiling for a kind.
func TimeoutFor(k Kind) time.Duration {
	return kindProfiles[k].timeout
}

// Plan is an ordered, immutable turn plan.
type Plan []TurnConfig

// DebaterTurns returns how many entries are spoken by a debater.
func (p Plan) DebaterTurns() int {
	n := 0
	for _, t := range p {
		if t.IsDebaterTurn() {
			n++
		}
	}
	return n
}

// MaxOutputTokens sums the per-turn output ceilings, an upper bound on the
// output tokens a fully executed plan can generate.
func (p Plan) MaxOutputTokens() int {
	total := 0
	for _, t := range p {
		total += t.MaxTokens
	}
	return total
}

// Kinds returns the kind of every entry, in order.
func (p Plan) Kinds() []Kind {
	kinds := make([]Kind, len(p))
	for i, t := range p {
		kinds[i] = t.Kind
	}
	return kinds
}
