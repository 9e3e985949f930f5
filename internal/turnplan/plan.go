package turnplan

import "fmt"

// Turn count thresholds that unlock optional parts of a skeleton.
const (
	constructiveThreshold     = 8
	firstRebuttalThreshold    = 6
	secondRebuttalThreshold   = 10
	oxfordSecondRebuttalCount = 8
	crossExaminationThreshold = 6
)

// speech is a debater entry of a skeleton before indices and bounds are assigned.
type speech struct {
	kind    Kind
	speaker Speaker
	label   string
	// noTransition suppresses the moderator transition that normally follows.
	noTransition bool
}

// GeneratePlan returns the turn plan for format and turnCount.
//
// The result is deterministic: identical inputs always produce structurally
// identical plans. Unknown formats fall back to the standard skeleton; the
// caller is expected to have validated both inputs.
func GeneratePlan(format Format, turnCount int) Plan {
	var speeches []speech
	switch format {
	case FormatOxford:
		speeches = oxfordSkeleton(turnCount)
	case FormatLincolnDouglas:
		speeches = lincolnDouglasSkeleton(turnCount)
	default:
		speeches = standardSkeleton(turnCount)
	}
	return assemble(speeches)
}

func standardSkeleton(n int) []speech {
	s := []speech{
		{kind: KindOpening, speaker: SpeakerFor, label: "Opening Statement (For)"},
		{kind: KindOpening, speaker: SpeakerAgainst, label: "Opening Statement (Against)"},
	}
	if n >= constructiveThreshold {
		s = append(s,
			speech{kind: KindConstructive, speaker: SpeakerFor, label: "Constructive Argument (For)"},
			speech{kind: KindConstructive, speaker: SpeakerAgainst, label: "Constructive Argument (Against)"},
		)
	}
	for round := 1; round <= standardRebuttalRounds(n); round++ {
		s = append(s,
			speech{kind: KindRebuttal, speaker: SpeakerAgainst, label: rebuttalLabel(round, "Against")},
			speech{kind: KindRebuttal, speaker: SpeakerFor, label: rebuttalLabel(round, "For")},
		)
	}
	return append(s,
		speech{kind: KindClosing, speaker: SpeakerAgainst, label: "Closing Statement (Against)"},
		speech{kind: KindClosing, speaker: SpeakerFor, label: "Closing Statement (For)"},
	)
}

func standardRebuttalRounds(n int) int {
	switch {
	case n >= secondRebuttalThreshold:
		return 2
	case n >= firstRebuttalThreshold:
		return 1
	}
	return 0
}

func oxfordSkeleton(n int) []speech {
	s := []speech{
		{kind: KindOpening, speaker: SpeakerFor, label: "Proposition Opening"},
		{kind: KindOpening, speaker: SpeakerAgainst, label: "Opposition Opening"},
	}
	rounds := 0
	switch {
	case n >= oxfordSecondRebuttalCount:
		rounds = 2
	case n >= firstRebuttalThreshold:
		rounds = 1
	}
	for round := 1; round <= rounds; round++ {
		s = append(s,
			speech{kind: KindRebuttal, speaker: SpeakerFor, label: fmt.Sprintf("Proposition Rebuttal %d", round)},
			speech{kind: KindRebuttal, speaker: SpeakerAgainst, label: fmt.Sprintf("Opposition Rebuttal %d", round)},
		)
	}
	return append(s,
		speech{kind: KindClosing, speaker: SpeakerAgainst, label: "Opposition Closing"},
		speech{kind: KindClosing, speaker: SpeakerFor, label: "Proposition Closing"},
	)
}

func lincolnDouglasSkeleton(n int) []speech {
	crossEx := n >= crossExaminationThreshold

	s := []speech{{kind: KindOpening, speaker: SpeakerFor, label: "Affirmative Constructive"}}
	if crossEx {
		s = append(s, speech{kind: KindCrossExamination, speaker: SpeakerAgainst, label: "Negative Cross-Examination", noTransition: true})
	}
	s = append(s, speech{kind: KindOpening, speaker: SpeakerAgainst, label: "Negative Constructive"})
	if crossEx {
		s = append(s, speech{kind: KindCrossExamination, speaker: SpeakerFor, label: "Affirmative Cross-Examination", noTransition: true})
	}

	rounds := 0
	switch {
	case n >= secondRebuttalThreshold:
		rounds = 2
	case n >= constructiveThreshold:
		rounds = 1
	}
	for round := 1; round <= rounds; round++ {
		s = append(s,
			speech{kind: KindRebuttal, speaker: SpeakerFor, label: fmt.Sprintf("Affirmative Rebuttal %d", round)},
			speech{kind: KindRebuttal, speaker: SpeakerAgainst, label: fmt.Sprintf("Negative Rebuttal %d", round)},
		)
	}
	return append(s,
		speech{kind: KindClosing, speaker: SpeakerAgainst, label: "Negative Closing"},
		speech{kind: KindClosing, speaker: SpeakerFor, label: "Affirmative Closing"},
	)
}

func rebuttalLabel(round int, side string) string {
	if round == 1 {
		return fmt.Sprintf("Rebuttal (%s)", side)
	}
	return fmt.Sprintf("Rebuttal %d (%s)", round, side)
}

// assemble wraps the debater speeches with moderator turns and assigns
// indices, ids, and per-kind bounds.
func assemble(speeches []speech) Plan {
	plan := make(Plan, 0, 2*len(speeches)+1)
	add := func(kind Kind, speaker Speaker, label string) {
		p := kindProfiles[kind]
		idx := len(plan)
		plan = append(plan, TurnConfig{
			ID:                 fmt.Sprintf("turn-%02d", idx+1),
			Index:              idx,
			Kind:               kind,
			Speaker:            speaker,
			Label:              label,
			MinTokens:          p.minTokens,
			MaxTokens:          p.maxTokens,
			Timeout:            p.timeout,
			AllowsNewArguments: p.allowsNewArguments,
			RequiresRebuttal:   p.requiresRebuttal,
		})
	}

	add(KindModeratorIntro, SpeakerModerator, "Moderator Introduction")
	for i, s := range speeches {
		add(s.kind, s.speaker, s.label)
		last := i == len(speeches)-1
		if !last && !s.noTransition {
			add(KindModeratorTransition, SpeakerModerator, "Moderator Transition")
		}
	}
	add(KindModeratorSummary, SpeakerModerator, "Moderator Summary")

	return plan
}

// Intervention builds an out-of-plan moderator intervention turn config.
// Interventions are recorded as events and never alter the plan itself.
func Intervention(afterIndex int) TurnConfig {
	p := kindProfiles[KindModeratorIntervention]
	return TurnConfig{
		ID:        fmt.Sprintf("intervention-%02d", afterIndex+1),
		Index:     afterIndex,
		Kind:      KindModeratorIntervention,
		Speaker:   SpeakerModerator,
		Label:     "Moderator Intervention",
		MinTokens: p.minTokens,
		MaxTokens: p.maxTokens,
		Timeout:   p.timeout,
	}
}
