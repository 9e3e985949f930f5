package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/engine"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/util"
)

// PatternScreener flags debater turns whose content matches one of a set of
// case-insensitive glob patterns, e.g. "*you are an idiot*".
type PatternScreener struct {
	rules []screenRule
}

type screenRule struct {
	pattern string
	g       glob.Glob
}

// NewPatternScreener compiles patterns. An empty list yields a screener that
// never flags anything.
func NewPatternScreener(patterns []string) (*PatternScreener, error) {
	s := &PatternScreener{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("invalid screening pattern: %v", err)).WithValue(p)
		}
		s.rules = append(s.rules, screenRule{pattern: p, g: g})
	}
	return s, nil
}

// Len returns the number of compiled patterns.
func (s *PatternScreener) Len() int {
	return len(s.rules)
}

// Screen reports the first pattern the turn's content matches. Moderator
// turns are never screened.
func (s *PatternScreener) Screen(_ context.Context, _ string, turn engine.Turn) (engine.Violation, bool) {
	if !turn.IsDebaterTurn() || len(s.rules) == 0 {
		return engine.Violation{}, false
	}
	text := strings.ToLower(util.OneLine(turn.Content))
	for _, r := range s.rules {
		if r.g.Match(text) {
			return engine.Violation{
				Reason: fmt.Sprintf("%s matched screening pattern %q", turn.Label, r.pattern),
				Intervention: "A reminder to both sides: address the arguments, not the speaker. " +
					"The debate continues with the next scheduled speech.",
			}, true
		}
	}
	return engine.Violation{}, false
}

var _ engine.Screener = (*PatternScreener)(nil)
