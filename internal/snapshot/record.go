package snapshot

import (
	"time"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/budget"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

// Record is the flattened form of a session's state.
type Record struct {
	ID               string                `json:"id"`
	Topic            string                `json:"topic"`
	Format           string                `json:"format"`
	CurrentTurnIndex int                   `json:"currentTurnIndex"`
	TotalTurns       int                   `json:"totalTurns"`
	Plan             []turnplan.TurnConfig `json:"plan"`
	CompletedTurns   []TurnRecord          `json:"completedTurns"`
	Status           string                `json:"status"`
	Error            string                `json:"error,omitempty"`
	ErrorCode        string                `json:"errorCode,omitempty"`
	EndReason        string                `json:"endReason,omitempty"`
	Providers        map[string]string     `json:"providers,omitempty"`
	BudgetTokens     int                   `json:"budgetTokens"`
	WarningSent      bool                  `json:"warningSent,omitempty"`
	Usage            *budget.SessionUsage  `json:"usage,omitempty"`
	CreatedAt        string                `json:"createdAt"`
	UpdatedAt        string                `json:"updatedAt"`
	StartedAt        string                `json:"startedAt,omitempty"`
	CompletedAt      string                `json:"completedAt,omitempty"`
	Version          int64                 `json:"version"`
}

// TurnRecord is one executed turn.
type TurnRecord struct {
	turnplan.TurnConfig
	Content      string `json:"content"`
	TokenCount   int    `json:"tokenCount"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	Provider     string `json:"provider"`
	StartedAt    string `json:"startedAt"`
	CompletedAt  string `json:"completedAt"`
}

// FormatTime renders t for a record; the zero time becomes "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime is the inverse of FormatTime. Unparseable values yield the zero
// time.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
