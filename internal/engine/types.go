package engine

import (
	"time"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

// Turn is an executed plan entry.
type Turn struct {
	turnplan.TurnConfig

	Content      string    `json:"content"`
	TokenCount   int       `json:"tokenCount"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	Provider     string    `json:"provider"`
	StartedAt    time.Time `json:"startedAt"`
	CompletedAt  time.Time `json:"completedAt"`
}

// EngineState is the complete orchestration state of one session.
//
// len(CompletedTurns) always equals CurrentTurnIndex, and CompletedTurns[i]
// is the execution of Plan[i].
type EngineState struct {
	ID               string                      `json:"id"`
	Topic            string                      `json:"topic"`
	Format           turnplan.Format             `json:"format"`
	CurrentTurnIndex int                         `json:"currentTurnIndex"`
	TotalTurns       int                         `json:"totalTurns"`
	Plan             turnplan.Plan               `json:"plan"`
	CompletedTurns   []Turn                      `json:"completedTurns"`
	Status           Status                      `json:"status"`
	Error            string                      `json:"error,omitempty"`
	ErrorCode        string                      `json:"errorCode,omitempty"`
	EndReason        string                      `json:"endReason,omitempty"`
	Providers        map[turnplan.Speaker]string `json:"providers"`
	BudgetTokens     int                         `json:"budgetTokens"`
	WarningSent      bool                        `json:"warningSent,omitempty"`
	CreatedAt        time.Time                   `json:"createdAt"`
	UpdatedAt        time.Time                   `json:"updatedAt"`
	StartedAt        *time.Time                  `json:"startedAt,omitempty"`
	CompletedAt      *time.Time                  `json:"completedAt,omitempty"`
	Version          int64                       `json:"version"`
}

// Clone returns a deep copy.
func (s *EngineState) Clone() *EngineState {
	c := *s
	c.Plan = append(turnplan.Plan(nil), s.Plan...)
	c.CompletedTurns = append([]Turn(nil), s.CompletedTurns...)
	c.Providers = make(map[turnplan.Speaker]string, len(s.Providers))
	for k, v := range s.Providers {
		c.Providers[k] = v
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Progress is the completed fraction of the plan, in [0, 1].
func (s *EngineState) Progress() float64 {
	if s.TotalTurns == 0 {
		return 0
	}
	return float64(s.CurrentTurnIndex) / float64(s.TotalTurns)
}

// ProviderFor returns the provider id assigned to speaker.
func (s *EngineState) ProviderFor(speaker turnplan.Speaker) string {
	return s.Providers[speaker]
}

// TurnInfo is a read-only projection for progress displays.
type TurnInfo struct {
	SessionID        string               `json:"debateId"`
	Status           Status               `json:"status"`
	CurrentTurnIndex int                  `json:"currentTurnIndex"`
	TotalTurns       int                  `json:"totalTurns"`
	Progress         float64              `json:"progress"`
	CurrentTurn      *turnplan.TurnConfig `json:"currentTurn,omitempty"`
	LastTurn         *Turn                `json:"lastTurn,omitempty"`
	Error            string               `json:"error,omitempty"`
	ErrorCode        string               `json:"errorCode,omitempty"`
}

// SessionConfig describes a session to create.
type SessionConfig struct {
	Topic     string          `json:"topic"`
	Format    turnplan.Format `json:"format"`
	TurnCount int             `json:"turnCount"`
	// Providers overrides the default provider per speaker.
	Providers map[turnplan.Speaker]string `json:"providers,omitempty"`
	// BudgetTokens overrides the default token ceiling when positive.
	BudgetTokens int `json:"budgetTokens,omitempty"`
}
