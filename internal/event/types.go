package event

import (
	"time"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

// Kind identifies an event. The set is closed.
type Kind string

const (
	KindDebateStarted     Kind = "debate_started"
	KindTurnStarted       Kind = "turn_started"
	KindTurnStreaming     Kind = "turn_streaming"
	KindTurnCompleted     Kind = "turn_completed"
	KindTurnError         Kind = "turn_error"
	KindViolationDetected Kind = "violation_detected"
	KindIntervention      Kind = "intervention"
	KindProgressUpdate    Kind = "progress_update"
	KindBudgetWarning     Kind = "budget_warning"
	KindDebateCompleted   Kind = "debate_completed"
	KindDebatePaused      Kind = "debate_paused"
	KindDebateResumed     Kind = "debate_resumed"
	KindDebateCancelled   Kind = "debate_cancelled"
	KindDebateError       Kind = "debate_error"
	KindHeartbeat         Kind = "heartbeat"
)

// Kinds returns every event kind.
func Kinds() []Kind {
	return []Kind{
		KindDebateStarted, KindTurnStarted, KindTurnStreaming, KindTurnCompleted,
		KindTurnError, KindViolationDetected, KindIntervention, KindProgressUpdate,
		KindBudgetWarning, KindDebateCompleted, KindDebatePaused, KindDebateResumed,
		KindDebateCancelled, KindDebateError, KindHeartbeat,
	}
}

// IsValid reports whether k belongs to the closed set.
func (k Kind) IsValid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether k ends a session's event stream.
func (k Kind) IsTerminal() bool {
	switch k {
	case KindDebateCompleted, KindDebateCancelled, KindDebateError:
		return true
	}
	return false
}

// TurnRef identifies the turn an event is about.
type TurnRef struct {
	ID      string           `json:"turnId"`
	Number  int              `json:"turnNumber"`
	Speaker turnplan.Speaker `json:"speaker"`
	Label   string           `json:"label"`
	Kind    turnplan.Kind    `json:"turnKind"`
}

// RefFor builds a TurnRef from a plan entry.
func RefFor(tc turnplan.TurnConfig) *TurnRef {
	return &TurnRef{
		ID:      tc.ID,
		Number:  tc.Number(),
		Speaker: tc.Speaker,
		Label:   tc.Label,
		Kind:    tc.Kind,
	}
}

// Progress is carried by progress_update and debate lifecycle events.
type Progress struct {
	CurrentTurn int     `json:"currentTurn"`
	TotalTurns  int     `json:"totalTurns"`
	Percent     float64 `json:"percent"`
}

// Budget is carried by budget_warning events.
type Budget struct {
	TotalTokens        int     `json:"totalTokens"`
	BudgetTokens       int     `json:"budgetTokens"`
	RemainingTokens    int     `json:"remainingTokens"`
	UtilizationPercent int     `json:"utilizationPercent"`
	TotalCostUSD       float64 `json:"totalCostUsd"`
}

// Event is one message on a session's stream. Seq is assigned by the Bus and
// increases by one per published event within a session. Retryable is set
// on turn_error when the failure was transient.
type Event struct {
	*TurnRef

	Seq        uint64    `json:"seq"`
	Kind       Kind      `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"debateId"`
	Content    string    `json:"content,omitempty"`
	Chunk      string    `json:"chunk,omitempty"`
	TokenCount int       `json:"tokenCount,omitempty"`
	Error      string    `json:"error,omitempty"`
	Code       string    `json:"code,omitempty"`
	Retryable  bool      `json:"retryable,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Progress   *Progress `json:"progress,omitempty"`
	Budget     *Budget   `json:"budget,omitempty"`
}

// New creates an event stamped with the current time.
func New(kind Kind, sessionID string) Event {
	return Event{Kind: kind, SessionID: sessionID, Timestamp: time.Now().UTC()}
}

// ForTurn creates a turn-scoped event.
func ForTurn(kind Kind, sessionID string, tc turnplan.TurnConfig) Event {
	e := New(kind, sessionID)
	e.TurnRef = RefFor(tc)
	return e
}
