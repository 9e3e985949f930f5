package budget

import (
	"math"
	"time"
)

// UsageRecord is the usage of one completed turn.
type UsageRecord struct {
	TurnID       string    `json:"turnId"`
	Provider     string    `json:"provider"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	CostUSD      float64   `json:"costUsd"`
	RecordedAt   time.Time `json:"recordedAt"`
}

// TotalTokens returns input plus output tokens.
func (r UsageRecord) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// SessionUsage accumulates the usage of one session.
type SessionUsage struct {
	SessionID                string        `json:"sessionId"`
	Records                  []UsageRecord `json:"records"`
	TotalInputTokens         int           `json:"totalInputTokens"`
	TotalOutputTokens        int           `json:"totalOutputTokens"`
	TotalTokens              int           `json:"totalTokens"`
	TotalCostUSD             float64       `json:"totalCostUsd"`
	BudgetTokens             int           `json:"budgetTokens"`
	BudgetRemainingTokens    int           `json:"budgetRemainingTokens"`
	BudgetUtilizationPercent int           `json:"budgetUtilizationPercent"`
}

func newSessionUsage(sessionID string, budgetTokens int) *SessionUsage {
	u := &SessionUsage{SessionID: sessionID, BudgetTokens: budgetTokens}
	u.recompute()
	return u
}

func (u *SessionUsage) add(r UsageRecord) {
	u.Records = append(u.Records, r)
	u.TotalInputTokens += r.InputTokens
	u.TotalOutputTokens += r.OutputTokens
	u.TotalTokens += r.TotalTokens()
	u.TotalCostUSD = roundCost(u.TotalCostUSD + r.CostUSD)
	u.recompute()
}

func (u *SessionUsage) recompute() {
	u.BudgetRemainingTokens = max(0, u.BudgetTokens-u.TotalTokens)
	u.BudgetUtilizationPercent = utilization(u.TotalTokens, u.BudgetTokens)
}

// utilization is round(used/budget*100) clamped to [0, 100]. A session with
// no budget is fully utilized as soon as it uses anything.
func utilization(used, budget int) int {
	if budget <= 0 {
		if used > 0 {
			return 100
		}
		return 0
	}
	pct := int(math.Round(float64(used) / float64(budget) * 100))
	return min(max(pct, 0), 100)
}

// Exhausted reports whether the budget has no tokens left.
func (u *SessionUsage) Exhausted() bool {
	return u.BudgetRemainingTokens <= 0
}

// WouldExceed reports whether spending additional tokens would go over budget.
func (u *SessionUsage) WouldExceed(additional int) bool {
	return u.TotalTokens+additional > u.BudgetTokens
}

func (u *SessionUsage) clone() *SessionUsage {
	c := *u
	c.Records = append([]UsageRecord(nil), u.Records...)
	return &c
}
