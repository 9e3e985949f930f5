package engine

import (
	"time"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/budget"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/snapshot"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

// toRecord flattens state for the snapshot store.
func toRecord(s *EngineState, usage *budget.SessionUsage) *snapshot.Record {
	rec := &snapshot.Record{
		ID:               s.ID,
		Topic:            s.Topic,
		Format:           string(s.Format),
		CurrentTurnIndex: s.CurrentTurnIndex,
		TotalTurns:       s.TotalTurns,
		Plan:             append([]turnplan.TurnConfig(nil), s.Plan...),
		CompletedTurns:   make([]snapshot.TurnRecord, len(s.CompletedTurns)),
		Status:           string(s.Status),
		Error:            s.Error,
		ErrorCode:        s.ErrorCode,
		EndReason:        s.EndReason,
		Providers:        make(map[string]string, len(s.Providers)),
		BudgetTokens:     s.BudgetTokens,
		WarningSent:      s.WarningSent,
		Usage:            usage,
		CreatedAt:        snapshot.FormatTime(s.CreatedAt),
		UpdatedAt:        snapshot.FormatTime(s.UpdatedAt),
		StartedAt:        formatOptional(s.StartedAt),
		CompletedAt:      formatOptional(s.CompletedAt),
		Version:          s.Version,
	}
	for i, t := range s.CompletedTurns {
		rec.CompletedTurns[i] = snapshot.TurnRecord{
			TurnConfig:   t.TurnConfig,
			Content:      t.Content,
			TokenCount:   t.TokenCount,
			InputTokens:  t.InputTokens,
			OutputTokens: t.OutputTokens,
			Provider:     t.Provider,
			StartedAt:    snapshot.FormatTime(t.StartedAt),
			CompletedAt:  snapshot.FormatTime(t.CompletedAt),
		}
	}
	for speaker, provider := range s.Providers {
		rec.Providers[string(speaker)] = provider
	}
	return rec
}

// fromRecord rebuilds state from a snapshot record.
func fromRecord(rec *snapshot.Record) *EngineState {
	s := &EngineState{
		ID:               rec.ID,
		Topic:            rec.Topic,
		Format:           turnplan.Format(rec.Format),
		CurrentTurnIndex: rec.CurrentTurnIndex,
		TotalTurns:       rec.TotalTurns,
		Plan:             append(turnplan.Plan(nil), rec.Plan...),
		CompletedTurns:   make([]Turn, len(rec.CompletedTurns)),
		Status:           Status(rec.Status),
		Error:            rec.Error,
		ErrorCode:        rec.ErrorCode,
		EndReason:        rec.EndReason,
		Providers:        make(map[turnplan.Speaker]string, len(rec.Providers)),
		BudgetTokens:     rec.BudgetTokens,
		WarningSent:      rec.WarningSent,
		CreatedAt:        snapshot.ParseTime(rec.CreatedAt),
		UpdatedAt:        snapshot.ParseTime(rec.UpdatedAt),
		StartedAt:        parseOptional(rec.StartedAt),
		CompletedAt:      parseOptional(rec.CompletedAt),
		Version:          rec.Version,
	}
	for i, t := range rec.CompletedTurns {
		s.CompletedTurns[i] = Turn{
			TurnConfig:   t.TurnConfig,
			Content:      t.Content,
			TokenCount:   t.TokenCount,
			InputTokens:  t.InputTokens,
			OutputTokens: t.OutputTokens,
			Provider:     t.Provider,
			StartedAt:    snapshot.ParseTime(t.StartedAt),
			CompletedAt:  snapshot.ParseTime(t.CompletedAt),
		}
	}
	for speaker, provider := range rec.Providers {
		s.Providers[turnplan.Speaker(speaker)] = provider
	}
	return s
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return snapshot.FormatTime(*t)
}

func parseOptional(s string) *time.Time {
	t := snapshot.ParseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}
