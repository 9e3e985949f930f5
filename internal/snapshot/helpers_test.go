package snapshot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

var (
	testCipherOnce sync.Once
	testCipher     *Cipher
	testCipherErr  error
)

// sharedCipher amortizes the scrypt derivation across tests.
func sharedCipher(t *testing.T) *Cipher {
	t.Helper()
	testCipherOnce.Do(func() {
		testCipher, testCipherErr = NewCipher("test-secret")
	})
	require.NoError(t, testCipherErr)
	return testCipher
}

func sampleRecord(id string) *Record {
	plan := turnplan.GeneratePlan(turnplan.FormatStandard, 4)
	started := time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.UTC)
	return &Record{
		ID:               id,
		Topic:            "Cities should ban cars",
		Format:           string(turnplan.FormatStandard),
		CurrentTurnIndex: 1,
		TotalTurns:       len(plan),
		Plan:             plan,
		CompletedTurns: []TurnRecord{{
			TurnConfig:   plan[0],
			Content:      "Welcome to the debate.",
			TokenCount:   42,
			InputTokens:  30,
			OutputTokens: 12,
			Provider:     "simulated",
			StartedAt:    FormatTime(started),
			CompletedAt:  FormatTime(started.Add(time.Second)),
		}},
		Status:       "in_progress",
		Providers:    map[string]string{"for": "simulated", "against": "simulated", "moderator": "simulated"},
		BudgetTokens: 20000,
		CreatedAt:    FormatTime(started.Add(-time.Minute)),
		StartedAt:    FormatTime(started),
	}
}
