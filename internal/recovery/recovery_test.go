package recovery

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLearner_RecordThenGetLearnedRecovery_ExactMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recovery.json")
	learner := New(path)

	for i := 0; i < 3; i++ {
		require.NoError(t, learner.RecordRecovery("HINT_NOT_FOUND", "Finder", "click", "retry_with_scroll", true))
	}

	got, err := learner.GetLearnedRecovery("HINT_NOT_FOUND", "Finder", "click")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "retry_with_scroll", got.RecoveryAction)
	assert.Equal(t, 1.0, got.SuccessRate)
}

func TestLearner_GetLearnedRecovery_DoesNotLeakAcrossApps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recovery.json")
	learner := New(path)

	for i := 0; i < 3; i++ {
		require.NoError(t, learner.RecordRecovery("TIMEOUT", "Slack", "click", "wait_and_retry", true))
	}

	got, err := learner.GetLearnedRecovery("TIMEOUT", "Discord", "click")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLearner_GetLearnedRecovery_FallsBackToGenericPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recovery.json")
	learner := New(path)

	for i := 0; i < 3; i++ {
		require.NoError(t, learner.RecordRecovery("TIMEOUT", "", "click", "wait_and_retry", true))
	}

	got, err := learner.GetLearnedRecovery("TIMEOUT", "Discord", "click")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "wait_and_retry", got.RecoveryAction)
}

func TestLearner_GetLearnedRecovery_BelowThresholdReturnsNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recovery.json")
	learner := New(path)

	require.NoError(t, learner.RecordRecovery("TIMEOUT", "Slack", "click", "wait_and_retry", true))
	require.NoError(t, learner.RecordRecovery("TIMEOUT", "Slack", "click", "wait_and_retry", false))

	got, err := learner.GetLearnedRecovery("TIMEOUT", "Slack", "click")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLearner_GetReliablePatterns_SortedBySuccessRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recovery.json")
	learner := New(path)

	for i := 0; i < 3; i++ {
		require.NoError(t, learner.RecordRecovery("A", "App1", "click", "r1", true))
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, learner.RecordRecovery("B", "App2", "click", "r2", i != 0))
	}

	patterns, err := learner.GetReliablePatterns()

	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.Equal(t, "r1", patterns[0].RecoveryAction)
}
