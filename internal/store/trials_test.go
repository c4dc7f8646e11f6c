package store

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contracts "github.com/vsbuffalo/modelops-contracts"
)

func TestAddPending(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	paramID := testParamID(t, 2.5)

	inserted, err := l.AddPending(ctx, paramID)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Re-adding is a no-op, not an error.
	inserted, err = l.AddPending(ctx, paramID)
	require.NoError(t, err)
	assert.False(t, inserted)

	trial, err := l.Trial(ctx, paramID)
	require.NoError(t, err)
	assert.Equal(t, StatePending, trial.State)
	assert.Nil(t, trial.Loss)
}

func TestAddPendingRejectsMalformedID(t *testing.T) {
	_, err := openTestLedger(t).AddPending(context.Background(), "not-a-digest")
	require.Error(t, err)
}

func TestLeaseMarksAndLimits(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	var ids []string
	for _, r0 := range []float64{1.1, 2.2, 3.3} {
		id := testParamID(t, r0)
		_, err := l.AddPending(ctx, id)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	leased, err := l.Lease(ctx, "worker-1", 2)
	require.NoError(t, err)
	assert.Len(t, leased, 2)

	for _, id := range leased {
		trial, err := l.Trial(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StateLeased, trial.State)
		assert.Equal(t, "worker-1", trial.LeaseID)
	}

	pending, err := l.ListByState(ctx, StatePending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	// Second lease drains the remainder; a third finds nothing.
	leased, err = l.Lease(ctx, "worker-2", 5)
	require.NoError(t, err)
	assert.Len(t, leased, 1)

	leased, err = l.Lease(ctx, "worker-3", 5)
	require.NoError(t, err)
	assert.Empty(t, leased)

	_ = ids
}

func TestLeaseValidation(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	_, err := l.Lease(ctx, "worker-1", 0)
	require.Error(t, err)
	_, err = l.Lease(ctx, "", 1)
	require.Error(t, err)
}

func TestTellMovesLeasedTrialToTerminal(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	paramID := testParamID(t, 2.5)

	_, err := l.AddPending(ctx, paramID)
	require.NoError(t, err)
	_, err = l.Lease(ctx, "worker-1", 1)
	require.NoError(t, err)

	require.NoError(t, l.Tell(ctx, completedResult(t, paramID, 0.42)))

	trial, err := l.Trial(ctx, paramID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, trial.State)
	require.NotNil(t, trial.Loss)
	assert.Equal(t, 0.42, *trial.Loss)
	assert.NotEmpty(t, trial.ToldAt)
}

func TestTellUnknownParamRecordsDirectly(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	paramID := testParamID(t, 9.9)

	require.NoError(t, l.Tell(ctx, completedResult(t, paramID, 1.0)))

	trial, err := l.Trial(ctx, paramID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, trial.State)
}

func TestTellIdenticalResultIsNoOp(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	paramID := testParamID(t, 2.5)

	result := completedResult(t, paramID, 0.42)
	require.NoError(t, l.Tell(ctx, result))
	require.NoError(t, l.Tell(ctx, result))

	counts, err := l.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[State]int{StateCompleted: 1}, counts)
}

func TestTellConflictingResultRejected(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	paramID := testParamID(t, 2.5)

	require.NoError(t, l.Tell(ctx, completedResult(t, paramID, 0.42)))

	err := l.Tell(ctx, completedResult(t, paramID, 0.43))
	require.ErrorIs(t, err, ErrResultConflict)

	// A different terminal status is a conflict too.
	failed, err2 := contracts.NewTrialResult(paramID, contracts.TrialFailed, math.NaN(),
		map[string]any{"error": "solver diverged"})
	require.NoError(t, err2)
	require.ErrorIs(t, l.Tell(ctx, failed), ErrResultConflict)

	// The stored result is unchanged.
	trial, err := l.Trial(ctx, paramID)
	require.NoError(t, err)
	require.NotNil(t, trial.Loss)
	assert.Equal(t, 0.42, *trial.Loss)
}

func TestTellFailedTrialStoresNullLoss(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	paramID := testParamID(t, 2.5)

	failed, err := contracts.NewTrialResult(paramID, contracts.TrialFailed, math.NaN(),
		map[string]any{"error": "solver diverged"})
	require.NoError(t, err)
	require.NoError(t, l.Tell(ctx, failed))

	trial, err := l.Trial(ctx, paramID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, trial.State)
	assert.Nil(t, trial.Loss)
	assert.Contains(t, string(trial.Diagnostics), "solver diverged")
}

func TestTrialNotFound(t *testing.T) {
	_, err := openTestLedger(t).Trial(context.Background(), testParamID(t, 2.5))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCountByState(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	a, b, c := testParamID(t, 1.0), testParamID(t, 2.0), testParamID(t, 3.0)
	for _, id := range []string{a, b, c} {
		_, err := l.AddPending(ctx, id)
		require.NoError(t, err)
	}
	_, err := l.Lease(ctx, "worker-1", 1)
	require.NoError(t, err)
	require.NoError(t, l.Tell(ctx, completedResult(t, c, 0.1)))

	counts, err := l.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[StatePending]+counts[StateLeased]+counts[StateCompleted])
	assert.Equal(t, 1, counts[StateCompleted])
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateLeased.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateTimeout.Terminal())
}
