package orchestrator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhaseState(t *testing.T) {
	ps := NewPhaseState("run-123")

	assert.Equal(t, "run-123", ps.RunID)
	assert.Equal(t, PhaseStart, ps.Phase())
	assert.Empty(t, ps.History)
	assert.False(t, ps.StartTime.IsZero())
}

func TestPhaseState_LinearPath(t *testing.T) {
	ps := NewPhaseState("run")

	for _, p := range []Phase{PhaseAssembling, PhaseReviewing, PhasePosting, PhaseDeciding, PhaseHandingOff, PhaseDone} {
		require.NoError(t, ps.Advance(p))
		assert.Equal(t, p, ps.Phase())
	}

	assert.Len(t, ps.History, 6)
	assert.Equal(t, PhaseStart, ps.History[0].From)
	assert.True(t, ps.Phase().IsTerminal())
}

func TestPhaseState_IllegalTransitions(t *testing.T) {
	ps := NewPhaseState("run")

	err := ps.Advance(PhasePosting)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "START -> POSTING")
	assert.Equal(t, PhaseStart, ps.Phase(), "state unchanged after rejected transition")

	require.NoError(t, ps.Advance(PhaseAssembling))
	assert.Error(t, ps.Advance(PhaseAssembling), "no self transitions")
	assert.Error(t, ps.Advance(PhaseFailed), "failure goes through Fail")
}

func TestPhaseState_Fail(t *testing.T) {
	ps := NewPhaseState("run")
	require.NoError(t, ps.Advance(PhaseAssembling))
	require.NoError(t, ps.Advance(PhaseReviewing))

	cause := errors.New("runner crashed")
	require.NoError(t, ps.Fail("review", cause))
	assert.Equal(t, PhaseFailed, ps.Phase())
	assert.Equal(t, "review", ps.FailedStage)
	assert.Equal(t, cause, ps.Err)

	assert.Error(t, ps.Fail("review", cause), "already terminal")
	assert.Error(t, ps.Advance(PhasePosting))
}

func TestPhaseState_CannotFailAfterDone(t *testing.T) {
	ps := NewPhaseState("run")
	for _, p := range []Phase{PhaseAssembling, PhaseReviewing, PhasePosting, PhaseDeciding, PhaseHandingOff, PhaseDone} {
		require.NoError(t, ps.Advance(p))
	}
	assert.Error(t, ps.Fail("handoff", errors.New("late")))
	assert.Equal(t, PhaseDone, ps.Phase())
}
