package orchestrator

import (
	"fmt"
	"sync"
	"time"
)

// Phase is a state of the sequential review pipeline.
type Phase string

const (
	PhaseStart      Phase = "START"
	PhaseAssembling Phase = "ASSEMBLING"
	PhaseReviewing  Phase = "REVIEWING"
	PhasePosting    Phase = "POSTING"
	PhaseDeciding   Phase = "DECIDING"
	PhaseHandingOff Phase = "HANDING_OFF"
	PhaseDone       Phase = "DONE"
	PhaseFailed     Phase = "FAILED"
)

// reviewTransitions is the linear order of the review pipeline.
// Any non-terminal phase may also move to FAILED.
var reviewTransitions = map[Phase]Phase{
	PhaseStart:      PhaseAssembling,
	PhaseAssembling: PhaseReviewing,
	PhaseReviewing:  PhasePosting,
	PhasePosting:    PhaseDeciding,
	PhaseDeciding:   PhaseHandingOff,
	PhaseHandingOff: PhaseDone,
}

// IsTerminal reports whether no further transitions are possible.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Transition is one recorded phase change.
type Transition struct {
	From Phase
	To   Phase
	At   time.Time
}

// PhaseState tracks a single pipeline run through its phases.
// Illegal transitions are rejected and leave the state unchanged.
type PhaseState struct {
	mu          sync.Mutex
	RunID       string
	Current     Phase
	FailedStage string
	Err         error
	History     []Transition
	StartTime   time.Time
}

// NewPhaseState creates a tracker in the START phase.
func NewPhaseState(runID string) *PhaseState {
	return &PhaseState{
		RunID:     runID,
		Current:   PhaseStart,
		StartTime: time.Now(),
	}
}

// Phase returns the current phase.
func (ps *PhaseState) Phase() Phase {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.Current
}

// Advance moves to the next phase, which must be the successor of the current one.
func (ps *PhaseState) Advance(to Phase) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if next, ok := reviewTransitions[ps.Current]; !ok || next != to {
		return fmt.Errorf("illegal phase transition %s -> %s", ps.Current, to)
	}
	ps.record(to)
	return nil
}

// Fail moves a non-terminal run to FAILED, remembering the stage and cause.
func (ps *PhaseState) Fail(stage string, cause error) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.Current.IsTerminal() {
		return fmt.Errorf("illegal phase transition %s -> %s", ps.Current, PhaseFailed)
	}
	ps.FailedStage = stage
	ps.Err = cause
	ps.record(PhaseFailed)
	return nil
}

func (ps *PhaseState) record(to Phase) {
	ps.History = append(ps.History, Transition{From: ps.Current, To: to, At: time.Now()})
	ps.Current = to
}
