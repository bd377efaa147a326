package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/dyluth/romp/internal/ledger"
	"github.com/dyluth/romp/internal/stage"
	"github.com/dyluth/romp/internal/store"
	"github.com/dyluth/romp/pkg/blackboard"
)

// Review stage names, in execution order.
const (
	StageAssemble = "assemble"
	StageReview   = "review"
	StagePost     = "post"
	StageDecide   = "decide"
	StageHandoff  = "handoff"
)

// reviewStage is one row of the pipeline's allow-list table.
type reviewStage struct {
	name         string
	phase        Phase
	instructions string
	operations   []store.Operation
	tools        []string
	access       store.Access
	needs        []string
	after        []string
	expect       Expectation
}

var reviewStages = []reviewStage{
	{
		name:         StageAssemble,
		phase:        PhaseAssembling,
		instructions: assembleInstructions,
		operations:   []store.Operation{store.OpAssemble, store.OpWhy, store.OpRead, store.OpRecent},
		access:       store.ReadOnly,
	},
	{
		name:         StageReview,
		phase:        PhaseReviewing,
		instructions: reviewInstructions,
		tools:        []string{"Read", "Glob", "Grep"},
		access:       store.ReadOnly,
		needs:        []string{StageAssemble},
	},
	{
		name:         StagePost,
		phase:        PhasePosting,
		instructions: postInstructions,
		operations:   []store.Operation{store.OpPost},
		access:       store.ReadWrite,
		needs:        []string{StageReview},
		expect:       Expectation{EntryTypes: blackboard.AgentEntryTypes},
	},
	{
		name:         StageDecide,
		phase:        PhaseDeciding,
		instructions: decideInstructions,
		operations:   []store.Operation{store.OpDecide, store.OpSearchDecisions},
		access:       store.ReadWrite,
		needs:        []string{StageReview},
		after:        []string{StagePost},
	},
	{
		name:         StageHandoff,
		phase:        PhaseHandingOff,
		instructions: handoffInstructions,
		operations:   []store.Operation{store.OpHandoff, store.OpPost},
		access:       store.ReadWrite,
		needs:        []string{StageReview, StagePost},
		expect:       Expectation{Handoff: true},
	},
}

// ReviewResult is the outcome of one pipeline run.
type ReviewResult struct {
	RunID    string
	Scope    string
	State    *PhaseState
	Stages   []*stage.Result
	Warnings []ComplianceWarning
}

// Stage returns the result of the named stage, or nil if it did not complete.
func (r *ReviewResult) Stage(name string) *stage.Result {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s
		}
	}
	return nil
}

// ReviewPipeline runs one agent through the five review stages in order.
type ReviewPipeline struct {
	*coordinator
	// Agent is the identity the stages run as. Defaults to "main".
	Agent string
}

// NewReviewPipeline creates a pipeline.
func NewReviewPipeline(cfg Config, agent string) (*ReviewPipeline, error) {
	c, err := newCoordinator(cfg)
	if err != nil {
		return nil, err
	}
	if agent == "" {
		agent = blackboard.DefaultAgentID
	}
	return &ReviewPipeline{coordinator: c, Agent: agent}, nil
}

// StageNames returns the pipeline's stages in execution order.
func StageNames() []string {
	names := make([]string, 0, len(reviewStages))
	for _, s := range reviewStages {
		names = append(names, s.name)
	}
	return names
}

// Run reviews scope. Each stage receives the results of the stages it needs as
// prior context. The first failing stage aborts the run; the returned result
// still carries the state and any stages that completed.
func (p *ReviewPipeline) Run(ctx context.Context, scope string) (*ReviewResult, error) {
	if strings.TrimSpace(scope) == "" {
		return nil, &blackboard.ValidationError{Kind: "review", Field: "scope", Reason: "is required"}
	}

	runID := p.startRun(ctx, ledger.KindReview, scope)
	state := NewPhaseState(runID)
	result := &ReviewResult{RunID: runID, Scope: scope, State: state}
	var mu sync.Mutex

	log.Printf("[INFO] Starting review pipeline: run=%s scope=%s agent=%s", runID, scope, p.Agent)

	// Stages run strictly one at a time.
	g := NewGraph(1)
	total := len(reviewStages)
	for i, rs := range reviewStages {
		seq := i + 1
		rs := rs
		node := Node{
			Name:  rs.name,
			Needs: rs.needs,
			After: rs.after,
			Run: func(ctx context.Context, inputs []Input) (string, error) {
				if err := state.Advance(rs.phase); err != nil {
					return "", err
				}
				res, warnings, err := p.runStage(ctx, stageRun{
					runID:  runID,
					seq:    seq,
					total:  total,
					scope:  scope,
					expect: rs.expect,
					stage: stage.Stage{
						Name:         rs.name,
						Agent:        p.Agent,
						Instructions: stageInstructions(rs.instructions, scope),
						PriorContext: joinInputs(inputs),
						Operations:   rs.operations,
						Tools:        rs.tools,
						Access:       rs.access,
					},
				})

				mu.Lock()
				result.Warnings = append(result.Warnings, warnings...)
				if res != nil && err == nil {
					result.Stages = append(result.Stages, res)
				}
				mu.Unlock()

				if err != nil {
					if failErr := state.Fail(rs.name, err); failErr != nil {
						log.Printf("[WARN] Could not record failure: run=%s error=%v", runID, failErr)
					}
					return "", err
				}
				return res.Text, nil
			},
		}
		if err := g.Add(node); err != nil {
			return nil, fmt.Errorf("failed to build review pipeline: %w", err)
		}
	}

	_, err := g.Run(ctx)
	if err == nil {
		err = state.Advance(PhaseDone)
	} else if !state.Phase().IsTerminal() {
		// Cancelled between stages.
		_ = state.Fail(string(state.Phase()), err)
	}
	p.finishRun(runID, err)

	if err != nil {
		log.Printf("[ERROR] Review pipeline failed: run=%s stage=%s error=%v", runID, state.FailedStage, err)
		return result, err
	}
	log.Printf("[INFO] Review pipeline completed: run=%s stages=%d warnings=%d", runID, len(result.Stages), len(result.Warnings))
	return result, nil
}
