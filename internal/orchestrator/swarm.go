package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/romp/internal/ledger"
	"github.com/dyluth/romp/internal/stage"
	"github.com/dyluth/romp/internal/store"
	"github.com/dyluth/romp/pkg/blackboard"
)

// SwarmStageName is the stage name every swarm agent runs under.
const SwarmStageName = "task"

// DefaultBarrierTimeout bounds how long an agent waits for a dependency's handoff.
const DefaultBarrierTimeout = 2 * time.Minute

// Barrier blocks until an agent's handoff is visible in the store.
type Barrier interface {
	WaitForHandoff(ctx context.Context, sourceAgent string, sinceMs int64) (*blackboard.Handoff, error)
}

// AgentSpec describes one swarm agent.
type AgentSpec struct {
	Name       string
	RolePrompt string
	TaskPrompt string
	Scope      string
	Operations []store.Operation
	Tools      []string
	// DependsOn names the agents that must finish first. Nil means the
	// previous agent in the list; an empty non-nil slice means none.
	DependsOn []string
	// AwaitHandoff additionally waits for each dependency's handoff record.
	AwaitHandoff bool
	Expect       Expectation
}

func (a AgentSpec) instructions() string {
	role := strings.TrimSpace(a.RolePrompt)
	task := strings.TrimSpace(a.TaskPrompt)
	if role == "" {
		return task
	}
	return role + "\n\n" + task
}

// AgentResult is the outcome of one swarm agent.
type AgentResult struct {
	Name     string
	Scope    string
	Result   *stage.Result
	Warnings []ComplianceWarning
}

// Swarm runs several agents that share state only through the store.
type Swarm struct {
	*coordinator
	// MaxParallel bounds agents running at once. Values below 1 mean 1.
	MaxParallel int
	// Barrier is required when any agent sets AwaitHandoff.
	Barrier        Barrier
	BarrierTimeout time.Duration
}

// NewSwarm creates a swarm runner.
func NewSwarm(cfg Config, barrier Barrier) (*Swarm, error) {
	c, err := newCoordinator(cfg)
	if err != nil {
		return nil, err
	}
	return &Swarm{coordinator: c, MaxParallel: 1, Barrier: barrier, BarrierTimeout: DefaultBarrierTimeout}, nil
}

// DefaultSwarm is the two-agent review: auth-reviewer hands off to db-reviewer,
// which delegates what is left.
func DefaultSwarm() []AgentSpec {
	reviewTools := []string{"Read", "Glob", "Grep"}
	return []AgentSpec{
		{
			Name:       "auth-reviewer",
			RolePrompt: authReviewerRole,
			TaskPrompt: authReviewerTask,
			Scope:      "src/auth/",
			Operations: []store.Operation{store.OpAssemble, store.OpPost, store.OpDecide, store.OpHandoff},
			Tools:      reviewTools,
			Expect: Expectation{
				EntryTypes: blackboard.AgentEntryTypes,
				Decision:   true,
				Handoff:    true,
			},
		},
		{
			Name:         "db-reviewer",
			RolePrompt:   dbReviewerRole,
			TaskPrompt:   dbReviewerTask,
			Scope:        "src/db/",
			Operations:   []store.Operation{store.OpAssemble, store.OpDecide, store.OpDelegate},
			Tools:        reviewTools,
			AwaitHandoff: true,
			Expect: Expectation{
				Decision:            true,
				HandoffOrDelegation: true,
			},
		},
	}
}

// validateSpecs checks names and resolves each agent's dependencies.
func (s *Swarm) validateSpecs(specs []AgentSpec) (map[string][]string, error) {
	if len(specs) == 0 {
		return nil, &blackboard.ValidationError{Kind: "swarm", Field: "agents", Reason: "must not be empty"}
	}

	deps := make(map[string][]string, len(specs))
	for i, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, &blackboard.ValidationError{Kind: "swarm", Field: "name", Reason: fmt.Sprintf("agent %d has no name", i)}
		}
		if _, dup := deps[spec.Name]; dup {
			return nil, &blackboard.ValidationError{Kind: "swarm", Field: "name", Reason: fmt.Sprintf("duplicate agent %s", spec.Name)}
		}
		if spec.AwaitHandoff && s.Barrier == nil {
			return nil, fmt.Errorf("agent %s awaits a handoff but the swarm has no barrier", spec.Name)
		}

		switch {
		case spec.DependsOn != nil:
			deps[spec.Name] = spec.DependsOn
		case i > 0:
			deps[spec.Name] = []string{specs[i-1].Name}
		default:
			deps[spec.Name] = nil
		}
	}
	return deps, nil
}

// RunSwarm runs the agents as a dependency graph. Agents see no output of
// other agents except through the store. Results are returned in agent order
// for every agent that completed, including when the run fails.
func (s *Swarm) RunSwarm(ctx context.Context, specs []AgentSpec) ([]AgentResult, error) {
	deps, err := s.validateSpecs(specs)
	if err != nil {
		return nil, err
	}

	runID := s.startRun(ctx, ledger.KindSwarm, swarmScopes(specs))
	runStartMs := s.now().UnixMilli()
	log.Printf("[INFO] Starting swarm: run=%s agents=%d", runID, len(specs))

	var mu sync.Mutex
	results := make(map[string]AgentResult, len(specs))

	g := NewGraph(s.MaxParallel)
	for i, spec := range specs {
		spec := spec
		seq := i + 1
		node := Node{
			Name:  spec.Name,
			After: deps[spec.Name],
			Run: func(ctx context.Context, _ []Input) (string, error) {
				if spec.AwaitHandoff {
					if err := s.awaitHandoffs(ctx, spec.Name, deps[spec.Name], runStartMs); err != nil {
						return "", asStageError(spec.Name, SwarmStageName, err)
					}
				}

				scope := spec.Scope
				if scope == "" {
					scope = blackboard.DefaultScope
				}
				res, warnings, err := s.runStage(ctx, stageRun{
					runID:  runID,
					seq:    seq,
					total:  len(specs),
					scope:  scope,
					expect: spec.Expect,
					stage: stage.Stage{
						Name:         SwarmStageName,
						Agent:        spec.Name,
						Instructions: spec.instructions(),
						Operations:   spec.Operations,
						Tools:        spec.Tools,
						Access:       store.ReadWrite,
					},
				})
				if err != nil {
					return "", err
				}

				mu.Lock()
				results[spec.Name] = AgentResult{Name: spec.Name, Scope: scope, Result: res, Warnings: warnings}
				mu.Unlock()
				return res.Text, nil
			},
		}
		if err := g.Add(node); err != nil {
			return nil, fmt.Errorf("failed to build swarm: %w", err)
		}
	}

	_, runErr := g.Run(ctx)
	s.finishRun(runID, runErr)

	ordered := make([]AgentResult, 0, len(results))
	for _, spec := range specs {
		if r, ok := results[spec.Name]; ok {
			ordered = append(ordered, r)
		}
	}

	if runErr != nil {
		log.Printf("[ERROR] Swarm failed: run=%s completed=%d error=%v", runID, len(ordered), runErr)
		return ordered, runErr
	}
	log.Printf("[INFO] Swarm completed: run=%s agents=%d", runID, len(ordered))
	return ordered, nil
}

func (s *Swarm) awaitHandoffs(ctx context.Context, agent string, sources []string, sinceMs int64) error {
	timeout := s.BarrierTimeout
	if timeout <= 0 {
		timeout = DefaultBarrierTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, source := range sources {
		log.Printf("[INFO] Waiting for handoff: agent=%s source=%s", agent, source)
		h, err := s.Barrier.WaitForHandoff(waitCtx, source, sinceMs)
		if err != nil {
			return fmt.Errorf("no handoff from %s: %w", source, err)
		}
		log.Printf("[INFO] Handoff visible: agent=%s source=%s handoff=%s", agent, source, h.ID)
	}
	return nil
}

func swarmScopes(specs []AgentSpec) string {
	scopes := make([]string, 0, len(specs))
	for _, spec := range specs {
		if spec.Scope != "" {
			scopes = append(scopes, spec.Scope)
		}
	}
	return strings.Join(scopes, ",")
}
