package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/romp/internal/runner"
	"github.com/dyluth/romp/internal/stage"
	"github.com/dyluth/romp/internal/store"
	"github.com/dyluth/romp/internal/testutil"
	"github.com/dyluth/romp/internal/watch"
	"github.com/dyluth/romp/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// swarmAgents plays auth-reviewer and db-reviewer against a real board. The
// db reviewer's assemble output is captured for inspection.
type swarmAgents struct {
	inv *recordingInvoker

	mu         sync.Mutex
	dbAssemble string
}

func (s *swarmAgents) behave(ctx context.Context, call testutil.Call) (runner.Stream, error) {
	agent := call.Options.AgentID
	var msgs []runner.Message
	do := func(op store.Operation, args interface{}) string {
		use, out := s.inv.call(ctx, agent, op, args)
		msgs = append(msgs, use)
		return out
	}

	switch agent {
	case "auth-reviewer":
		do(store.OpAssemble, map[string]string{"task": "Code review of authentication module", "scope": "src/auth/"})
		do(store.OpPost, map[string]interface{}{
			"entry_type": "warning",
			"summary":    "Refresh endpoint skips token expiry check",
			"scope":      "src/auth/jwt.go",
			"tags":       []string{"code-review", "auth"},
		})
		do(store.OpDecide, map[string]interface{}{
			"domain":       "security",
			"scope":        "src/auth/",
			"summary":      "Check token expiry on refresh",
			"context":      "refresh accepts expired tokens",
			"rationale":    "stops indefinite sessions",
			"confidence":   "high",
			"alternatives": []map[string]string{{"option": "rotate signing keys", "reason_rejected": "does not fix the check"}},
		})
		do(store.OpHandoff, map[string]interface{}{
			"target_agent": "db-reviewer",
			"summary":      "Auth review complete; session table writes need a look",
			"scope":        "src/auth/",
			"results":      []map[string]string{{"description": "reviewed token handling", "status": "completed"}},
		})
		msgs = append(msgs, testutil.Result("auth review done"))

	case "db-reviewer":
		bundle := do(store.OpAssemble, map[string]string{"task": "Code review of database layer", "scope": "src/db/"})
		s.mu.Lock()
		s.dbAssemble = bundle
		s.mu.Unlock()
		do(store.OpDecide, map[string]interface{}{
			"domain":       "performance",
			"scope":        "src/db/",
			"summary":      "Batch session lookups",
			"context":      "auth handoff flagged session writes",
			"rationale":    "removes N+1 queries",
			"alternatives": []map[string]string{{"option": "add a cache", "reason_rejected": "hides the query pattern"}},
		})
		do(store.OpDelegate, map[string]interface{}{
			"summary":               "Performance profiling needed for slow database queries",
			"required_capabilities": []string{"Database", "performance-testing"},
			"urgency":               "normal",
			"scope":                 "src/db/",
		})
		msgs = append(msgs, testutil.Result("db review done"))

	default:
		return nil, errors.New("unknown agent " + agent)
	}
	return testutil.Messages(msgs...), nil
}

func (s *swarmAgents) assembled() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbAssemble
}

func newTestSwarm(t *testing.T, fake *testutil.FakeRunner, cfg Config, barrier Barrier) *Swarm {
	t.Helper()
	cfg.Executor = stage.NewExecutor(fake, nil)
	s, err := NewSwarm(cfg, barrier)
	require.NoError(t, err)
	return s
}

func TestSwarm_EndToEnd(t *testing.T) {
	for _, mode := range []blackboard.ScopeMode{blackboard.ScopeModePrefix, blackboard.ScopeModeTree} {
		t.Run(string(mode), func(t *testing.T) {
			ctx := context.Background()
			board, client := testutil.NewBoard(t, "main", mode)
			log := &opLog{}
			agents := &swarmAgents{inv: &recordingInvoker{board: board, log: log}}
			fake := &testutil.FakeRunner{Behave: agents.behave}
			s := newTestSwarm(t, fake, Config{Auditor: board, Compliance: ComplianceEnforce}, watch.NewHandoffBarrier(client, time.Second))

			results, err := s.RunSwarm(ctx, DefaultSwarm())
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, "auth-reviewer", results[0].Name)
			assert.Equal(t, "db-reviewer", results[1].Name)
			assert.Equal(t, "db review done", results[1].Result.Text)
			assert.Empty(t, results[0].Warnings)
			assert.Empty(t, results[1].Warnings)

			// Write-then-read: B assembles only after A's handoff landed.
			handoffAt := log.indexOf("auth-reviewer:handoff")
			assembleAt := log.indexOf("db-reviewer:assemble")
			require.GreaterOrEqual(t, handoffAt, 0)
			assert.Greater(t, assembleAt, handoffAt)

			bundle := agents.assembled()
			assert.Contains(t, bundle, "Auth review complete; session table writes need a look", "handoff targeted at db-reviewer is always included")
			if mode == blackboard.ScopeModeTree {
				assert.Contains(t, bundle, "Check token expiry on refresh", "src/auth/ and src/db/ share a root")
				assert.Contains(t, bundle, "Refresh endpoint skips token expiry check")
			} else {
				assert.NotContains(t, bundle, "Check token expiry on refresh", "prefix matching keeps unrelated scopes apart")
			}

			handoffs, err := client.ListHandoffs(ctx, blackboard.TimeRange{})
			require.NoError(t, err)
			require.Len(t, handoffs, 1)
			assert.Equal(t, "auth-reviewer", handoffs[0].SourceAgent)
			assert.Equal(t, "db-reviewer", handoffs[0].TargetAgent)

			delegations, err := client.ListDelegations(ctx, blackboard.TimeRange{})
			require.NoError(t, err)
			require.Len(t, delegations, 1)
			assert.Equal(t, "db-reviewer", delegations[0].AgentID)
			assert.Equal(t, []string{"database", "performance-testing"}, delegations[0].RequiredCapabilities)
			assert.Equal(t, blackboard.UrgencyNormal, delegations[0].Urgency)

			decisions, err := client.ListDecisions(ctx, blackboard.TimeRange{})
			require.NoError(t, err)
			require.Len(t, decisions, 2)
			assert.Equal(t, "auth-reviewer", decisions[0].AgentID)
			assert.Equal(t, "db-reviewer", decisions[1].AgentID)
		})
	}
}

func TestSwarm_AgentsRunUnderTheirOwnIdentity(t *testing.T) {
	fake := &testutil.FakeRunner{}
	s := newTestSwarm(t, fake, Config{Compliance: ComplianceOff}, nil)

	specs := DefaultSwarm()
	for i := range specs {
		specs[i].AwaitHandoff = false
	}
	_, err := s.RunSwarm(context.Background(), specs)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "auth-reviewer", calls[0].Options.AgentID)
	assert.Equal(t, "db-reviewer", calls[1].Options.AgentID)
	assert.Contains(t, calls[0].Prompt, "authentication")
	assert.NotContains(t, calls[1].Prompt, "<context>", "agents share state only through the store")
	assert.Contains(t, calls[1].Options.AllowedTools, "mcp__romp__romp_delegate")
	assert.NotContains(t, calls[1].Options.AllowedTools, "mcp__romp__romp_handoff")
}

func TestSwarm_FailureNamesAgent(t *testing.T) {
	boom := errors.New("model overloaded")
	fake := &testutil.FakeRunner{Behave: func(ctx context.Context, call testutil.Call) (runner.Stream, error) {
		if call.Options.AgentID == "db-reviewer" {
			return nil, boom
		}
		return testutil.Messages(testutil.Result("fine")), nil
	}}
	recorder := newMemRecorder()
	s := newTestSwarm(t, fake, Config{Compliance: ComplianceOff, Recorder: recorder}, nil)

	specs := []AgentSpec{
		{Name: "auth-reviewer", TaskPrompt: "review auth", Scope: "src/auth/"},
		{Name: "db-reviewer", TaskPrompt: "review db", Scope: "src/db/"},
		{Name: "third", TaskPrompt: "never runs"},
	}
	results, err := s.RunSwarm(context.Background(), specs)
	require.ErrorIs(t, err, boom)

	var stageErr *stage.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "db-reviewer", stageErr.Agent)
	require.Len(t, results, 1)
	assert.Equal(t, "auth-reviewer", results[0].Name)
	assert.Len(t, fake.Calls(), 2)
	assert.Len(t, recorder.stages, 2)
}

func TestSwarm_AwaitHandoffTimesOut(t *testing.T) {
	_, client := testutil.NewBoard(t, "main", blackboard.ScopeModePrefix)
	fake := &testutil.FakeRunner{}
	s := newTestSwarm(t, fake, Config{Compliance: ComplianceOff}, watch.NewHandoffBarrier(client, time.Minute))
	s.BarrierTimeout = 300 * time.Millisecond

	specs := []AgentSpec{
		{Name: "auth-reviewer", TaskPrompt: "review auth"},
		{Name: "db-reviewer", TaskPrompt: "review db", AwaitHandoff: true},
	}
	_, err := s.RunSwarm(context.Background(), specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handoff from auth-reviewer")
	assert.Len(t, fake.Calls(), 1, "db-reviewer never starts")
}

func TestSwarm_DependsOnOverridesDefaultChain(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	release := make(chan struct{})
	fake := &testutil.FakeRunner{Behave: func(ctx context.Context, call testutil.Call) (runner.Stream, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		both := running == 2
		mu.Unlock()
		if both {
			close(release)
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		mu.Lock()
		running--
		mu.Unlock()
		return testutil.Messages(testutil.Result(call.Options.AgentID)), nil
	}}
	s := newTestSwarm(t, fake, Config{Compliance: ComplianceOff}, nil)
	s.MaxParallel = 2

	specs := []AgentSpec{
		{Name: "a", TaskPrompt: "a", DependsOn: []string{}},
		{Name: "b", TaskPrompt: "b", DependsOn: []string{}},
		{Name: "join", TaskPrompt: "join", DependsOn: []string{"a", "b"}},
	}
	results, err := s.RunSwarm(context.Background(), specs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"a", "b", "join"}, []string{results[0].Name, results[1].Name, results[2].Name})
	assert.Equal(t, 2, peak)
	assert.Equal(t, "join", fake.Calls()[2].Options.AgentID)
}

func TestSwarm_Validation(t *testing.T) {
	s := newTestSwarm(t, &testutil.FakeRunner{}, Config{}, nil)

	_, err := s.RunSwarm(context.Background(), nil)
	assert.True(t, blackboard.IsValidation(err))

	_, err = s.RunSwarm(context.Background(), []AgentSpec{{Name: "a", TaskPrompt: "x"}, {Name: "a", TaskPrompt: "y"}})
	assert.True(t, blackboard.IsValidation(err))

	_, err = s.RunSwarm(context.Background(), []AgentSpec{{Name: "", TaskPrompt: "x"}})
	assert.True(t, blackboard.IsValidation(err))

	_, err = s.RunSwarm(context.Background(), []AgentSpec{{Name: "a", TaskPrompt: "x", AwaitHandoff: true}})
	assert.Error(t, err, "awaiting requires a barrier")

	_, err = s.RunSwarm(context.Background(), []AgentSpec{{Name: "a", TaskPrompt: "x", DependsOn: []string{"ghost"}}})
	assert.Error(t, err)
}

func TestDefaultSwarm(t *testing.T) {
	specs := DefaultSwarm()
	require.Len(t, specs, 2)

	auth, db := specs[0], specs[1]
	assert.Equal(t, "auth-reviewer", auth.Name)
	assert.Equal(t, "src/auth/", auth.Scope)
	assert.Equal(t, []store.Operation{store.OpAssemble, store.OpPost, store.OpDecide, store.OpHandoff}, auth.Operations)
	assert.True(t, auth.Expect.Handoff)

	assert.Equal(t, "db-reviewer", db.Name)
	assert.Equal(t, "src/db/", db.Scope)
	assert.Equal(t, []store.Operation{store.OpAssemble, store.OpDecide, store.OpDelegate}, db.Operations)
	assert.True(t, db.AwaitHandoff)
	assert.True(t, db.Expect.HandoffOrDelegation)
	assert.Nil(t, db.DependsOn, "db-reviewer follows auth-reviewer")
}
