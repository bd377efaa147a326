package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dyluth/romp/internal/ledger"
	"github.com/dyluth/romp/internal/runner"
	"github.com/dyluth/romp/internal/stage"
	"github.com/dyluth/romp/internal/store"
	"github.com/dyluth/romp/internal/testutil"
)

// stageOf identifies a review stage from the allow-list it was invoked with.
func stageOf(call testutil.Call) string {
	tools := call.Options.AllowedTools
	if len(tools) == 0 {
		return ""
	}
	switch tools[0] {
	case store.OpAssemble.QualifiedToolName():
		return StageAssemble
	case "Read":
		return StageReview
	case store.OpPost.QualifiedToolName():
		return StagePost
	case store.OpDecide.QualifiedToolName():
		return StageDecide
	case store.OpHandoff.QualifiedToolName():
		return StageHandoff
	}
	return ""
}

func hasTool(call testutil.Call, op store.Operation) bool {
	for _, tool := range call.Options.AllowedTools {
		if tool == op.QualifiedToolName() {
			return true
		}
	}
	return false
}

// opLog records store operations in the order agents performed them.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(agent string, op store.Operation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, agent+":"+string(op))
}

func (l *opLog) indexOf(entry string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, op := range l.ops {
		if op == entry {
			return i
		}
	}
	return -1
}

// recordingInvoker is a store double that logs every operation before
// delegating to a real board.
type recordingInvoker struct {
	board *store.Board
	log   *opLog
}

func (r *recordingInvoker) invoke(ctx context.Context, agent string, op store.Operation, args json.RawMessage) (string, error) {
	r.log.add(agent, op)
	return r.board.ForAgent(agent).Invoke(ctx, op, args)
}

// call performs op and returns the tool-use message an agent would have produced
// alongside the tool result text.
func (r *recordingInvoker) call(ctx context.Context, agent string, op store.Operation, args interface{}) (runner.Message, string) {
	data, _ := json.Marshal(args)
	out, err := r.invoke(ctx, agent, op, data)
	if err != nil {
		out = "error: " + err.Error()
	}
	return testutil.UseTool(op.QualifiedToolName()), out
}

// cooperativeReviewer plays the five-stage review against a real board.
func cooperativeReviewer(inv *recordingInvoker, scope string) testutil.AgentFunc {
	return func(ctx context.Context, call testutil.Call) (runner.Stream, error) {
		agent := call.Options.AgentID
		switch stageOf(call) {
		case StageAssemble:
			use, bundle := inv.call(ctx, agent, store.OpAssemble, map[string]string{"task": "review", "scope": scope})
			return testutil.Messages(use, testutil.Result(bundle)), nil
		case StageReview:
			return testutil.Messages(testutil.UseTool("Read"), testutil.Result("token expiry is not checked on refresh")), nil
		case StagePost:
			use, out := inv.call(ctx, agent, store.OpPost, map[string]interface{}{
				"entry_type": "warning",
				"summary":    "Refresh endpoint skips token expiry check",
				"scope":      scope,
				"tags":       []string{"code-review", "auth"},
			})
			return testutil.Messages(use, testutil.Result(out)), nil
		case StageDecide:
			use, out := inv.call(ctx, agent, store.OpDecide, map[string]interface{}{
				"domain":       "security",
				"scope":        scope,
				"summary":      "Validate expiry on every token use",
				"context":      "refresh path skips it",
				"rationale":    "expired tokens must not mint new ones",
				"alternatives": []map[string]string{{"option": "shorter expiry", "reason_rejected": "does not close the hole"}},
			})
			return testutil.Messages(use, testutil.Result(out)), nil
		case StageHandoff:
			use, out := inv.call(ctx, agent, store.OpHandoff, map[string]interface{}{
				"summary": "Reviewed " + scope,
				"scope":   scope,
				"results": []map[string]string{{"description": "reviewed token handling", "status": "completed"}},
			})
			return testutil.Messages(use, testutil.Result(out)), nil
		}
		return nil, fmt.Errorf("unexpected allow-list %v", call.Options.AllowedTools)
	}
}

// recordingReporter captures progress lines.
type recordingReporter struct {
	mu       sync.Mutex
	lines    []string
	warnings []ComplianceWarning
}

func (r *recordingReporter) StageStarted(index, total int, agent, stageName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf("[%d/%d] %s %s", index, total, agent, stageName))
}

func (r *recordingReporter) StageFinished(res *stage.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, "done "+res.Stage)
}

func (r *recordingReporter) StageFailed(agent, stageName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, "failed "+stageName)
}

func (r *recordingReporter) ComplianceWarning(w ComplianceWarning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

func (r *recordingReporter) output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.lines, "\n")
}

// memRecorder is an in-memory Recorder.
type memRecorder struct {
	mu     sync.Mutex
	runs   map[string]*ledger.Run
	stages []*ledger.StageExecution
}

func newMemRecorder() *memRecorder {
	return &memRecorder{runs: make(map[string]*ledger.Run)}
}

func (m *memRecorder) StartRun(ctx context.Context, run *ledger.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *run
	copied.Status = ledger.StatusRunning
	m.runs[run.ID] = &copied
	return nil
}

func (m *memRecorder) RecordStage(ctx context.Context, exec *ledger.StageExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, exec)
	return nil
}

func (m *memRecorder) FinishRun(ctx context.Context, runID, status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return errors.New("unknown run")
	}
	run.Status = status
	run.Error = errMsg
	return nil
}
