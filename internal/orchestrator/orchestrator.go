// Package orchestrator sequences agent invocations that coordinate through the
// shared store: the five-stage review pipeline and the multi-agent swarm. Both
// run on one dependency graph executor.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dyluth/romp/internal/ledger"
	"github.com/dyluth/romp/internal/stage"
	"github.com/google/uuid"
)

// Reporter receives user-facing progress.
type Reporter interface {
	StageStarted(index, total int, agent, stageName string)
	StageFinished(res *stage.Result)
	StageFailed(agent, stageName string, err error)
	ComplianceWarning(w ComplianceWarning)
}

// Recorder persists the audit trail of a run. *ledger.Ledger satisfies it.
type Recorder interface {
	StartRun(ctx context.Context, run *ledger.Run) error
	RecordStage(ctx context.Context, exec *ledger.StageExecution) error
	FinishRun(ctx context.Context, runID, status, errMsg string) error
}

type nopReporter struct{}

func (nopReporter) StageStarted(int, int, string, string) {}
func (nopReporter) StageFinished(*stage.Result)           {}
func (nopReporter) StageFailed(string, string, error)     {}
func (nopReporter) ComplianceWarning(ComplianceWarning)   {}

type nopRecorder struct{}

func (nopRecorder) StartRun(context.Context, *ledger.Run) error               { return nil }
func (nopRecorder) RecordStage(context.Context, *ledger.StageExecution) error { return nil }
func (nopRecorder) FinishRun(context.Context, string, string, string) error   { return nil }

// Config holds what both topologies need.
type Config struct {
	// Executor runs individual stages. Required.
	Executor *stage.Executor
	// Auditor is used for compliance checks; nil limits them to allow-list violations.
	Auditor    Auditor
	Compliance ComplianceMode
	Reporter   Reporter
	Recorder   Recorder
	// InstanceName labels log events and ledger runs.
	InstanceName string
	// WorkDir is the directory agents run in. Empty means the process directory.
	WorkDir string
}

// coordinator runs stages for one run and keeps its audit trail.
type coordinator struct {
	executor     *stage.Executor
	checker      *complianceChecker
	reporter     Reporter
	recorder     Recorder
	instanceName string
	workDir      string
	now          func() time.Time
}

func newCoordinator(cfg Config) (*coordinator, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("stage executor cannot be nil")
	}
	if cfg.Compliance != "" {
		if err := cfg.Compliance.Validate(); err != nil {
			return nil, err
		}
	}

	c := &coordinator{
		executor:     cfg.Executor,
		checker:      newComplianceChecker(cfg.Auditor, cfg.Compliance),
		reporter:     cfg.Reporter,
		recorder:     cfg.Recorder,
		instanceName: cfg.InstanceName,
		workDir:      cfg.WorkDir,
		now:          time.Now,
	}
	if c.reporter == nil {
		c.reporter = nopReporter{}
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}
	return c, nil
}

// stageRun is one stage execution as a run sees it.
type stageRun struct {
	runID  string
	seq    int
	total  int
	scope  string
	expect Expectation
	stage  stage.Stage
}

// runStage executes a stage, checks compliance and records the outcome. Every
// failure is returned as a *stage.StageError naming the stage.
func (c *coordinator) runStage(ctx context.Context, sr stageRun) (*stage.Result, []ComplianceWarning, error) {
	st := sr.stage
	if st.WorkDir == "" {
		st.WorkDir = c.workDir
	}
	agent := st.Agent

	c.reporter.StageStarted(sr.seq, sr.total, agent, st.Name)
	sinceMs := c.now().UnixMilli()
	started := c.now()

	res, err := c.executor.Run(ctx, st)
	var warnings []ComplianceWarning
	if err == nil {
		warnings, err = c.checker.check(ctx, sr.scope, sinceMs, sr.expect, res)
		for _, w := range warnings {
			c.reporter.ComplianceWarning(w)
		}
	}

	exec := &ledger.StageExecution{
		RunID:     sr.runID,
		Sequence:  sr.seq,
		Agent:     agent,
		Stage:     st.Name,
		Status:    ledger.StatusCompleted,
		StartedAt: started,
		Warnings:  warningStrings(warnings),
	}
	if res != nil {
		exec.Result = res.Text
		exec.ToolCalls = res.ToolCalls
		exec.DurationMs = res.Duration.Milliseconds()
	}

	if err != nil {
		err = asStageError(agent, st.Name, err)
		exec.Status = ledger.StatusFailed
		exec.Error = err.Error()
		c.reporter.StageFailed(agent, st.Name, err)
	} else {
		c.reporter.StageFinished(res)
	}

	if recErr := c.recorder.RecordStage(ctx, exec); recErr != nil {
		log.Printf("[WARN] Failed to record stage execution: run=%s stage=%s error=%v", sr.runID, st.Name, recErr)
	}

	c.logEvent("stage_finished", map[string]interface{}{
		"run_id":   sr.runID,
		"agent":    agent,
		"stage":    st.Name,
		"status":   exec.Status,
		"warnings": len(warnings),
	})
	return res, warnings, err
}

func (c *coordinator) startRun(ctx context.Context, kind, scope string) string {
	runID := uuid.New().String()
	run := &ledger.Run{ID: runID, Kind: kind, Scope: scope, Instance: c.instanceName, StartedAt: c.now()}
	if err := c.recorder.StartRun(ctx, run); err != nil {
		log.Printf("[WARN] Failed to record run start: run=%s error=%v", runID, err)
	}
	c.logEvent("run_started", map[string]interface{}{"run_id": runID, "kind": kind, "scope": scope})
	return runID
}

func (c *coordinator) finishRun(runID string, runErr error) {
	status, msg := ledger.StatusCompleted, ""
	if runErr != nil {
		status, msg = ledger.StatusFailed, runErr.Error()
	}
	// The run's own context may already be cancelled.
	if err := c.recorder.FinishRun(context.Background(), runID, status, msg); err != nil {
		log.Printf("[WARN] Failed to record run end: run=%s error=%v", runID, err)
	}
	c.logEvent("run_finished", map[string]interface{}{"run_id": runID, "status": status})
}

// logEvent writes one structured JSON log line.
func (c *coordinator) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "orchestrator"
	data["event_type"] = eventType
	data["instance"] = c.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[WARN] Failed to marshal log event: %v", err)
		return
	}
	log.Println(string(jsonData))
}

func asStageError(agent, stageName string, err error) error {
	var se *stage.StageError
	if errors.As(err, &se) {
		return se
	}
	return &stage.StageError{Agent: agent, Stage: stageName, Err: err}
}

func warningStrings(warnings []ComplianceWarning) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.String())
	}
	return out
}

// joinInputs renders dependency results for a stage's context block. A single
// input is passed verbatim.
func joinInputs(inputs []Input) string {
	if len(inputs) == 1 {
		return inputs[0].Text
	}
	parts := make([]string, 0, len(inputs))
	for _, in := range inputs {
		parts = append(parts, fmt.Sprintf("## Output of %s\n\n%s", in.From, in.Text))
	}
	return strings.Join(parts, "\n\n")
}
