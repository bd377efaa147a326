package stage

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/dyluth/romp/internal/runner"
	"github.com/dyluth/romp/pkg/blackboard"
)

// Result is the reduced outcome of one stage.
type Result struct {
	Stage     string
	Agent     string
	Text      string
	Messages  int
	ToolCalls []string
	// Disallowed lists tool calls outside the stage's allow-list.
	Disallowed []string
	StartedAt  time.Time
	Duration   time.Duration
}

// MessageHook observes every message as it arrives.
type MessageHook func(s Stage, msg runner.Message)

// Executor runs stages through a Runner.
type Executor struct {
	runner    runner.Runner
	onMessage MessageHook
	now       func() time.Time
}

// NewExecutor creates an executor. hook may be nil.
func NewExecutor(r runner.Runner, hook MessageHook) *Executor {
	return &Executor{runner: r, onMessage: hook, now: time.Now}
}

// Run validates the stage, invokes the agent and extracts the result text.
// Runner failures are returned as *StageError; a stream without text is not an error.
func (e *Executor) Run(ctx context.Context, s Stage) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	agent := s.Agent
	if agent == "" {
		agent = blackboard.DefaultAgentID
	}
	allowed := s.AllowedTools()
	started := e.now()

	log.Printf("[INFO] Running stage: stage=%s agent=%s tools=%v", s.Name, agent, allowed)

	stream, err := e.runner.Invoke(ctx, s.Prompt(), runner.Options{
		AllowedTools:    allowed,
		WorkDir:         s.WorkDir,
		AgentID:         agent,
		StoreOperations: s.operationNames(),
	})
	if err != nil {
		return nil, &StageError{Agent: agent, Stage: s.Name, Err: err}
	}
	defer stream.Close()

	allowSet := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		allowSet[name] = true
	}

	var messages []runner.Message
	result := &Result{Stage: s.Name, Agent: agent, StartedAt: started}
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &StageError{Agent: agent, Stage: s.Name, Err: err}
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls() {
			result.ToolCalls = append(result.ToolCalls, call)
			if !allowSet[call] {
				log.Printf("[WARN] Agent called tool outside allow-list: stage=%s agent=%s tool=%s", s.Name, agent, call)
				result.Disallowed = append(result.Disallowed, call)
			}
		}
		if e.onMessage != nil {
			e.onMessage(s, msg)
		}
	}

	result.Messages = len(messages)
	result.Text = ExtractResult(messages)
	result.Duration = e.now().Sub(started)

	log.Printf("[INFO] Stage completed: stage=%s agent=%s messages=%d tool_calls=%d duration=%s",
		s.Name, agent, result.Messages, len(result.ToolCalls), result.Duration)
	return result, nil
}

// ExtractResult reduces a message stream to one text: the text of the first
// result message that has any, otherwise all text joined with newlines in
// receipt order, otherwise NoTextOutput. Empty strings are not text.
func ExtractResult(messages []runner.Message) string {
	for _, msg := range messages {
		if msg.Kind != runner.KindResult {
			continue
		}
		if texts := msg.Texts(); len(texts) > 0 {
			return strings.Join(texts, "\n")
		}
	}

	var texts []string
	for _, msg := range messages {
		texts = append(texts, msg.Texts()...)
	}
	if len(texts) == 0 {
		return NoTextOutput
	}
	return strings.Join(texts, "\n")
}
