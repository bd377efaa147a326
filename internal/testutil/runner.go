// Package testutil provides shared doubles for romp's package tests: a scripted
// agent runner and miniredis-backed boards.
package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/dyluth/romp/internal/runner"
)

// Call records one runner invocation.
type Call struct {
	Prompt  string
	Options runner.Options
}

// AgentFunc scripts an agent: it may perform store side effects and returns the
// stream the agent "produced".
type AgentFunc func(ctx context.Context, call Call) (runner.Stream, error)

// FakeRunner is a runner.Runner that delegates every invocation to Behave.
// It is safe for concurrent use.
type FakeRunner struct {
	Behave AgentFunc

	mu    sync.Mutex
	calls []Call
}

func (f *FakeRunner) Invoke(ctx context.Context, prompt string, opts runner.Options) (runner.Stream, error) {
	call := Call{Prompt: prompt, Options: opts}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.Behave == nil {
		return Messages(Result("ok")), nil
	}
	return f.Behave(ctx, call)
}

// Calls returns a copy of the recorded invocations in order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// SliceStream replays fixed messages, then returns Err (or io.EOF).
type SliceStream struct {
	msgs   []runner.Message
	err    error
	next   int
	closed bool
}

// Messages returns a stream that yields msgs and then io.EOF.
func Messages(msgs ...runner.Message) *SliceStream {
	return &SliceStream{msgs: msgs}
}

// Failing returns a stream that yields msgs and then err.
func Failing(err error, msgs ...runner.Message) *SliceStream {
	return &SliceStream{msgs: msgs, err: err}
}

func (s *SliceStream) Recv() (runner.Message, error) {
	if s.next < len(s.msgs) {
		msg := s.msgs[s.next]
		s.next++
		return msg, nil
	}
	if s.err != nil {
		return runner.Message{}, s.err
	}
	return runner.Message{}, io.EOF
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SliceStream) Closed() bool {
	return s.closed
}

// Result builds a result-kind message.
func Result(text string) runner.Message {
	return runner.Message{Kind: runner.KindResult, Text: text}
}

// Say builds an assistant message with one text block.
func Say(text string) runner.Message {
	return runner.Message{Kind: runner.KindAssistant, Blocks: []runner.Block{{Type: "text", Text: text}}}
}

// UseTool builds an assistant message invoking the named tool.
func UseTool(name string) runner.Message {
	return runner.Message{Kind: runner.KindAssistant, Blocks: []runner.Block{{Type: "tool_use", Tool: name}}}
}
