package stage

import (
	"context"
	"errors"
	"testing"

	"github.com/dyluth/romp/internal/runner"
	"github.com/dyluth/romp/internal/store"
	"github.com/dyluth/romp/internal/testutil"
	"github.com/dyluth/romp/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractResult(t *testing.T) {
	tests := []struct {
		name     string
		messages []runner.Message
		expected string
	}{
		{
			name:     "result message wins",
			messages: []runner.Message{testutil.Say("thinking"), testutil.Result("Found 3 issues")},
			expected: "Found 3 issues",
		},
		{
			name:     "falls back to all text",
			messages: []runner.Message{testutil.Say("a"), {Kind: runner.KindSystem}, testutil.Say("b")},
			expected: "a\nb",
		},
		{
			name:     "empty result message is skipped",
			messages: []runner.Message{testutil.Say("a"), testutil.Result(""), testutil.Say("b")},
			expected: "a\nb",
		},
		{
			name:     "result blocks are joined",
			messages: []runner.Message{{Kind: runner.KindResult, Blocks: []runner.Block{{Type: "text", Text: "x"}, {Type: "text", Text: "y"}}}},
			expected: "x\ny",
		},
		{
			name:     "no text anywhere",
			messages: []runner.Message{{Kind: runner.KindSystem}, testutil.UseTool("Read"), testutil.Say("")},
			expected: NoTextOutput,
		},
		{
			name:     "empty stream",
			messages: nil,
			expected: NoTextOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractResult(tt.messages))
		})
	}
}

func TestStageValidate(t *testing.T) {
	t.Run("requires instructions", func(t *testing.T) {
		err := Stage{Name: "review"}.Validate()
		require.Error(t, err)
		assert.True(t, blackboard.IsValidation(err))
	})

	t.Run("rejects unknown operation", func(t *testing.T) {
		err := Stage{Name: "x", Instructions: "go", Operations: []store.Operation{"truncate"}}.Validate()
		assert.True(t, blackboard.IsValidation(err))
	})

	t.Run("read-only stage may not write", func(t *testing.T) {
		s := Stage{Name: "assemble", Instructions: "go", Access: store.ReadOnly, Operations: []store.Operation{store.OpAssemble, store.OpPost}}
		err := s.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read-only")
	})

	t.Run("read-write stage may read and write", func(t *testing.T) {
		s := Stage{Name: "handoff", Instructions: "go", Access: store.ReadWrite, Operations: []store.Operation{store.OpHandoff, store.OpRead}}
		assert.NoError(t, s.Validate())
	})
}

func TestStagePrompt(t *testing.T) {
	s := Stage{Instructions: "Review the code."}
	assert.Equal(t, "Review the code.", s.Prompt())

	s.PriorContext = "previous result"
	assert.Equal(t, "Review the code.\n\n<context>\nprevious result\n</context>", s.Prompt())
}

func TestStageAllowedTools(t *testing.T) {
	s := Stage{Operations: []store.Operation{store.OpPost}, Tools: []string{"Read", "Grep"}}
	assert.Equal(t, []string{"mcp__romp__romp_post", "Read", "Grep"}, s.AllowedTools())
}

func TestExecutorRun(t *testing.T) {
	fake := &testutil.FakeRunner{
		Behave: func(ctx context.Context, call testutil.Call) (runner.Stream, error) {
			return testutil.Messages(
				testutil.UseTool("mcp__romp__romp_post"),
				testutil.UseTool("Bash"),
				testutil.Result("posted 2 findings"),
			), nil
		},
	}
	var seen int
	exec := NewExecutor(fake, func(s Stage, msg runner.Message) { seen++ })

	result, err := exec.Run(context.Background(), Stage{
		Name:         "post",
		Agent:        "reviewer",
		Instructions: "Post findings.",
		PriorContext: "review text",
		Operations:   []store.Operation{store.OpPost},
		Access:       store.ReadWrite,
		WorkDir:      "/repo",
	})
	require.NoError(t, err)

	assert.Equal(t, "posted 2 findings", result.Text)
	assert.Equal(t, 3, result.Messages)
	assert.Equal(t, 3, seen)
	assert.Equal(t, []string{"mcp__romp__romp_post", "Bash"}, result.ToolCalls)
	assert.Equal(t, []string{"Bash"}, result.Disallowed)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "<context>\nreview text\n</context>")
	assert.Equal(t, []string{"mcp__romp__romp_post"}, calls[0].Options.AllowedTools)
	assert.Equal(t, "/repo", calls[0].Options.WorkDir)
	assert.Equal(t, "reviewer", calls[0].Options.AgentID)
	assert.Equal(t, []string{"post"}, calls[0].Options.StoreOperations)
}

func TestExecutorRun_DefaultsAgent(t *testing.T) {
	fake := &testutil.FakeRunner{}
	result, err := NewExecutor(fake, nil).Run(context.Background(), Stage{Name: "s", Instructions: "i"})
	require.NoError(t, err)
	assert.Equal(t, "main", result.Agent)
	assert.Equal(t, "ok", result.Text)
}

func TestExecutorRun_Failures(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("invoke failure", func(t *testing.T) {
		fake := &testutil.FakeRunner{Behave: func(ctx context.Context, call testutil.Call) (runner.Stream, error) {
			return nil, boom
		}}
		_, err := NewExecutor(fake, nil).Run(context.Background(), Stage{Name: "review", Agent: "a", Instructions: "i"})
		require.Error(t, err)

		var stageErr *StageError
		require.True(t, errors.As(err, &stageErr))
		assert.Equal(t, "review", stageErr.Stage)
		assert.Equal(t, "a", stageErr.Agent)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("stream failure closes stream", func(t *testing.T) {
		stream := testutil.Failing(boom, testutil.Say("partial"))
		fake := &testutil.FakeRunner{Behave: func(ctx context.Context, call testutil.Call) (runner.Stream, error) {
			return stream, nil
		}}
		_, err := NewExecutor(fake, nil).Run(context.Background(), Stage{Name: "decide", Instructions: "i"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stage decide")
		assert.True(t, stream.Closed())
	})

	t.Run("invalid stage never reaches runner", func(t *testing.T) {
		fake := &testutil.FakeRunner{}
		_, err := NewExecutor(fake, nil).Run(context.Background(), Stage{Name: "x"})
		require.Error(t, err)
		assert.Empty(t, fake.Calls())
	})
}
