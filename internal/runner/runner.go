// Package runner invokes a language-model agent and exposes its output as a
// stream of messages. The agent's reasoning is opaque; the only constraint the
// caller imposes is the allow-list of tools it may invoke.
package runner

import (
	"context"
	"strings"
)

// Kind identifies the role of a message in an agent stream.
type Kind string

const (
	KindSystem    Kind = "system"
	KindAssistant Kind = "assistant"
	KindUser      Kind = "user"
	KindResult    Kind = "result"
)

// Block is one content block of a message. Only text blocks carry Text;
// tool_use blocks carry the tool name in Tool.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Tool string `json:"tool,omitempty"`
}

// Message is one item of an agent stream. Content is either Text or Blocks.
type Message struct {
	Kind   Kind    `json:"kind"`
	Text   string  `json:"text,omitempty"`
	Blocks []Block `json:"blocks,omitempty"`
	// IsError marks a result message reporting that the agent run failed.
	IsError bool `json:"is_error,omitempty"`
}

// Texts returns the message's non-empty textual content in order.
func (m Message) Texts() []string {
	var texts []string
	if m.Text != "" {
		texts = append(texts, m.Text)
	}
	for _, b := range m.Blocks {
		if b.Text != "" {
			texts = append(texts, b.Text)
		}
	}
	return texts
}

// ToolCalls returns the names of the tools this message invoked.
func (m Message) ToolCalls() []string {
	var tools []string
	for _, b := range m.Blocks {
		if b.Type == "tool_use" && b.Tool != "" {
			tools = append(tools, b.Tool)
		}
	}
	return tools
}

// Options configures one agent invocation.
type Options struct {
	// AllowedTools is the complete allow-list; the agent may call nothing else.
	AllowedTools []string
	WorkDir      string
	// AgentID is the identity the agent's store tools write as.
	AgentID string
	// StoreOperations are the store operations the generated MCP server
	// exposes. With none, no store server is attached.
	StoreOperations []string
}

// Stream yields the messages of one invocation.
// Recv returns io.EOF after the last message.
type Stream interface {
	Recv() (Message, error)
	Close() error
}

// Runner starts agent invocations.
type Runner interface {
	Invoke(ctx context.Context, prompt string, opts Options) (Stream, error)
}

// Summarize renders a message for debug logs.
func Summarize(m Message) string {
	parts := m.Texts()
	if calls := m.ToolCalls(); len(calls) > 0 {
		parts = append(parts, "tools="+strings.Join(calls, ","))
	}
	return string(m.Kind) + ": " + strings.Join(parts, " | ")
}
