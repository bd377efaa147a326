// Package store implements the shared store operations that review agents use to
// coordinate through the blackboard. Every operation is addressed by a stable name
// so that a stage can restrict an agent to an explicit allow-list.
package store

import (
	"fmt"
	"strings"
)

// Operation is the stable name of a shared store primitive.
type Operation string

const (
	OpAssemble        Operation = "assemble"
	OpWhy             Operation = "why"
	OpRead            Operation = "read"
	OpRecent          Operation = "recent"
	OpPost            Operation = "post"
	OpDecide          Operation = "decide"
	OpSearchDecisions Operation = "search_decisions"
	OpHandoff         Operation = "handoff"
	OpDelegate        Operation = "delegate"
)

const (
	// ServerName is the MCP server name agents see the store under.
	ServerName = "romp"

	toolPrefix = "romp_"
)

// Access classifies whether an operation (or a stage) may write to the store.
type Access int

const (
	ReadOnly Access = iota
	ReadWrite
)

func (a Access) String() string {
	if a == ReadOnly {
		return "read-only"
	}
	return "read-write"
}

// Operations lists every operation in a stable order.
var Operations = []Operation{
	OpAssemble, OpWhy, OpRead, OpRecent,
	OpPost, OpDecide, OpSearchDecisions, OpHandoff, OpDelegate,
}

var descriptions = map[Operation]string{
	OpAssemble:        "Assemble a context bundle of prior decisions, warnings, open work and findings relevant to a task and scope.",
	OpWhy:             "Explain why a scope looks the way it does: the decisions recorded for it, with rationale and rejected alternatives.",
	OpRead:            "Read blackboard entries filtered by scope, entry types, tags, agent and time.",
	OpRecent:          "List the most recent blackboard entries, optionally restricted to entry types.",
	OpPost:            "Post a finding, warning or need to the blackboard. Summary must be at most 200 characters.",
	OpDecide:          "Record a decision with its context, rationale and at least one considered alternative.",
	OpSearchDecisions: "Search recorded decisions by keyword, domain and scope.",
	OpHandoff:         "Hand completed work to a named agent (or any capable agent) with an explicit list of results.",
	OpDelegate:        "Delegate open work to an unnamed specialist by required capabilities and urgency.",
}

// Validate checks if the Operation is a known name.
func (o Operation) Validate() error {
	if _, ok := descriptions[o]; !ok {
		return fmt.Errorf("unknown store operation: %q", o)
	}
	return nil
}

// Access reports whether the operation mutates the store.
func (o Operation) Access() Access {
	switch o {
	case OpPost, OpDecide, OpHandoff, OpDelegate:
		return ReadWrite
	default:
		return ReadOnly
	}
}

// Description is the tool description shown to agents.
func (o Operation) Description() string {
	return descriptions[o]
}

// ToolName is the name the MCP server registers the operation under.
func (o Operation) ToolName() string {
	return toolPrefix + string(o)
}

// QualifiedToolName is the name an agent runner uses in its allow-list.
func (o Operation) QualifiedToolName() string {
	return "mcp__" + ServerName + "__" + o.ToolName()
}

// ParseToolName maps either tool name form back to an Operation.
func ParseToolName(name string) (Operation, error) {
	name = strings.TrimPrefix(name, "mcp__"+ServerName+"__")
	op := Operation(strings.TrimPrefix(name, toolPrefix))
	if err := op.Validate(); err != nil {
		return "", err
	}
	return op, nil
}

// QualifiedToolNames returns the runner allow-list entries for a set of operations.
func QualifiedToolNames(ops []Operation) []string {
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, op.QualifiedToolName())
	}
	return names
}
