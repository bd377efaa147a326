// Package stage runs one logical step of a review workflow as a single agent
// invocation with a fixed allow-list of store operations, and reduces the
// resulting message stream to one text result.
package stage

import (
	"fmt"
	"strings"

	"github.com/dyluth/romp/internal/store"
	"github.com/dyluth/romp/pkg/blackboard"
)

// NoTextOutput is returned when an agent produced no textual content at all.
const NoTextOutput = "(no text output)"

// Stage describes one agent invocation.
type Stage struct {
	Name         string
	Agent        string
	Instructions string
	// PriorContext is appended verbatim inside a <context> block.
	PriorContext string
	Operations   []store.Operation
	// Tools are plain (non-store) tool names such as Read or Grep.
	Tools   []string
	Access  store.Access
	WorkDir string
}

// Validate rejects stages that could not be run as declared.
func (s Stage) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &blackboard.ValidationError{Kind: "stage", Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(s.Instructions) == "" {
		return &blackboard.ValidationError{Kind: "stage", Field: "instructions", Reason: "is required"}
	}
	for _, op := range s.Operations {
		if err := op.Validate(); err != nil {
			return &blackboard.ValidationError{Kind: "stage", Field: "operations", Reason: err.Error()}
		}
		if s.Access == store.ReadOnly && op.Access() == store.ReadWrite {
			return &blackboard.ValidationError{
				Kind:   "stage",
				Field:  "operations",
				Reason: fmt.Sprintf("%s writes to the store but stage %s is read-only", op, s.Name),
			}
		}
	}
	return nil
}

// Prompt is the full text sent to the agent.
func (s Stage) Prompt() string {
	if s.PriorContext == "" {
		return s.Instructions
	}
	return s.Instructions + "\n\n<context>\n" + s.PriorContext + "\n</context>"
}

// AllowedTools is the runner allow-list: qualified store tools, then plain tools.
func (s Stage) AllowedTools() []string {
	tools := store.QualifiedToolNames(s.Operations)
	return append(tools, s.Tools...)
}

func (s Stage) operationNames() []string {
	names := make([]string, 0, len(s.Operations))
	for _, op := range s.Operations {
		names = append(names, string(op))
	}
	return names
}

// StageError reports a runner failure during a stage.
type StageError struct {
	Agent string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s (agent %s) failed: %v", e.Stage, e.Agent, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
