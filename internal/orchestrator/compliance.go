package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/dyluth/romp/internal/stage"
	"github.com/dyluth/romp/internal/store"
	"github.com/dyluth/romp/pkg/blackboard"
)

// ComplianceMode controls what happens when an agent skips an expected store write.
type ComplianceMode string

const (
	ComplianceOff     ComplianceMode = "off"
	ComplianceWarn    ComplianceMode = "warn"
	ComplianceEnforce ComplianceMode = "enforce"
)

// Validate checks if the ComplianceMode is a known value.
func (m ComplianceMode) Validate() error {
	switch m {
	case ComplianceOff, ComplianceWarn, ComplianceEnforce:
		return nil
	default:
		return fmt.Errorf("unknown compliance mode: %q (must be 'off', 'warn' or 'enforce')", m)
	}
}

// Expectation lists the store writes a stage's instructions ask the agent to make.
// Agents are incentivized, never forced, so these are checked after the fact.
type Expectation struct {
	// EntryTypes expects at least one entry of any of these types in the stage scope.
	EntryTypes []blackboard.EntryType
	Decision   bool
	Handoff    bool
	Delegation bool
	// HandoffOrDelegation accepts either record, for terminal agents.
	HandoffOrDelegation bool
}

// IsZero reports whether nothing is expected.
func (e Expectation) IsZero() bool {
	return len(e.EntryTypes) == 0 && !e.Decision && !e.Handoff && !e.Delegation && !e.HandoffOrDelegation
}

// ComplianceWarning reports one post-condition an agent did not meet.
type ComplianceWarning struct {
	Agent    string
	Stage    string
	Expected string
	Detail   string
}

func (w ComplianceWarning) String() string {
	return fmt.Sprintf("%s/%s: expected %s (%s)", w.Agent, w.Stage, w.Expected, w.Detail)
}

// ComplianceError aborts a run under enforce mode.
type ComplianceError struct {
	Warnings []ComplianceWarning
}

func (e *ComplianceError) Error() string {
	parts := make([]string, 0, len(e.Warnings))
	for _, w := range e.Warnings {
		parts = append(parts, w.String())
	}
	return "agent did not comply: " + strings.Join(parts, "; ")
}

// Auditor is the read access compliance checks need.
// *store.Board satisfies it.
type Auditor interface {
	Activity(ctx context.Context, agentID string, sinceMs int64) (*store.Activity, error)
	InScope(query, scope string) bool
}

// complianceChecker verifies stage post-conditions against the store.
type complianceChecker struct {
	auditor Auditor
	mode    ComplianceMode
}

func newComplianceChecker(auditor Auditor, mode ComplianceMode) *complianceChecker {
	if mode == "" {
		mode = ComplianceWarn
	}
	return &complianceChecker{auditor: auditor, mode: mode}
}

// check returns the warnings for one stage. Under enforce mode any warning is
// also returned as a *ComplianceError.
func (c *complianceChecker) check(ctx context.Context, scope string, sinceMs int64, exp Expectation, res *stage.Result) ([]ComplianceWarning, error) {
	if c.mode == ComplianceOff || res == nil {
		return nil, nil
	}

	var warnings []ComplianceWarning
	warn := func(expected, detail string) {
		warnings = append(warnings, ComplianceWarning{Agent: res.Agent, Stage: res.Stage, Expected: expected, Detail: detail})
	}

	for _, tool := range res.Disallowed {
		warn("only allow-listed tools", "called "+tool)
	}

	if !exp.IsZero() && c.auditor != nil {
		activity, err := c.auditor.Activity(ctx, res.Agent, sinceMs)
		if err != nil {
			return nil, fmt.Errorf("failed to audit stage %s: %w", res.Stage, err)
		}
		c.checkActivity(scope, exp, activity, warn)
	}

	for _, w := range warnings {
		log.Printf("[WARN] Compliance: %s", w)
	}
	if c.mode == ComplianceEnforce && len(warnings) > 0 {
		return warnings, &ComplianceError{Warnings: warnings}
	}
	return warnings, nil
}

func (c *complianceChecker) checkActivity(scope string, exp Expectation, activity *store.Activity, warn func(expected, detail string)) {
	if len(exp.EntryTypes) > 0 {
		found := false
		for _, e := range activity.Entries {
			if containsType(exp.EntryTypes, e.Type) && c.auditor.InScope(scope, e.Scope) {
				found = true
				break
			}
		}
		if !found {
			warn(fmt.Sprintf("an entry of type %s", joinTypes(exp.EntryTypes)), "none posted in scope "+scope)
		}
	}
	if exp.Decision && len(activity.Decisions) == 0 {
		warn("a decision", "none recorded")
	}
	if exp.Handoff && len(activity.Handoffs) == 0 {
		warn("a handoff", "none created")
	}
	if exp.Delegation && len(activity.Delegations) == 0 {
		warn("a delegation", "none created")
	}
	if exp.HandoffOrDelegation && len(activity.Handoffs) == 0 && len(activity.Delegations) == 0 {
		warn("a handoff or delegation", "neither created")
	}
}

func containsType(types []blackboard.EntryType, t blackboard.EntryType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func joinTypes(types []blackboard.EntryType) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return strings.Join(names, "/")
}
