package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/romp/pkg/blackboard"
)

// AssembleRequest asks for a context bundle for a task within a scope.
type AssembleRequest struct {
	Task      string `json:"task"`
	Scope     string `json:"scope,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// Assemble produces a text context bundle of the records related to the scope.
// Sections are written in priority order (decisions, warnings, handoffs, open work,
// findings), newest first, until the token budget is spent. Handoffs addressed to
// this board's agent are included regardless of scope.
func (b *Board) Assemble(ctx context.Context, req AssembleRequest) (string, error) {
	scope := orDefault(req.Scope, blackboard.DefaultScope)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = b.maxTokens
	}

	decisions, err := b.client.ListDecisions(ctx, blackboard.TimeRange{})
	if err != nil {
		return "", fmt.Errorf("failed to load decisions: %w", err)
	}
	entries, err := b.client.ListEntries(ctx, blackboard.TimeRange{})
	if err != nil {
		return "", fmt.Errorf("failed to load entries: %w", err)
	}
	handoffs, err := b.client.ListHandoffs(ctx, blackboard.TimeRange{})
	if err != nil {
		return "", fmt.Errorf("failed to load handoffs: %w", err)
	}

	bundle := newBudget(maxTokens * charsPerToken)
	bundle.header(fmt.Sprintf("# Context for: %s\nScope: %s (%s matching)\n", req.Task, scope, b.matcher.Mode()))

	var decisionItems []string
	for i := len(decisions) - 1; i >= 0; i-- {
		d := decisions[i]
		if b.matcher.Matches(scope, d.Scope) {
			decisionItems = append(decisionItems, formatDecision(d))
		}
	}
	bundle.section("Decisions", decisionItems)

	var warnings, open, findings []string
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !b.matcher.Matches(scope, e.Scope) {
			continue
		}
		switch e.Type {
		case blackboard.EntryTypeWarning:
			warnings = append(warnings, formatEntry(e))
		case blackboard.EntryTypeNeed, blackboard.EntryTypeDelegation:
			open = append(open, formatEntry(e))
		case blackboard.EntryTypeFinding:
			findings = append(findings, formatEntry(e))
		}
	}
	bundle.section("Warnings", warnings)

	var handoffItems []string
	for i := len(handoffs) - 1; i >= 0; i-- {
		h := handoffs[i]
		if h.TargetAgent == b.agentID || b.matcher.Matches(scope, h.Scope) {
			handoffItems = append(handoffItems, formatHandoff(h))
		}
	}
	bundle.section("Handoffs", handoffItems)
	bundle.section("Open work", open)
	bundle.section("Findings", findings)

	return bundle.String(), nil
}

// Why explains the decisions recorded for a scope, oldest first so that
// superseding decisions read after the ones they replace.
func (b *Board) Why(ctx context.Context, scope string) (string, error) {
	scope = orDefault(scope, blackboard.DefaultScope)

	decisions, err := b.client.ListDecisions(ctx, blackboard.TimeRange{})
	if err != nil {
		return "", fmt.Errorf("failed to load decisions: %w", err)
	}

	superseded := make(map[string]string)
	for _, d := range decisions {
		if d.Supersedes != "" {
			superseded[d.Supersedes] = d.ID
		}
	}

	var sb strings.Builder
	count := 0
	for _, d := range decisions {
		if !b.matcher.Matches(scope, d.Scope) {
			continue
		}
		count++
		fmt.Fprintf(&sb, "## %s [%s] (%s)\n", d.Summary, d.Domain, d.ID)
		if by, ok := superseded[d.ID]; ok {
			fmt.Fprintf(&sb, "Superseded by: %s\n", by)
		}
		fmt.Fprintf(&sb, "Scope: %s | confidence: %s | reversible: %t | by: %s\n", d.Scope, d.Confidence, d.Reversible, d.AgentID)
		fmt.Fprintf(&sb, "Context: %s\n", d.Context)
		fmt.Fprintf(&sb, "Rationale: %s\n", d.Rationale)
		for _, c := range d.Constraints {
			fmt.Fprintf(&sb, "Constraint: %s\n", c)
		}
		for _, alt := range d.Alternatives {
			fmt.Fprintf(&sb, "Rejected: %s", alt.Option)
			if alt.ReasonRejected != "" {
				fmt.Fprintf(&sb, " (%s)", alt.ReasonRejected)
			}
			sb.WriteString("\n")
		}
		if len(d.AffectedFiles) > 0 {
			fmt.Fprintf(&sb, "Files: %s\n", strings.Join(d.AffectedFiles, ", "))
		}
		sb.WriteString("\n")
	}

	if count == 0 {
		return fmt.Sprintf("No decisions recorded for scope %s.", scope), nil
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func formatDecision(d *blackboard.Decision) string {
	line := fmt.Sprintf("- [%s] %s (decision %s, confidence %s, by %s, scope %s)\n  rationale: %s",
		d.Domain, d.Summary, d.ID, d.Confidence, d.AgentID, d.Scope, d.Rationale)
	if d.Supersedes != "" {
		line += "\n  supersedes: " + d.Supersedes
	}
	return line
}

func formatEntry(e *blackboard.Entry) string {
	line := fmt.Sprintf("- %s (%s %s, by %s, scope %s)", e.Summary, e.Type, e.ID, e.AgentID, e.Scope)
	if len(e.Tags) > 0 {
		line += " tags: " + strings.Join(e.Tags, ",")
	}
	if e.Detail != "" {
		line += "\n  " + e.Detail
	}
	return line
}

func formatHandoff(h *blackboard.Handoff) string {
	target := h.TargetAgent
	if target == "" {
		target = "any capable agent"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "- %s -> %s: %s [%s] (handoff %s, scope %s)", h.SourceAgent, target, h.Summary, h.Status(), h.ID, h.Scope)
	for _, r := range h.Results {
		fmt.Fprintf(&sb, "\n  - %s: %s", r.Status, r.Description)
		if r.Notes != "" {
			fmt.Fprintf(&sb, " (%s)", r.Notes)
		}
	}
	return sb.String()
}

// budget accumulates bundle text up to a character limit and records what it dropped.
type budget struct {
	sb      strings.Builder
	limit   int
	omitted int
}

func newBudget(limit int) *budget {
	return &budget{limit: limit}
}

func (b *budget) header(text string) {
	b.sb.WriteString(text)
}

func (b *budget) section(title string, items []string) {
	if len(items) == 0 {
		return
	}
	heading := fmt.Sprintf("\n## %s\n", title)
	if b.sb.Len()+len(heading) > b.limit {
		b.omitted += len(items)
		return
	}
	b.sb.WriteString(heading)
	for i, item := range items {
		if b.sb.Len()+len(item)+1 > b.limit {
			b.omitted += len(items) - i
			return
		}
		b.sb.WriteString(item)
		b.sb.WriteString("\n")
	}
}

func (b *budget) String() string {
	out := b.sb.String()
	if b.omitted > 0 {
		out += fmt.Sprintf("\n(%d more records omitted to fit the context budget)\n", b.omitted)
	}
	return out
}
