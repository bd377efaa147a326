package store

import (
	"context"
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/dyluth/romp/pkg/blackboard"
	"github.com/google/uuid"
)

// PostRequest is an agent's blackboard entry before the store assigns identity.
type PostRequest struct {
	Type      blackboard.EntryType `json:"entry_type"`
	Summary   string               `json:"summary"`
	Detail    string               `json:"detail,omitempty"`
	Scope     string               `json:"scope,omitempty"`
	Tags      []string             `json:"tags,omitempty"`
	RelatesTo []string             `json:"relates_to,omitempty"`
}

// Post writes a finding, warning or need and returns its ID.
// Store-internal entry types are rejected.
func (b *Board) Post(ctx context.Context, req PostRequest) (string, error) {
	if !req.Type.IsAgentPostable() {
		return "", &blackboard.ValidationError{
			Kind:   "entry",
			Field:  "entry_type",
			Reason: fmt.Sprintf("%q is not postable (must be finding, warning or need)", req.Type),
		}
	}

	entry := &blackboard.Entry{
		ID:          uuid.New().String(),
		Type:        req.Type,
		Summary:     req.Summary,
		Detail:      req.Detail,
		Scope:       orDefault(req.Scope, blackboard.DefaultScope),
		Tags:        blackboard.NormalizeTags(req.Tags),
		RelatesTo:   req.RelatesTo,
		AgentID:     b.agentID,
		CreatedAtMs: b.now().UnixMilli(),
	}
	if err := b.client.CreateEntry(ctx, entry); err != nil {
		return "", err
	}

	log.Printf("[DEBUG] Posted entry: id=%s type=%s scope=%s agent=%s", entry.ID, entry.Type, entry.Scope, entry.AgentID)
	return entry.ID, nil
}

// DecideRequest is a decision before the store assigns identity.
// Reversible defaults to true and Confidence to medium when omitted.
type DecideRequest struct {
	Domain          string                   `json:"domain"`
	Scope           string                   `json:"scope,omitempty"`
	Summary         string                   `json:"summary"`
	Context         string                   `json:"context"`
	Rationale       string                   `json:"rationale"`
	Constraints     []string                 `json:"constraints,omitempty"`
	Alternatives    []blackboard.Alternative `json:"alternatives"`
	DependsOn       []string                 `json:"depends_on,omitempty"`
	Supersedes      string                   `json:"supersedes,omitempty"`
	Confidence      blackboard.Confidence    `json:"confidence,omitempty"`
	Reversible      *bool                    `json:"reversible,omitempty"`
	AffectedFiles   []string                 `json:"affected_files,omitempty"`
	AffectedSymbols []string                 `json:"affected_symbols,omitempty"`
}

// Decide records a decision and cross-posts it to the blackboard as a decision entry.
func (b *Board) Decide(ctx context.Context, req DecideRequest) (string, error) {
	reversible := true
	if req.Reversible != nil {
		reversible = *req.Reversible
	}
	confidence := req.Confidence
	if confidence == "" {
		confidence = blackboard.ConfidenceMedium
	}

	decision := &blackboard.Decision{
		ID:              uuid.New().String(),
		Domain:          req.Domain,
		Scope:           orDefault(req.Scope, blackboard.DefaultScope),
		Summary:         req.Summary,
		Context:         req.Context,
		Rationale:       req.Rationale,
		Constraints:     req.Constraints,
		Alternatives:    req.Alternatives,
		DependsOn:       req.DependsOn,
		Supersedes:      req.Supersedes,
		Confidence:      confidence,
		Reversible:      reversible,
		AgentID:         b.agentID,
		AffectedFiles:   req.AffectedFiles,
		AffectedSymbols: req.AffectedSymbols,
		CreatedAtMs:     b.now().UnixMilli(),
	}
	if err := b.client.CreateDecision(ctx, decision); err != nil {
		return "", err
	}

	crossPost := &blackboard.Entry{
		ID:          uuid.New().String(),
		Type:        blackboard.EntryTypeDecision,
		Summary:     clip(decision.Summary, blackboard.MaxSummaryLength),
		Detail:      decision.Rationale,
		Scope:       decision.Scope,
		Tags:        blackboard.NormalizeTags([]string{"decision", decision.Domain}),
		RelatesTo:   []string{decision.ID},
		AgentID:     b.agentID,
		CreatedAtMs: decision.CreatedAtMs,
	}
	if err := b.client.CreateEntry(ctx, crossPost); err != nil {
		return "", fmt.Errorf("decision %s recorded but cross-post failed: %w", decision.ID, err)
	}

	log.Printf("[DEBUG] Recorded decision: id=%s domain=%s scope=%s agent=%s", decision.ID, decision.Domain, decision.Scope, decision.AgentID)
	return decision.ID, nil
}

// HandoffRequest is a handoff before the store assigns identity and snapshot.
type HandoffRequest struct {
	TargetAgent string                     `json:"target_agent,omitempty"`
	Summary     string                     `json:"summary"`
	Scope       string                     `json:"scope,omitempty"`
	Results     []blackboard.HandoffResult `json:"results,omitempty"`
}

// Handoff records a completed unit of work. The context snapshot lists the
// decisions, warnings and findings related to the handoff's scope at this moment.
func (b *Board) Handoff(ctx context.Context, req HandoffRequest) (string, error) {
	scope := orDefault(req.Scope, blackboard.DefaultScope)

	snapshot, err := b.snapshot(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("failed to build context snapshot: %w", err)
	}

	handoff := &blackboard.Handoff{
		ID:              uuid.New().String(),
		SourceAgent:     b.agentID,
		TargetAgent:     req.TargetAgent,
		Summary:         req.Summary,
		Scope:           scope,
		Results:         req.Results,
		ContextSnapshot: snapshot,
		CreatedAtMs:     b.now().UnixMilli(),
	}
	if err := b.client.CreateHandoff(ctx, handoff); err != nil {
		return "", err
	}

	target := handoff.TargetAgent
	if target == "" {
		target = "any"
	}
	log.Printf("[DEBUG] Created handoff: id=%s from=%s to=%s status=%s", handoff.ID, handoff.SourceAgent, target, handoff.Status())
	return handoff.ID, nil
}

// DelegateRequest is a delegation before the store assigns identity and expiry.
type DelegateRequest struct {
	Summary              string             `json:"summary"`
	RequiredCapabilities []string           `json:"required_capabilities"`
	Urgency              blackboard.Urgency `json:"urgency,omitempty"`
	Scope                string             `json:"scope,omitempty"`
	Tags                 []string           `json:"tags,omitempty"`
}

// Delegate records open work for an unnamed specialist and cross-posts it as a
// delegation entry so later context assembly surfaces it.
func (b *Board) Delegate(ctx context.Context, req DelegateRequest) (string, error) {
	urgency := req.Urgency
	if urgency == "" {
		urgency = blackboard.UrgencyNormal
	}
	now := b.now()

	delegation := &blackboard.Delegation{
		ID:                   uuid.New().String(),
		Summary:              req.Summary,
		RequiredCapabilities: blackboard.NormalizeTags(req.RequiredCapabilities),
		Urgency:              urgency,
		Scope:                orDefault(req.Scope, blackboard.DefaultScope),
		Tags:                 blackboard.NormalizeTags(req.Tags),
		AgentID:              b.agentID,
		CreatedAtMs:          now.UnixMilli(),
		ExpiresAtMs:          now.Add(b.timeouts.forUrgency(urgency)).UnixMilli(),
	}
	if err := b.client.CreateDelegation(ctx, delegation); err != nil {
		return "", err
	}

	tags := append([]string{"delegation"}, delegation.RequiredCapabilities...)
	crossPost := &blackboard.Entry{
		ID:          uuid.New().String(),
		Type:        blackboard.EntryTypeDelegation,
		Summary:     delegation.Summary,
		Detail:      fmt.Sprintf("urgency=%s expires_at_ms=%d", delegation.Urgency, delegation.ExpiresAtMs),
		Scope:       delegation.Scope,
		Tags:        blackboard.NormalizeTags(append(tags, delegation.Tags...)),
		RelatesTo:   []string{delegation.ID},
		AgentID:     b.agentID,
		CreatedAtMs: delegation.CreatedAtMs,
	}
	if err := b.client.CreateEntry(ctx, crossPost); err != nil {
		return "", fmt.Errorf("delegation %s recorded but cross-post failed: %w", delegation.ID, err)
	}

	log.Printf("[DEBUG] Created delegation: id=%s urgency=%s capabilities=%v", delegation.ID, delegation.Urgency, delegation.RequiredCapabilities)
	return delegation.ID, nil
}

func (b *Board) snapshot(ctx context.Context, scope string) (blackboard.ContextSnapshot, error) {
	snapshot := blackboard.ContextSnapshot{
		DecisionIDs: []string{},
		WarningIDs:  []string{},
		FindingIDs:  []string{},
	}

	decisions, err := b.client.ListDecisions(ctx, blackboard.TimeRange{})
	if err != nil {
		return snapshot, err
	}
	for _, d := range decisions {
		if b.matcher.Matches(scope, d.Scope) {
			snapshot.DecisionIDs = append(snapshot.DecisionIDs, d.ID)
		}
	}

	entries, err := b.client.ListEntries(ctx, blackboard.TimeRange{})
	if err != nil {
		return snapshot, err
	}
	for _, e := range entries {
		if !b.matcher.Matches(scope, e.Scope) {
			continue
		}
		switch e.Type {
		case blackboard.EntryTypeWarning:
			snapshot.WarningIDs = append(snapshot.WarningIDs, e.ID)
		case blackboard.EntryTypeFinding:
			snapshot.FindingIDs = append(snapshot.FindingIDs, e.ID)
		}
	}
	return snapshot, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// clip shortens s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}
