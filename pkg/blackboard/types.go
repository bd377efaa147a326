// Package blackboard provides type-safe Go definitions and Redis schema patterns
// for the romp blackboard. The blackboard is the shared knowledge store through
// which review agents coordinate: they post entries, record decisions and hand
// work to each other without ever talking directly.
//
// All Redis keys and channels are namespaced by instance name to enable multiple
// romp instances to safely coexist on a single Redis server.
package blackboard

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxSummaryLength is the hard cap on entry and delegation summaries, in characters.
	MaxSummaryLength = 200

	// DefaultScope is applied when an entry or delegation is posted without a scope.
	DefaultScope = "project"

	// DefaultAgentID is applied when a record is written without an agent identity.
	DefaultAgentID = "main"
)

// Entry is an immutable note on the blackboard.
// Entries are never updated or deleted once posted.
type Entry struct {
	ID          string    `json:"id"`                   // UUID
	Type        EntryType `json:"entry_type"`           // finding, warning, need (or store-internal types)
	Summary     string    `json:"summary"`              // One line, at most MaxSummaryLength characters
	Detail      string    `json:"detail"`               // Free-form explanation
	Scope       string    `json:"scope"`                // Codebase region the entry is about
	Tags        []string  `json:"tags"`                 // Normalized tags
	RelatesTo   []string  `json:"relates_to,omitempty"` // IDs of related records
	AgentID     string    `json:"agent_id"`             // Agent that posted the entry
	CreatedAtMs int64     `json:"created_at_ms"`        // Unix timestamp in milliseconds
}

// EntryType classifies a blackboard entry.
type EntryType string

const (
	// EntryTypeFinding is an informational observation.
	EntryTypeFinding EntryType = "finding"

	// EntryTypeWarning flags something that could cause problems if changed carelessly.
	EntryTypeWarning EntryType = "warning"

	// EntryTypeNeed describes work that still has to be done.
	EntryTypeNeed EntryType = "need"

	// EntryTypeDecision is the store's cross-post of a recorded decision.
	EntryTypeDecision EntryType = "decision"

	// EntryTypeDelegation is the store's cross-post of an open delegation.
	EntryTypeDelegation EntryType = "delegation"
)

// AgentEntryTypes are the entry types an agent may post directly.
// Decision and delegation entries are only written by the store itself.
var AgentEntryTypes = []EntryType{EntryTypeFinding, EntryTypeWarning, EntryTypeNeed}

// Validate checks if the EntryType is a known value.
func (t EntryType) Validate() error {
	switch t {
	case EntryTypeFinding, EntryTypeWarning, EntryTypeNeed,
		EntryTypeDecision, EntryTypeDelegation:
		return nil
	default:
		return fmt.Errorf("unknown entry type: %q", t)
	}
}

// IsAgentPostable reports whether agents may post entries of this type.
func (t EntryType) IsAgentPostable() bool {
	for _, allowed := range AgentEntryTypes {
		if t == allowed {
			return true
		}
	}
	return false
}

// Confidence expresses how sure an agent is about a decision.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Validate checks if the Confidence is a known value.
func (c Confidence) Validate() error {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return nil
	default:
		return fmt.Errorf("unknown confidence: %q", c)
	}
}

// Alternative is an option that was considered and rejected for a decision.
type Alternative struct {
	Option         string   `json:"option"`
	Pros           []string `json:"pros"`
	Cons           []string `json:"cons"`
	ReasonRejected string   `json:"reason_rejected"`
}

// Decision is a historical record of a significant recommendation.
// Decisions are never mutated; an amendment is a new decision whose Supersedes
// field points at the older one.
type Decision struct {
	ID              string        `json:"id"`
	Domain          string        `json:"domain"` // e.g. "security", "architecture"
	Scope           string        `json:"scope"`
	Summary         string        `json:"summary"`
	Context         string        `json:"context"`
	Rationale       string        `json:"rationale"`
	Constraints     []string      `json:"constraints"`
	Alternatives    []Alternative `json:"alternatives"` // At least one
	DependsOn       []string      `json:"depends_on"`
	Supersedes      string        `json:"supersedes,omitempty"`
	Confidence      Confidence    `json:"confidence"`
	Reversible      bool          `json:"reversible"`
	AgentID         string        `json:"agent_id"`
	AffectedFiles   []string      `json:"affected_files"`
	AffectedSymbols []string      `json:"affected_symbols"`
	CreatedAtMs     int64         `json:"created_at_ms"`
}

// ResultStatus describes how far a unit of handed-off work got.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultPartial   ResultStatus = "partial"
	ResultBlocked   ResultStatus = "blocked"
	ResultFailed    ResultStatus = "failed"

	// ResultMixed is only ever an aggregate; individual results cannot be mixed.
	ResultMixed ResultStatus = "mixed"
)

// Validate checks if the ResultStatus is valid for an individual result.
func (s ResultStatus) Validate() error {
	switch s {
	case ResultCompleted, ResultPartial, ResultBlocked, ResultFailed:
		return nil
	default:
		return fmt.Errorf("unknown result status: %q", s)
	}
}

// HandoffResult is one item of work reported in a handoff.
type HandoffResult struct {
	Description string       `json:"description"`
	Status      ResultStatus `json:"status"`
	Notes       string       `json:"notes,omitempty"`
	Artifacts   []string     `json:"artifacts,omitempty"`
}

// ContextSnapshot lists the records in a handoff's scope at the moment it was created.
type ContextSnapshot struct {
	DecisionIDs []string `json:"decision_ids"`
	WarningIDs  []string `json:"warning_ids"`
	FindingIDs  []string `json:"finding_ids"`
}

// Handoff is a completed unit of work plus an explicit statement of what remains.
// An empty TargetAgent means any capable agent may pick it up.
type Handoff struct {
	ID              string          `json:"id"`
	SourceAgent     string          `json:"source_agent"`
	TargetAgent     string          `json:"target_agent,omitempty"`
	Summary         string          `json:"summary"`
	Scope           string          `json:"scope"`
	Results         []HandoffResult `json:"results"`
	ContextSnapshot ContextSnapshot `json:"context_snapshot"`
	CreatedAtMs     int64           `json:"created_at_ms"`
}

// Status aggregates the individual result statuses.
// No results counts as completed; differing statuses are mixed.
func (h *Handoff) Status() ResultStatus {
	if len(h.Results) == 0 {
		return ResultCompleted
	}
	first := h.Results[0].Status
	for _, r := range h.Results[1:] {
		if r.Status != first {
			return ResultMixed
		}
	}
	return first
}

// Urgency ranks how soon delegated work should be picked up.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyNormal Urgency = "normal"
	UrgencyLow    Urgency = "low"
)

// Validate checks if the Urgency is a known value.
func (u Urgency) Validate() error {
	switch u {
	case UrgencyHigh, UrgencyNormal, UrgencyLow:
		return nil
	default:
		return fmt.Errorf("unknown urgency: %q", u)
	}
}

// Delegation is open work that needs a specialist who is not currently running.
// Unlike a Handoff it names no recipient, only the capabilities required.
type Delegation struct {
	ID                   string   `json:"id"`
	Summary              string   `json:"summary"`
	RequiredCapabilities []string `json:"required_capabilities"`
	Urgency              Urgency  `json:"urgency"`
	Scope                string   `json:"scope"`
	Tags                 []string `json:"tags"`
	AgentID              string   `json:"agent_id"`
	CreatedAtMs          int64    `json:"created_at_ms"`
	ExpiresAtMs          int64    `json:"expires_at_ms"`
}

// ValidationError reports a malformed record rejected before it reached Redis.
type ValidationError struct {
	Kind   string // entry, decision, handoff, delegation
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Kind, e.Field, e.Reason)
}

func invalid(kind, field, reason string, args ...any) error {
	return &ValidationError{Kind: kind, Field: field, Reason: fmt.Sprintf(reason, args...)}
}

// Validate checks if the Entry has valid field values.
func (e *Entry) Validate() error {
	if !isValidUUID(e.ID) {
		return invalid("entry", "id", "is not a valid UUID")
	}
	if err := e.Type.Validate(); err != nil {
		return invalid("entry", "entry_type", "%v", err)
	}
	if err := validateSummary("entry", e.Summary); err != nil {
		return err
	}
	if e.Scope == "" {
		return invalid("entry", "scope", "cannot be empty")
	}
	if e.AgentID == "" {
		return invalid("entry", "agent_id", "cannot be empty")
	}
	for i, id := range e.RelatesTo {
		if !isValidUUID(id) {
			return invalid("entry", "relates_to", "index %d is not a valid UUID", i)
		}
	}
	return nil
}

// Validate checks if the Decision has valid field values.
// A decision with no considered alternatives is rejected.
func (d *Decision) Validate() error {
	if !isValidUUID(d.ID) {
		return invalid("decision", "id", "is not a valid UUID")
	}
	required := map[string]string{
		"domain":    d.Domain,
		"scope":     d.Scope,
		"summary":   d.Summary,
		"context":   d.Context,
		"rationale": d.Rationale,
		"agent_id":  d.AgentID,
	}
	for _, field := range []string{"domain", "scope", "summary", "context", "rationale", "agent_id"} {
		if strings.TrimSpace(required[field]) == "" {
			return invalid("decision", field, "is required")
		}
	}
	if len(d.Alternatives) == 0 {
		return invalid("decision", "alternatives", "must contain at least one considered alternative")
	}
	for i, alt := range d.Alternatives {
		if strings.TrimSpace(alt.Option) == "" {
			return invalid("decision", "alternatives", "index %d has an empty option", i)
		}
	}
	if err := d.Confidence.Validate(); err != nil {
		return invalid("decision", "confidence", "%v", err)
	}
	if d.Supersedes != "" && !isValidUUID(d.Supersedes) {
		return invalid("decision", "supersedes", "is not a valid UUID")
	}
	return nil
}

// Validate checks if the Handoff has valid field values.
func (h *Handoff) Validate() error {
	if !isValidUUID(h.ID) {
		return invalid("handoff", "id", "is not a valid UUID")
	}
	if h.SourceAgent == "" {
		return invalid("handoff", "source_agent", "is required")
	}
	if strings.TrimSpace(h.Summary) == "" {
		return invalid("handoff", "summary", "is required")
	}
	for i, r := range h.Results {
		if strings.TrimSpace(r.Description) == "" {
			return invalid("handoff", "results", "index %d has an empty description", i)
		}
		if err := r.Status.Validate(); err != nil {
			return invalid("handoff", "results", "index %d: %v", i, err)
		}
	}
	return nil
}

// Validate checks if the Delegation has valid field values.
func (d *Delegation) Validate() error {
	if !isValidUUID(d.ID) {
		return invalid("delegation", "id", "is not a valid UUID")
	}
	if err := validateSummary("delegation", d.Summary); err != nil {
		return err
	}
	if len(d.RequiredCapabilities) == 0 {
		return invalid("delegation", "required_capabilities", "must name at least one capability")
	}
	if err := d.Urgency.Validate(); err != nil {
		return invalid("delegation", "urgency", "%v", err)
	}
	if d.Scope == "" {
		return invalid("delegation", "scope", "cannot be empty")
	}
	if d.ExpiresAtMs != 0 && d.ExpiresAtMs < d.CreatedAtMs {
		return invalid("delegation", "expires_at_ms", "is before created_at_ms")
	}
	return nil
}

func validateSummary(kind, summary string) error {
	if strings.TrimSpace(summary) == "" {
		return invalid(kind, "summary", "is required")
	}
	if n := utf8.RuneCountInString(summary); n > MaxSummaryLength {
		return invalid(kind, "summary", "is %d characters, must be at most %d", n, MaxSummaryLength)
	}
	return nil
}

// NormalizeTags lowercases, trims and de-duplicates tags, dropping empty ones.
// Order of first occurrence is preserved.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		normalized = append(normalized, t)
	}
	return normalized
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
