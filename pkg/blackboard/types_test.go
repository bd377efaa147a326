package blackboard

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func validEntry() *Entry {
	return &Entry{
		ID:      uuid.New().String(),
		Type:    EntryTypeWarning,
		Summary: "Token expiry is not checked",
		Scope:   "src/auth/",
		AgentID: "auth-reviewer",
	}
}

func validDecision() *Decision {
	return &Decision{
		ID:           uuid.New().String(),
		Domain:       "security",
		Scope:        "src/auth/",
		Summary:      "Validate exp claim",
		Context:      "Expired tokens are accepted",
		Rationale:    "Closes replay window",
		Alternatives: []Alternative{{Option: "Short-lived tokens only"}},
		Confidence:   ConfidenceMedium,
		AgentID:      "auth-reviewer",
	}
}

// TestEntryValidate_Valid tests that a well-formed entry passes validation
func TestEntryValidate_Valid(t *testing.T) {
	if err := validEntry().Validate(); err != nil {
		t.Errorf("valid entry failed validation: %v", err)
	}
}

// TestEntryValidate_SummaryLength tests the summary cap boundary
func TestEntryValidate_SummaryLength(t *testing.T) {
	entry := validEntry()
	entry.Summary = strings.Repeat("a", MaxSummaryLength)
	if err := entry.Validate(); err != nil {
		t.Errorf("summary of exactly %d characters should be valid: %v", MaxSummaryLength, err)
	}

	entry.Summary = strings.Repeat("a", MaxSummaryLength+1)
	err := entry.Validate()
	if err == nil {
		t.Fatal("expected validation error for over-long summary")
	}
	if !IsValidation(err) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

// TestEntryValidate_SummaryCountsRunes tests that multi-byte characters count once
func TestEntryValidate_SummaryCountsRunes(t *testing.T) {
	entry := validEntry()
	entry.Summary = strings.Repeat("é", MaxSummaryLength)
	if err := entry.Validate(); err != nil {
		t.Errorf("200 two-byte runes should be valid: %v", err)
	}
}

// TestEntryValidate_Invalid tests rejection of malformed entries
func TestEntryValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *Entry)
		field  string
	}{
		{"bad id", func(e *Entry) { e.ID = "not-a-uuid" }, "id"},
		{"unknown type", func(e *Entry) { e.Type = "rumour" }, "entry_type"},
		{"empty summary", func(e *Entry) { e.Summary = "  " }, "summary"},
		{"empty scope", func(e *Entry) { e.Scope = "" }, "scope"},
		{"empty agent", func(e *Entry) { e.AgentID = "" }, "agent_id"},
		{"bad relates_to", func(e *Entry) { e.RelatesTo = []string{"x"} }, "relates_to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := validEntry()
			tt.mutate(entry)
			err := entry.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

// TestEntryType_IsAgentPostable tests which types agents may post
func TestEntryType_IsAgentPostable(t *testing.T) {
	for _, et := range []EntryType{EntryTypeFinding, EntryTypeWarning, EntryTypeNeed} {
		if !et.IsAgentPostable() {
			t.Errorf("%s should be agent-postable", et)
		}
	}
	for _, et := range []EntryType{EntryTypeDecision, EntryTypeDelegation} {
		if et.IsAgentPostable() {
			t.Errorf("%s should not be agent-postable", et)
		}
	}
}

// TestDecisionValidate tests the alternatives requirement and required fields
func TestDecisionValidate(t *testing.T) {
	if err := validDecision().Validate(); err != nil {
		t.Fatalf("valid decision failed validation: %v", err)
	}

	d := validDecision()
	d.Alternatives = []Alternative{}
	if err := d.Validate(); err == nil {
		t.Error("expected error for zero alternatives")
	}

	d = validDecision()
	d.Alternatives = []Alternative{{Option: ""}}
	if err := d.Validate(); err == nil {
		t.Error("expected error for empty alternative option")
	}

	d = validDecision()
	d.Rationale = ""
	if err := d.Validate(); err == nil || !strings.Contains(err.Error(), "rationale") {
		t.Errorf("expected rationale error, got %v", err)
	}

	d = validDecision()
	d.Confidence = "certain"
	if err := d.Validate(); err == nil {
		t.Error("expected error for unknown confidence")
	}

	d = validDecision()
	d.Supersedes = "older"
	if err := d.Validate(); err == nil {
		t.Error("expected error for non-UUID supersedes")
	}
}

// TestHandoffStatus tests result aggregation
func TestHandoffStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []ResultStatus
		expected ResultStatus
	}{
		{"no results", nil, ResultCompleted},
		{"uniform completed", []ResultStatus{ResultCompleted, ResultCompleted}, ResultCompleted},
		{"uniform blocked", []ResultStatus{ResultBlocked}, ResultBlocked},
		{"mixed", []ResultStatus{ResultCompleted, ResultPartial}, ResultMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handoff{}
			for _, s := range tt.statuses {
				h.Results = append(h.Results, HandoffResult{Description: "work", Status: s})
			}
			if got := h.Status(); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

// TestHandoffValidate tests handoff rejection cases
func TestHandoffValidate(t *testing.T) {
	h := &Handoff{ID: uuid.New().String(), SourceAgent: "main", Summary: "done"}
	if err := h.Validate(); err != nil {
		t.Errorf("handoff without results should be valid: %v", err)
	}

	h.Results = []HandoffResult{{Description: "x", Status: ResultMixed}}
	if err := h.Validate(); err == nil {
		t.Error("mixed is not a valid individual result status")
	}

	h.Results = []HandoffResult{{Description: "", Status: ResultCompleted}}
	if err := h.Validate(); err == nil {
		t.Error("expected error for empty result description")
	}
}

// TestDelegationValidate tests delegation rejection cases
func TestDelegationValidate(t *testing.T) {
	valid := func() *Delegation {
		return &Delegation{
			ID:                   uuid.New().String(),
			Summary:              "Review SQL",
			RequiredCapabilities: []string{"sql"},
			Urgency:              UrgencyNormal,
			Scope:                "src/db/",
			CreatedAtMs:          10,
			ExpiresAtMs:          20,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid delegation failed validation: %v", err)
	}

	d := valid()
	d.RequiredCapabilities = nil
	if err := d.Validate(); err == nil {
		t.Error("expected error for missing capabilities")
	}

	d = valid()
	d.Urgency = "urgent"
	if err := d.Validate(); err == nil {
		t.Error("expected error for unknown urgency")
	}

	d = valid()
	d.ExpiresAtMs = 5
	if err := d.Validate(); err == nil {
		t.Error("expected error for expiry before creation")
	}
}

// TestNormalizeTags tests tag normalization
func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Auth", "auth", "", "JWT ", "  "})
	want := []string{"auth", "jwt"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if out := NormalizeTags(nil); out == nil || len(out) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", out)
	}
}
