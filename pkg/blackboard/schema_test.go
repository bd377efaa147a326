package blackboard

import "testing"

func TestKeyHelpers(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"entry", EntryKey("prod", "e1"), "romp:prod:entry:e1"},
		{"entry timeline", EntryTimelineKey("prod"), "romp:prod:entries"},
		{"decision", DecisionKey("prod", "d1"), "romp:prod:decision:d1"},
		{"decision timeline", DecisionTimelineKey("prod"), "romp:prod:decisions"},
		{"handoff", HandoffKey("prod", "h1"), "romp:prod:handoff:h1"},
		{"handoff timeline", HandoffTimelineKey("prod"), "romp:prod:handoffs"},
		{"delegation", DelegationKey("prod", "x1"), "romp:prod:delegation:x1"},
		{"delegation timeline", DelegationTimelineKey("prod"), "romp:prod:delegations"},
		{"events", BoardEventsChannel("prod"), "romp:prod:board_events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.got)
			}
		})
	}
}

// TestInstanceIsolation tests that different instances never share keys
func TestInstanceIsolation(t *testing.T) {
	if EntryKey("a", "id") == EntryKey("b", "id") {
		t.Error("entry keys must be namespaced by instance")
	}
	if BoardEventsChannel("a") == BoardEventsChannel("b") {
		t.Error("event channels must be namespaced by instance")
	}
}

func TestTimelineScore(t *testing.T) {
	ms := int64(1735689600123)
	if got := MsFromScore(TimelineScore(ms)); got != ms {
		t.Errorf("expected %d, got %d", ms, got)
	}
}
