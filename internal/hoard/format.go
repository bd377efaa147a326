package hoard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/romp/internal/printer"
	"github.com/dyluth/romp/pkg/blackboard"
)

const summaryWidth = 50

// FormatTable writes entries as a table with columns ID, TYPE, BY, SCOPE, AGE
// and SUMMARY. Returns the number of entries formatted.
func FormatTable(w io.Writer, entries []*blackboard.Entry, instanceName string) int {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No entries found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Entries for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-8s %-10s %-16s %-20s %-8s %s\n",
		"ID", "TYPE", "BY", "SCOPE", "AGE", "SUMMARY")
	fmt.Fprintf(w, "%-8s %-10s %-16s %-20s %-8s %s\n",
		"--------", "----------", "----------------", "--------------------", "--------", "--------------------------------------------------")

	now := time.Now()
	for _, e := range entries {
		fmt.Fprintf(w, "%-8s %-10s %-16s %-20s %-8s %s\n",
			shortID(e.ID),
			e.Type,
			orDash(printer.Preview(e.AgentID, 16)),
			orDash(printer.Preview(e.Scope, 20)),
			formatAge(e.CreatedAtMs, now),
			orDash(printer.Preview(e.Summary, summaryWidth)),
		)
	}

	noun := "entry"
	if len(entries) != 1 {
		noun = "entries"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(entries), noun)

	return len(entries)
}

// FormatJSONL writes entries as line-delimited JSON, one complete entry per line.
func FormatJSONL(w io.Writer, entries []*blackboard.Entry) error {
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entry to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes one record as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, record any) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatAge renders a creation time relative to now, e.g. "2m ago".
func formatAge(createdAtMs int64, now time.Time) string {
	if createdAtMs == 0 {
		return "-"
	}
	diff := now.Sub(time.UnixMilli(createdAtMs))
	if diff < 0 {
		diff = 0
	}

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
