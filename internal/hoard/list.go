// Package hoard implements the read-only inspection behind `romp hoard`:
// listing blackboard entries and fetching single records.
package hoard

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dyluth/romp/pkg/blackboard"
)

// OutputFormat specifies how to format the entry list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated summaries
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete entries as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat maps a --output flag value to a format.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputFormatDefault:
		return OutputFormatDefault, nil
	case OutputFormatJSONL:
		return OutputFormatJSONL, nil
	default:
		return "", fmt.Errorf("unknown output format: %s (must be 'default' or 'jsonl')", s)
	}
}

// FilterCriteria defines filtering options for hoard list.
// All filters are ANDed together.
type FilterCriteria struct {
	Range    blackboard.TimeRange // Zero bounds mean unbounded
	TypeGlob string               // Glob pattern for entry type, empty = no filter
	Scope    string               // Scope query, matched with the store's scope mode
	AgentID  string               // Exact match on agent_id, empty = no filter
}

func (fc *FilterCriteria) matches(e *blackboard.Entry, matcher *blackboard.ScopeMatcher) bool {
	if fc.TypeGlob != "" {
		matched, err := filepath.Match(fc.TypeGlob, string(e.Type))
		if err != nil || !matched {
			return false
		}
	}
	if fc.AgentID != "" && e.AgentID != fc.AgentID {
		return false
	}
	if fc.Scope != "" && !matcher.Matches(fc.Scope, e.Scope) {
		return false
	}
	return true
}

// ListEntries writes the instance's entries, oldest first, to w. The time
// range is applied by the store; the other filters are applied here.
func ListEntries(ctx context.Context, client *blackboard.Client, matcher *blackboard.ScopeMatcher, format OutputFormat, filters FilterCriteria, w io.Writer) error {
	if filters.TypeGlob != "" {
		if _, err := filepath.Match(filters.TypeGlob, ""); err != nil {
			return fmt.Errorf("invalid --type pattern %q: %w", filters.TypeGlob, err)
		}
	}

	all, err := client.ListEntries(ctx, filters.Range)
	if err != nil {
		return err
	}

	entries := make([]*blackboard.Entry, 0, len(all))
	for _, e := range all {
		if filters.matches(e, matcher) {
			entries = append(entries, e)
		}
	}

	switch format {
	case OutputFormatDefault:
		FormatTable(w, entries, client.InstanceName())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, entries); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
