// Package resolver expands short record ID prefixes, as shown in hoard's table,
// to full UUIDs.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/romp/pkg/blackboard"
	"github.com/google/uuid"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// ErrTooShort is returned for prefixes shorter than MinShortIDLength.
var ErrTooShort = errors.New("short ID too short")

// ResolveRecordID resolves a short ID prefix to the full UUID of an entry,
// decision, handoff or delegation. A full UUID is returned unchanged.
func ResolveRecordID(ctx context.Context, client *blackboard.Client, shortID string) (string, error) {
	shortID = strings.ToLower(strings.TrimSpace(shortID))
	if _, err := uuid.Parse(shortID); err == nil {
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("%w: must be at least %d characters (got %d)", ErrTooShort, MinShortIDLength, len(shortID))
	}

	ids, err := allRecordIDs(ctx, client)
	if err != nil {
		return "", fmt.Errorf("failed to search for record: %w", err)
	}

	seen := make(map[string]bool)
	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, shortID) && !seen[id] {
			seen[id] = true
			matches = append(matches, id)
		}
	}
	sort.Strings(matches)

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

func allRecordIDs(ctx context.Context, client *blackboard.Client) ([]string, error) {
	var ids []string
	all := blackboard.TimeRange{}

	entries, err := client.ListEntries(ctx, all)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		ids = append(ids, e.ID)
	}

	decisions, err := client.ListDecisions(ctx, all)
	if err != nil {
		return nil, err
	}
	for _, d := range decisions {
		ids = append(ids, d.ID)
	}

	handoffs, err := client.ListHandoffs(ctx, all)
	if err != nil {
		return nil, err
	}
	for _, h := range handoffs {
		ids = append(ids, h.ID)
	}

	delegations, err := client.ListDelegations(ctx, all)
	if err != nil {
		return nil, err
	}
	for _, d := range delegations {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// NotFoundError indicates no record matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no records found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple records matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d records", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous short IDs.
// Lists all matching UUIDs (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ambiguous short ID '%s' matches %d records:\n", err.ShortID, len(err.Matches))

	shown := err.Matches
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, id := range shown {
		fmt.Fprintf(&sb, "  %s\n", id)
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&sb, "  ...and %d more\n", len(err.Matches)-10)
	}

	sb.WriteString("\nUse a longer prefix to uniquely identify the record.")
	return sb.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
