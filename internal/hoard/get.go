package hoard

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/romp/pkg/blackboard"
	"github.com/google/uuid"
)

// GetRecord looks up id as an entry, decision, handoff or delegation, in that
// order, and writes the first match as pretty-printed JSON.
func GetRecord(ctx context.Context, client *blackboard.Client, id string, w io.Writer) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid record ID format: must be a valid UUID")
	}

	lookups := []func() (any, error){
		func() (any, error) { return client.GetEntry(ctx, id) },
		func() (any, error) { return client.GetDecision(ctx, id) },
		func() (any, error) { return client.GetHandoff(ctx, id) },
		func() (any, error) { return client.GetDelegation(ctx, id) },
	}
	for _, lookup := range lookups {
		record, err := lookup()
		if blackboard.IsNotFound(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to fetch record: %w", err)
		}
		if err := FormatSingleJSON(w, record); err != nil {
			return fmt.Errorf("failed to format record: %w", err)
		}
		return nil
	}

	return &RecordNotFoundError{ID: id}
}

// RecordNotFoundError reports that no record of any kind has the ID.
type RecordNotFoundError struct {
	ID string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("no record with ID '%s' found", e.ID)
}

// IsNotFound returns true if the error is a RecordNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*RecordNotFoundError)
	return ok
}
