// Package watch observes the blackboard: polling barriers that block until a
// record lands, and a live stream of board events for the terminal.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/romp/pkg/blackboard"
)

// DefaultPollInterval is how often barriers re-query the store.
const DefaultPollInterval = 200 * time.Millisecond

// PollForHandoff polls until a handoff created by sourceAgent at or after
// sinceMs exists, and returns the oldest such handoff.
// Returns an error if timeout elapses first.
func PollForHandoff(ctx context.Context, client *blackboard.Client, sourceAgent string, sinceMs int64, timeout time.Duration) (*blackboard.Handoff, error) {
	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		h, err := findHandoff(ctx, client, sourceAgent, sinceMs)
		if err != nil {
			return nil, err
		}
		if h != nil {
			return h, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for handoff from %s after %v", sourceAgent, timeout)

		case <-ticker.C:
		}
	}
}

func findHandoff(ctx context.Context, client *blackboard.Client, sourceAgent string, sinceMs int64) (*blackboard.Handoff, error) {
	handoffs, err := client.ListHandoffs(ctx, blackboard.TimeRange{SinceMs: sinceMs})
	if err != nil {
		return nil, fmt.Errorf("failed to query for handoff: %w", err)
	}
	for _, h := range handoffs {
		if h.SourceAgent == sourceAgent {
			return h, nil
		}
	}
	return nil, nil
}

// HandoffBarrier waits for handoffs until its context ends.
type HandoffBarrier struct {
	client *blackboard.Client
	// Timeout applies when the caller's context has no deadline.
	Timeout time.Duration
}

// NewHandoffBarrier creates a barrier over client.
func NewHandoffBarrier(client *blackboard.Client, timeout time.Duration) *HandoffBarrier {
	return &HandoffBarrier{client: client, Timeout: timeout}
}

// WaitForHandoff blocks until sourceAgent has handed off since sinceMs.
func (b *HandoffBarrier) WaitForHandoff(ctx context.Context, sourceAgent string, sinceMs int64) (*blackboard.Handoff, error) {
	timeout := b.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return PollForHandoff(ctx, b.client, sourceAgent, sinceMs, timeout)
}
