package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Invoker dispatches a named store operation with JSON arguments and returns the
// text an agent sees as the tool result.
type Invoker interface {
	Invoke(ctx context.Context, op Operation, args json.RawMessage) (string, error)
}

type whyArgs struct {
	Scope string `json:"scope"`
}

type recentArgs struct {
	N     int      `json:"n,omitempty"`
	Types []string `json:"types,omitempty"`
}

type idResult struct {
	ID string `json:"id"`
}

// Invoke dispatches op on the board. Read operations return text (assemble, why)
// or JSON arrays (read, recent, search_decisions); writes return {"id": ...}.
func (b *Board) Invoke(ctx context.Context, op Operation, args json.RawMessage) (string, error) {
	if err := op.Validate(); err != nil {
		return "", err
	}

	switch op {
	case OpAssemble:
		var req AssembleRequest
		if err := decodeArgs(args, &req); err != nil {
			return "", err
		}
		return b.Assemble(ctx, req)

	case OpWhy:
		var req whyArgs
		if err := decodeArgs(args, &req); err != nil {
			return "", err
		}
		return b.Why(ctx, req.Scope)

	case OpRead:
		var req ReadFilter
		if err := decodeArgs(args, &req); err != nil {
			return "", err
		}
		entries, err := b.Read(ctx, req)
		if err != nil {
			return "", err
		}
		return encodeResult(entries)

	case OpRecent:
		var req recentArgs
		if err := decodeArgs(args, &req); err != nil {
			return "", err
		}
		entries, err := b.Recent(ctx, req.N, req.Types)
		if err != nil {
			return "", err
		}
		return encodeResult(entries)

	case OpSearchDecisions:
		var req SearchRequest
		if err := decodeArgs(args, &req); err != nil {
			return "", err
		}
		decisions, err := b.SearchDecisions(ctx, req)
		if err != nil {
			return "", err
		}
		return encodeResult(decisions)

	case OpPost:
		var req PostRequest
		if err := decodeArgs(args, &req); err != nil {
			return "", err
		}
		return idOrError(b.Post(ctx, req))

	case OpDecide:
		var req DecideRequest
		if err := decodeArgs(args, &req); err != nil {
			return "", err
		}
		return idOrError(b.Decide(ctx, req))

	case OpHandoff:
		var req HandoffRequest
		if err := decodeArgs(args, &req); err != nil {
			return "", err
		}
		return idOrError(b.Handoff(ctx, req))

	case OpDelegate:
		var req DelegateRequest
		if err := decodeArgs(args, &req); err != nil {
			return "", err
		}
		return idOrError(b.Delegate(ctx, req))
	}

	return "", fmt.Errorf("unhandled store operation: %q", op)
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func encodeResult(v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(out), nil
}

func idOrError(id string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return encodeResult(idResult{ID: id})
}
