package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the blackboard.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
	now          func() time.Time
}

// NewClient creates a new blackboard client for the specified instance.
// The client automatically namespaces all keys and channels with the instance name.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: romp instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		now:          time.Now,
	}, nil
}

// InstanceName returns the instance this client is scoped to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// EventKind identifies which kind of record a board event describes.
type EventKind string

const (
	EventEntry      EventKind = "entry"
	EventDecision   EventKind = "decision"
	EventHandoff    EventKind = "handoff"
	EventDelegation EventKind = "delegation"
)

// BoardEvent is published on the board events channel after every successful write.
type BoardEvent struct {
	Kind        EventKind `json:"kind"`
	ID          string    `json:"id"`
	Type        string    `json:"type,omitempty"` // entry_type for entries
	Scope       string    `json:"scope"`
	AgentID     string    `json:"agent_id"`
	Summary     string    `json:"summary"`
	CreatedAtMs int64     `json:"created_at_ms"`
}

// TimeRange bounds timeline queries. Zero values mean unbounded.
type TimeRange struct {
	SinceMs int64
	UntilMs int64
}

// CreateEntry validates an entry, writes it and its timeline membership
// atomically, then publishes a board event.
// CreatedAtMs is stamped with the current time when zero.
func (c *Client) CreateEntry(ctx context.Context, e *Entry) error {
	if e.CreatedAtMs == 0 {
		e.CreatedAtMs = c.now().UnixMilli()
	}
	if err := e.Validate(); err != nil {
		return err
	}

	hash, err := EntryToHash(e)
	if err != nil {
		return fmt.Errorf("failed to serialize entry: %w", err)
	}

	if err := c.write(ctx, EntryKey(c.instanceName, e.ID), EntryTimelineKey(c.instanceName), e.ID, e.CreatedAtMs, hash); err != nil {
		return fmt.Errorf("failed to write entry to Redis: %w", err)
	}

	return c.publish(ctx, &BoardEvent{
		Kind: EventEntry, ID: e.ID, Type: string(e.Type), Scope: e.Scope,
		AgentID: e.AgentID, Summary: e.Summary, CreatedAtMs: e.CreatedAtMs,
	})
}

// GetEntry retrieves an entry by ID.
// Returns (nil, redis.Nil) if the entry doesn't exist. Use IsNotFound() to check.
func (c *Client) GetEntry(ctx context.Context, entryID string) (*Entry, error) {
	hash, err := c.read(ctx, EntryKey(c.instanceName, entryID))
	if err != nil {
		return nil, err
	}
	entry, err := HashToEntry(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns entries created within the range, oldest first.
func (c *Client) ListEntries(ctx context.Context, tr TimeRange) ([]*Entry, error) {
	hashes, err := c.list(ctx, EntryTimelineKey(c.instanceName), func(id string) string {
		return EntryKey(c.instanceName, id)
	}, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	entries := make([]*Entry, 0, len(hashes))
	for _, hash := range hashes {
		entry, err := HashToEntry(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CreateDecision validates a decision and writes it with its timeline membership.
func (c *Client) CreateDecision(ctx context.Context, d *Decision) error {
	if d.CreatedAtMs == 0 {
		d.CreatedAtMs = c.now().UnixMilli()
	}
	if err := d.Validate(); err != nil {
		return err
	}

	hash, err := DecisionToHash(d)
	if err != nil {
		return fmt.Errorf("failed to serialize decision: %w", err)
	}

	if err := c.write(ctx, DecisionKey(c.instanceName, d.ID), DecisionTimelineKey(c.instanceName), d.ID, d.CreatedAtMs, hash); err != nil {
		return fmt.Errorf("failed to write decision to Redis: %w", err)
	}

	return c.publish(ctx, &BoardEvent{
		Kind: EventDecision, ID: d.ID, Type: d.Domain, Scope: d.Scope,
		AgentID: d.AgentID, Summary: d.Summary, CreatedAtMs: d.CreatedAtMs,
	})
}

// GetDecision retrieves a decision by ID.
// Returns (nil, redis.Nil) if the decision doesn't exist.
func (c *Client) GetDecision(ctx context.Context, decisionID string) (*Decision, error) {
	hash, err := c.read(ctx, DecisionKey(c.instanceName, decisionID))
	if err != nil {
		return nil, err
	}
	decision, err := HashToDecision(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize decision: %w", err)
	}
	return decision, nil
}

// ListDecisions returns decisions created within the range, oldest first.
func (c *Client) ListDecisions(ctx context.Context, tr TimeRange) ([]*Decision, error) {
	hashes, err := c.list(ctx, DecisionTimelineKey(c.instanceName), func(id string) string {
		return DecisionKey(c.instanceName, id)
	}, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}

	decisions := make([]*Decision, 0, len(hashes))
	for _, hash := range hashes {
		decision, err := HashToDecision(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize decision: %w", err)
		}
		decisions = append(decisions, decision)
	}
	return decisions, nil
}

// CreateHandoff validates a handoff and writes it with its timeline membership.
func (c *Client) CreateHandoff(ctx context.Context, h *Handoff) error {
	if h.CreatedAtMs == 0 {
		h.CreatedAtMs = c.now().UnixMilli()
	}
	if err := h.Validate(); err != nil {
		return err
	}

	hash, err := HandoffToHash(h)
	if err != nil {
		return fmt.Errorf("failed to serialize handoff: %w", err)
	}

	if err := c.write(ctx, HandoffKey(c.instanceName, h.ID), HandoffTimelineKey(c.instanceName), h.ID, h.CreatedAtMs, hash); err != nil {
		return fmt.Errorf("failed to write handoff to Redis: %w", err)
	}

	return c.publish(ctx, &BoardEvent{
		Kind: EventHandoff, ID: h.ID, Type: h.TargetAgent, Scope: h.Scope,
		AgentID: h.SourceAgent, Summary: h.Summary, CreatedAtMs: h.CreatedAtMs,
	})
}

// GetHandoff retrieves a handoff by ID.
// Returns (nil, redis.Nil) if the handoff doesn't exist.
func (c *Client) GetHandoff(ctx context.Context, handoffID string) (*Handoff, error) {
	hash, err := c.read(ctx, HandoffKey(c.instanceName, handoffID))
	if err != nil {
		return nil, err
	}
	handoff, err := HashToHandoff(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize handoff: %w", err)
	}
	return handoff, nil
}

// ListHandoffs returns handoffs created within the range, oldest first.
func (c *Client) ListHandoffs(ctx context.Context, tr TimeRange) ([]*Handoff, error) {
	hashes, err := c.list(ctx, HandoffTimelineKey(c.instanceName), func(id string) string {
		return HandoffKey(c.instanceName, id)
	}, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to list handoffs: %w", err)
	}

	handoffs := make([]*Handoff, 0, len(hashes))
	for _, hash := range hashes {
		handoff, err := HashToHandoff(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize handoff: %w", err)
		}
		handoffs = append(handoffs, handoff)
	}
	return handoffs, nil
}

// CreateDelegation validates a delegation and writes it with its timeline membership.
func (c *Client) CreateDelegation(ctx context.Context, d *Delegation) error {
	if d.CreatedAtMs == 0 {
		d.CreatedAtMs = c.now().UnixMilli()
	}
	if err := d.Validate(); err != nil {
		return err
	}

	hash, err := DelegationToHash(d)
	if err != nil {
		return fmt.Errorf("failed to serialize delegation: %w", err)
	}

	if err := c.write(ctx, DelegationKey(c.instanceName, d.ID), DelegationTimelineKey(c.instanceName), d.ID, d.CreatedAtMs, hash); err != nil {
		return fmt.Errorf("failed to write delegation to Redis: %w", err)
	}

	return c.publish(ctx, &BoardEvent{
		Kind: EventDelegation, ID: d.ID, Type: string(d.Urgency), Scope: d.Scope,
		AgentID: d.AgentID, Summary: d.Summary, CreatedAtMs: d.CreatedAtMs,
	})
}

// GetDelegation retrieves a delegation by ID.
// Returns (nil, redis.Nil) if the delegation doesn't exist.
func (c *Client) GetDelegation(ctx context.Context, delegationID string) (*Delegation, error) {
	hash, err := c.read(ctx, DelegationKey(c.instanceName, delegationID))
	if err != nil {
		return nil, err
	}
	delegation, err := HashToDelegation(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize delegation: %w", err)
	}
	return delegation, nil
}

// ListDelegations returns delegations created within the range, oldest first.
func (c *Client) ListDelegations(ctx context.Context, tr TimeRange) ([]*Delegation, error) {
	hashes, err := c.list(ctx, DelegationTimelineKey(c.instanceName), func(id string) string {
		return DelegationKey(c.instanceName, id)
	}, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}

	delegations := make([]*Delegation, 0, len(hashes))
	for _, hash := range hashes {
		delegation, err := HashToDelegation(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize delegation: %w", err)
		}
		delegations = append(delegations, delegation)
	}
	return delegations, nil
}

// write stores a record hash and adds it to its timeline in one MULTI/EXEC.
func (c *Client) write(ctx context.Context, key, timelineKey, id string, createdAtMs int64, hash map[string]interface{}) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, hash)
		pipe.ZAdd(ctx, timelineKey, redis.Z{Score: TimelineScore(createdAtMs), Member: id})
		return nil
	})
	return err
}

// read fetches a record hash, mapping a missing key to redis.Nil.
func (c *Client) read(ctx context.Context, key string) (map[string]string, error) {
	hash, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from Redis: %w", key, err)
	}
	// HGetAll returns an empty map for non-existent keys
	if len(hash) == 0 {
		return nil, redis.Nil
	}
	return hash, nil
}

// list resolves a timeline range to record hashes in a single pipeline round trip.
func (c *Client) list(ctx context.Context, timelineKey string, keyFor func(id string) string, tr TimeRange) ([]map[string]string, error) {
	rangeBy := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if tr.SinceMs > 0 {
		rangeBy.Min = strconv.FormatInt(tr.SinceMs, 10)
	}
	if tr.UntilMs > 0 {
		rangeBy.Max = strconv.FormatInt(tr.UntilMs, 10)
	}

	ids, err := c.rdb.ZRangeByScore(ctx, timelineKey, rangeBy).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []map[string]string{}, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, keyFor(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	hashes := make([]map[string]string, 0, len(ids))
	for _, cmd := range cmds {
		hash, err := cmd.Result()
		if err != nil {
			return nil, err
		}
		if len(hash) == 0 {
			continue
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

func (c *Client) publish(ctx context.Context, event *BoardEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal board event: %w", err)
	}
	if err := c.rdb.Publish(ctx, BoardEventsChannel(c.instanceName), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish board event: %w", err)
	}
	return nil
}

// Subscription represents an active Pub/Sub subscription to board events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *BoardEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of board events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *BoardEvent {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors - malformed messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeBoardEvents subscribes to write events for this instance.
// Events are delivered on a buffered channel (size 10); Redis Pub/Sub is
// at-most-once, so a slow subscriber may miss events.
func (c *Client) SubscribeBoardEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, BoardEventsChannel(c.instanceName))

	// Wait for the subscription to be confirmed so no event published after
	// this call returns is lost
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to board events: %w", err)
	}

	eventsChan := make(chan *BoardEvent, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event BoardEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal board event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// IsValidation returns true if the error (or any error it wraps) is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
