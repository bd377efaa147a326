package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/romp/pkg/blackboard"
)

const (
	// DefaultMaxContextTokens bounds an assembled context bundle.
	DefaultMaxContextTokens = 4000

	// charsPerToken is the estimate used to convert a token budget into characters.
	charsPerToken = 4

	defaultReadLimit   = 50
	defaultRecentCount = 10
	defaultSearchLimit = 10
)

// DelegationTimeouts maps urgency to how long a delegation stays open.
type DelegationTimeouts struct {
	High   time.Duration
	Normal time.Duration
	Low    time.Duration
}

// DefaultDelegationTimeouts are used for any urgency left at zero.
var DefaultDelegationTimeouts = DelegationTimeouts{
	High:   time.Hour,
	Normal: 4 * time.Hour,
	Low:    24 * time.Hour,
}

func (d DelegationTimeouts) forUrgency(u blackboard.Urgency) time.Duration {
	var timeout, fallback time.Duration
	switch u {
	case blackboard.UrgencyHigh:
		timeout, fallback = d.High, DefaultDelegationTimeouts.High
	case blackboard.UrgencyLow:
		timeout, fallback = d.Low, DefaultDelegationTimeouts.Low
	default:
		timeout, fallback = d.Normal, DefaultDelegationTimeouts.Normal
	}
	if timeout <= 0 {
		return fallback
	}
	return timeout
}

// Options configures a Board.
type Options struct {
	// AgentID is stamped on every record this board writes. Defaults to "main".
	AgentID            string
	ScopeMode          blackboard.ScopeMode
	MaxContextTokens   int
	DelegationTimeouts DelegationTimeouts
}

// Board implements the shared store operations on top of a blackboard client.
// A Board is bound to one agent identity; it is safe for concurrent use.
type Board struct {
	client    *blackboard.Client
	matcher   *blackboard.ScopeMatcher
	agentID   string
	maxTokens int
	timeouts  DelegationTimeouts
	now       func() time.Time
}

// NewBoard creates a Board for the given client.
func NewBoard(client *blackboard.Client, opts Options) (*Board, error) {
	if client == nil {
		return nil, fmt.Errorf("blackboard client cannot be nil")
	}
	matcher, err := blackboard.NewScopeMatcher(opts.ScopeMode)
	if err != nil {
		return nil, err
	}

	agentID := opts.AgentID
	if agentID == "" {
		agentID = blackboard.DefaultAgentID
	}
	maxTokens := opts.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}

	return &Board{
		client:    client,
		matcher:   matcher,
		agentID:   agentID,
		maxTokens: maxTokens,
		timeouts:  opts.DelegationTimeouts,
		now:       time.Now,
	}, nil
}

// AgentID returns the identity this board writes as.
func (b *Board) AgentID() string {
	return b.agentID
}

// InScope reports whether a record scope is related to query under the board's scope mode.
func (b *Board) InScope(query, scope string) bool {
	return b.matcher.Matches(query, scope)
}

// ForAgent returns a Board sharing this board's client and settings but writing as agentID.
func (b *Board) ForAgent(agentID string) *Board {
	clone := *b
	clone.agentID = agentID
	if clone.agentID == "" {
		clone.agentID = blackboard.DefaultAgentID
	}
	return &clone
}

// ReadFilter selects entries for Read. Zero values mean "no constraint".
type ReadFilter struct {
	Scope   string   `json:"scope,omitempty"`
	Types   []string `json:"types,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	AgentID string   `json:"agent_id,omitempty"`
	SinceMs int64    `json:"since_ms,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// Read returns entries matching the filter, newest first.
// An entry matches Tags if it carries any of them.
func (b *Board) Read(ctx context.Context, f ReadFilter) ([]*blackboard.Entry, error) {
	entries, err := b.client.ListEntries(ctx, blackboard.TimeRange{SinceMs: f.SinceMs})
	if err != nil {
		return nil, err
	}

	types := toSet(f.Types)
	tags := toSet(blackboard.NormalizeTags(f.Tags))
	limit := f.Limit
	if limit <= 0 {
		limit = defaultReadLimit
	}

	matched := make([]*blackboard.Entry, 0)
	for i := len(entries) - 1; i >= 0 && len(matched) < limit; i-- {
		e := entries[i]
		if f.Scope != "" && !b.matcher.Matches(f.Scope, e.Scope) {
			continue
		}
		if len(types) > 0 && !types[string(e.Type)] {
			continue
		}
		if f.AgentID != "" && e.AgentID != f.AgentID {
			continue
		}
		if len(tags) > 0 && !hasAny(tags, e.Tags) {
			continue
		}
		matched = append(matched, e)
	}
	return matched, nil
}

// Recent returns the n newest entries of any scope, optionally restricted to types.
func (b *Board) Recent(ctx context.Context, n int, types []string) ([]*blackboard.Entry, error) {
	if n <= 0 {
		n = defaultRecentCount
	}
	return b.Read(ctx, ReadFilter{Types: types, Limit: n})
}

// SearchRequest selects decisions for SearchDecisions.
type SearchRequest struct {
	Query  string `json:"query"`
	Domain string `json:"domain,omitempty"`
	Scope  string `json:"scope,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// SearchDecisions returns decisions matching every filter, ranked by how many query
// keywords they contain and then by recency. An empty query matches all decisions.
func (b *Board) SearchDecisions(ctx context.Context, req SearchRequest) ([]*blackboard.Decision, error) {
	decisions, err := b.client.ListDecisions(ctx, blackboard.TimeRange{})
	if err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(req.Query))
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	type hit struct {
		decision *blackboard.Decision
		score    int
	}
	hits := make([]hit, 0)
	for _, d := range decisions {
		if req.Domain != "" && !strings.EqualFold(d.Domain, req.Domain) {
			continue
		}
		if req.Scope != "" && !b.matcher.Matches(req.Scope, d.Scope) {
			continue
		}
		score := keywordScore(terms, decisionText(d))
		if len(terms) > 0 && score == 0 {
			continue
		}
		hits = append(hits, hit{decision: d, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].decision.CreatedAtMs > hits[j].decision.CreatedAtMs
	})

	result := make([]*blackboard.Decision, 0, limit)
	for _, h := range hits {
		if len(result) == limit {
			break
		}
		result = append(result, h.decision)
	}
	return result, nil
}

// Activity is everything one agent wrote to the board since a point in time.
type Activity struct {
	Entries     []*blackboard.Entry
	Decisions   []*blackboard.Decision
	Handoffs    []*blackboard.Handoff
	Delegations []*blackboard.Delegation
}

// EntriesOfType returns the activity's entries of type t.
func (a *Activity) EntriesOfType(t blackboard.EntryType) []*blackboard.Entry {
	var out []*blackboard.Entry
	for _, e := range a.Entries {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Activity collects the records agentID created at or after sinceMs.
func (b *Board) Activity(ctx context.Context, agentID string, sinceMs int64) (*Activity, error) {
	tr := blackboard.TimeRange{SinceMs: sinceMs}
	activity := &Activity{}

	entries, err := b.client.ListEntries(ctx, tr)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.AgentID == agentID {
			activity.Entries = append(activity.Entries, e)
		}
	}

	decisions, err := b.client.ListDecisions(ctx, tr)
	if err != nil {
		return nil, err
	}
	for _, d := range decisions {
		if d.AgentID == agentID {
			activity.Decisions = append(activity.Decisions, d)
		}
	}

	handoffs, err := b.client.ListHandoffs(ctx, tr)
	if err != nil {
		return nil, err
	}
	for _, h := range handoffs {
		if h.SourceAgent == agentID {
			activity.Handoffs = append(activity.Handoffs, h)
		}
	}

	delegations, err := b.client.ListDelegations(ctx, tr)
	if err != nil {
		return nil, err
	}
	for _, d := range delegations {
		if d.AgentID == agentID {
			activity.Delegations = append(activity.Delegations, d)
		}
	}

	return activity, nil
}

func decisionText(d *blackboard.Decision) string {
	parts := []string{d.Domain, d.Summary, d.Context, d.Rationale}
	parts = append(parts, d.Constraints...)
	parts = append(parts, d.AffectedFiles...)
	parts = append(parts, d.AffectedSymbols...)
	for _, alt := range d.Alternatives {
		parts = append(parts, alt.Option, alt.ReasonRejected)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func keywordScore(terms []string, text string) int {
	score := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			score++
		}
	}
	return score
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func hasAny(set map[string]bool, values []string) bool {
	for _, v := range values {
		if set[v] {
			return true
		}
	}
	return false
}
