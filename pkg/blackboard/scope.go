package blackboard

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// ScopeMode selects how two scopes are judged to be related.
type ScopeMode string

const (
	// ScopeModePrefix relates two scopes when one is a prefix of the other.
	// "src/auth/" and "src/auth/jwt.ts" are related; "src/auth/" and "src/db/" are not.
	ScopeModePrefix ScopeMode = "prefix"

	// ScopeModeTree additionally relates scopes that share a top-level path segment,
	// so sibling areas such as "src/auth/" and "src/db/" see each other's records.
	ScopeModeTree ScopeMode = "tree"
)

// Validate checks if the ScopeMode is a known value.
func (m ScopeMode) Validate() error {
	switch m {
	case ScopeModePrefix, ScopeModeTree:
		return nil
	default:
		return fmt.Errorf("unknown scope mode: %q (must be 'prefix' or 'tree')", m)
	}
}

// ScopeMatcher decides whether a record's scope is relevant to a query scope.
// The symbolic scope "project" is related to everything. Scopes containing glob
// metacharacters are matched with '/' as the path separator.
// Safe for concurrent use.
type ScopeMatcher struct {
	mode  ScopeMode
	mu    sync.Mutex
	globs map[string]glob.Glob
}

// NewScopeMatcher creates a matcher for the given mode. An empty mode means prefix.
func NewScopeMatcher(mode ScopeMode) (*ScopeMatcher, error) {
	if mode == "" {
		mode = ScopeModePrefix
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	return &ScopeMatcher{mode: mode, globs: make(map[string]glob.Glob)}, nil
}

// Mode returns the matcher's scope mode.
func (m *ScopeMatcher) Mode() ScopeMode {
	return m.mode
}

// Matches reports whether scope is related to query.
// An empty query matches every scope.
func (m *ScopeMatcher) Matches(query, scope string) bool {
	if query == "" || query == DefaultScope || scope == DefaultScope {
		return true
	}
	if query == scope {
		return true
	}

	if isGlob(query) {
		if g := m.compile(query); g != nil && g.Match(scope) {
			return true
		}
	}
	if isGlob(scope) {
		if g := m.compile(scope); g != nil && g.Match(query) {
			return true
		}
	}

	if strings.HasPrefix(scope, query) || strings.HasPrefix(query, scope) {
		return true
	}

	if m.mode == ScopeModeTree {
		return rootSegment(query) == rootSegment(scope)
	}
	return false
}

// MatchesAny reports whether any of the scopes is related to query.
func (m *ScopeMatcher) MatchesAny(query string, scopes ...string) bool {
	for _, s := range scopes {
		if m.Matches(query, s) {
			return true
		}
	}
	return false
}

func (m *ScopeMatcher) compile(pattern string) glob.Glob {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.globs[pattern]; ok {
		return g
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		// Unparseable patterns fall back to plain prefix semantics
		m.globs[pattern] = nil
		return nil
	}
	m.globs[pattern] = g
	return g
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// rootSegment returns the first non-empty path segment ("src" for "src/auth/").
func rootSegment(scope string) string {
	trimmed := strings.TrimPrefix(scope, "./")
	trimmed = strings.TrimPrefix(trimmed, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}
