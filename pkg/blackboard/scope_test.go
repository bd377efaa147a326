package blackboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScopeMatcher(t *testing.T) {
	m, err := NewScopeMatcher("")
	require.NoError(t, err)
	assert.Equal(t, ScopeModePrefix, m.Mode())

	_, err = NewScopeMatcher("fuzzy")
	assert.Error(t, err)
}

func TestScopeMatcher_Prefix(t *testing.T) {
	m, err := NewScopeMatcher(ScopeModePrefix)
	require.NoError(t, err)

	tests := []struct {
		query, scope string
		expected     bool
	}{
		{"src/auth/", "src/auth/", true},
		{"src/auth/", "src/auth/jwt.go", true},
		{"src/auth/jwt.go", "src/auth/", true},
		{"src/db/", "src/auth/", false},
		{"src/db/", "project", true},
		{"project", "src/db/", true},
		{"", "anything", true},
		{"src/**/*.go", "src/auth/jwt.go", true},
		{"src/auth/*.go", "src/auth/jwt.go", true},
		{"src/auth/*.go", "src/db/pool.go", false},
		{"src/db/pool.go", "src/*/pool.go", true},
	}

	for _, tt := range tests {
		t.Run(tt.query+"|"+tt.scope, func(t *testing.T) {
			assert.Equal(t, tt.expected, m.Matches(tt.query, tt.scope))
		})
	}
}

func TestScopeMatcher_TreeRelatesSiblings(t *testing.T) {
	m, err := NewScopeMatcher(ScopeModeTree)
	require.NoError(t, err)

	assert.True(t, m.Matches("src/db/", "src/auth/"))
	assert.True(t, m.Matches("./src/db/", "src/auth/jwt.go"))
	assert.False(t, m.Matches("docs/", "src/auth/"))
	assert.True(t, m.MatchesAny("docs/", "src/auth/", "docs/adr/"))
}
