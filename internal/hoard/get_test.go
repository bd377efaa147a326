package hoard

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/dyluth/romp/internal/testutil"
	"github.com/dyluth/romp/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRecord_Entry(t *testing.T) {
	client, _ := testutil.NewClient(t)
	e := postEntry(t, client, blackboard.EntryTypeFinding, "src/auth/", "main", "uses bcrypt", 0)

	var buf bytes.Buffer
	require.NoError(t, GetRecord(context.Background(), client, e.ID, &buf))

	var got blackboard.Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "uses bcrypt", got.Summary)
}

func TestGetRecord_Decision(t *testing.T) {
	client, _ := testutil.NewClient(t)
	d := &blackboard.Decision{
		ID:           uuid.NewString(),
		Domain:       "security",
		Scope:        "src/auth/",
		Summary:      "Rotate session tokens on login",
		Context:      "Tokens live forever",
		Rationale:    "Limits replay",
		Alternatives: []blackboard.Alternative{{Option: "Shorter expiry"}},
		Confidence:   blackboard.ConfidenceHigh,
		AgentID:      "auth-reviewer",
	}
	require.NoError(t, client.CreateDecision(context.Background(), d))

	var buf bytes.Buffer
	require.NoError(t, GetRecord(context.Background(), client, d.ID, &buf))

	var got blackboard.Decision
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "security", got.Domain)
}

func TestGetRecord_Errors(t *testing.T) {
	client, _ := testutil.NewClient(t)

	t.Run("invalid id", func(t *testing.T) {
		err := GetRecord(context.Background(), client, "not-a-uuid", &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be a valid UUID")
		assert.False(t, IsNotFound(err))
	})

	t.Run("missing record", func(t *testing.T) {
		id := uuid.NewString()
		err := GetRecord(context.Background(), client, id, &bytes.Buffer{})
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), id)
	})
}
