package blackboard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stringify mimics what Redis hands back: every field value as a string.
func stringify(hash map[string]interface{}) map[string]string {
	out := make(map[string]string, len(hash))
	for k, v := range hash {
		switch val := v.(type) {
		case bool:
			if val {
				out[k] = "1"
			} else {
				out[k] = "0"
			}
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func TestEntryHash_NilSlicesBecomeEmpty(t *testing.T) {
	entry := validEntry()
	hash, err := EntryToHash(entry)
	require.NoError(t, err)
	assert.Equal(t, "[]", hash["tags"])
	assert.Equal(t, "[]", hash["relates_to"])

	back, err := HashToEntry(stringify(hash))
	require.NoError(t, err)
	assert.NotNil(t, back.Tags)
	assert.Empty(t, back.Tags)
}

func TestHashToEntry_MalformedTags(t *testing.T) {
	_, err := HashToEntry(map[string]string{"tags": "{not json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tags")
}

func TestDecisionHash_ReversibleFlag(t *testing.T) {
	d := validDecision()
	d.Reversible = true
	d.Constraints = []string{"no downtime"}

	hash, err := DecisionToHash(d)
	require.NoError(t, err)

	back, err := HashToDecision(stringify(hash))
	require.NoError(t, err)
	assert.True(t, back.Reversible)
	assert.Equal(t, []string{"no downtime"}, back.Constraints)
	assert.Empty(t, back.DependsOn)
}

func TestHandoffHash_StoresAggregateStatus(t *testing.T) {
	h := &Handoff{
		Results: []HandoffResult{{Description: "a", Status: ResultBlocked}},
	}
	hash, err := HandoffToHash(h)
	require.NoError(t, err)
	assert.Equal(t, "blocked", hash["result_status"])
}

func TestHashToHandoff_MissingResults(t *testing.T) {
	h, err := HashToHandoff(map[string]string{"id": "x", "summary": "s"})
	require.NoError(t, err)
	assert.NotNil(t, h.Results)
	assert.Equal(t, ResultCompleted, h.Status())
}
