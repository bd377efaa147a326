package blackboard

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Scalar fields map to
// individual hash fields; slices and nested structures are JSON-encoded into a
// single field. Decoding always yields empty slices rather than nil.

// EntryToHash converts an Entry struct to a Redis hash format.
func EntryToHash(e *Entry) (map[string]interface{}, error) {
	tagsJSON, err := json.Marshal(nonNil(e.Tags))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	relatesJSON, err := json.Marshal(nonNil(e.RelatesTo))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relates_to: %w", err)
	}

	return map[string]interface{}{
		"id":            e.ID,
		"entry_type":    string(e.Type),
		"summary":       e.Summary,
		"detail":        e.Detail,
		"scope":         e.Scope,
		"tags":          string(tagsJSON),
		"relates_to":    string(relatesJSON),
		"agent_id":      e.AgentID,
		"created_at_ms": e.CreatedAtMs,
	}, nil
}

// HashToEntry converts a Redis hash to an Entry struct.
func HashToEntry(hash map[string]string) (*Entry, error) {
	tags, err := decodeStrings(hash, "tags")
	if err != nil {
		return nil, err
	}
	relatesTo, err := decodeStrings(hash, "relates_to")
	if err != nil {
		return nil, err
	}
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &Entry{
		ID:          hash["id"],
		Type:        EntryType(hash["entry_type"]),
		Summary:     hash["summary"],
		Detail:      hash["detail"],
		Scope:       hash["scope"],
		Tags:        tags,
		RelatesTo:   relatesTo,
		AgentID:     hash["agent_id"],
		CreatedAtMs: createdAtMs,
	}, nil
}

// DecisionToHash converts a Decision struct to a Redis hash format.
// Alternatives are stored as a single JSON array field.
func DecisionToHash(d *Decision) (map[string]interface{}, error) {
	hash := map[string]interface{}{
		"id":            d.ID,
		"domain":        d.Domain,
		"scope":         d.Scope,
		"summary":       d.Summary,
		"context":       d.Context,
		"rationale":     d.Rationale,
		"supersedes":    d.Supersedes,
		"confidence":    string(d.Confidence),
		"reversible":    d.Reversible,
		"agent_id":      d.AgentID,
		"created_at_ms": d.CreatedAtMs,
	}

	alternatives := d.Alternatives
	if alternatives == nil {
		alternatives = []Alternative{}
	}
	altJSON, err := json.Marshal(alternatives)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alternatives: %w", err)
	}
	hash["alternatives"] = string(altJSON)

	for field, values := range map[string][]string{
		"constraints":      d.Constraints,
		"depends_on":       d.DependsOn,
		"affected_files":   d.AffectedFiles,
		"affected_symbols": d.AffectedSymbols,
	} {
		encoded, err := json.Marshal(nonNil(values))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", field, err)
		}
		hash[field] = string(encoded)
	}

	return hash, nil
}

// HashToDecision converts a Redis hash to a Decision struct.
func HashToDecision(hash map[string]string) (*Decision, error) {
	var alternatives []Alternative
	if raw := hash["alternatives"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &alternatives); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alternatives: %w", err)
		}
	}
	if alternatives == nil {
		alternatives = []Alternative{}
	}

	constraints, err := decodeStrings(hash, "constraints")
	if err != nil {
		return nil, err
	}
	dependsOn, err := decodeStrings(hash, "depends_on")
	if err != nil {
		return nil, err
	}
	files, err := decodeStrings(hash, "affected_files")
	if err != nil {
		return nil, err
	}
	symbols, err := decodeStrings(hash, "affected_symbols")
	if err != nil {
		return nil, err
	}

	reversible, _ := strconv.ParseBool(hash["reversible"])
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &Decision{
		ID:              hash["id"],
		Domain:          hash["domain"],
		Scope:           hash["scope"],
		Summary:         hash["summary"],
		Context:         hash["context"],
		Rationale:       hash["rationale"],
		Constraints:     constraints,
		Alternatives:    alternatives,
		DependsOn:       dependsOn,
		Supersedes:      hash["supersedes"],
		Confidence:      Confidence(hash["confidence"]),
		Reversible:      reversible,
		AgentID:         hash["agent_id"],
		AffectedFiles:   files,
		AffectedSymbols: symbols,
		CreatedAtMs:     createdAtMs,
	}, nil
}

// HandoffToHash converts a Handoff struct to a Redis hash format.
// The aggregate status is stored alongside the results for cheap listing.
func HandoffToHash(h *Handoff) (map[string]interface{}, error) {
	results := h.Results
	if results == nil {
		results = []HandoffResult{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	snapshotJSON, err := json.Marshal(h.ContextSnapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal context_snapshot: %w", err)
	}

	return map[string]interface{}{
		"id":               h.ID,
		"source_agent":     h.SourceAgent,
		"target_agent":     h.TargetAgent,
		"summary":          h.Summary,
		"scope":            h.Scope,
		"results":          string(resultsJSON),
		"result_status":    string(h.Status()),
		"context_snapshot": string(snapshotJSON),
		"created_at_ms":    h.CreatedAtMs,
	}, nil
}

// HashToHandoff converts a Redis hash to a Handoff struct.
func HashToHandoff(hash map[string]string) (*Handoff, error) {
	var results []HandoffResult
	if raw := hash["results"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results: %w", err)
		}
	}
	if results == nil {
		results = []HandoffResult{}
	}

	var snapshot ContextSnapshot
	if raw := hash["context_snapshot"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context_snapshot: %w", err)
		}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &Handoff{
		ID:              hash["id"],
		SourceAgent:     hash["source_agent"],
		TargetAgent:     hash["target_agent"],
		Summary:         hash["summary"],
		Scope:           hash["scope"],
		Results:         results,
		ContextSnapshot: snapshot,
		CreatedAtMs:     createdAtMs,
	}, nil
}

// DelegationToHash converts a Delegation struct to a Redis hash format.
func DelegationToHash(d *Delegation) (map[string]interface{}, error) {
	capsJSON, err := json.Marshal(nonNil(d.RequiredCapabilities))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal required_capabilities: %w", err)
	}
	tagsJSON, err := json.Marshal(nonNil(d.Tags))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	return map[string]interface{}{
		"id":                    d.ID,
		"summary":               d.Summary,
		"required_capabilities": string(capsJSON),
		"urgency":               string(d.Urgency),
		"scope":                 d.Scope,
		"tags":                  string(tagsJSON),
		"agent_id":              d.AgentID,
		"created_at_ms":         d.CreatedAtMs,
		"expires_at_ms":         d.ExpiresAtMs,
	}, nil
}

// HashToDelegation converts a Redis hash to a Delegation struct.
func HashToDelegation(hash map[string]string) (*Delegation, error) {
	caps, err := decodeStrings(hash, "required_capabilities")
	if err != nil {
		return nil, err
	}
	tags, err := decodeStrings(hash, "tags")
	if err != nil {
		return nil, err
	}
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	expiresAtMs, _ := strconv.ParseInt(hash["expires_at_ms"], 10, 64)

	return &Delegation{
		ID:                   hash["id"],
		Summary:              hash["summary"],
		RequiredCapabilities: caps,
		Urgency:              Urgency(hash["urgency"]),
		Scope:                hash["scope"],
		Tags:                 tags,
		AgentID:              hash["agent_id"],
		CreatedAtMs:          createdAtMs,
		ExpiresAtMs:          expiresAtMs,
	}, nil
}

// decodeStrings decodes a JSON string-array hash field, returning an empty slice
// when the field is absent.
func decodeStrings(hash map[string]string, field string) ([]string, error) {
	var values []string
	if raw := hash[field]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", field, err)
		}
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
