package blackboard

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to enable
// multiple romp instances to safely coexist on a single Redis server.
//
// Key pattern: romp:{instance_name}:{entity}:{uuid}
// Timeline pattern: romp:{instance_name}:{entity}s

// EntryKey returns the Redis key for a blackboard entry.
func EntryKey(instanceName, entryID string) string {
	return fmt.Sprintf("romp:%s:entry:%s", instanceName, entryID)
}

// EntryTimelineKey returns the ZSET that orders entries by creation time.
func EntryTimelineKey(instanceName string) string {
	return fmt.Sprintf("romp:%s:entries", instanceName)
}

// DecisionKey returns the Redis key for a decision.
func DecisionKey(instanceName, decisionID string) string {
	return fmt.Sprintf("romp:%s:decision:%s", instanceName, decisionID)
}

// DecisionTimelineKey returns the ZSET that orders decisions by creation time.
func DecisionTimelineKey(instanceName string) string {
	return fmt.Sprintf("romp:%s:decisions", instanceName)
}

// HandoffKey returns the Redis key for a handoff.
func HandoffKey(instanceName, handoffID string) string {
	return fmt.Sprintf("romp:%s:handoff:%s", instanceName, handoffID)
}

// HandoffTimelineKey returns the ZSET that orders handoffs by creation time.
func HandoffTimelineKey(instanceName string) string {
	return fmt.Sprintf("romp:%s:handoffs", instanceName)
}

// DelegationKey returns the Redis key for a delegation.
func DelegationKey(instanceName, delegationID string) string {
	return fmt.Sprintf("romp:%s:delegation:%s", instanceName, delegationID)
}

// DelegationTimelineKey returns the ZSET that orders delegations by creation time.
func DelegationTimelineKey(instanceName string) string {
	return fmt.Sprintf("romp:%s:delegations", instanceName)
}

// BoardEventsChannel returns the Pub/Sub channel carrying every write to the board.
// Pattern: romp:{instance_name}:board_events
func BoardEventsChannel(instanceName string) string {
	return fmt.Sprintf("romp:%s:board_events", instanceName)
}

// TimelineScore converts a creation timestamp to a ZSET score.
func TimelineScore(createdAtMs int64) float64 {
	return float64(createdAtMs)
}

// MsFromScore converts a ZSET score back to a millisecond timestamp.
func MsFromScore(score float64) int64 {
	return int64(score)
}
