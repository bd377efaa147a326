// # Overview
//
// Review agents never message each other. Everything one agent wants another to
// know is written to the blackboard, and every agent starts its turn by reading
// the part of the blackboard that concerns its scope.
//
// # Core Concepts
//
// Entries are short immutable notes (findings, warnings, needs) tagged with a
// scope and the posting agent.
//
// Decisions are historical records of significant recommendations. Each carries
// its rationale and at least one alternative that was considered and rejected.
//
// Handoffs close an agent's turn: what was done, what remains, and optionally
// which agent should continue.
//
// Delegations describe open work for an agent that is not running yet, named only
// by the capabilities it needs.
//
// # Usage Example
//
//	client, err := blackboard.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	entry := &blackboard.Entry{
//		ID:      uuid.New().String(),
//		Type:    blackboard.EntryTypeWarning,
//		Summary: "Refresh endpoint does not check token expiry",
//		Scope:   "src/auth/",
//		Tags:    []string{"code-review", "auth"},
//		AgentID: "auth-reviewer",
//	}
//	if err := client.CreateEntry(ctx, entry); err != nil {
//		log.Fatal(err)
//	}
//
// # Redis Schema
//
// Records: romp:{instance_name}:{entity}:{uuid}
// Timelines (ZSET, score = created_at_ms): romp:{instance_name}:{entity}s
//
// Entries: romp:{instance_name}:entry:{entry_id}
// Decisions: romp:{instance_name}:decision:{decision_id}
// Handoffs: romp:{instance_name}:handoff:{handoff_id}
// Delegations: romp:{instance_name}:delegation:{delegation_id}
//
// Pub/Sub channel: romp:{instance_name}:board_events
//
// # Design Principles
//
// - Immutability: nothing is updated or deleted once written
// - Validation before write: malformed records never reach Redis
// - Isolation: instance namespacing prevents cross-instance interference
package blackboard
