package orchestrator

import "fmt"

// Review pipeline stage instructions. Each is formatted with the review scope.

const assembleInstructions = `You are preparing a code review of %[1]s.

Call romp_assemble with task "Code review of %[1]s" and scope "%[1]s".
If the bundle mentions decisions, call romp_why for the same scope to see their history.
Use romp_read or romp_recent if you need more detail on a particular entry.

Reply with a short briefing: the decisions in force, open warnings and needs,
and anything a reviewer of %[1]s must not contradict.`

const reviewInstructions = `Review the code under %[1]s using Read, Glob and Grep.

Use the briefing in the context block to avoid repeating settled questions.
Report concrete problems with file and line references. For each one say
whether it is a finding, a security or correctness warning, or a need
(work that someone else has to pick up).`

const postInstructions = `Record the review of %[1]s on the blackboard.

For each item in the review in the context block, call romp_post once:
entry_type "finding", "warning" or "need"; a one-line summary of at most 200
characters; the full explanation as detail; the most specific file path as
scope (default "%[1]s"); tags ["code-review"] plus a topic tag.

Reply with the ids you received, one per line.`

const decideInstructions = `Decide what should change under %[1]s.

Before recording anything call romp_search_decisions to check for an existing
decision on the same question. For each genuinely new recommendation call
romp_decide with domain, scope "%[1]s", summary, context, rationale, a
confidence of high, medium or low, and at least one rejected alternative.
If an existing decision needs amending, record a new one that supersedes it.

It is fine to record nothing if the review raised no architectural question.
Reply with the ids you recorded, or "no decisions".`

const handoffInstructions = `Close out the review of %[1]s.

Call romp_handoff with a summary of the review, scope "%[1]s", and one result
per area you covered (status completed, partial, blocked or failed). If
something is left unfinished, also romp_post it as a "need".

Reply with the handoff id.`

// Swarm role and task prompts.

const authReviewerRole = `You are an authentication and authorization reviewer.
You coordinate with other reviewers only through the romp blackboard tools.

Pay attention to token validation and expiry, session handling, input
validation on auth endpoints and how credentials are stored. Every finding
needs a file and line reference.`

const authReviewerTask = `Review the authentication code under src/auth/.

1. Call romp_assemble with task "Code review of authentication module" and scope "src/auth/".
2. For each significant problem call romp_post: entry_type "finding" or
   "warning", the file path as scope, tags ["code-review", "auth"].
3. Call romp_decide for your main recommendation: domain "security",
   scope "src/auth/", with context, rationale, confidence and at least one
   rejected alternative.
4. Call romp_handoff with target_agent "db-reviewer", a summary of what you
   found, and one result describing the work you completed.

Finish with a summary of the review.`

const dbReviewerRole = `You are a database and data access reviewer.
You coordinate with other reviewers only through the romp blackboard tools.

Pay attention to query efficiency, injection risks, transaction boundaries,
connection pooling and migration safety. Every finding needs a file and line
reference.`

const dbReviewerTask = `Review the database layer under src/db/. Another reviewer has already
looked at the authentication code.

1. Call romp_assemble with task "Code review of database layer" and scope "src/db/".
   Read the handoff and any warnings closely; they may affect the data layer.
2. Call romp_decide for your main recommendation: domain "performance",
   scope "src/db/", with context (including anything you took from the
   handoff), rationale, confidence and at least one rejected alternative.
3. Call romp_delegate for work that needs another specialist: a summary,
   required_capabilities such as ["database", "performance-testing"],
   urgency "normal" and scope "src/db/".

Finish with a summary that says how you used the earlier review.`

func stageInstructions(format, scope string) string {
	return fmt.Sprintf(format, scope)
}
