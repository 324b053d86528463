/*
Package router maps bus events to actions through an ordered rule
table.

Rules bind one or more event types to an action (or chain), an
optional synchronous condition, and a priority. The router holds a
single bus subscription per distinct event type; on each event it runs
every matching rule sequentially, highest priority first, with
registration order breaking ties.

# Dispatch

	Bus ─► Dispatch(event)
	         │ select rules: type match + condition true
	         ▼
	       [rule, rule, ...]  (priority desc, stable)
	         │ action.Run per rule; failures never halt siblings
	         ▼
	       history ring (bounded, FIFO eviction) + counters

Every execution result is recorded in a bounded history ring (default
100 entries) inspectable through History(); Stats() exposes the
matched/executed/failed/skipped counters.

ConditionalRouter adds payload-matcher sugar:

	cr := router.NewConditional(r)
	cr.When(types.EventIssueStageChanged, "to_stage", "doing", spawnAction, 10)
	cr.WhenAll(types.EventIssueUpdated, map[string]any{"status": "open", "criticality": "high"}, notify, 5)
*/
package router
