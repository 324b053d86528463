/*
Package scheduler admits agent task specs and tracks the resulting
sessions.

The Scheduler interface decouples action code from how sessions
actually run: the spawn action only needs Schedule and ActiveTasks.
Local is the in-process implementation with a fixed concurrency cap;
an optional Launcher callback starts the real agent process per
session, and a nil launcher gives a bookkeeping-only scheduler for
tests and dry runs.

# Lifecycle

	Schedule ─► pending ─► running ─► completed
	    │                     │
	    │ (at capacity)       └─► failed (launcher error)
	    └─► rejected

Rejection is an error at the Schedule call site; the spawn action's
guard consults ActiveTasks first so a full scheduler normally shows up
as a skipped action rather than a failure.
*/
package scheduler
