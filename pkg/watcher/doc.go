/*
Package watcher implements Fabric's polling filesystem watchers.

A watcher owns a Config (path, include/exclude globs, recursion, poll
interval) and a snapshot of the files it saw last tick. Each tick it
rescans, diffs against the snapshot, reduces raw file changes into
semantic events, and emits them to local callbacks and the event bus.

# Architecture

	       ┌────────── tick ──────────┐
	scan ─► snapshot diff ─► Reducer ─► Emit ─► callbacks ─► bus.Publish
	            │
	            └─ created / modified (hash delta) / deleted

# Watchers

  - Poller: the core loop; pluggable Reducer turns FileEvents into
    bus events
  - IssueWatcher: tracks {status, stage, assignee, criticality, title}
    frontmatter fields per issue; stage/status transitions emit
    dedicated issue.stage_changed / issue.status_changed events
  - MemoWatcher: counts "## [hex-uid]" records in one inbox file and
    emits memo.threshold exactly once per upward crossing
  - TaskWatcher: diffs checkbox list items with stable 96-bit ids;
    task diffs go to local handlers only
  - MailboxWatcher: emits mailbox.inbound_received for new message
    files under inbound/<provider>/

# Semantics

  - Per-watcher events are emitted in scan order; no cross-watcher
    ordering is promised
  - Modified means the content hash changed; mtime-only churn is
    ignored
  - Callback errors and panics are isolated so one bad subscriber
    cannot sink the pipeline
  - Start/Stop are idempotent; Tick is exported for deterministic
    polling in tests

# Usage

	w, _ := watcher.NewIssueWatcher(watcher.Config{
		Path:         "/project/issues",
		PollInterval: 2 * time.Second,
	}, eventBus)
	w.OnEvent(func(ctx context.Context, e *types.Event) error {
		fmt.Println(e.Type, e.Payload["issue_id"])
		return nil
	})
	w.Start()
	defer w.Stop()
*/
package watcher
