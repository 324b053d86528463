/*
Package types defines the core data structures used throughout Fabric.

This package contains the fundamental types that represent Fabric's
domain model: artifacts and their manifest records, filesystem change
events and their semantic subtypes, bus-level events, action results,
transport messages, message locks, and agent sessions. These types are
used by all other packages for state management, serialization, and
routing logic.

# Core Types

Artifacts:
  - Artifact: Metadata record for one stored payload
  - SourceType: Generated, uploaded, imported, derived
  - ArtifactStatus: Active, archived, expired, deleted

Watcher Events:
  - FileEvent: Raw filesystem change (created, modified, deleted, ...)
  - FieldChange: One frontmatter field transition
  - IssueFileEvent, MemoFileEvent, TaskFileEvent, MailboxFileEvent:
    Semantic subtypes carrying domain detail

Bus Events:
  - Event: Typed event with payload map and timestamp
  - EventType: Closed set of event kinds (issue.*, memo.*, session.*,
    pr.*, im.*, mailbox.*)

Actions:
  - ActionResult: Outcome of one action execution
  - ActionStatus: Pending, running, success, failed, skipped, cancelled

Transport:
  - Message: Inbound/outbound message with frontmatter metadata
  - LockEntry: Claim lease state for one message
  - LockStatus: New, claimed, completed, failed, deadletter

Scheduling:
  - TaskSpec: Agent session request
  - Session: Scheduled session with lifecycle status

# Serialization

Types that hit disk or the wire carry explicit JSON tags matching the
on-disk schemas (manifest JSONL, locks file, message frontmatter).
Message additionally carries YAML tags because frontmatter blocks are
YAML. Timestamps are always UTC and serialize as ISO-8601 with a Z
suffix.

# Usage

Creating an artifact record:

	now := time.Now().UTC()
	artifact := &types.Artifact{
		ArtifactID:  uuid.New().String(),
		ContentHash: hash,
		SourceType:  types.SourceGenerated,
		Status:      types.ArtifactActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		ContentType: "text/plain",
		SizeBytes:   int64(len(data)),
		Tags:        []string{"report"},
		Metadata:    map[string]any{},
	}

Publishing an event:

	event := &types.Event{
		Type: types.EventIssueStageChanged,
		Payload: map[string]any{
			"issue_id":  "FEAT-012",
			"field":     "stage",
			"old_value": "backlog",
			"new_value": "doing",
		},
	}

# Integration Points

This package is imported by:

  - pkg/artifact: Artifact, SourceType, ArtifactStatus
  - pkg/watcher: FileEvent and subtypes, FieldChange
  - pkg/bus, pkg/router: Event, EventType
  - pkg/action: ActionResult, ActionStatus
  - pkg/mailbox, pkg/courier: Message, LockEntry, LockStatus
  - pkg/scheduler: TaskSpec, Session
*/
package types
