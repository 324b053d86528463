package types

import (
	"time"
)

// Artifact is the metadata record for one stored payload. Multiple
// artifacts may reference the same content hash; the blob exists as
// long as at least one non-deleted artifact references it.
type Artifact struct {
	ArtifactID       string         `json:"artifact_id"`
	ContentHash      string         `json:"content_hash"` // lowercase 64-hex SHA-256
	SourceType       SourceType     `json:"source_type"`
	Status           ArtifactStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
	ContentType      string         `json:"content_type"`
	SizeBytes        int64          `json:"size_bytes"`
	OriginalFilename string         `json:"original_filename,omitempty"`
	SourceURL        string         `json:"source_url,omitempty"`
	ParentArtifactID string         `json:"parent_artifact_id,omitempty"`
	Tags             []string       `json:"tags"`
	Metadata         map[string]any `json:"metadata"`
}

// SourceType records how an artifact entered the store
type SourceType string

const (
	SourceGenerated SourceType = "generated"
	SourceUploaded  SourceType = "uploaded"
	SourceImported  SourceType = "imported"
	SourceDerived   SourceType = "derived"
)

// ArtifactStatus represents the lifecycle state of an artifact
type ArtifactStatus string

const (
	ArtifactActive   ArtifactStatus = "active"
	ArtifactArchived ArtifactStatus = "archived"
	ArtifactExpired  ArtifactStatus = "expired"
	ArtifactDeleted  ArtifactStatus = "deleted"
)

// ChangeType classifies a raw filesystem change observed by a watcher
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeMoved    ChangeType = "moved"
	ChangeRenamed  ChangeType = "renamed"
)

// FileEvent is a raw filesystem change enriched by a watcher
type FileEvent struct {
	Path        string         `json:"path"`
	ChangeType  ChangeType     `json:"change_type"`
	WatcherName string         `json:"watcher_name"`
	OldPath     string         `json:"old_path,omitempty"`
	OldContent  string         `json:"old_content,omitempty"`
	NewContent  string         `json:"new_content,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// FieldChange describes one frontmatter field transition
type FieldChange struct {
	FieldName  string `json:"field_name"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
	ChangeType string `json:"change_type"` // "added", "removed", "modified"
}

// IssueFileEvent is a FileEvent with issue-level change detail
type IssueFileEvent struct {
	FileEvent
	IssueID      string        `json:"issue_id"`
	FieldChanges []FieldChange `json:"field_changes,omitempty"`
}

// MemoFileEvent is a FileEvent with inbox counting detail
type MemoFileEvent struct {
	FileEvent
	PendingCount int `json:"pending_count"`
	Threshold    int `json:"threshold"`
}

// TaskItemChange describes one checkbox item transition across ticks
type TaskItemChange struct {
	TaskID      string `json:"task_id"`
	Text        string `json:"text"`
	ChangeType  string `json:"change_type"` // "created", "deleted", "state_changed"
	IsCompleted bool   `json:"is_completed"`
}

// TaskFileEvent is a FileEvent with checkbox diff detail
type TaskFileEvent struct {
	FileEvent
	Changes []TaskItemChange `json:"changes"`
}

// MailboxFileEvent is a FileEvent for an inbound message file
type MailboxFileEvent struct {
	FileEvent
	Provider  string `json:"provider"`
	SessionID string `json:"session_id,omitempty"`
	MessageID string `json:"message_id"`
}

// EventType identifies a bus-level event kind
type EventType string

const (
	EventIssueCreated       EventType = "issue.created"
	EventIssueUpdated       EventType = "issue.updated"
	EventIssueStageChanged  EventType = "issue.stage_changed"
	EventIssueStatusChanged EventType = "issue.status_changed"
	EventMemoCreated        EventType = "memo.created"
	EventMemoThreshold      EventType = "memo.threshold"
	EventSessionCompleted   EventType = "session.completed"
	EventSessionFailed      EventType = "session.failed"
	EventPRCreated          EventType = "pr.created"
	EventIMMessageReceived  EventType = "im.message_received"
	EventIMMessageReplied   EventType = "im.message_replied"
	EventIMAgentTrigger     EventType = "im.agent_trigger"
	EventIMSessionStarted   EventType = "im.session_started"
	EventIMSessionClosed    EventType = "im.session_closed"
	EventMailboxInbound     EventType = "mailbox.inbound_received"
)

// AllEventTypes returns the closed set of bus event kinds
func AllEventTypes() []EventType {
	return []EventType{
		EventIssueCreated,
		EventIssueUpdated,
		EventIssueStageChanged,
		EventIssueStatusChanged,
		EventMemoCreated,
		EventMemoThreshold,
		EventSessionCompleted,
		EventSessionFailed,
		EventPRCreated,
		EventIMMessageReceived,
		EventIMMessageReplied,
		EventIMAgentTrigger,
		EventIMSessionStarted,
		EventIMSessionClosed,
		EventMailboxInbound,
	}
}

// Event is the unit of delivery on the event bus
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source,omitempty"`
}

// ActionStatus represents the outcome state of an action execution
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionRunning   ActionStatus = "running"
	ActionSuccess   ActionStatus = "success"
	ActionFailed    ActionStatus = "failed"
	ActionSkipped   ActionStatus = "skipped"
	ActionCancelled ActionStatus = "cancelled"
)

// ActionResult is the outcome of one action execution
type ActionResult struct {
	Success     bool           `json:"success"`
	Status      ActionStatus   `json:"status"`
	Output      any            `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// MessageContent holds the textual payloads of a message
type MessageContent struct {
	Text     string `json:"text,omitempty" yaml:"text,omitempty"`
	Markdown string `json:"markdown,omitempty" yaml:"markdown,omitempty"`
}

// SessionInfo identifies the conversation a message belongs to
type SessionInfo struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"` // "direct", "group"
	ThreadKey string `json:"thread_key,omitempty" yaml:"thread_key,omitempty"`
}

// Participant is one party on a message
type Participant struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
}

// Message is an inbound or outbound transport message. It is stored
// on disk as a frontmatter block plus body text.
type Message struct {
	ID            string         `json:"id" yaml:"id"`
	Provider      string         `json:"provider" yaml:"provider"`
	Timestamp     time.Time      `json:"timestamp" yaml:"timestamp"`
	Type          string         `json:"type,omitempty" yaml:"type,omitempty"` // "text", "markdown"
	Content       MessageContent `json:"content,omitempty" yaml:"content,omitempty"`
	Session       SessionInfo    `json:"session,omitempty" yaml:"session,omitempty"`
	Participants  []Participant  `json:"participants,omitempty" yaml:"participants,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty" yaml:"correlation_id,omitempty"`
	ReplyTo       string         `json:"reply_to,omitempty" yaml:"reply_to,omitempty"`
	ThreadRoot    string         `json:"thread_root,omitempty" yaml:"thread_root,omitempty"`
	Artifacts     []string       `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Mentions      []string       `json:"mentions,omitempty" yaml:"mentions,omitempty"`

	// Body is the free text after the frontmatter block. Not part of
	// the metadata map; content.text falls back to it when absent.
	Body string `json:"-" yaml:"-"`
}

// LockStatus represents the processing state of a message lock
type LockStatus string

const (
	LockNew        LockStatus = "new"
	LockClaimed    LockStatus = "claimed"
	LockCompleted  LockStatus = "completed"
	LockFailed     LockStatus = "failed"
	LockDeadletter LockStatus = "deadletter"
)

// LockEntry is the persisted lease state for one message. The locks
// file maps message_id to this record.
type LockEntry struct {
	Status     LockStatus `json:"status"`
	ClaimedBy  string     `json:"claimed_by,omitempty"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	RetryCount int        `json:"retry_count"`
	FailReason string     `json:"fail_reason,omitempty"`
}

// TaskSpec describes an agent session to be scheduled
type TaskSpec struct {
	IssueID   string         `json:"issue_id,omitempty"`
	Role      string         `json:"role"`
	Prompt    string         `json:"prompt"`
	Engine    string         `json:"engine"`
	Workspace string         `json:"workspace,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SessionStatus represents the state of a scheduled agent session
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Session is one scheduled agent task instance
type Session struct {
	ID         string        `json:"id"`
	Spec       TaskSpec      `json:"spec"`
	Status     SessionStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Error      string        `json:"error,omitempty"`
}
