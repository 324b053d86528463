package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/monoco-io/fabric/pkg/artifact"
	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/frontmatter"
	"github.com/monoco-io/fabric/pkg/types"
)

// trackedIssueFields is the fixed frontmatter field set the issue
// watcher diffs across ticks
var trackedIssueFields = []string{"status", "stage", "assignee", "criticality", "title"}

// IssueWatcher observes issue files and reduces raw changes into
// issue.* events. Stage and status transitions get dedicated event
// types; other tracked-field changes emit issue.updated with the
// field deltas.
type IssueWatcher struct {
	*Poller
	parser *frontmatter.CachedParser

	mu     sync.Mutex
	fields map[string]map[string]string // issue_id -> tracked field values
}

// NewIssueWatcher creates an issue watcher over cfg.Path
func NewIssueWatcher(cfg Config, b *bus.Bus) (*IssueWatcher, error) {
	if cfg.Name == "" {
		cfg.Name = "issues"
	}
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = []string{"*.md"}
	}
	parser, err := frontmatter.NewCachedParser(256)
	if err != nil {
		return nil, fmt.Errorf("failed to create frontmatter cache: %w", err)
	}

	w := &IssueWatcher{
		parser: parser,
		fields: make(map[string]map[string]string),
	}
	w.Poller = NewPoller(cfg, b, w.reduce)
	return w, nil
}

func (w *IssueWatcher) reduce(fe *types.FileEvent) []*types.Event {
	switch fe.ChangeType {
	case types.ChangeCreated:
		return w.reduceCreated(fe)
	case types.ChangeModified:
		return w.reduceModified(fe)
	case types.ChangeDeleted:
		w.forget(fe)
		return nil
	default:
		return nil
	}
}

func (w *IssueWatcher) reduceCreated(fe *types.FileEvent) []*types.Event {
	issueID, fields, ok := w.parseIssue(fe.Path, fe.NewContent)
	if !ok {
		return nil
	}

	w.mu.Lock()
	w.fields[issueID] = fields
	w.mu.Unlock()

	payload := map[string]any{
		"issue_id": issueID,
		"path":     fe.Path,
	}
	for k, v := range fields {
		if v != "" {
			payload[k] = v
		}
	}
	return []*types.Event{{Type: types.EventIssueCreated, Payload: payload}}
}

func (w *IssueWatcher) reduceModified(fe *types.FileEvent) []*types.Event {
	issueID, fields, ok := w.parseIssue(fe.Path, fe.NewContent)
	if !ok {
		return nil
	}

	w.mu.Lock()
	old, cached := w.fields[issueID]
	w.fields[issueID] = fields
	w.mu.Unlock()

	if !cached {
		// First sight of this issue was already a modification; fall
		// back to the old file content for the baseline.
		if _, prev, prevOK := w.parseIssue(fe.Path, fe.OldContent); prevOK {
			old = prev
		} else {
			old = map[string]string{}
		}
	}

	changes := diffFields(old, fields)

	var events []*types.Event
	for _, c := range changes {
		if c.FieldName != "stage" && c.FieldName != "status" {
			continue
		}
		eventType := types.EventIssueStageChanged
		if c.FieldName == "status" {
			eventType = types.EventIssueStatusChanged
		}
		events = append(events, &types.Event{
			Type: eventType,
			Payload: map[string]any{
				"issue_id":  issueID,
				"path":      fe.Path,
				"field":     c.FieldName,
				"old_value": c.OldValue,
				"new_value": c.NewValue,
			},
		})
	}

	// Stage and status transitions supersede the generic update event.
	if len(events) > 0 {
		return events
	}

	payload := map[string]any{
		"issue_id": issueID,
		"path":     fe.Path,
	}
	if len(changes) > 0 {
		fieldChanges := make([]map[string]any, 0, len(changes))
		for _, c := range changes {
			fieldChanges = append(fieldChanges, map[string]any{
				"field_name":  c.FieldName,
				"old_value":   c.OldValue,
				"new_value":   c.NewValue,
				"change_type": c.ChangeType,
			})
		}
		payload["field_changes"] = fieldChanges
	}
	return []*types.Event{{Type: types.EventIssueUpdated, Payload: payload}}
}

// forget drops the cached field set for a deleted issue file
func (w *IssueWatcher) forget(fe *types.FileEvent) {
	issueID, _, ok := w.parseIssue(fe.Path, fe.OldContent)
	if !ok {
		return
	}
	w.mu.Lock()
	delete(w.fields, issueID)
	w.mu.Unlock()
}

// parseIssue extracts the issue id and tracked fields from content
func (w *IssueWatcher) parseIssue(path, content string) (string, map[string]string, bool) {
	doc, err := w.parser.Parse(artifact.HashBytes([]byte(content)), []byte(content))
	if err != nil {
		w.logger.Warn().Err(err).Str("path", path).Msg("Failed to parse issue frontmatter")
		return "", nil, false
	}

	issueID := metaString(doc.Meta, "id")
	if issueID == "" {
		issueID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	fields := make(map[string]string, len(trackedIssueFields))
	for _, name := range trackedIssueFields {
		fields[name] = metaString(doc.Meta, name)
	}
	return issueID, fields, true
}

// diffFields computes tracked-field transitions in tracked order
func diffFields(old, current map[string]string) []types.FieldChange {
	var changes []types.FieldChange
	for _, name := range trackedIssueFields {
		before, after := old[name], current[name]
		if before == after {
			continue
		}
		changeType := "modified"
		if before == "" {
			changeType = "added"
		} else if after == "" {
			changeType = "removed"
		}
		changes = append(changes, types.FieldChange{
			FieldName:  name,
			OldValue:   before,
			NewValue:   after,
			ChangeType: changeType,
		})
	}
	return changes
}

// metaString reads a scalar frontmatter value as a string
func metaString(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}
