package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/types"
)

func issueContent(stage, status string) string {
	return "---\n" +
		"id: FEAT-012\n" +
		"title: Add search\n" +
		"status: " + status + "\n" +
		"stage: " + stage + "\n" +
		"assignee: casey\n" +
		"---\n\nBody text.\n"
}

func newIssueFixture(t *testing.T) (*IssueWatcher, string, *[]*types.Event) {
	t.Helper()
	dir := t.TempDir()
	b := bus.New()

	var events []*types.Event
	for _, et := range types.AllEventTypes() {
		et := et
		b.Subscribe(et, func(ctx context.Context, e *types.Event) error {
			events = append(events, e)
			return nil
		})
	}

	w, err := NewIssueWatcher(Config{Path: dir}, b)
	require.NoError(t, err)
	return w, dir, &events
}

func TestIssueWatcher_Created(t *testing.T) {
	w, dir, events := newIssueFixture(t)

	w.Tick(context.Background())
	writeFile(t, filepath.Join(dir, "FEAT-012.md"), issueContent("backlog", "open"))
	w.Tick(context.Background())

	require.Len(t, *events, 1)
	e := (*events)[0]
	assert.Equal(t, types.EventIssueCreated, e.Type)
	assert.Equal(t, "FEAT-012", e.Payload["issue_id"])
	assert.Equal(t, "backlog", e.Payload["stage"])
}

func TestIssueWatcher_StageChangeEmitsOnlyStageEvent(t *testing.T) {
	w, dir, events := newIssueFixture(t)
	path := filepath.Join(dir, "FEAT-012.md")

	w.Tick(context.Background())
	writeFile(t, path, issueContent("backlog", "open"))
	w.Tick(context.Background())
	*events = nil

	writeFile(t, path, issueContent("doing", "open"))
	w.Tick(context.Background())

	require.Len(t, *events, 1)
	e := (*events)[0]
	assert.Equal(t, types.EventIssueStageChanged, e.Type)
	assert.Equal(t, "FEAT-012", e.Payload["issue_id"])
	assert.Equal(t, "stage", e.Payload["field"])
	assert.Equal(t, "backlog", e.Payload["old_value"])
	assert.Equal(t, "doing", e.Payload["new_value"])
}

func TestIssueWatcher_StatusChange(t *testing.T) {
	w, dir, events := newIssueFixture(t)
	path := filepath.Join(dir, "FEAT-012.md")

	w.Tick(context.Background())
	writeFile(t, path, issueContent("doing", "open"))
	w.Tick(context.Background())
	*events = nil

	writeFile(t, path, issueContent("doing", "closed"))
	w.Tick(context.Background())

	require.Len(t, *events, 1)
	assert.Equal(t, types.EventIssueStatusChanged, (*events)[0].Type)
	assert.Equal(t, "closed", (*events)[0].Payload["new_value"])
}

func TestIssueWatcher_TrackedFieldDeltaEmitsUpdated(t *testing.T) {
	w, dir, events := newIssueFixture(t)
	path := filepath.Join(dir, "FEAT-012.md")

	w.Tick(context.Background())
	writeFile(t, path, issueContent("doing", "open"))
	w.Tick(context.Background())
	*events = nil

	content := "---\nid: FEAT-012\ntitle: Add search\nstatus: open\nstage: doing\nassignee: robin\n---\n\nBody text.\n"
	writeFile(t, path, content)
	w.Tick(context.Background())

	require.Len(t, *events, 1)
	e := (*events)[0]
	assert.Equal(t, types.EventIssueUpdated, e.Type)
	changes, ok := e.Payload["field_changes"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, changes, 1)
	assert.Equal(t, "assignee", changes[0]["field_name"])
	assert.Equal(t, "casey", changes[0]["old_value"])
	assert.Equal(t, "robin", changes[0]["new_value"])
	assert.Equal(t, "modified", changes[0]["change_type"])
}

func TestIssueWatcher_BodyOnlyChangeEmitsUpdatedWithoutChanges(t *testing.T) {
	w, dir, events := newIssueFixture(t)
	path := filepath.Join(dir, "FEAT-012.md")

	w.Tick(context.Background())
	writeFile(t, path, issueContent("doing", "open"))
	w.Tick(context.Background())
	*events = nil

	writeFile(t, path, issueContent("doing", "open")+"\nMore body.\n")
	w.Tick(context.Background())

	require.Len(t, *events, 1)
	e := (*events)[0]
	assert.Equal(t, types.EventIssueUpdated, e.Type)
	_, hasChanges := e.Payload["field_changes"]
	assert.False(t, hasChanges)
}

func TestIssueWatcher_DeleteDropsCache(t *testing.T) {
	w, dir, events := newIssueFixture(t)
	path := filepath.Join(dir, "FEAT-012.md")

	w.Tick(context.Background())
	writeFile(t, path, issueContent("backlog", "open"))
	w.Tick(context.Background())

	require.NoError(t, os.Remove(path))
	w.Tick(context.Background())
	*events = nil

	// Recreating the file is a fresh issue.created, not an update.
	writeFile(t, path, issueContent("doing", "open"))
	w.Tick(context.Background())
	require.Len(t, *events, 1)
	assert.Equal(t, types.EventIssueCreated, (*events)[0].Type)
}

func TestDiffFields(t *testing.T) {
	changes := diffFields(
		map[string]string{"stage": "backlog", "assignee": "", "title": "Old"},
		map[string]string{"stage": "doing", "assignee": "casey", "title": ""},
	)
	require.Len(t, changes, 3)
	assert.Equal(t, types.FieldChange{FieldName: "stage", OldValue: "backlog", NewValue: "doing", ChangeType: "modified"}, changes[0])
	assert.Equal(t, types.FieldChange{FieldName: "assignee", OldValue: "", NewValue: "casey", ChangeType: "added"}, changes[1])
	assert.Equal(t, types.FieldChange{FieldName: "title", OldValue: "Old", NewValue: "", ChangeType: "removed"}, changes[2])
}
