package watcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoco-io/fabric/pkg/types"
)

func TestTaskID_Stable(t *testing.T) {
	id := TaskID(3, "Write the report")
	assert.Len(t, id, 24)
	assert.Equal(t, id, TaskID(3, "Write the report"))
	assert.NotEqual(t, id, TaskID(4, "Write the report"))
	assert.NotEqual(t, id, TaskID(3, "Write the summary"))
}

func TestParseTasks(t *testing.T) {
	items := parseTasks("# Tasks\n- [ ] one\n- [x] two\n- [X] three\nnot a task\n- [ ]   \n")
	require.Len(t, items, 3)
	assert.Equal(t, "one", items[0].text)
	assert.False(t, items[0].completed)
	assert.Equal(t, "two", items[1].text)
	assert.True(t, items[1].completed)
	assert.True(t, items[2].completed)
}

func TestTaskWatcher_DiffAcrossTicks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.md")
	w := NewTaskWatcher(Config{Path: path}, nil)

	var diffs []*types.TaskFileEvent
	w.OnTaskChange(func(e *types.TaskFileEvent) {
		diffs = append(diffs, e)
	})

	w.Tick(context.Background())
	writeFile(t, path, "- [ ] one\n- [ ] two\n")
	w.Tick(context.Background())

	require.Len(t, diffs, 1)
	require.Len(t, diffs[0].Changes, 2)
	for _, c := range diffs[0].Changes {
		assert.Equal(t, "created", c.ChangeType)
		assert.False(t, c.IsCompleted)
	}

	// Completing a task keeps its id and reports state_changed.
	writeFile(t, path, "- [x] one\n- [ ] two\n")
	w.Tick(context.Background())
	require.Len(t, diffs, 2)
	require.Len(t, diffs[1].Changes, 1)
	assert.Equal(t, "state_changed", diffs[1].Changes[0].ChangeType)
	assert.True(t, diffs[1].Changes[0].IsCompleted)
	assert.Equal(t, "one", diffs[1].Changes[0].Text)

	// Removing a task reports deleted.
	writeFile(t, path, "- [x] one\n")
	w.Tick(context.Background())
	require.Len(t, diffs, 3)
	require.Len(t, diffs[2].Changes, 1)
	assert.Equal(t, "deleted", diffs[2].Changes[0].ChangeType)
	assert.Equal(t, "two", diffs[2].Changes[0].Text)
}

func TestTaskWatcher_NoChangeNoDiff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.md")
	w := NewTaskWatcher(Config{Path: path}, nil)

	var diffs int
	w.OnTaskChange(func(e *types.TaskFileEvent) { diffs++ })

	w.Tick(context.Background())
	writeFile(t, path, "- [ ] one\n")
	w.Tick(context.Background())
	w.Tick(context.Background())
	assert.Equal(t, 1, diffs)
}
