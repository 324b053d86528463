package watcher

import (
	"fmt"
	"strings"
	"sync"

	"github.com/monoco-io/fabric/pkg/artifact"
	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/types"
)

// taskItem is one parsed checkbox list entry
type taskItem struct {
	id        string
	text      string
	completed bool
}

// TaskWatcher parses checkbox list items from a task file and diffs
// item state across ticks. Task events carry per-item created,
// deleted, and state_changed detail and are delivered to local
// callbacks; there is no bus-level task event type.
type TaskWatcher struct {
	*Poller

	mu    sync.Mutex
	items map[string]taskItem

	handlers   []func(*types.TaskFileEvent)
	handlersMu sync.Mutex
}

// NewTaskWatcher creates a task watcher over the list file at cfg.Path
func NewTaskWatcher(cfg Config, b *bus.Bus) *TaskWatcher {
	if cfg.Name == "" {
		cfg.Name = "tasks"
	}

	w := &TaskWatcher{items: make(map[string]taskItem)}
	w.Poller = NewPoller(cfg, b, w.reduce)
	return w
}

// OnTaskChange registers a handler for task diff events
func (w *TaskWatcher) OnTaskChange(fn func(*types.TaskFileEvent)) {
	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()
	w.handlers = append(w.handlers, fn)
}

// TaskID derives the stable 96-bit task identifier from the item's
// line number and text
func TaskID(line int, text string) string {
	sum := artifact.HashBytes([]byte(fmt.Sprintf("%d:%s", line, text)))
	return sum[:24]
}

// parseTasks extracts checkbox items from content. Both "- [ ]" and
// "- [x]" forms are recognized.
func parseTasks(content string) []taskItem {
	var items []taskItem
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		var completed bool
		var text string
		switch {
		case strings.HasPrefix(trimmed, "- [ ] "):
			text = strings.TrimPrefix(trimmed, "- [ ] ")
		case strings.HasPrefix(trimmed, "- [x] "), strings.HasPrefix(trimmed, "- [X] "):
			completed = true
			text = trimmed[len("- [x] "):]
		default:
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		items = append(items, taskItem{
			id:        TaskID(i+1, text),
			text:      text,
			completed: completed,
		})
	}
	return items
}

func (w *TaskWatcher) reduce(fe *types.FileEvent) []*types.Event {
	var current map[string]taskItem
	if fe.ChangeType == types.ChangeDeleted {
		current = map[string]taskItem{}
	} else {
		current = make(map[string]taskItem)
		for _, item := range parseTasks(fe.NewContent) {
			current[item.id] = item
		}
	}

	w.mu.Lock()
	previous := w.items
	w.items = current
	w.mu.Unlock()

	var changes []types.TaskItemChange
	for id, item := range current {
		old, existed := previous[id]
		if !existed {
			changes = append(changes, types.TaskItemChange{
				TaskID:      id,
				Text:        item.text,
				ChangeType:  "created",
				IsCompleted: item.completed,
			})
			continue
		}
		if old.completed != item.completed {
			changes = append(changes, types.TaskItemChange{
				TaskID:      id,
				Text:        item.text,
				ChangeType:  "state_changed",
				IsCompleted: item.completed,
			})
		}
	}
	for id, old := range previous {
		if _, exists := current[id]; !exists {
			changes = append(changes, types.TaskItemChange{
				TaskID:      id,
				Text:        old.text,
				ChangeType:  "deleted",
				IsCompleted: old.completed,
			})
		}
	}

	if len(changes) == 0 {
		return nil
	}

	event := &types.TaskFileEvent{
		FileEvent: *fe,
		Changes:   changes,
	}
	w.handlersMu.Lock()
	handlers := append([]func(*types.TaskFileEvent){}, w.handlers...)
	w.handlersMu.Unlock()
	for _, fn := range handlers {
		fn(event)
	}

	w.logger.Debug().
		Str("path", fe.Path).
		Int("changes", len(changes)).
		Msg("Task list changed")
	return nil
}
