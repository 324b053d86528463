package watcher

import (
	"regexp"
	"sync"

	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/types"
)

// memoHeaderRe matches one memo record header in the inbox file
var memoHeaderRe = regexp.MustCompile(`(?m)^## \[[0-9a-fA-F]+\]`)

// MemoWatcher counts memo records in a single inbox file and emits
// memo.threshold exactly once when the pending count crosses the
// configured threshold from below. Increases below the threshold emit
// a memo.created diagnostic event.
type MemoWatcher struct {
	*Poller
	threshold int

	mu        sync.Mutex
	lastCount int
	crossed   bool
}

// NewMemoWatcher creates a memo watcher over the inbox file at
// cfg.Path. A non-positive threshold defaults to 5.
func NewMemoWatcher(cfg Config, b *bus.Bus, threshold int) *MemoWatcher {
	if cfg.Name == "" {
		cfg.Name = "memos"
	}
	if threshold <= 0 {
		threshold = 5
	}

	w := &MemoWatcher{threshold: threshold}
	w.Poller = NewPoller(cfg, b, w.reduce)
	return w
}

// Threshold returns the configured crossing threshold
func (w *MemoWatcher) Threshold() int {
	return w.threshold
}

// CountRecords counts memo record headers in inbox content
func CountRecords(content string) int {
	return len(memoHeaderRe.FindAllStringIndex(content, -1))
}

func (w *MemoWatcher) reduce(fe *types.FileEvent) []*types.Event {
	count := 0
	if fe.ChangeType != types.ChangeDeleted {
		count = CountRecords(fe.NewContent)
	}

	w.mu.Lock()
	previous := w.lastCount
	w.lastCount = count
	wasCrossed := w.crossed
	w.crossed = count >= w.threshold
	w.mu.Unlock()

	if count == 0 {
		if previous > 0 {
			w.logger.Info().Str("path", fe.Path).Msg("Memo inbox cleared")
		}
		return nil
	}

	if count >= w.threshold && !wasCrossed {
		return []*types.Event{{
			Type: types.EventMemoThreshold,
			Payload: map[string]any{
				"path":          fe.Path,
				"pending_count": count,
				"threshold":     w.threshold,
			},
		}}
	}

	if count > previous && count < w.threshold {
		return []*types.Event{{
			Type: types.EventMemoCreated,
			Payload: map[string]any{
				"path":          fe.Path,
				"pending_count": count,
				"added":         count - previous,
			},
		}}
	}
	return nil
}
