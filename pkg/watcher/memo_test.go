package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/types"
)

func memoInbox(count int) string {
	var sb strings.Builder
	for i := 0; i < count; i++ {
		sb.WriteString("## [a1b2c3d")
		sb.WriteByte(byte('0' + i))
		sb.WriteString("] Memo\n\nSome note.\n\n")
	}
	return sb.String()
}

func newMemoFixture(t *testing.T, threshold int) (*MemoWatcher, string, *[]*types.Event) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inbox.md")
	b := bus.New()

	var events []*types.Event
	for _, et := range []types.EventType{types.EventMemoCreated, types.EventMemoThreshold} {
		et := et
		b.Subscribe(et, func(ctx context.Context, e *types.Event) error {
			events = append(events, e)
			return nil
		})
	}

	w := NewMemoWatcher(Config{Path: path}, b, threshold)
	return w, path, &events
}

func TestCountRecords(t *testing.T) {
	assert.Equal(t, 0, CountRecords(""))
	assert.Equal(t, 3, CountRecords(memoInbox(3)))
	// Headers without a hex uid do not count.
	assert.Equal(t, 0, CountRecords("## Plain heading\n"))
}

func TestMemoWatcher_ThresholdCrossingEmitsOnce(t *testing.T) {
	w, path, events := newMemoFixture(t, 5)

	w.Tick(context.Background())

	// Build up below the threshold across several ticks.
	writeFile(t, path, memoInbox(2))
	w.Tick(context.Background())
	writeFile(t, path, memoInbox(4))
	w.Tick(context.Background())

	require.Len(t, *events, 2)
	assert.Equal(t, types.EventMemoCreated, (*events)[0].Type)
	assert.Equal(t, 2, (*events)[0].Payload["added"])
	assert.Equal(t, types.EventMemoCreated, (*events)[1].Type)

	// Crossing tick emits exactly one memo.threshold.
	*events = nil
	writeFile(t, path, memoInbox(5))
	w.Tick(context.Background())
	require.Len(t, *events, 1)
	e := (*events)[0]
	assert.Equal(t, types.EventMemoThreshold, e.Type)
	assert.Equal(t, 5, e.Payload["pending_count"])
	assert.Equal(t, 5, e.Payload["threshold"])

	// Staying at or above the threshold stays quiet.
	writeFile(t, path, memoInbox(6))
	w.Tick(context.Background())
	require.Len(t, *events, 1)
}

func TestMemoWatcher_RecrossAfterDrop(t *testing.T) {
	w, path, events := newMemoFixture(t, 3)

	w.Tick(context.Background())
	writeFile(t, path, memoInbox(3))
	w.Tick(context.Background())
	require.Len(t, *events, 1)
	assert.Equal(t, types.EventMemoThreshold, (*events)[0].Type)

	// Drop below, then re-cross: a second threshold event fires.
	writeFile(t, path, memoInbox(1))
	w.Tick(context.Background())
	writeFile(t, path, memoInbox(3))
	w.Tick(context.Background())

	require.Len(t, *events, 2)
	assert.Equal(t, types.EventMemoThreshold, (*events)[1].Type)
}

func TestMemoWatcher_ClearedInboxEmitsNothing(t *testing.T) {
	w, path, events := newMemoFixture(t, 5)

	w.Tick(context.Background())
	writeFile(t, path, memoInbox(2))
	w.Tick(context.Background())
	*events = nil

	require.NoError(t, os.WriteFile(path, []byte(""), 0644))
	w.Tick(context.Background())
	assert.Empty(t, *events)
}
