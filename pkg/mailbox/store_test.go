package mailbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoco-io/fabric/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func sampleMessage(id string) *types.Message {
	return &types.Message{
		ID:        id,
		Provider:  "telegram",
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Type:      "text",
		Content:   types.MessageContent{Text: "hello there"},
		Session:   types.SessionInfo{ID: "sess-1"},
	}
}

func TestCreateInboundAndReadBack(t *testing.T) {
	store := newTestStore(t)

	msg := sampleMessage("msg-001")
	path, err := store.CreateInbound(msg)
	require.NoError(t, err)
	assert.Equal(t, "20260314T092653_msg-001.md", filepath.Base(path))
	assert.Contains(t, path, filepath.Join("inbound", "telegram"))

	got, err := store.ReadMessage(path)
	require.NoError(t, err)
	assert.Equal(t, "msg-001", got.ID)
	assert.Equal(t, "telegram", got.Provider)
	assert.Equal(t, "hello there", got.Content.Text)
	assert.Equal(t, "sess-1", got.Session.ID)
	assert.True(t, got.Timestamp.Equal(msg.Timestamp))
}

func TestEncodeRequiresIDAndProvider(t *testing.T) {
	_, err := EncodeMessage(&types.Message{Provider: "telegram"})
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = EncodeMessage(&types.Message{ID: "x"})
	assert.ErrorIs(t, err, ErrMissingProvider)
}

func TestDecodeBodyFallback(t *testing.T) {
	content := "---\nid: msg-9\nprovider: slack\n---\n\nbody is the text\n"
	msg, err := DecodeMessage([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, "body is the text\n", msg.Content.Text)
	assert.Equal(t, "body is the text\n", msg.Body)
}

func TestCreateOutboundDraftGeneratesID(t *testing.T) {
	store := newTestStore(t)

	msg := &types.Message{Provider: "slack", Content: types.MessageContent{Text: "draft"}}
	path, err := store.CreateOutboundDraft(msg)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Contains(t, path, filepath.Join("outbound", "slack"))
	assert.True(t, strings.HasSuffix(path, "_"+msg.ID+".md"))
}

func TestGetByIDScansKindsInOrder(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateInbound(sampleMessage("in-1"))
	require.NoError(t, err)
	_, err = store.CreateOutboundDraft(sampleMessage("out-1"))
	require.NoError(t, err)

	msg, path, err := store.GetByID("in-1")
	require.NoError(t, err)
	assert.Equal(t, "in-1", msg.ID)
	assert.Contains(t, path, "inbound")

	msg, path, err = store.GetByID("out-1")
	require.NoError(t, err)
	assert.Equal(t, "out-1", msg.ID)
	assert.Contains(t, path, "outbound")

	_, _, err = store.GetByID("nope")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestListInboundFilters(t *testing.T) {
	store := newTestStore(t)

	early := sampleMessage("early")
	early.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := sampleMessage("late")
	late.Timestamp = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	other := sampleMessage("other")
	other.Provider = "slack"

	for _, m := range []*types.Message{late, early, other} {
		_, err := store.CreateInbound(m)
		require.NoError(t, err)
	}

	all, err := store.ListInbound("", time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "early", all[0].ID, "oldest first")

	telegram, err := store.ListInbound("telegram", time.Time{})
	require.NoError(t, err)
	assert.Len(t, telegram, 2)

	recent, err := store.ListInbound("telegram", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "late", recent[0].ID)
}

func TestArchiveMovesFile(t *testing.T) {
	store := newTestStore(t)

	origPath, err := store.CreateInbound(sampleMessage("msg-a"))
	require.NoError(t, err)

	archived, err := store.Archive("msg-a")
	require.NoError(t, err)
	assert.Contains(t, archived, filepath.Join("archive", "telegram"))
	assert.Equal(t, filepath.Base(origPath), filepath.Base(archived))

	_, statErr := os.Stat(origPath)
	assert.True(t, os.IsNotExist(statErr))

	msg, path, err := store.GetByID("msg-a")
	require.NoError(t, err)
	assert.Equal(t, "msg-a", msg.ID)
	assert.Contains(t, path, "archive")
}

func TestMoveToDeadletter(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateInbound(sampleMessage("msg-d"))
	require.NoError(t, err)

	dead, err := store.MoveToDeadletter("msg-d")
	require.NoError(t, err)
	assert.Contains(t, dead, filepath.Join(".deadletter", "telegram"))

	// Deadletter is outside the GetByID scan path.
	_, _, err = store.GetByID("msg-d")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestLocksRoundTrip(t *testing.T) {
	store := newTestStore(t)

	empty, err := store.LoadLocks()
	require.NoError(t, err)
	assert.Empty(t, empty)

	now := time.Now().UTC().Truncate(time.Second)
	locks := map[string]*types.LockEntry{
		"msg-1": {
			Status:     types.LockClaimed,
			ClaimedBy:  "agent-7",
			ClaimedAt:  &now,
			RetryCount: 1,
		},
	}
	require.NoError(t, store.SaveLocks(locks))

	got, err := store.LoadLocks()
	require.NoError(t, err)
	require.Contains(t, got, "msg-1")
	assert.Equal(t, types.LockClaimed, got["msg-1"].Status)
	assert.Equal(t, "agent-7", got["msg-1"].ClaimedBy)
	assert.Equal(t, 1, got["msg-1"].RetryCount)
}
