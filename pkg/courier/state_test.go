package courier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoco-io/fabric/pkg/mailbox"
	"github.com/monoco-io/fabric/pkg/types"
)

func newTestStateManager(t *testing.T) (*MessageStateManager, *mailbox.Store) {
	t.Helper()
	store, err := mailbox.NewStore(t.TempDir())
	require.NoError(t, err)
	locks, err := NewLockManager(store, testClock())
	require.NoError(t, err)
	return NewMessageStateManager(locks, store), store
}

func inboundMessage(t *testing.T, store *mailbox.Store, id string) {
	t.Helper()
	_, err := store.CreateInbound(&types.Message{
		ID:        id,
		Provider:  "telegram",
		Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Content:   types.MessageContent{Text: "work item"},
	})
	require.NoError(t, err)
}

func TestCompleteArchivesFile(t *testing.T) {
	m, store := newTestStateManager(t)
	inboundMessage(t, store, "msg-1")

	_, err := m.Locks().Claim("msg-1", "agent-a", time.Minute)
	require.NoError(t, err)

	path, err := m.Complete("msg-1", "agent-a")
	require.NoError(t, err)
	assert.Contains(t, path, "archive")

	_, found, err := store.GetByID("msg-1")
	require.NoError(t, err)
	assert.Contains(t, found, "archive")
}

func TestCompleteUnknownMessage(t *testing.T) {
	m, _ := newTestStateManager(t)
	_, err := m.Complete("ghost", "agent-a")
	assert.ErrorIs(t, err, mailbox.ErrMessageNotFound)
}

func TestFailDeadletterMovesFile(t *testing.T) {
	m, store := newTestStateManager(t)
	inboundMessage(t, store, "msg-1")

	_, err := m.Locks().Claim("msg-1", "agent-a", time.Minute)
	require.NoError(t, err)

	entry, path, err := m.Fail("msg-1", "agent-a", "fatal", false)
	require.NoError(t, err)
	assert.Equal(t, types.LockDeadletter, entry.Status)
	assert.Contains(t, path, ".deadletter")

	// The file left the normal scan path.
	_, _, err = store.GetByID("msg-1")
	assert.ErrorIs(t, err, mailbox.ErrMessageNotFound)
}

func TestFailRetryableLeavesFileInPlace(t *testing.T) {
	m, store := newTestStateManager(t)
	inboundMessage(t, store, "msg-1")

	_, err := m.Locks().Claim("msg-1", "agent-a", time.Minute)
	require.NoError(t, err)

	entry, path, err := m.Fail("msg-1", "agent-a", "transient", true)
	require.NoError(t, err)
	assert.Equal(t, types.LockNew, entry.Status)
	assert.Empty(t, path)

	_, found, err := store.GetByID("msg-1")
	require.NoError(t, err)
	assert.Contains(t, found, "inbound")
}

func TestBackoffCurve(t *testing.T) {
	m, _ := newTestStateManager(t)

	assert.Equal(t, 5*time.Second, m.Backoff(0))
	assert.Equal(t, 10*time.Second, m.Backoff(1))
	assert.Equal(t, 20*time.Second, m.Backoff(2))
	assert.Equal(t, 5*time.Minute, m.Backoff(20), "capped at max")
}
