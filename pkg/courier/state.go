package courier

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/mailbox"
	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

// BackoffConfig shapes the retry backoff curve
type BackoffConfig struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

// DefaultBackoff is the retry curve used when none is configured
var DefaultBackoff = BackoffConfig{
	Base:       5 * time.Second,
	Multiplier: 2.0,
	Max:        5 * time.Minute,
}

// MessageStateManager composes the lock manager with the mailbox
// store: completion archives the file, deadletter promotion moves it
// under .deadletter.
type MessageStateManager struct {
	locks   *LockManager
	store   *mailbox.Store
	backoff BackoffConfig
	logger  zerolog.Logger
}

// NewMessageStateManager wires locks and store together
func NewMessageStateManager(locks *LockManager, store *mailbox.Store) *MessageStateManager {
	return &MessageStateManager{
		locks:   locks,
		store:   store,
		backoff: DefaultBackoff,
		logger:  log.WithComponent("state"),
	}
}

// Locks exposes the underlying lock manager
func (m *MessageStateManager) Locks() *LockManager {
	return m.locks
}

// Complete finishes processing: lock completed, file archived.
// Returns the archived path.
func (m *MessageStateManager) Complete(messageID, agentID string) (string, error) {
	msg, _, err := m.store.GetByID(messageID)
	if err != nil {
		return "", err
	}
	if _, err := m.locks.Complete(messageID, agentID); err != nil {
		return "", err
	}

	path, err := m.store.Archive(messageID)
	if err != nil {
		return "", err
	}
	metrics.MessagesTotal.WithLabelValues(msg.Provider, "completed").Inc()
	m.logger.Info().
		Str("message_id", messageID).
		Str("archived_path", path).
		Msg("Message archived")
	return path, nil
}

// Fail records a failure. When the lock lands in deadletter the file
// moves under .deadletter and the new path is returned alongside the
// updated lock.
func (m *MessageStateManager) Fail(messageID, agentID, reason string, retryable bool) (*types.LockEntry, string, error) {
	msg, _, err := m.store.GetByID(messageID)
	if err != nil {
		return nil, "", err
	}
	entry, err := m.locks.Fail(messageID, agentID, reason, retryable)
	if err != nil {
		return nil, "", err
	}

	if entry.Status != types.LockDeadletter {
		metrics.MessagesTotal.WithLabelValues(msg.Provider, "retried").Inc()
		return entry, "", nil
	}

	path, err := m.store.MoveToDeadletter(messageID)
	if err != nil {
		return entry, "", err
	}
	metrics.MessagesTotal.WithLabelValues(msg.Provider, "deadletter").Inc()
	m.logger.Warn().
		Str("message_id", messageID).
		Str("deadletter_path", path).
		Int("retry_count", entry.RetryCount).
		Msg("Message promoted to deadletter")
	return entry, path, nil
}

// Backoff returns the delay before the next retry attempt:
// min(base * multiplier^retryCount, max)
func (m *MessageStateManager) Backoff(retryCount int) time.Duration {
	d := time.Duration(float64(m.backoff.Base) * math.Pow(m.backoff.Multiplier, float64(retryCount)))
	if d > m.backoff.Max || d < 0 {
		return m.backoff.Max
	}
	return d
}
