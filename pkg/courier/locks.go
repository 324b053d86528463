package courier

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/clock"
	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

// MaxRetryAttempts bounds retryable failures before a message is
// promoted to deadletter
const MaxRetryAttempts = 3

// LockStore persists the lock map between courier runs
type LockStore interface {
	LoadLocks() (map[string]*types.LockEntry, error)
	SaveLocks(map[string]*types.LockEntry) error
}

// LockManager leases messages to agents. Claims carry an expiry;
// expired claims revert to new lazily on read, so a crashed agent
// never wedges a message. All mutations persist through the store.
type LockManager struct {
	store  LockStore
	clk    clock.Clock
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*types.LockEntry
}

// NewLockManager loads persisted locks and reverts stale claims
func NewLockManager(store LockStore, clk clock.Clock) (*LockManager, error) {
	locks, err := store.LoadLocks()
	if err != nil {
		return nil, fmt.Errorf("failed to load locks: %w", err)
	}

	m := &LockManager{
		store:  store,
		clk:    clk,
		logger: log.WithComponent("locks"),
		locks:  locks,
	}
	m.mu.Lock()
	m.expireLocked()
	m.gaugeLocked()
	m.mu.Unlock()
	return m, nil
}

// Claim leases the message to agentID for timeout. A live claim by
// anyone (including agentID) is a conflict; the holder is wrapped
// into the error and the existing lock is returned.
func (m *LockManager) Claim(messageID, agentID string, timeout time.Duration) (*types.LockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()

	if existing, ok := m.locks[messageID]; ok && existing.Status == types.LockClaimed {
		return existing, fmt.Errorf("%w by %s", ErrAlreadyClaimed, existing.ClaimedBy)
	}

	now := m.clk.Now().UTC()
	expires := now.Add(timeout)
	entry := &types.LockEntry{
		Status:    types.LockClaimed,
		ClaimedBy: agentID,
		ClaimedAt: &now,
		ExpiresAt: &expires,
	}
	if prev, ok := m.locks[messageID]; ok {
		entry.RetryCount = prev.RetryCount
	}
	m.locks[messageID] = entry

	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	m.logger.Debug().
		Str("message_id", messageID).
		Str("agent_id", agentID).
		Time("expires_at", expires).
		Msg("Message claimed")
	return entry, nil
}

// Complete marks a claimed message done. Only the claim holder may
// complete; the retry counter resets.
func (m *LockManager) Complete(messageID, agentID string) (*types.LockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()

	entry, err := m.heldLocked(messageID, agentID)
	if err != nil {
		return nil, err
	}

	entry.Status = types.LockCompleted
	entry.RetryCount = 0
	entry.ExpiresAt = nil
	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	m.logger.Debug().
		Str("message_id", messageID).
		Str("agent_id", agentID).
		Msg("Message completed")
	return entry, nil
}

// Fail records a processing failure. Retryable failures under the
// attempt cap revert the message to new for redelivery; anything else
// promotes it to deadletter.
func (m *LockManager) Fail(messageID, agentID, reason string, retryable bool) (*types.LockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()

	entry, err := m.heldLocked(messageID, agentID)
	if err != nil {
		return nil, err
	}

	entry.RetryCount++
	entry.FailReason = reason
	if retryable && entry.RetryCount < MaxRetryAttempts {
		entry.Status = types.LockNew
		entry.ClaimedBy = ""
		entry.ClaimedAt = nil
		entry.ExpiresAt = nil
	} else {
		entry.Status = types.LockDeadletter
	}

	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	m.logger.Info().
		Str("message_id", messageID).
		Str("status", string(entry.Status)).
		Int("retry_count", entry.RetryCount).
		Str("reason", reason).
		Msg("Message failed")
	return entry, nil
}

// GetStatus returns the lock entry for a message, nil when none
// exists. Expired claims are reverted first.
func (m *LockManager) GetStatus(messageID string) *types.LockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	return m.locks[messageID]
}

// CleanupExpired reverts expired claims and persists if anything
// changed. Returns the number of reverted locks.
func (m *LockManager) CleanupExpired() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reverted := m.expireLocked()
	if reverted > 0 {
		if err := m.persistLocked(); err != nil {
			return reverted, err
		}
	}
	return reverted, nil
}

// ActiveClaims counts live claims; feeds the metrics gauge
func (m *LockManager) ActiveClaims() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()

	active := 0
	for _, entry := range m.locks {
		if entry.Status == types.LockClaimed {
			active++
		}
	}
	return active
}

// heldLocked validates that agentID holds a live claim; callers hold
// mu
func (m *LockManager) heldLocked(messageID, agentID string) (*types.LockEntry, error) {
	entry, ok := m.locks[messageID]
	if !ok || entry.Status != types.LockClaimed {
		return nil, ErrNotClaimed
	}
	if entry.ClaimedBy != agentID {
		return nil, fmt.Errorf("%w: held by %s", ErrClaimedByOther, entry.ClaimedBy)
	}
	return entry, nil
}

// expireLocked reverts claimed locks past their expiry to new;
// callers hold mu. Returns the number reverted.
func (m *LockManager) expireLocked() int {
	now := m.clk.Now()
	reverted := 0
	for id, entry := range m.locks {
		if entry.Status != types.LockClaimed || entry.ExpiresAt == nil {
			continue
		}
		if now.Before(*entry.ExpiresAt) {
			continue
		}
		entry.Status = types.LockNew
		entry.ClaimedBy = ""
		entry.ClaimedAt = nil
		entry.ExpiresAt = nil
		reverted++
		m.logger.Warn().Str("message_id", id).Msg("Expired claim reverted")
	}
	return reverted
}

// persistLocked saves the lock map; callers hold mu
func (m *LockManager) persistLocked() error {
	if err := m.store.SaveLocks(m.locks); err != nil {
		return fmt.Errorf("failed to persist locks: %w", err)
	}
	m.gaugeLocked()
	return nil
}

// gaugeLocked refreshes the active-claims metric; callers hold mu
func (m *LockManager) gaugeLocked() {
	active := 0
	for _, entry := range m.locks {
		if entry.Status == types.LockClaimed {
			active++
		}
	}
	metrics.LocksActive.Set(float64(active))
}
