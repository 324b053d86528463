package artifact

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/clock"
	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

// StoreOptions carries the caller-supplied metadata for a new artifact
type StoreOptions struct {
	SourceType       types.SourceType
	ContentType      string
	OriginalFilename string
	SourceURL        string
	ParentArtifactID string
	Tags             []string
	Metadata         map[string]any
	ExpiresAt        *time.Time
}

// Manager composes the blob store and the manifest registry into the
// artifact lifecycle: store, update, soft/hard delete, expiry sweep,
// and orphan reclaim.
type Manager struct {
	cas      *CAS
	registry *Registry
	clk      clock.Clock
	logger   zerolog.Logger
}

// NewManager creates an artifact manager over an open store and
// registry
func NewManager(cas *CAS, registry *Registry, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	return &Manager{
		cas:      cas,
		registry: registry,
		clk:      clk,
		logger:   log.WithComponent("artifact"),
	}
}

// CAS returns the underlying blob store
func (m *Manager) CAS() *CAS {
	return m.cas
}

// Registry returns the underlying manifest registry
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Store deduplicates data into the blob store and appends a new
// manifest record. Every call yields a distinct artifact id even when
// the bytes are already stored.
func (m *Manager) Store(data []byte, opts StoreOptions) (*types.Artifact, error) {
	hash, _, err := m.cas.Store(data)
	if err != nil {
		return nil, err
	}

	if opts.SourceType == "" {
		opts.SourceType = types.SourceGenerated
	}
	if opts.ContentType == "" {
		opts.ContentType = "application/octet-stream"
	}

	now := m.clk.Now().UTC()
	a := &types.Artifact{
		ArtifactID:       uuid.New().String(),
		ContentHash:      hash,
		SourceType:       opts.SourceType,
		Status:           types.ArtifactActive,
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpiresAt:        opts.ExpiresAt,
		ContentType:      opts.ContentType,
		SizeBytes:        int64(len(data)),
		OriginalFilename: opts.OriginalFilename,
		SourceURL:        opts.SourceURL,
		ParentArtifactID: opts.ParentArtifactID,
		Tags:             opts.Tags,
		Metadata:         opts.Metadata,
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	if a.Metadata == nil {
		a.Metadata = map[string]any{}
	}

	if err := m.registry.Append(a); err != nil {
		return nil, err
	}
	metrics.ArtifactsStored.Inc()

	m.logger.Info().
		Str("artifact_id", a.ArtifactID).
		Str("hash", hash).
		Int64("size", a.SizeBytes).
		Str("source_type", string(a.SourceType)).
		Msg("Artifact stored")
	return a, nil
}

// Get returns the active artifact for id
func (m *Manager) Get(id string) (*types.Artifact, error) {
	return m.registry.Get(id)
}

// List returns artifacts matching the filter, newest first
func (m *Manager) List(f Filter) []*types.Artifact {
	return m.registry.List(f)
}

// Stats reports registry statistics
func (m *Manager) Stats() Stats {
	return m.registry.Stats()
}

// ContentPath returns the blob path backing the active artifact id
func (m *Manager) ContentPath(id string) (string, error) {
	a, err := m.registry.Get(id)
	if err != nil {
		return "", err
	}
	return m.cas.PathOf(a.ContentHash)
}

// Update mutates an artifact's metadata. Content-derived fields are
// immutable; updated_at is stamped by the registry.
func (m *Manager) Update(id string, mutate func(*types.Artifact)) (*types.Artifact, error) {
	return m.registry.Update(id, m.clk.Now().UTC(), mutate)
}

// SoftDelete marks the artifact deleted but keeps its manifest record
// for audit. The blob is not touched.
func (m *Manager) SoftDelete(id string) error {
	_, err := m.registry.Update(id, m.clk.Now().UTC(), func(a *types.Artifact) {
		a.Status = types.ArtifactDeleted
	})
	if err != nil {
		return err
	}
	m.logger.Info().Str("artifact_id", id).Msg("Artifact soft-deleted")
	return nil
}

// HardDelete removes the manifest record entirely and reclaims the
// blob when no live artifact still references its hash.
func (m *Manager) HardDelete(id string) error {
	a, err := m.registry.lookup(id)
	if err != nil {
		return err
	}
	if err := m.registry.Delete(id); err != nil {
		return err
	}

	reclaimed, err := m.ReclaimIfOrphaned(a.ContentHash)
	if err != nil {
		return fmt.Errorf("record removed but blob reclaim failed: %w", err)
	}

	m.logger.Info().
		Str("artifact_id", id).
		Bool("blob_reclaimed", reclaimed).
		Msg("Artifact hard-deleted")
	return nil
}

// ReclaimIfOrphaned removes the blob for hash when no non-deleted
// artifact references it. Returns whether the blob was removed.
func (m *Manager) ReclaimIfOrphaned(hash string) (bool, error) {
	if err := ValidateHash(hash); err != nil {
		return false, err
	}
	if m.registry.LiveReferences(hash) > 0 {
		return false, nil
	}
	if !m.cas.Exists(hash) {
		return false, nil
	}
	if err := m.cas.Remove(hash); err != nil {
		return false, err
	}
	return true, nil
}

// SweepExpired transitions active artifacts past their expires_at to
// expired and returns the affected ids.
func (m *Manager) SweepExpired() ([]string, error) {
	return m.registry.SweepExpired(m.clk.Now().UTC())
}

// Process-wide default manager. Construction-time injection is the
// rule; the default exists for entry points that share one store.
var (
	defaultMu      sync.RWMutex
	defaultManager *Manager
)

// SetDefault installs the process-wide manager
func SetDefault(m *Manager) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultManager = m
}

// Default returns the process-wide manager, or nil before SetDefault
func Default() *Manager {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultManager
}

// ResetDefault clears the process-wide manager. Intended for tests.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultManager = nil
}
