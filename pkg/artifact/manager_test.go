package artifact

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoco-io/fabric/pkg/clock"
	"github.com/monoco-io/fabric/pkg/types"
)

func newTestManager(t *testing.T) (*Manager, *clock.Manual) {
	t.Helper()
	cas, err := NewCAS(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	reg, err := OpenRegistry(filepath.Join(t.TempDir(), "manifest.jsonl"))
	require.NoError(t, err)

	clk := clock.NewManual(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	return NewManager(cas, reg, clk), clk
}

func TestManagerStoreDeduplicatesContent(t *testing.T) {
	m, _ := newTestManager(t)

	a1, err := m.Store([]byte("hello"), StoreOptions{SourceType: types.SourceGenerated})
	require.NoError(t, err)
	a2, err := m.Store([]byte("hello"), StoreOptions{SourceType: types.SourceUploaded})
	require.NoError(t, err)

	assert.NotEqual(t, a1.ArtifactID, a2.ArtifactID)
	assert.Equal(t, helloHash, a1.ContentHash)
	assert.Equal(t, a1.ContentHash, a2.ContentHash)

	p1, err := m.ContentPath(a1.ArtifactID)
	require.NoError(t, err)
	p2, err := m.ContentPath(a2.ArtifactID)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.FileExists(t, p1)
}

func TestManagerReclaimRespectsLiveReferences(t *testing.T) {
	m, _ := newTestManager(t)

	a1, err := m.Store([]byte("hello"), StoreOptions{})
	require.NoError(t, err)
	a2, err := m.Store([]byte("hello"), StoreOptions{})
	require.NoError(t, err)

	// One live reference remains after the first soft-delete.
	require.NoError(t, m.SoftDelete(a1.ArtifactID))
	reclaimed, err := m.ReclaimIfOrphaned(helloHash)
	require.NoError(t, err)
	assert.False(t, reclaimed)
	assert.True(t, m.CAS().Exists(helloHash))

	// Soft-deleting both keeps the blob until a hard delete.
	require.NoError(t, m.SoftDelete(a2.ArtifactID))
	assert.True(t, m.CAS().Exists(helloHash))

	// With no live references left the first hard delete reclaims the
	// blob; the second only drops its record.
	require.NoError(t, m.HardDelete(a1.ArtifactID))
	assert.False(t, m.CAS().Exists(helloHash))
	require.NoError(t, m.HardDelete(a2.ArtifactID))
	assert.False(t, m.CAS().Exists(helloHash))
}

func TestManagerSoftDeleteHidesFromGet(t *testing.T) {
	m, _ := newTestManager(t)

	a, err := m.Store([]byte("report"), StoreOptions{})
	require.NoError(t, err)
	require.NoError(t, m.SoftDelete(a.ArtifactID))

	_, err = m.Get(a.ArtifactID)
	assert.ErrorIs(t, err, ErrNotFound)

	listed := m.List(Filter{Status: types.ArtifactDeleted})
	require.Len(t, listed, 1)
	assert.Equal(t, a.ArtifactID, listed[0].ArtifactID)
}

func TestManagerUpdateKeepsContentImmutable(t *testing.T) {
	m, clk := newTestManager(t)

	a, err := m.Store([]byte("draft"), StoreOptions{})
	require.NoError(t, err)

	clk.Advance(time.Minute)
	updated, err := m.Update(a.ArtifactID, func(rec *types.Artifact) {
		rec.Tags = append(rec.Tags, "reviewed")
	})
	require.NoError(t, err)
	assert.Contains(t, updated.Tags, "reviewed")
	assert.True(t, updated.UpdatedAt.After(a.UpdatedAt))

	_, err = m.Update(a.ArtifactID, func(rec *types.Artifact) {
		rec.ContentHash = helloHash
	})
	assert.True(t, errors.Is(err, ErrContentImmutable))
}

func TestManagerSweepExpired(t *testing.T) {
	m, clk := newTestManager(t)

	deadline := clk.Now().Add(time.Hour)
	expiring, err := m.Store([]byte("temp"), StoreOptions{ExpiresAt: &deadline})
	require.NoError(t, err)
	keeper, err := m.Store([]byte("keep"), StoreOptions{})
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	ids, err := m.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, []string{expiring.ArtifactID}, ids)

	_, err = m.Get(expiring.ArtifactID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(keeper.ArtifactID)
	assert.NoError(t, err)
}

func TestDefaultManagerInstallAndReset(t *testing.T) {
	t.Cleanup(ResetDefault)

	assert.Nil(t, Default())
	m, _ := newTestManager(t)
	SetDefault(m)
	assert.Same(t, m, Default())
	ResetDefault()
	assert.Nil(t, Default())
}
