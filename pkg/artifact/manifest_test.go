package artifact

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoco-io/fabric/pkg/types"
)

func testArtifact(id string, created time.Time) *types.Artifact {
	return &types.Artifact{
		ArtifactID:  id,
		ContentHash: helloHash,
		SourceType:  types.SourceGenerated,
		Status:      types.ArtifactActive,
		SizeBytes:   5,
		ContentType: "text/plain",
		CreatedAt:   created,
		UpdatedAt:   created,
		Tags:        []string{},
		Metadata:    map[string]any{},
	}
}

func TestDefaultManifestPathIsProjectLocal(t *testing.T) {
	root := t.TempDir()
	path := DefaultManifestPath(root)
	assert.Equal(t, filepath.Join(root, ".monoco", "artifacts", "manifest.jsonl"), path)

	// OpenRegistry creates the parent directories on first use.
	reg, err := OpenRegistry(path)
	require.NoError(t, err)
	require.NoError(t, reg.Append(testArtifact("a1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))))
	assert.FileExists(t, path)
}

func TestRegistry_AppendAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Append(testArtifact("a1", created)))

	got, err := reg.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ArtifactID)
	assert.Equal(t, helloHash, got.ContentHash)

	_, err = reg.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistry_AppendRejectsDuplicateID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Append(testArtifact("a1", created)))
	assert.Error(t, reg.Append(testArtifact("a1", created)))
}

func TestRegistry_RoundTrip(t *testing.T) {
	// A record written to the manifest reads back identically after reopen.
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(24 * time.Hour)
	art := testArtifact("a1", created)
	art.SourceType = types.SourceUploaded
	art.ContentType = "application/json"
	art.OriginalFilename = "report.json"
	art.Tags = []string{"report", "weekly"}
	art.Metadata = map[string]any{"origin": "unit"}
	art.ExpiresAt = &expires
	require.NoError(t, reg.Append(art))

	reopened, err := OpenRegistry(path)
	require.NoError(t, err)

	got, err := reopened.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, art.ArtifactID, got.ArtifactID)
	assert.Equal(t, art.ContentHash, got.ContentHash)
	assert.Equal(t, art.SourceType, got.SourceType)
	assert.Equal(t, art.Status, got.Status)
	assert.Equal(t, art.SizeBytes, got.SizeBytes)
	assert.Equal(t, art.ContentType, got.ContentType)
	assert.Equal(t, art.OriginalFilename, got.OriginalFilename)
	assert.True(t, got.CreatedAt.Equal(art.CreatedAt))
	assert.True(t, got.UpdatedAt.Equal(art.UpdatedAt))
	assert.Equal(t, art.Tags, got.Tags)
	assert.Equal(t, art.Metadata, got.Metadata)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(expires))
}

func TestRegistry_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	good, err := json.Marshal(testArtifact("a1", created))
	require.NoError(t, err)
	good2, err := json.Marshal(testArtifact("a2", created))
	require.NoError(t, err)

	content := strings.Join([]string{
		string(good),
		"{not json",
		`{"artifact_id": ""}`,
		string(good2),
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	assert.Equal(t, 2, reg.CorruptLines())
	_, err = reg.Get("a1")
	assert.NoError(t, err)
	_, err = reg.Get("a2")
	assert.NoError(t, err)
}

func TestRegistry_GetReturnsActiveOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	art := testArtifact("a1", created)
	art.Status = types.ArtifactDeleted
	require.NoError(t, reg.Append(art))

	_, err = reg.Get("a1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistry_UpdateMutatesAndRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Append(testArtifact("a1", created)))

	now := created.Add(time.Hour)
	updated, err := reg.Update("a1", now, func(a *types.Artifact) {
		a.Tags = append(a.Tags, "archived")
		a.Status = types.ArtifactExpired
	})
	require.NoError(t, err)
	assert.Equal(t, types.ArtifactExpired, updated.Status)
	assert.Equal(t, []string{"archived"}, updated.Tags)
	assert.True(t, updated.UpdatedAt.Equal(now))

	// Rewrite persisted: reopen sees the mutation.
	reopened, err := OpenRegistry(path)
	require.NoError(t, err)
	got, err := reopened.lookup("a1")
	require.NoError(t, err)
	assert.Equal(t, types.ArtifactExpired, got.Status)
}

func TestRegistry_UpdateRejectsContentChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Append(testArtifact("a1", created)))

	_, err = reg.Update("a1", created.Add(time.Hour), func(a *types.Artifact) {
		a.ContentHash = strings.Repeat("ab", 32)
	})
	assert.True(t, errors.Is(err, ErrContentImmutable))

	_, err = reg.Update("a1", created.Add(time.Hour), func(a *types.Artifact) {
		a.SizeBytes = 99
	})
	assert.True(t, errors.Is(err, ErrContentImmutable))

	// Record unchanged after rejected updates.
	got, err := reg.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.SizeBytes)
}

func TestRegistry_ListFiltersAndSorts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := testArtifact("older", base)
	older.Tags = []string{"report"}
	newer := testArtifact("newer", base.Add(time.Hour))
	newer.SourceType = types.SourceUploaded
	newer.Tags = []string{"report", "weekly"}
	deleted := testArtifact("gone", base.Add(2*time.Hour))
	deleted.Status = types.ArtifactDeleted
	expired := testArtifact("stale", base.Add(3*time.Hour))
	expired.Status = types.ArtifactExpired

	for _, a := range []*types.Artifact{older, newer, deleted, expired} {
		require.NoError(t, reg.Append(a))
	}

	// Default: active only, newest first.
	got := reg.List(Filter{})
	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].ArtifactID)
	assert.Equal(t, "older", got[1].ArtifactID)

	// IncludeExpired widens the default view.
	got = reg.List(Filter{IncludeExpired: true})
	require.Len(t, got, 3)
	assert.Equal(t, "stale", got[0].ArtifactID)

	// Explicit status filter overrides visibility rules.
	got = reg.List(Filter{Status: types.ArtifactDeleted})
	require.Len(t, got, 1)
	assert.Equal(t, "gone", got[0].ArtifactID)

	// Source type and tag filters compose.
	got = reg.List(Filter{SourceType: types.SourceUploaded})
	require.Len(t, got, 1)
	assert.Equal(t, "newer", got[0].ArtifactID)

	got = reg.List(Filter{Tags: []string{"report", "weekly"}})
	require.Len(t, got, 1)
	assert.Equal(t, "newer", got[0].ArtifactID)

	got = reg.List(Filter{Tags: []string{"report"}})
	require.Len(t, got, 2)
}

func TestRegistry_ListReturnsCopies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Append(testArtifact("a1", created)))

	got := reg.List(Filter{})
	require.Len(t, got, 1)
	got[0].Tags = append(got[0].Tags, "mutated")
	got[0].Metadata["k"] = "v"

	again, err := reg.Get("a1")
	require.NoError(t, err)
	assert.Empty(t, again.Tags)
	assert.Empty(t, again.Metadata)
}

func TestRegistry_Stats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a1 := testArtifact("a1", created)
	a1.SizeBytes = 10
	a2 := testArtifact("a2", created)
	a2.SizeBytes = 7
	a2.Status = types.ArtifactDeleted
	require.NoError(t, reg.Append(a1))
	require.NoError(t, reg.Append(a2))

	stats := reg.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[types.ArtifactActive])
	assert.Equal(t, 1, stats.ByStatus[types.ArtifactDeleted])
	assert.Equal(t, int64(17), stats.TotalSizeBytes)
	assert.Equal(t, path, stats.ManifestPath)
}

func TestRegistry_LiveReferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a1 := testArtifact("a1", created)
	a2 := testArtifact("a2", created)
	require.NoError(t, reg.Append(a1))
	require.NoError(t, reg.Append(a2))

	assert.Equal(t, 2, reg.LiveReferences(helloHash))

	_, err = reg.Update("a1", created.Add(time.Hour), func(a *types.Artifact) {
		a.Status = types.ArtifactDeleted
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.LiveReferences(helloHash))

	// Expired records still count as references; only deleted drops out.
	_, err = reg.Update("a2", created.Add(time.Hour), func(a *types.Artifact) {
		a.Status = types.ArtifactExpired
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.LiveReferences(helloHash))
}

func TestRegistry_SweepExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := created.Add(time.Hour)

	due := testArtifact("due", created)
	due.ExpiresAt = &deadline
	later := testArtifact("later", created)
	future := deadline.Add(time.Hour)
	later.ExpiresAt = &future
	forever := testArtifact("forever", created)

	for _, a := range []*types.Artifact{due, later, forever} {
		require.NoError(t, reg.Append(a))
	}

	now := deadline.Add(time.Minute)
	swept, err := reg.SweepExpired(now)
	require.NoError(t, err)
	assert.Equal(t, []string{"due"}, swept)

	got, err := reg.lookup("due")
	require.NoError(t, err)
	assert.Equal(t, types.ArtifactExpired, got.Status)
	assert.True(t, got.UpdatedAt.Equal(now))

	// Second sweep finds nothing new.
	swept, err = reg.SweepExpired(now.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, swept)

	// Untouched records stay active.
	_, err = reg.Get("later")
	assert.NoError(t, err)
	_, err = reg.Get("forever")
	assert.NoError(t, err)
}

func TestRegistry_DeleteRemovesRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	reg, err := OpenRegistry(path)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, reg.Append(testArtifact("a1", created)))
	require.NoError(t, reg.Delete("a1"))

	_, err = reg.lookup("a1")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Reopen confirms the rewrite dropped the line.
	reopened, err := OpenRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Stats().Total)

	assert.True(t, errors.Is(reg.Delete("a1"), ErrNotFound))
}
