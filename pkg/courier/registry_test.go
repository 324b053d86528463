package courier

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")

	r1, err := NewRegistry(path)
	require.NoError(t, err)
	_, err = r1.Register("demo", "/srv/demo", map[string]string{"webhook_secret": "s"})
	require.NoError(t, err)
	_, err = r1.Register("alpha", "/srv/alpha", nil)
	require.NoError(t, err)

	r2, err := NewRegistry(path)
	require.NoError(t, err)

	project, err := r2.Get("demo")
	require.NoError(t, err)
	assert.Equal(t, "/srv/demo", project.Path)
	assert.Equal(t, "s", project.WebhookSecret())

	list := r2.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Slug, "sorted by slug")

	_, err = r2.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownProject)
}

func TestRegistryRequiresSlugAndPath(t *testing.T) {
	r, err := NewRegistry(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)

	_, err = r.Register("", "/srv/x", nil)
	assert.Error(t, err)
	_, err = r.Register("x", "", nil)
	assert.Error(t, err)
}
