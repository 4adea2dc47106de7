package maps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load(filepath.Join("testdata", "maps.jsonc"))
	require.NoError(t, err)
	return c
}

func TestLoad(t *testing.T) {
	c := testCatalog(t)
	assert.Equal(t, []string{"map1", "map2", "map3", "map4", "map5"}, c.Names())
	assert.True(t, c.Has("map3"))
	assert.False(t, c.Has("map99"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.jsonc"))
	assert.Error(t, err)
}

func TestLoadEmptyCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestCandidatesExcludeCurrent(t *testing.T) {
	c := testCatalog(t)
	for i := 0; i < 20; i++ {
		got := c.Candidates(3, "map2")
		assert.Len(t, got, 3)
		assert.NotContains(t, got, "map2")

		seen := map[string]bool{}
		for _, name := range got {
			assert.False(t, seen[name], "duplicate candidate %q", name)
			seen[name] = true
		}
	}
}

func TestCandidatesShortPool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":{"name":"a"},"b":{"name":"b"}}`), 0o644))
	c, err := Load(path)
	require.NoError(t, err)

	got := c.Candidates(3, "a")
	assert.Equal(t, []string{"b"}, got)
}
