package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreReplacePersists(t *testing.T) {
	path, err := EnsureUserSettings(t.TempDir())
	require.NoError(t, err)

	st, err := OpenStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, st.Path())

	next := st.Get()
	next.Keywords = []string{"Go", " go ", "Rust"}
	next.CrawlHour = 9

	saved, vr, err := st.Replace(next)
	require.NoError(t, err)
	assert.True(t, vr.OK())
	assert.Equal(t, []string{"Go", "Rust"}, saved.Keywords)
	assert.Equal(t, 9, st.Get().CrawlHour)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Rust"}, reloaded.Keywords)
}

func TestStoreReplaceRejectsInvalid(t *testing.T) {
	st := NewMemoryStore(Default())
	bad := st.Get()
	bad.CrawlMinute = 75

	_, vr, err := st.Replace(bad)
	require.ErrorIs(t, err, ErrInvalidSettings)
	assert.NotEmpty(t, vr.Errors)
	assert.Equal(t, Default().CrawlMinute, st.Get().CrawlMinute)
}

func TestStoreGetIsACopy(t *testing.T) {
	st := NewMemoryStore(Default())
	s := st.Get()
	s.Keywords = append(s.Keywords, "mutated")
	s.Sources["greenhouse"] = false

	assert.NotContains(t, st.Get().Keywords, "mutated")
	assert.True(t, st.Get().Sources["greenhouse"])
}

func TestOpenStoreMissingFile(t *testing.T) {
	_, err := OpenStore(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
