package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLegacyYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	legacy := `
keywords: [Go, Kubernetes]
locations: [Remote]
sources:
  greenhouse: true
greenhouse_boards:
  - gitlab
  - name: Data Dog
    board_url: https://boards.greenhouse.io/datadog
crawl_hour: 6
crawl_minute: 30
`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, LinkedInModeEmail, s.LinkedInMode)
	require.NotNil(t, s.LinkedInEmail)
	require.NotNil(t, s.LinkedInCrawl)
	assert.Equal(t, 30, s.LinkedInEmail.MaxEmails)
	assert.False(t, s.LinkedInCrawl.Allowed)

	require.Len(t, s.GreenhouseBoards, 2)
	assert.Equal(t, Board{Name: "Gitlab", BoardURL: "https://boards.greenhouse.io/gitlab"}, s.GreenhouseBoards[0])
	assert.Equal(t, "datadog", s.GreenhouseBoards[1].Slug())

	_, isEmail := s.LinkedIn().(LinkedInEmail)
	assert.True(t, isEmail)
	assert.True(t, s.KeywordMatchRequired())
}

func TestSaveAtomicRoundTrip(t *testing.T) {
	for _, name := range []string{"settings.yml", "settings.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			s := Default()
			s.Keywords = []string{"Go"}
			s.CrawlHour = 9

			require.NoError(t, SaveAtomic(path, s))
			require.NoError(t, SaveAtomic(path, s))
			_, err := os.Stat(path + ".bak")
			require.NoError(t, err)

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, []string{"Go"}, got.Keywords)
			assert.Equal(t, 9, got.CrawlHour)
			assert.Equal(t, s.GreenhouseBoards, got.GreenhouseBoards)
		})
	}
}

func TestSaveAtomicRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	s := Default()
	s.CrawlHour = 99
	err := SaveAtomic(path, s)
	require.ErrorIs(t, err, ErrInvalidSettings)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnsureUserSettingsWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path, err := EnsureUserSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SettingsFileName), path)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, s.CrawlHour)
	assert.Len(t, s.GreenhouseBoards, 3)
}

func TestBoardJSONAcceptsSlug(t *testing.T) {
	var b []Board
	require.NoError(t, jsonUnmarshal(`["zapier", {"name":"X","board_url":"https://boards.greenhouse.io/x"}]`, &b))
	assert.Equal(t, "zapier", b[0].Name)
	assert.Equal(t, "https://boards.greenhouse.io/x", b[1].BoardURL)
}

func TestLoadRuntimeDefaults(t *testing.T) {
	t.Setenv("JHUNT_CONCURRENCY", "2")
	rt, err := LoadRuntime()
	require.NoError(t, err)
	assert.Equal(t, 2, rt.Concurrency)
	assert.Equal(t, 0.8, rt.StopOnSeenRatio)
	assert.Equal(t, "127.0.0.1:38471", rt.Addr)
}

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}
