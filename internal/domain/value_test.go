package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataDecodeRejectsObjects(t *testing.T) {
	var m Metadata
	err := json.Unmarshal([]byte(`{"nested":{"a":1}}`), &m)
	require.Error(t, err)

	err = json.Unmarshal([]byte(`{"tags":["go",3]}`), &m)
	require.Error(t, err)
}

func TestMetadataDecodeVariants(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"board":"gitlab","count":3,"remote":true,"errors":["a","b"]}`), &m))

	assert.Equal(t, KindString, m["board"].Kind())
	assert.Equal(t, "gitlab", m["board"].Str())
	assert.Equal(t, 3.0, m["count"].Num())
	assert.True(t, m["remote"].Flag())
	assert.Equal(t, []string{"a", "b"}, m["errors"].List())
}

func TestMetadataAppendString(t *testing.T) {
	m := Metadata{}
	m.AppendString("errors", "first")
	m.AppendString("errors", "second")
	assert.Equal(t, []string{"first", "second"}, m["errors"].List())

	m["count"] = Int(1)
	m.AppendString("count", "x")
	assert.Equal(t, []string{"x"}, m["count"].List())
}

func TestMetadataFromDropsUnsupported(t *testing.T) {
	m := MetadataFrom(map[string]any{
		"id":    int64(42),
		"tags":  []any{"a", 1, "b"},
		"extra": map[string]any{"x": 1},
		"empty": "",
	})
	assert.Equal(t, 42.0, m["id"].Num())
	assert.Equal(t, []string{"a", "b"}, m["tags"].List())
	assert.NotContains(t, m, "extra")
	assert.NotContains(t, m, "empty")
}
