package skiplist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches_PrefixSemantics(t *testing.T) {
	s := &SkipList{prefixes: []string{"1", "2/", "3/1"}}

	tests := []struct {
		rel  string
		want bool
	}{
		{"1", true},
		{"1/4", true},      // everything under page 1
		{"10/x", true},     // "1" is a plain string prefix
		{"2/", true},
		{"2/3", true},
		{"2", false},       // "2" alone does not start with "2/"
		{"3/1", true},
		{"3/2", false},
		{"3/4", false},
		{"4", false},
		{"4/1", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Matches(tt.rel), "relative path %q", tt.rel)
	}
}

func TestMatches_Empty(t *testing.T) {
	assert.False(t, New().Matches("anything"))
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "skiplist.json")
	require.NoError(t, os.WriteFile(file, []byte(`["a/", "b/c"]`), 0644))

	s, err := LoadFile(file)
	require.NoError(t, err)

	assert.True(t, s.Matches("a/x"))
	assert.True(t, s.Matches("b/c"))
	assert.False(t, s.Matches("b/d"))
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"not": "an array"}`), 0644))

	_, err = LoadFile(bad)
	assert.Error(t, err)
}
