// Package skiplist filters downloads by relative path prefix.
package skiplist

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// SkipList is an ordered list of path prefixes, relative to the target
// directory, that should not be downloaded. Entries like "dir/" skip a whole
// subtree; "dir/file" skips a single file. Immutable after loading.
type SkipList struct {
	prefixes []string
}

// New creates an empty skip list
func New() *SkipList {
	return &SkipList{}
}

// LoadFile loads a skip list from a JSON array-of-strings file
func LoadFile(file string) (*SkipList, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open skip list file %s: %w", file, err)
	}
	defer fh.Close()

	s := New()

	if err := json.NewDecoder(fh).Decode(&s.prefixes); err != nil {
		return nil, fmt.Errorf("failed to load skip list file %s: %w", file, err)
	}

	return s, nil
}

// Matches reports whether any list entry is a prefix of relPath
func (s *SkipList) Matches(relPath string) bool {
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(relPath, prefix) {
			return true
		}
	}

	return false
}
