// Package etags holds the URL to ETag mapping persisted between runs and
// used to issue conditional fetches.
package etags

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ETags maps absolute URL strings to opaque ETag strings. The zero value is
// not usable; create instances with New or LoadFile. ETags is not safe for
// concurrent use; callers serialize access.
type ETags struct {
	etags map[string]string
}

// New creates an empty ETag map
func New() *ETags {
	return &ETags{etags: make(map[string]string)}
}

// LoadFile loads a mapping from a JSON file. A missing file yields an empty
// map, not an error.
func LoadFile(file string) (*ETags, error) {
	fh, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}

		return nil, fmt.Errorf("failed to open etags %s: %w", file, err)
	}
	defer fh.Close()

	e := New()

	if err := json.NewDecoder(fh).Decode(&e.etags); err != nil {
		return nil, fmt.Errorf("failed to load etags file %s: %w", file, err)
	}

	return e, nil
}

// Find returns the ETag recorded for a URL
func (e *ETags) Find(url string) (string, bool) {
	etag, ok := e.etags[url]

	return etag, ok
}

// Add records the ETag for a URL, replacing any previous value
func (e *ETags) Add(url string, etag string) {
	e.etags[url] = etag
}

// Extend merges another map into this one. Existing entries are left alone
// so the receiver's values win on conflicting keys.
func (e *ETags) Extend(other *ETags) {
	for url, etag := range other.etags {
		if _, ok := e.etags[url]; !ok {
			e.etags[url] = etag
		}
	}
}

// Empty reports whether the map has no entries
func (e *ETags) Empty() bool {
	return len(e.etags) == 0
}

// Len returns the number of entries
func (e *ETags) Len() int {
	return len(e.etags)
}

// Write serializes the mapping as pretty-printed JSON
func (e *ETags) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(e.etags)
}

// SaveFile writes the mapping to a JSON file. The write is silently skipped
// when the parent directory does not exist, since that means no files were
// downloaded this run.
func (e *ETags) SaveFile(file string) error {
	if parent := filepath.Dir(file); parent != "" {
		info, err := os.Stat(parent)
		if err != nil || !info.IsDir() {
			return nil
		}
	}

	fh, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", file, err)
	}
	defer fh.Close()

	if err := e.Write(fh); err != nil {
		return fmt.Errorf("error writing %s: %w", file, err)
	}

	return nil
}
