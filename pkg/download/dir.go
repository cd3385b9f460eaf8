// Package download writes response bodies to disk atomically, creating the
// mirrored directory hierarchy as it goes.
package download

import (
	"fmt"
	"os"
	"path/filepath"
)

// CreateDirectories creates path and all missing ancestors, top down. Each
// level is stat'ed first; a failed create is retried with one more stat to
// absorb a concurrent task creating the same directory. A path element that
// exists but is not a directory is an error.
func CreateDirectories(path string) error {
	if path == "" || path == "." {
		return nil
	}

	if parent := filepath.Dir(path); parent != path {
		if err := CreateDirectories(parent); err != nil {
			return err
		}
	}

	tried := false

	for {
		info, err := os.Stat(path)

		switch {
		case err == nil:
			if !info.IsDir() {
				return fmt.Errorf("%s already exists and is not a directory", path)
			}

			return nil

		case os.IsNotExist(err):
			if mkErr := os.Mkdir(path, 0755); mkErr != nil {
				// Lost a creation race? Stat once more
				if tried {
					return fmt.Errorf("failed to create directory %s: %w", path, mkErr)
				}

				tried = true

				continue
			}

			return nil

		default:
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
}
