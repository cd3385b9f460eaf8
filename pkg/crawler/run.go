package crawler

import (
	"context"
)

// Run executes a full mirror: walks the root URL, waits for the task tree to
// drain, then merges and persists the ETag cache. Per-URL failures are
// absorbed into the stats; the returned error only reports a failure to
// persist the cache.
func Run(ctx context.Context, s *State) error {
	Walk(ctx, s, s.Root())

	return s.SaveETags()
}
