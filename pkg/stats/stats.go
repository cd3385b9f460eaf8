// Package stats aggregates crawl counters across concurrent tasks.
package stats

import (
	"fmt"
	"sync"
)

// Stats holds the monotonically increasing crawl counters. All increments
// take the lock; Snapshot returns an unlocked copy for reporting.
type Stats struct {
	mu sync.Mutex

	downloads     uint64
	downloadBytes uint64
	htmlDocs      uint64
	htmlBytes     uint64
	notModified   uint64
	skipped       uint64
	errored       uint64
}

// New creates a zeroed stats aggregator
func New() *Stats {
	return &Stats{}
}

// AddDownload counts a downloaded file and its size
func (s *Stats) AddDownload(bytes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.downloads++
	s.downloadBytes += bytes
}

// AddHTML counts a parsed HTML document and its size
func (s *Stats) AddHTML(bytes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.htmlDocs++
	s.htmlBytes += bytes
}

// AddNotModified counts a 304 conditional fetch result
func (s *Stats) AddNotModified() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notModified++
}

// AddSkipped counts a URL skipped for a benign reason
func (s *Stats) AddSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.skipped++
}

// AddErrored counts a URL that failed with a hard error
func (s *Stats) AddErrored() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errored++
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Downloads     uint64
	DownloadBytes uint64
	HTMLDocs      uint64
	HTMLBytes     uint64
	NotModified   uint64
	Skipped       uint64
	Errored       uint64
}

// Snapshot returns a copy of the current counter values
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Downloads:     s.downloads,
		DownloadBytes: s.downloadBytes,
		HTMLDocs:      s.htmlDocs,
		HTMLBytes:     s.htmlBytes,
		NotModified:   s.notModified,
		Skipped:       s.skipped,
		Errored:       s.errored,
	}
}

// Summary formats the end-of-run report as two lines
func (s Snapshot) Summary() []string {
	return []string{
		fmt.Sprintf("%s parsed (%s)",
			formatQty(s.HTMLDocs, "document", "documents"),
			formatQty(s.HTMLBytes, "byte", "bytes"),
		),
		fmt.Sprintf("%s downloaded (%s), %d not modified, %d skipped, %d errored",
			formatQty(s.Downloads, "file", "files"),
			formatQty(s.DownloadBytes, "byte", "bytes"),
			s.NotModified,
			s.Skipped,
			s.Errored,
		),
	}
}

func formatQty(qty uint64, single string, plural string) string {
	if qty == 1 {
		return fmt.Sprintf("%d %s", qty, single)
	}

	return fmt.Sprintf("%d %s", qty, plural)
}
