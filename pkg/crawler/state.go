// Package crawler implements the recursive mirror walk and the shared state
// it runs against.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/andywarduk/mirrorurl/pkg/config"
	"github.com/andywarduk/mirrorurl/pkg/download"
	"github.com/andywarduk/mirrorurl/pkg/etags"
	"github.com/andywarduk/mirrorurl/pkg/fetch"
	"github.com/andywarduk/mirrorurl/pkg/scope"
	"github.com/andywarduk/mirrorurl/pkg/skiplist"
	"github.com/andywarduk/mirrorurl/pkg/stats"
	"github.com/andywarduk/mirrorurl/pkg/utils"
)

// ETagsFile is the name of the cache file within the target directory
const ETagsFile = ".etags.json"

// State is the shared context for one mirror run, constructed once at
// startup and shared by reference across the whole task tree. The dedupe
// set, the new ETag generation and the stats are the only fields mutated
// concurrently; each sits behind its own lock. Everything else is immutable
// after construction.
type State struct {
	cfg *config.Config
	log *logrus.Entry

	root *url.URL

	processedMu sync.Mutex
	processed   map[string]struct{}

	etagsFile string
	oldETags  *etags.ETags
	newETags  *etags.ETags
	etagsMu   sync.Mutex

	skipList *skiplist.SkipList
	sem      *semaphore.Weighted
	fetcher  *fetch.Fetcher
	robots   *fetch.RobotsChecker
	writer   *download.Writer
	stats    *stats.Stats
}

// NewState validates the configuration against the outside world and builds
// the run state. Any failure here is fatal for the whole run: bad root URL,
// unsupported scheme, unreadable skip list or ETag cache.
func NewState(cfg *config.Config, log *logrus.Entry) (*State, error) {
	root, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid root URL %s: %w", cfg.URL, err)
	}

	if err := scope.IsHandled(root); err != nil {
		return nil, fmt.Errorf("%s is not an http or https URL", cfg.URL)
	}

	etagsFile := filepath.Join(cfg.Target, ETagsFile)

	oldETags := etags.New()
	if !cfg.NoETags {
		if oldETags, err = etags.LoadFile(etagsFile); err != nil {
			return nil, err
		}
	}

	skipList := skiplist.New()
	if cfg.SkipFile != "" {
		if skipList, err = skiplist.LoadFile(cfg.SkipFile); err != nil {
			return nil, err
		}
	}

	client := fetch.NewClient(cfg, root, log)
	fetcher := fetch.NewFetcher(client, cfg.UserAgent, log)

	return &State{
		cfg:       cfg,
		log:       log,
		root:      root,
		processed: make(map[string]struct{}),
		etagsFile: etagsFile,
		oldETags:  oldETags,
		newETags:  etags.New(),
		skipList:  skipList,
		sem:       semaphore.NewWeighted(int64(cfg.ConcurrentFetch)),
		fetcher:   fetcher,
		robots:    fetch.NewRobotsChecker(fetcher, cfg.UserAgent, cfg.RespectRobots, log),
		writer:    download.NewWriter(cfg.DebugDelay.Duration, log),
		stats:     stats.New(),
	}, nil
}

// Root returns the mirror root URL
func (s *State) Root() *url.URL {
	return s.root
}

// Stats returns the run's stats aggregator
func (s *State) Stats() *stats.Stats {
	return s.stats
}

// MarkProcessed atomically tests and inserts a URL into the dedupe set. It
// returns true if the URL was not seen before; insertion is the gate that
// decides whether a fetch proceeds, so concurrent discovery of the same URL
// never double-fetches.
func (s *State) MarkProcessed(u *url.URL) bool {
	key := u.String()

	s.processedMu.Lock()
	defer s.processedMu.Unlock()

	if _, seen := s.processed[key]; seen {
		return false
	}

	s.processed[key] = struct{}{}

	return true
}

// AcquireSlot blocks until a fetch permit is available or ctx is cancelled
func (s *State) AcquireSlot(ctx context.Context) error {
	return s.sem.Acquire(ctx, 1)
}

// ReleaseSlot returns a fetch permit
func (s *State) ReleaseSlot() {
	s.sem.Release(1)
}

// PathForURL maps a URL to its on-disk path under the target directory. A
// URL whose relative path is empty or ends in "/" maps to the configured
// unnamed file name. Returns a skip error when the URL is outside the root's
// subtree or its relative path matches the skip list.
func (s *State) PathForURL(u *url.URL) (string, error) {
	rel, ok := scope.RelativePath(u, s.root)
	if !ok {
		return "", utils.NewSkipError(u.String(), utils.SkipNotRelative)
	}

	if rel == "" {
		return filepath.Join(s.cfg.Target, s.cfg.Unnamed), nil
	}

	if s.skipList.Matches(rel) {
		return "", utils.NewSkipError(u.String(), utils.SkipSkipList)
	}

	path := filepath.Join(s.cfg.Target, filepath.FromSlash(rel))

	if strings.HasSuffix(rel, "/") {
		path = filepath.Join(path, s.cfg.Unnamed)
	}

	s.log.Tracef("URL %s maps to file %s", u, path)

	return path, nil
}

// FindETag looks up the previously persisted ETag for a URL. Only the old
// generation is consulted; a fetch never conditions on an ETag recorded
// earlier in the same run.
func (s *State) FindETag(u *url.URL) string {
	etag, _ := s.oldETags.Find(u.String())

	return etag
}

// AddETags records an ETag against each of the given URLs in the new
// generation.
func (s *State) AddETags(urls []*url.URL, etag string) {
	s.etagsMu.Lock()
	defer s.etagsMu.Unlock()

	for _, u := range urls {
		s.newETags.Add(u.String(), etag)
		s.log.Tracef("Set etag for %s to %s", u, etag)
	}
}

// SaveETags merges the old generation into the new one (this run's values
// win on conflicting keys) and persists the result. Nothing is written when
// caching is disabled or nothing was recorded this run.
func (s *State) SaveETags() error {
	if s.cfg.NoETags {
		return nil
	}

	s.etagsMu.Lock()
	defer s.etagsMu.Unlock()

	if s.newETags.Empty() {
		return nil
	}

	s.newETags.Extend(s.oldETags)

	return s.newETags.SaveFile(s.etagsFile)
}
