package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andywarduk/mirrorurl/pkg/config"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return logrus.NewEntry(log)
}

// newRunState builds a validated State mirroring url into target
func newRunState(t *testing.T, url string, target string, mutate func(*config.Config)) *State {
	t.Helper()

	cfg := &config.Config{
		URL:    url,
		Target: target,
	}

	if mutate != nil {
		mutate(cfg)
	}

	_, err := cfg.Validate()
	require.NoError(t, err)

	s, err := NewState(cfg, testLogger())
	require.NoError(t, err)

	return s
}

func serveHTML(t *testing.T, body string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}
}

func serveFile(t *testing.T, content string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		fmt.Fprint(w, content)
	}
}

func links(hrefs ...string) string {
	var sb strings.Builder

	sb.WriteString("<html><body>")

	for _, href := range hrefs {
		fmt.Fprintf(&sb, `<a href="%s">link</a>`, href)
	}

	sb.WriteString("</body></html>")

	return sb.String()
}

func TestRun_MirrorsTwoLevelTree(t *testing.T) {
	mux := http.NewServeMux()

	rootLinks := make([]string, 0, 10)

	for i := 0; i < 10; i++ {
		dir := fmt.Sprintf("d%d/", i)
		rootLinks = append(rootLinks, dir)

		dirLinks := make([]string, 0, 10)

		for j := 0; j < 10; j++ {
			name := fmt.Sprintf("f%d.dat", j)
			dirLinks = append(dirLinks, name)

			mux.Handle("/"+dir+name, serveFile(t, fmt.Sprintf("content-%d-%d", i, j)))
		}

		mux.Handle("/"+dir, serveHTML(t, links(dirLinks...)))
	}

	mux.Handle("/", serveHTML(t, links(rootLinks...)))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	target := t.TempDir()
	s := newRunState(t, server.URL+"/", target, nil)

	require.NoError(t, Run(context.Background(), s))

	snap := s.Stats().Snapshot()
	assert.Equal(t, uint64(11), snap.HTMLDocs)
	assert.Equal(t, uint64(100), snap.Downloads)
	assert.Equal(t, uint64(0), snap.Skipped)
	assert.Equal(t, uint64(0), snap.Errored)

	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			path := filepath.Join(target, fmt.Sprintf("d%d", i), fmt.Sprintf("f%d.dat", j))

			content, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("content-%d-%d", i, j), string(content))
		}
	}
}

func TestRun_FetchesEachURLOnce(t *testing.T) {
	var mu sync.Mutex

	hits := make(map[string]int)

	count := func(next http.Handler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[r.URL.Path]++
			mu.Unlock()

			next.ServeHTTP(w, r)
		}
	}

	mux := http.NewServeMux()
	// The same file is linked twice from the root and once from each page
	mux.Handle("/", count(serveHTML(t, links("dup.txt", "dup.txt", "p1.html", "p2.html"))))
	mux.Handle("/p1.html", count(serveHTML(t, links("shared.txt"))))
	mux.Handle("/p2.html", count(serveHTML(t, links("shared.txt"))))
	mux.Handle("/dup.txt", count(serveFile(t, "dup")))
	mux.Handle("/shared.txt", count(serveFile(t, "shared")))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	s := newRunState(t, server.URL+"/", t.TempDir(), nil)

	require.NoError(t, Run(context.Background(), s))

	mu.Lock()
	defer mu.Unlock()

	for path, n := range hits {
		assert.Equal(t, 1, n, "%s fetched %d times", path, n)
	}

	snap := s.Stats().Snapshot()
	assert.Equal(t, uint64(3), snap.HTMLDocs)
	assert.Equal(t, uint64(2), snap.Downloads)
	assert.Equal(t, uint64(0), snap.Errored)
}

func TestRun_StaysInsideRootSubtree(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/root/", serveHTML(t, links(
		"../outside.txt",
		"http://unreachable.invalid/x",
		"page.html#section",
		"page.html?q=1",
		"mailto:nobody@example.com",
	)))
	mux.HandleFunc("/outside.txt", func(w http.ResponseWriter, r *http.Request) {
		t.Error("URL outside the root subtree must not be fetched")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	target := t.TempDir()
	s := newRunState(t, server.URL+"/root/", target, nil)

	require.NoError(t, Run(context.Background(), s))

	snap := s.Stats().Snapshot()
	assert.Equal(t, uint64(1), snap.HTMLDocs)
	assert.Equal(t, uint64(0), snap.Downloads)
	assert.Equal(t, uint64(5), snap.Skipped)
	assert.Equal(t, uint64(0), snap.Errored)
}

func TestRun_RedirectsClassified(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/root/", serveHTML(t, links("moved.txt", "old")))
	mux.HandleFunc("/root/moved.txt", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/outside/secret.txt", http.StatusFound)
	})
	mux.HandleFunc("/root/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/root/new.dat", http.StatusFound)
	})
	mux.HandleFunc("/root/new.dat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Etag", `"n1"`)
		fmt.Fprint(w, "fresh")
	})
	mux.HandleFunc("/outside/", func(w http.ResponseWriter, r *http.Request) {
		t.Error("out of scope redirect target must not be fetched")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	target := t.TempDir()
	s := newRunState(t, server.URL+"/root/", target, nil)

	require.NoError(t, Run(context.Background(), s))

	snap := s.Stats().Snapshot()
	assert.Equal(t, uint64(1), snap.Skipped, "out of scope redirect is a skip")
	assert.Equal(t, uint64(1), snap.Downloads)
	assert.Equal(t, uint64(0), snap.Errored)

	// The body lands at the final URL's path
	content, err := os.ReadFile(filepath.Join(target, "new.dat"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(content))

	// The etag is recorded for both the requested and final URLs
	etags := readETags(t, target)
	assert.Equal(t, `"n1"`, etags[server.URL+"/root/old"])
	assert.Equal(t, `"n1"`, etags[server.URL+"/root/new.dat"])
}

func TestRun_ETagCacheRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/", serveHTML(t, links("file.dat")))
	mux.HandleFunc("/file.dat", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)

			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Etag", `"v1"`)
		fmt.Fprint(w, "payload")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	target := t.TempDir()
	path := filepath.Join(target, "file.dat")

	// First run downloads the file and persists its etag
	s := newRunState(t, server.URL+"/", target, nil)
	require.NoError(t, Run(context.Background(), s))

	snap := s.Stats().Snapshot()
	assert.Equal(t, uint64(1), snap.Downloads)
	assert.Equal(t, uint64(0), snap.NotModified)

	assert.Equal(t, `"v1"`, readETags(t, target)[server.URL+"/file.dat"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	firstMod := info.ModTime()

	// Second run conditions on the cached etag and leaves the file alone
	s2 := newRunState(t, server.URL+"/", target, nil)
	require.NoError(t, Run(context.Background(), s2))

	snap2 := s2.Stats().Snapshot()
	assert.Equal(t, uint64(0), snap2.Downloads)
	assert.Equal(t, uint64(1), snap2.NotModified)
	assert.Equal(t, uint64(0), snap2.Errored)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))

	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, firstMod, info.ModTime(), "file must not be rewritten")
}

func TestRun_SkipListPrunes(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/", serveHTML(t, links("1", "2/", "3/", "30")))
	mux.HandleFunc("/1", func(w http.ResponseWriter, r *http.Request) {
		t.Error("skipped page must not be fetched")
	})
	mux.HandleFunc("/2/", func(w http.ResponseWriter, r *http.Request) {
		t.Error("skipped page must not be fetched")
	})
	mux.Handle("/3/", serveHTML(t, links("1", "2")))
	mux.HandleFunc("/3/1", func(w http.ResponseWriter, r *http.Request) {
		t.Error("skipped file must not be fetched")
	})
	mux.Handle("/3/2", serveFile(t, "three-two"))
	mux.Handle("/30", serveFile(t, "thirty"))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	skipFile := filepath.Join(t.TempDir(), "skip.json")
	require.NoError(t, os.WriteFile(skipFile, []byte(`["1", "2/", "3/1"]`), 0o644))

	target := t.TempDir()
	s := newRunState(t, server.URL+"/", target, func(cfg *config.Config) {
		cfg.SkipFile = skipFile
	})

	require.NoError(t, Run(context.Background(), s))

	snap := s.Stats().Snapshot()
	assert.Equal(t, uint64(2), snap.HTMLDocs)
	assert.Equal(t, uint64(2), snap.Downloads)
	assert.Equal(t, uint64(3), snap.Skipped)
	assert.Equal(t, uint64(0), snap.Errored)

	assert.FileExists(t, filepath.Join(target, "30"))
	assert.FileExists(t, filepath.Join(target, "3", "2"))
	assert.NoFileExists(t, filepath.Join(target, "1"))
	assert.NoFileExists(t, filepath.Join(target, "2"))
}

func TestRun_RootNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	target := t.TempDir()
	s := newRunState(t, server.URL+"/", target, nil)

	require.NoError(t, Run(context.Background(), s))

	snap := s.Stats().Snapshot()
	assert.Equal(t, uint64(1), snap.Errored)
	assert.Equal(t, uint64(0), snap.Downloads)
	assert.Equal(t, uint64(0), snap.HTMLDocs)

	entries, err := os.ReadDir(target)
	require.NoError(t, err)
	assert.Empty(t, entries, "a failed root leaves the target untouched")
}

func TestRun_NoETagsDisablesCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/", serveHTML(t, links("file.dat")))
	mux.HandleFunc("/file.dat", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-None-Match"))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Etag", `"v1"`)
		fmt.Fprint(w, "payload")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	target := t.TempDir()
	s := newRunState(t, server.URL+"/", target, func(cfg *config.Config) {
		cfg.NoETags = true
	})

	require.NoError(t, Run(context.Background(), s))

	assert.NoFileExists(t, filepath.Join(target, ETagsFile))
}

// readETags decodes the persisted etag cache from the target directory
func readETags(t *testing.T, target string) map[string]string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(target, ETagsFile))
	require.NoError(t, err)

	etags := make(map[string]string)
	require.NoError(t, json.Unmarshal(data, &etags))

	return etags
}
