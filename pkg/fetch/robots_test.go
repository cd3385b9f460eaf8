package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRobots(t *testing.T, server *httptest.Server, enabled bool) *RobotsChecker {
	t.Helper()

	cfg := testConfig()
	fetcher := NewFetcher(newTestClient(t, cfg, server.URL+"/"), cfg.UserAgent, testLogger())

	return NewRobotsChecker(fetcher, cfg.UserAgent, enabled, testLogger())
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	require.NoError(t, err)

	return u
}

func TestRobots_DisallowedPath(t *testing.T) {
	var fetches int

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fetches++
		fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	rc := newTestRobots(t, server, true)
	ctx := context.Background()

	assert.True(t, rc.Allowed(ctx, mustParse(t, server.URL+"/public/page.html")))
	assert.False(t, rc.Allowed(ctx, mustParse(t, server.URL+"/private/page.html")))
	assert.Equal(t, 1, fetches, "robots.txt must be fetched once")
}

func TestRobots_MissingAllowsAll(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	rc := newTestRobots(t, server, true)

	assert.True(t, rc.Allowed(context.Background(), mustParse(t, server.URL+"/anything")))
}

func TestRobots_DisabledNeverFetches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("disabled checker must not fetch")
	}))
	t.Cleanup(server.Close)

	rc := newTestRobots(t, server, false)

	assert.True(t, rc.Allowed(context.Background(), mustParse(t, server.URL+"/private/x")))
}
