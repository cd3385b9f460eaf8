package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsChecker fetches and caches the robots.txt of the mirror root's host.
// The mirror stays on a single host so a single cached entry suffices. When
// the file cannot be fetched or parsed everything is allowed.
type RobotsChecker struct {
	fetcher   *Fetcher
	userAgent string
	enabled   bool
	log       *logrus.Entry

	once sync.Once
	data *robotstxt.RobotsData // nil when unavailable
}

// NewRobotsChecker creates a RobotsChecker. When enabled is false Allowed
// always returns true without fetching anything.
func NewRobotsChecker(fetcher *Fetcher, userAgent string, enabled bool, log *logrus.Entry) *RobotsChecker {
	return &RobotsChecker{
		fetcher:   fetcher,
		userAgent: userAgent,
		enabled:   enabled,
		log:       log,
	}
}

// Allowed reports whether u may be fetched according to robots.txt. The
// robots.txt file is fetched lazily, once, on the first call.
func (rc *RobotsChecker) Allowed(ctx context.Context, u *url.URL) bool {
	if !rc.enabled {
		return true
	}

	rc.once.Do(func() {
		rc.data = rc.fetch(ctx, u)
	})

	if rc.data == nil {
		return true
	}

	return rc.data.TestAgent(u.Path, rc.userAgent)
}

// fetch retrieves and parses robots.txt for u's host. Any failure is logged
// and treated as "no robots.txt".
func (rc *RobotsChecker) fetch(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	robotsURL := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}
	log := rc.log.WithField("url", robotsURL.String())

	resp, err := rc.fetcher.Get(ctx, robotsURL.String(), "")
	if err != nil {
		log.Debugf("Failed to fetch robots.txt: %v", err)

		return nil
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		log.Debugf("No robots.txt (status %d)", resp.StatusCode)

		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		log.Warnf("Failed to parse robots.txt: %v", err)

		return nil
	}

	log.Debug("Loaded robots.txt")

	return data
}
