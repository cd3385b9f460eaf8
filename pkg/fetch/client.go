// Package fetch builds the HTTP client, enforces the redirect policy and
// issues conditional GETs.
package fetch

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/andywarduk/mirrorurl/pkg/config"
	"github.com/andywarduk/mirrorurl/pkg/scope"
	"github.com/andywarduk/mirrorurl/pkg/utils"
)

// NewClient creates the HTTP client for a mirror run. The redirect policy is
// bound to the root URL: every hop must stay inside the root's subtree and
// the chain must not exceed the configured hop ceiling. Policy violations
// surface from client.Do as a *utils.SkipError wrapped in *url.Error,
// carrying the originally requested URL.
func NewClient(cfg *config.Config, root *url.URL, log *logrus.Entry) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout.Duration,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        cfg.ConcurrentFetch * 2,
		MaxIdleConnsPerHost: cfg.ConcurrentFetch,
		TLSHandshakeTimeout: cfg.ConnectTimeout.Duration,
	}

	return &http.Client{
		Timeout:       cfg.FetchTimeout.Duration,
		Transport:     transport,
		CheckRedirect: checkRedirect(cfg.MaxRedirects, root, log),
	}
}

// checkRedirect builds the per-hop redirect decision function
func checkRedirect(maxRedirects int, root *url.URL, log *logrus.Entry) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		// via[0] is the original request for this logical fetch
		initial := via[0].URL.String()

		if len(via) > maxRedirects {
			return utils.NewSkipError(initial, utils.SkipTooManyRedirects)
		}

		if !scope.IsRelativeTo(req.URL, root) {
			return &utils.SkipError{
				URL:    initial,
				Reason: utils.SkipRedirectNotRelative,
				Target: req.URL.String(),
			}
		}

		log.Debugf("Redirecting %s -> %s (hop %d)", via[len(via)-1].URL, req.URL, len(via))

		return nil
	}
}
