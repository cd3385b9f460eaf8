package fetch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Fetcher issues GET requests through the configured client
type Fetcher struct {
	client    *http.Client
	userAgent string
	log       *logrus.Entry
}

// NewFetcher creates a Fetcher
func NewFetcher(client *http.Client, userAgent string, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		log:       log,
	}
}

// Get fetches a URL. When etag is non-empty it is staged as an
// If-None-Match header, allowing the server to answer 304 Not Modified.
// The caller owns the response body.
func (f *Fetcher) Get(ctx context.Context, url string, etag string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	if etag != "" {
		f.log.WithField("url", url).Debugf("Previous etag value: %s", etag)
		req.Header.Set("If-None-Match", etag)
	}

	return f.client.Do(req)
}
