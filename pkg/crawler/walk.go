package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/andywarduk/mirrorurl/pkg/extract"
	"github.com/andywarduk/mirrorurl/pkg/scope"
	"github.com/andywarduk/mirrorurl/pkg/utils"
)

// Walk fetches a URL and everything reachable beneath it. HTML responses are
// parsed for in-scope links which are walked recursively; anything else is
// downloaded. Failures never escape: a skip reason is logged at info level
// and counted as skipped, any other error is logged and counted as errored,
// and siblings proceed unaffected either way.
func Walk(ctx context.Context, s *State, u *url.URL) {
	err := walkInternal(ctx, s, u)
	if err == nil {
		return
	}

	if se, ok := utils.AsSkip(err); ok {
		s.log.Info(se.Error())
		s.stats.AddSkipped()
	} else {
		s.log.Error(err.Error())
		s.stats.AddErrored()
	}
}

// walkInternal runs the per-URL state machine: dedupe, path check, cache
// lookup, slot acquire, fetch, classify, then either recurse (HTML) or
// download (anything else). The first failure at any step short-circuits the
// rest for this URL only.
func walkInternal(ctx context.Context, s *State, u *url.URL) error {
	// Already seen this URL?
	if !s.MarkProcessed(u) {
		s.log.Debugf("URL %s has already been processed", u)

		return nil
	}

	// Check the URL maps to a valid path before spending a fetch on it. A
	// skip list hit here prunes the whole subtree under an HTML page.
	if _, err := s.PathForURL(u); err != nil {
		return err
	}

	if !s.robots.Allowed(ctx, u) {
		return utils.NewSkipError(u.String(), utils.SkipRobots)
	}

	// Is there an etag from a previous run?
	etag := s.FindETag(u)

	if err := s.AcquireSlot(ctx); err != nil {
		return err
	}

	released := false

	release := func() {
		if !released {
			released = true

			s.ReleaseSlot()
		}
	}
	defer release()

	s.log.Infof("Fetching %s", u)

	resp, err := s.fetcher.Get(ctx, u.String(), etag)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL

	if finalURL.String() != u.String() {
		s.log.Debugf("%s was redirected to %s", u, finalURL)
	}

	switch {
	case resp.StatusCode == http.StatusNotModified && etag != "":
		io.Copy(io.Discard, resp.Body)
		release()

		s.stats.AddNotModified()
		s.log.Infof("%s is not modified", u)

		return nil

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("Status %d fetching %s", resp.StatusCode, finalURL)
	}

	if isHTML(resp) {
		return walkHTML(ctx, s, resp, finalURL, release)
	}

	return walkDownload(ctx, s, u, finalURL, resp, release)
}

// walkHTML reads the document, releases the fetch slot, then walks every
// surviving link concurrently and waits for the subtree to drain. The slot
// is released before recursing: holding it across the children would shrink
// the effective concurrency ceiling with depth and can deadlock once
// ceiling-many leaves wait on permits held by their ancestors.
func walkHTML(ctx context.Context, s *State, resp *http.Response, finalURL *url.URL, release func()) error {
	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", finalURL, err)
	}

	release()

	s.stats.AddHTML(uint64(len(html)))

	hrefs, err := extract.Links(bytes.NewReader(html))
	if err != nil {
		return err
	}

	var wg sync.WaitGroup

	for _, href := range hrefs {
		child, err := resolveHref(s, finalURL, href)
		if err != nil {
			// Children classify their own failures; unwalkable hrefs are
			// counted here since no child task ever starts for them
			if se, ok := utils.AsSkip(err); ok {
				s.log.Info(se.Error())
				s.stats.AddSkipped()

				continue
			}

			return err
		}

		wg.Add(1)

		go func(child *url.URL) {
			defer wg.Done()

			Walk(ctx, s, child)
		}(child)
	}

	wg.Wait()

	return nil
}

// resolveHref resolves an extracted href against the page's final URL and
// applies the admission checks, in order: parse, scheme, fragment, query,
// subtree containment.
func resolveHref(s *State, base *url.URL, href string) (*url.URL, error) {
	child, err := base.Parse(href)
	if err != nil {
		return nil, &utils.SkipError{URL: href, Reason: utils.SkipNotValid, Cause: err}
	}

	s.log.Tracef("href %s of %s -> %s", href, base, child)

	if err := scope.IsHandled(child); err != nil {
		return nil, err
	}

	if child.Fragment != "" {
		return nil, utils.NewSkipError(child.String(), utils.SkipFragment)
	}

	if child.RawQuery != "" {
		return nil, utils.NewSkipError(child.String(), utils.SkipQuery)
	}

	if !scope.IsRelativeTo(child, s.root) {
		return nil, utils.NewSkipError(child.String(), utils.SkipNotRelative)
	}

	return child, nil
}

// walkDownload streams a non-HTML body to its mirrored path and records the
// response ETag for both the requested and final URLs. The slot is released
// as soon as the body has been fully consumed.
func walkDownload(ctx context.Context, s *State, u *url.URL, finalURL *url.URL, resp *http.Response, release func()) error {
	// Re-resolve against the final URL; a redirect may land on a path the
	// skip list excludes
	path, err := s.PathForURL(finalURL)
	if err != nil {
		return err
	}

	size := "unknown"
	if resp.ContentLength >= 0 {
		size = strconv.FormatInt(resp.ContentLength, 10)
	}

	s.log.Infof("Downloading %s to %s (size %s)", finalURL, path, size)

	written, err := s.writer.WriteFile(ctx, resp.Body, path)

	release()

	if err != nil {
		return err
	}

	s.stats.AddDownload(uint64(written))

	if etag := resp.Header.Get("Etag"); etag != "" {
		urls := []*url.URL{finalURL}

		if u.String() != finalURL.String() {
			urls = append(urls, u)
		}

		s.AddETags(urls, etag)
	}

	return nil
}

// isHTML reports whether the response declares an HTML document: the
// type/subtype pair is text/html or application/xhtml+xml, parameters
// ignored. A missing or unparsable Content-Type is not HTML.
func isHTML(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}

	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
