package utils

import (
	"errors"
	"fmt"
)

// SkipReason identifies why a URL was not processed further. Skips are
// expected, benign outcomes; anything that is not a skip is a hard error.
type SkipReason int

const (
	// SkipTransport - the URL scheme is not http or https
	SkipTransport SkipReason = iota
	// SkipSkipList - the relative path matched a skip list entry
	SkipSkipList
	// SkipNotRelative - the URL is outside the mirror root's subtree
	SkipNotRelative
	// SkipFragment - the URL carries a fragment
	SkipFragment
	// SkipQuery - the URL carries a query string
	SkipQuery
	// SkipNotValid - the href could not be parsed or resolved
	SkipNotValid
	// SkipRedirectNotRelative - a redirect hop left the mirror root's subtree
	SkipRedirectNotRelative
	// SkipTooManyRedirects - the redirect chain exceeded the hop ceiling
	SkipTooManyRedirects
	// SkipRobots - the URL is disallowed by robots.txt
	SkipRobots
)

func (r SkipReason) String() string {
	switch r {
	case SkipTransport:
		return "The transport is not supported"
	case SkipSkipList:
		return "Path is in the skip list"
	case SkipNotRelative:
		return "URL is not relative to the base URL"
	case SkipFragment:
		return "URL is a fragment"
	case SkipQuery:
		return "URL has a query"
	case SkipNotValid:
		return "URL is not valid"
	case SkipRedirectNotRelative:
		return "Redirect is not relative to the base URL"
	case SkipTooManyRedirects:
		return "Too many redirects"
	case SkipRobots:
		return "Disallowed by robots.txt"
	}

	return "Unknown"
}

// SkipError is the error type carrying a skip reason for a URL. The crawl
// coordinator recognizes it (directly or anywhere in the cause chain) and
// counts the URL as skipped rather than errored.
type SkipError struct {
	URL    string     // The originally requested URL being skipped
	Reason SkipReason // Reason for the skip
	Target string     // Offending redirect target for SkipRedirectNotRelative
	Cause  error      // Underlying parse error for SkipNotValid
}

// NewSkipError creates a skip error for a URL
func NewSkipError(url string, reason SkipReason) *SkipError {
	return &SkipError{URL: url, Reason: reason}
}

func (e *SkipError) Error() string {
	switch e.Reason {
	case SkipNotValid:
		return fmt.Sprintf("Skipping %s: URL is not valid: %v", e.URL, e.Cause)
	case SkipRedirectNotRelative:
		return fmt.Sprintf("Skipping %s: Redirect to %s is not relative to the base URL", e.URL, e.Target)
	default:
		return fmt.Sprintf("Skipping %s: %s", e.URL, e.Reason)
	}
}

func (e *SkipError) Unwrap() error {
	return e.Cause
}

// AsSkip reports whether err is, or wraps, a *SkipError. http.Client wraps
// redirect policy errors in *url.Error, so the cause chain must be walked.
func AsSkip(err error) (*SkipError, bool) {
	var se *SkipError
	if errors.As(err, &se) {
		return se, true
	}

	return nil, false
}
