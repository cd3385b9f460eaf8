// Package scope decides whether URLs fall inside the mirror root's subtree
// and maps in-scope URLs to paths relative to the root.
package scope

import (
	"net/url"
	"strings"

	"github.com/andywarduk/mirrorurl/pkg/utils"
)

// IsHandled returns nil if the URL's scheme is fetchable (http or https),
// otherwise a *utils.SkipError with reason SkipTransport.
func IsHandled(u *url.URL) error {
	switch u.Scheme {
	case "http", "https":
		return nil
	default:
		return utils.NewSkipError(u.String(), utils.SkipTransport)
	}
}

// FullPath returns the path of a URL including any query and fragment
func FullPath(u *url.URL) string {
	var sb strings.Builder

	sb.WriteString(u.EscapedPath())

	if u.RawQuery != "" {
		sb.WriteByte('?')
		sb.WriteString(u.RawQuery)
	}

	if u.Fragment != "" {
		sb.WriteByte('#')
		sb.WriteString(u.EscapedFragment())
	}

	return sb.String()
}

// IsRelativeTo reports whether u lies within base's subtree: the hosts match
// and u's full path starts with base's full path.
func IsRelativeTo(u *url.URL, base *url.URL) bool {
	return u.Host == base.Host && strings.HasPrefix(FullPath(u), FullPath(base))
}

// RelativePath returns the path of u relative to base, with leading slashes
// trimmed. The boundary between base's path and the suffix must fall on a
// path separator (base ends in "/", the suffix is empty, or the suffix
// starts with "/") so that ".../rootXYZ" is not treated as relative to
// ".../root". The second return value is false when u is not relative to
// base.
func RelativePath(u *url.URL, base *url.URL) (string, bool) {
	if !IsRelativeTo(u, base) {
		return "", false
	}

	basePath := FullPath(base)
	suffix := FullPath(u)[len(basePath):]

	if !strings.HasSuffix(basePath, "/") && suffix != "" && !strings.HasPrefix(suffix, "/") {
		// Prefix match falls inside a path element
		return "", false
	}

	return strings.TrimLeft(suffix, "/"), true
}
