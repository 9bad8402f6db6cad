// Package paths classifies reference strings and rewrites relative
// references against the path of the unit that declares them. Everything
// here is pure string algebra over slash-normalized paths; nothing touches
// the filesystem.
package paths

import (
	"path"
	"regexp"
	"strings"
)

var (
	urlPattern = regexp.MustCompile(`(?i)^(https?://|ftps?://|www\.)`)
	urnPattern = regexp.MustCompile(`(?i)^([a-z]:[\\/]|file://)`)
)

// IsAbsoluteURL reports whether p names a remote resource.
func IsAbsoluteURL(p string) bool {
	return urlPattern.MatchString(p)
}

// IsAbsoluteURN reports whether p is a drive-letter or file:// path.
func IsAbsoluteURN(p string) bool {
	return urnPattern.MatchString(p)
}

// IsRootRelative reports whether p is anchored at the filesystem root.
func IsRootRelative(p string) bool {
	return strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`)
}

// IsRelative is true iff p is neither a URL, a URN nor root relative.
func IsRelative(p string) bool {
	return !IsAbsoluteURL(p) && !IsAbsoluteURN(p) && !IsRootRelative(p)
}

// RelativeToAbsolute resolves candidate against the directory of parent when
// candidate is relative, and returns it unchanged otherwise.
func RelativeToAbsolute(parent, candidate string) string {
	if IsRelative(candidate) {
		return Join(Dirname(parent), candidate)
	}
	return candidate
}

// Normalize converts backslashes to forward slashes.
func Normalize(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// Dirname returns everything before the last slash of p. A path without a
// slash has an empty directory.
func Dirname(p string) string {
	p = Normalize(p)
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	if idx == 0 {
		return "/"
	}
	return p[:idx]
}

// Join appends rel to dir and cleans dot segments while keeping URL
// scheme/host and drive prefixes intact.
func Join(dir, rel string) string {
	dir = Normalize(dir)
	rel = Normalize(rel)
	if dir == "" {
		return cleanKeepingRelative(rel)
	}

	prefix, rest := splitPrefix(dir)
	joined := path.Join("/"+rest, rel)
	if prefix == "" {
		if IsRootRelative(dir) {
			return joined
		}
		return strings.TrimPrefix(joined, "/")
	}
	return prefix + joined
}

// Stem strips the final extension of p ("a/b.ts" -> "a/b").
func Stem(p string) string {
	p = Normalize(p)
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext)
}

// Base returns the last element of p.
func Base(p string) string {
	return path.Base(Normalize(p))
}

// ReplaceExt swaps the final extension of p for ext (which includes the dot).
func ReplaceExt(p, ext string) string {
	return Stem(p) + ext
}

// splitPrefix separates the non-path head of an absolute location, for
// example "http://host" or "C:", from the path that follows it.
func splitPrefix(p string) (string, string) {
	if m := urlPattern.FindString(p); m != "" {
		head := p[len(m):]
		slash := strings.Index(head, "/")
		if slash < 0 {
			return p, ""
		}
		return p[:len(m)+slash], head[slash+1:]
	}
	if strings.HasPrefix(strings.ToLower(p), "file://") {
		return p[:len("file://")], strings.TrimPrefix(p[len("file://"):], "/")
	}
	if len(p) >= 2 && p[1] == ':' {
		return p[:2], strings.TrimPrefix(p[2:], "/")
	}
	return "", strings.TrimPrefix(p, "/")
}

func cleanKeepingRelative(p string) string {
	if p == "" {
		return ""
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	return cleaned
}
