package srcmap

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// PathStyle describes how the platform spells local file paths.
type PathStyle uint8

// Supported path styles.
const (
	PathStylePOSIX PathStyle = iota
	PathStyleWindows
)

// DefaultPathStyle returns the path style of the platform the binary was built for.
func DefaultPathStyle() PathStyle {
	if filepath.Separator == '\\' {
		return PathStyleWindows
	}
	return PathStylePOSIX
}

// NormalizePath turns a Windows path like C:\a\b.js into /a/b.js so it can be
// used as a URL. With any other style the path is returned as is.
func NormalizePath(style PathStyle, p string) string {
	if style != PathStyleWindows {
		return p
	}
	p = strings.ReplaceAll(p, `\`, "/")
	if len(p) >= 2 && isASCIILetter(p[0]) && p[1] == ':' {
		p = "/" + strings.TrimPrefix(p[2:], "/")
	}
	return p
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// ResolveChain resolves every ref against the result of the previous
// resolution, starting with base.
func ResolveChain(base string, refs ...string) (string, error) {
	resolved := base
	for _, ref := range refs {
		next, err := resolveReference(resolved, ref)
		if err != nil {
			return "", err
		}
		resolved = next
	}
	return resolved, nil
}

func resolveReference(base, ref string) (string, error) {
	baseURL, err := parseLenient(base)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrInvalidURL, base, err)
	}
	refURL, err := parseLenient(ref)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrInvalidURL, ref, err)
	}

	if isRelativePath(baseURL) && isRelativePath(refURL) {
		return resolveRelativePath(baseURL, refURL), nil
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// isRelativePath reports whether u is nothing more than a path not starting with a slash.
func isRelativePath(u *url.URL) bool {
	return u.Scheme == "" && u.Host == "" && u.User == nil && u.Opaque == "" && !strings.HasPrefix(u.Path, "/")
}

// resolveRelativePath composes two relative references. Unlike
// url.ResolveReference it doesn't root the result, so leading ".." segments
// survive.
func resolveRelativePath(base, ref *url.URL) string {
	refPath := ref.EscapedPath()
	var joined string
	query := ref.RawQuery
	if refPath == "" {
		joined = base.EscapedPath()
		if query == "" && !ref.ForceQuery {
			query = base.RawQuery
		}
	} else {
		basePath := base.EscapedPath()
		joined = basePath[:strings.LastIndex(basePath, "/")+1] + refPath
	}

	cleaned := path.Clean(joined)
	switch {
	case cleaned == ".":
		cleaned = ""
	case strings.HasSuffix(joined, "/") || strings.HasSuffix(joined, "/.") || strings.HasSuffix(joined, "/.."):
		cleaned += "/"
	case joined == "..":
		cleaned = "../"
	}

	var sb strings.Builder
	sb.WriteString(cleaned)
	if query != "" || ref.ForceQuery {
		sb.WriteByte('?')
		sb.WriteString(query)
	}
	if ref.Fragment != "" {
		sb.WriteByte('#')
		sb.WriteString(ref.EscapedFragment())
	}
	return sb.String()
}

// parseLenient parses u, treating a '%' which doesn't start a valid escape
// sequence as a literal percent sign. Control characters are escaped and a
// colon in the first segment which doesn't end a scheme is part of the path.
func parseLenient(u string) (*url.URL, error) {
	u = escapeControls(escapeStrayPercents(u))
	if hasPathColon(u) {
		u = "./" + u
	}
	return url.Parse(u)
}

// hasPathColon reports whether the first segment of u contains a colon
// although it doesn't start with a valid scheme, like ":foo.js".
func hasPathColon(u string) bool {
	end := strings.IndexAny(u, "/?#")
	if end < 0 {
		end = len(u)
	}
	i := strings.IndexByte(u[:end], ':')
	if i < 0 {
		return false
	}
	return !isScheme(u[:i])
}

func isScheme(s string) bool {
	if s == "" || !isASCIILetter(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !isASCIILetter(c) && !('0' <= c && c <= '9') && c != '+' && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

func escapeControls(s string) string {
	if strings.IndexFunc(s, func(r rune) bool { return r < 0x20 || r == 0x7f }) < 0 {
		return s
	}
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f {
			sb.WriteByte('%')
			sb.WriteByte(hex[c>>4])
			sb.WriteByte(hex[c&0xf])
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func escapeStrayPercents(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && !(i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2])) {
			sb.WriteString("%25")
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// FetchKey turns a resolved url into the key handed to a Fetcher. A '+'
// is never decoded as a space, and escape sequences which don't decode to
// valid UTF-8 are left untouched.
func FetchKey(u string) string {
	u = strings.ReplaceAll(u, "+", "%2B")
	if decoded, err := url.PathUnescape(u); err == nil && utf8.ValidString(decoded) {
		return decoded
	}

	var sb strings.Builder
	sb.Grow(len(u))
	for i := 0; i < len(u); {
		if u[i] != '%' {
			sb.WriteByte(u[i])
			i++
			continue
		}
		// decode the longest run of escapes that forms valid UTF-8
		j := i
		var run []byte
		for j+2 < len(u) && u[j] == '%' && isHex(u[j+1]) && isHex(u[j+2]) {
			run = append(run, unhex(u[j+1])<<4|unhex(u[j+2]))
			j += 3
		}
		if len(run) > 0 && utf8.Valid(run) {
			sb.Write(run)
			i = j
			continue
		}
		sb.WriteByte(u[i])
		i++
	}
	return sb.String()
}
