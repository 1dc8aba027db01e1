// Package fsext provides extended file system functions
package fsext

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// JoinFilePath is a wrapper around filepath.Join which never lets p escape b.
// Starting with go 1.20 on Windows, Clean does not modify the volume name
// other than to replace occurrences of "/" with `\`, so a leading slash is added:
// go.1.19: filepath.Join("\\c:", "test")  // \c:\test
// go.1.20: filepath.Join("\\c:", "test")  // \c:test
func JoinFilePath(b, p string) string {
	return filepath.Join(b, filepath.Clean("/"+p))
}

// Abs returns an absolute representation of path.
//
// Absolute paths starting from the current drive on windows like
// `\users\noname\...` are accepted as they are. If the path is not absolute
// it's joined with root, which is assumed to be a directory.
func Abs(root, path string) string {
	if path == "" {
		path = "."
	}
	if path[0] != '/' && path[0] != '\\' && !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)

	if path[0:1] != FilePathSeparator {
		path = FilePathSeparator + path
	}

	return path
}

// OutputPath returns where the content of rawURL should be written below dir.
// The host, if any, becomes the first directory and the path of the url the
// rest; nothing it returns is outside of dir.
func OutputPath(dir, rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" {
		p = u.Host + path.Clean("/"+u.Path)
		if u.Opaque != "" {
			p = u.Opaque
		}
		if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file" {
			p = u.Scheme + "/" + strings.TrimLeft(p, "/")
		}
	}
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	if p == "/" {
		p = "/index"
	}
	return JoinFilePath(dir, filepath.FromSlash(p))
}
