// Package loader retrieves the content behind the urls a source map points
// to, from the local file system or over http(s).
package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liuxd6825/smresolve/lib/fsext"
	"github.com/liuxd6825/smresolve/srcmap"
)

var (
	// ErrNotFound is returned when there is nothing at the requested url.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedScheme is returned for urls which aren't local files or
	// http(s) ones, e.g. webpack:// sources.
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// SourceData wraps a source file; data and url.
type SourceData struct {
	Data []byte
	URL  *url.URL
}

// Options are options to the Loader.
type Options struct {
	// Pwd is the directory relative local paths are resolved against.
	Pwd string
	// Client is used for http(s) requests, http.DefaultClient if nil.
	Client *http.Client
	// UserAgent is sent with every request if not empty.
	UserAgent string
	// RPS limits the number of requests per second, zero means no limit.
	RPS float64
	// Retries is how many more times a request failing with a temporary
	// error is attempted.
	Retries int
	// RetryBackoff is the base wait between attempts, it doubles each time.
	RetryBackoff time.Duration
}

// Loader loads local files and remote urls, caching everything it loads so
// the same url is never requested twice.
type Loader struct {
	logger      logrus.FieldLogger
	filesystems map[string]fsext.Fs
	client      *http.Client
	limiter     limiter
	opts        Options
}

var _ srcmap.Fetcher = (*Loader)(nil)

// New returns a new Loader which reads local files and caches remote ones
// using filesystems, see CreateFilesystems.
func New(logger logrus.FieldLogger, filesystems map[string]fsext.Fs, opts Options) *Loader {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Pwd == "" {
		opts.Pwd = "/"
	}
	return &Loader{
		logger:      logger,
		filesystems: filesystems,
		client:      client,
		limiter:     newLimiter(opts.RPS),
		opts:        opts,
	}
}

// Fetch implements srcmap.Fetcher.
func (l *Loader) Fetch(ctx context.Context, key string) ([]byte, error) {
	u, err := Resolve(l.opts.Pwd, key)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, u)
}

// Resolve turns key, a decoded url or a local path, into a url the Loader can
// load. Local paths which aren't absolute are resolved against pwd.
func Resolve(pwd, key string) (*url.URL, error) {
	if key == "" {
		return nil, errors.New("local or remote path required")
	}

	if strings.HasPrefix(key, "//") {
		key = "https:" + key
	}

	scheme, rest, ok := strings.Cut(key, "://")
	if !ok || !isScheme(scheme) {
		// c:\ and friends end up here too
		return &url.URL{Scheme: "file", Path: filepath.ToSlash(fsext.Abs(pwd, key))}, nil
	}

	switch strings.ToLower(scheme) {
	case "file":
		// file://localhost/a and file:///a are the same thing
		if host, p, found := strings.Cut(rest, "/"); found && (host == "" || host == "localhost") {
			rest = "/" + p
		}
		return &url.URL{Scheme: "file", Path: rest}, nil
	case "http", "https":
		rest, _, _ = strings.Cut(rest, "#")
		hostPath, query, _ := strings.Cut(rest, "?")
		host, p, _ := strings.Cut(hostPath, "/")
		if host == "" {
			return nil, fmt.Errorf("%q has no host", key)
		}
		return &url.URL{
			Scheme:   strings.ToLower(scheme),
			Host:     host,
			Path:     "/" + p,
			RawQuery: strings.ReplaceAll(query, " ", "%20"),
		}, nil
	default:
		return nil, fmt.Errorf("%w %q, only file, http and https urls can be loaded", ErrUnsupportedScheme, scheme)
	}
}

// a single letter is a drive and not a scheme
func isScheme(s string) bool {
	if len(s) < 2 {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// Load returns the content at u, which has to be a url returned by Resolve.
func (l *Loader) Load(ctx context.Context, u *url.URL) ([]byte, error) {
	logger := l.logger.WithField("url", u)
	logger.Debug("Loading...")

	var data []byte
	var err error
	switch u.Scheme {
	case "file":
		data, err = l.loadFile(u)
	case "http", "https":
		data, err = l.loadRemote(ctx, logger, u)
	default:
		err = fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	return decodeText(data)
}

func (l *Loader) loadFile(u *url.URL) ([]byte, error) {
	pathOnFs := filepath.FromSlash(u.Path)
	if runtime.GOOS == "windows" && filepath.VolumeName(strings.TrimPrefix(u.Path, "/")) != "" {
		pathOnFs = filepath.FromSlash(strings.TrimPrefix(u.Path, "/"))
	}

	data, err := fsext.ReadFile(l.filesystems["file"], pathOnFs)
	if fsext.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pathOnFs)
	}
	return data, err
}

func (l *Loader) loadRemote(ctx context.Context, logger logrus.FieldLogger, u *url.URL) ([]byte, error) {
	fs := l.filesystems[u.Scheme]
	pathOnFs := cachePath(u)

	if data, err := fsext.ReadFile(fs, pathOnFs); err == nil {
		logger.Debug("Using cached copy")
		return data, nil
	}

	data, err := l.fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}
	if err := fsext.WriteFile(fs, pathOnFs, data, 0o644); err != nil {
		logger.WithError(err).Warn("Couldn't cache the fetched content")
	}
	return data, nil
}

// cachePath is where the content of u is kept in its scheme's filesystem.
func cachePath(u *url.URL) string {
	p := path.Clean("/" + u.Host + "/" + u.EscapedPath())
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}
