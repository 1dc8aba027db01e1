package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/smresolve/lib/fsext"
	"github.com/liuxd6825/smresolve/lib/testutils"
)

func newTestLoader(t *testing.T, fs fsext.Fs, opts Options) *Loader {
	t.Helper()
	logger, _ := testutils.NewLogger(t)
	if opts.Pwd == "" {
		opts.Pwd = "/work"
	}
	return New(logger, CreateFilesystems(fs), opts)
}

func TestResolve(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("local paths below are unix ones")
	}

	testdata := map[string]struct {
		key                        string
		scheme, host, path, rawQry string
	}{
		"relative":           {"a.js", "file", "", "/work/a.js", ""},
		"parent":             {"../a.js", "file", "", "/a.js", ""},
		"absolute":           {"/abs/x.js", "file", "", "/abs/x.js", ""},
		"file url":           {"file:///abs/x.js", "file", "", "/abs/x.js", ""},
		"file localhost":     {"file://localhost/abs/x.js", "file", "", "/abs/x.js", ""},
		"decoded file":       {"built files/operators:+-<>%.coffee", "file", "", "/work/built files/operators:+-<>%.coffee", ""},
		"http":               {"http://example.com/a b.js?v=1#top", "http", "example.com", "/a b.js", "v=1"},
		"scheme relative":    {"//example.com/a.js", "https", "example.com", "/a.js", ""},
		"upper case scheme":  {"HTTPS://example.com", "https", "example.com", "/", ""},
		"query with a space": {"https://example.com/a.js?q=a b", "https", "example.com", "/a.js", "q=a%20b"},
	}
	for name, data := range testdata {
		data := data
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			u, err := Resolve("/work", data.key)
			require.NoError(t, err)
			assert.Equal(t, data.scheme, u.Scheme)
			assert.Equal(t, data.host, u.Host)
			assert.Equal(t, data.path, u.Path)
			assert.Equal(t, data.rawQry, u.RawQuery)
		})
	}

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve("/work", "")
		require.Error(t, err)

		_, err = Resolve("/work", "webpack:///src/a.js")
		require.ErrorIs(t, err, ErrUnsupportedScheme)

		_, err = Resolve("/work", "http:///a.js")
		require.ErrorContains(t, err, "has no host")
	})
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("local paths below are unix ones")
	}

	fs := fsext.NewMemMapFs()
	require.NoError(t, fsext.WriteFile(fs, "/work/a.js", []byte("var a;"), 0o644))
	require.NoError(t, fsext.WriteFile(fs, "/work/bom.js", []byte("\xef\xbb\xbfvar b;"), 0o644))
	require.NoError(t, fsext.WriteFile(fs, "/work/utf16.js", []byte("\xff\xfea\x00b\x00"), 0o644))
	l := newTestLoader(t, fs, Options{})

	testdata := map[string]string{
		"a.js":              "var a;",
		"/work/a.js":        "var a;",
		"file:///work/a.js": "var a;",
		"bom.js":            "var b;",
		"utf16.js":          "ab",
	}
	for key, expected := range testdata {
		key, expected := key, expected
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			data, err := l.Fetch(context.Background(), key)
			require.NoError(t, err)
			assert.Equal(t, expected, string(data))
		})
	}

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		_, err := l.Fetch(context.Background(), "missing.js")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cached", func(t *testing.T) {
		t.Parallel()
		_, err := l.Fetch(context.Background(), "/work/a.js")
		require.NoError(t, err)
		cache := l.filesystems["file"].(fsext.CacheOnReadFs).GetCachingFs() //nolint:forcetypeassert
		ok, err := fsext.Exists(cache, "/work/a.js")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

type countingHandler struct {
	requests atomic.Int64
	handler  http.HandlerFunc
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.requests.Add(1)
	h.handler(w, r)
}

func TestLoadRemote(t *testing.T) {
	t.Parallel()

	t.Run("cached", func(t *testing.T) {
		t.Parallel()
		h := &countingHandler{handler: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "smresolve-test", r.Header.Get("User-Agent"))
			assert.Equal(t, acceptEncoding, r.Header.Get("Accept-Encoding"))
			_, _ = w.Write([]byte(`{"version":3}`))
		}}
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)

		l := newTestLoader(t, fsext.NewMemMapFs(), Options{Client: srv.Client(), UserAgent: "smresolve-test"})
		for i := 0; i < 3; i++ {
			data, err := l.Fetch(context.Background(), srv.URL+"/maps/a.js.map")
			require.NoError(t, err)
			assert.Equal(t, `{"version":3}`, string(data))
		}
		assert.EqualValues(t, 1, h.requests.Load())

		// the query is part of what's cached
		_, err := l.Fetch(context.Background(), srv.URL+"/maps/a.js.map?v=2")
		require.NoError(t, err)
		assert.EqualValues(t, 2, h.requests.Load())
	})

	testdata := map[string]struct {
		statuses []int
		retries  int
		err      string
		requests int64
	}{
		"not found":         {[]int{http.StatusNotFound}, 3, "not found", 1},
		"forbidden":         {[]int{http.StatusForbidden}, 3, "wrong status code (403)", 1},
		"recovers":          {[]int{http.StatusServiceUnavailable, http.StatusOK}, 2, "", 2},
		"too many requests": {[]int{http.StatusTooManyRequests, http.StatusOK}, 1, "", 2},
		"keeps failing":     {[]int{http.StatusInternalServerError}, 2, "wrong status code (500)", 3},
		"no retries":        {[]int{http.StatusBadGateway}, 0, "wrong status code (502)", 1},
	}
	for name, data := range testdata {
		data := data
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := &countingHandler{}
			h.handler = func(w http.ResponseWriter, _ *http.Request) {
				i := int(h.requests.Load()) - 1
				if i >= len(data.statuses) {
					i = len(data.statuses) - 1
				}
				w.WriteHeader(data.statuses[i])
				_, _ = w.Write([]byte("content"))
			}
			srv := httptest.NewServer(h)
			t.Cleanup(srv.Close)

			l := newTestLoader(t, fsext.NewMemMapFs(), Options{
				Client:       srv.Client(),
				Retries:      data.retries,
				RetryBackoff: time.Millisecond,
			})
			content, err := l.Fetch(context.Background(), srv.URL+"/a.js")
			if data.err == "" {
				require.NoError(t, err)
				assert.Equal(t, "content", string(content))
			} else {
				require.ErrorContains(t, err, data.err)
			}
			assert.Equal(t, data.requests, h.requests.Load())
		})
	}

	t.Run("not found is ErrNotFound", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(srv.Close)

		l := newTestLoader(t, fsext.NewMemMapFs(), Options{Client: srv.Client()})
		_, err := l.Fetch(context.Background(), srv.URL+"/a.js")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rate limited", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("content"))
		}))
		t.Cleanup(srv.Close)

		l := newTestLoader(t, fsext.NewMemMapFs(), Options{Client: srv.Client(), RPS: 0.001})
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_, err := l.Fetch(ctx, srv.URL+"/a.js")
		require.NoError(t, err)
		// the only token was used by the first request and the next one is far away
		_, err = l.Fetch(ctx, srv.URL+"/b.js")
		require.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		l := newTestLoader(t, fsext.NewMemMapFs(), Options{
			Client: srv.Client(), Retries: 5, RetryBackoff: time.Hour,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := l.Fetch(ctx, srv.URL+"/a.js")
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestReadSource(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("local paths below are unix ones")
	}

	fs := fsext.NewMemMapFs()
	require.NoError(t, fsext.WriteFile(fs, "/work/dist/app.js", []byte("app"), 0o644))
	l := newTestLoader(t, fs, Options{})

	src, err := l.ReadSource(context.Background(), "dist/app.js", nil)
	require.NoError(t, err)
	assert.Equal(t, "file:///work/dist/app.js", src.URL.String())
	assert.Equal(t, "app", string(src.Data))

	src, err = l.ReadSource(context.Background(), "-", strings.NewReader("from stdin"))
	require.NoError(t, err)
	assert.Equal(t, "file:///work/-", src.URL.String())
	assert.Equal(t, "from stdin", string(src.Data))

	// what was read from stdin can be loaded again
	data, err := l.Fetch(context.Background(), src.URL.String())
	require.NoError(t, err)
	assert.Equal(t, "from stdin", string(data))

	_, err = l.ReadSource(context.Background(), "dist/missing.js", nil)
	require.ErrorIs(t, err, ErrNotFound)
}
