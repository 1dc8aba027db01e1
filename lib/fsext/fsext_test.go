package fsext

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbs(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("paths below are unix ones")
	}
	testdata := []struct {
		root, path, expected string
	}{
		{"/home/user", "a.js", "/home/user/a.js"},
		{"/home/user", "../a.js", "/home/a.js"},
		{"/home/user", "/tmp/./a.js", "/tmp/a.js"},
		{"/home/user", "", "/home/user"},
	}
	for _, data := range testdata {
		data := data
		t.Run(data.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, data.expected, Abs(data.root, data.path))
		})
	}
}

func TestOutputPath(t *testing.T) {
	t.Parallel()
	testdata := map[string]string{
		"http://example.com/src/a.js":       "out/example.com/src/a.js",
		"https://example.com/../../etc/pwd": "out/example.com/etc/pwd",
		"file:///home/user/src/b.ts":        "out/home/user/src/b.ts",
		"webpack:///./src/c.js":             "out/webpack/src/c.js",
		"../../relative.js":                 "out/relative.js",
		"http://example.com":                "out/example.com",
		"":                                  "out/index",
	}
	for input, expected := range testdata {
		input, expected := input, expected
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, filepath.FromSlash(expected), OutputPath("out", input))
		})
	}
}

func TestCacheOnReadFs(t *testing.T) {
	t.Parallel()
	base := NewMemMapFs()
	require.NoError(t, WriteFile(base, "/dir/a.js", []byte("a"), 0o644))

	fs := NewCacheOnReadFs(base, NewMemMapFs(), 0)
	data, err := ReadFile(fs, "/dir/a.js")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	cached, err := Exists(fs.(CacheOnReadFs).GetCachingFs(), "/dir/a.js") //nolint:forcetypeassert
	require.NoError(t, err)
	assert.True(t, cached)
}
