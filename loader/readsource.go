package loader

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"

	"github.com/liuxd6825/smresolve/lib/fsext"
)

// ReadSource reads the code or map given on the command line, which may be
// a local path, a url, or "-" for stdin. Content read from stdin is kept as
// if it was a file named "-" in the working directory, so references
// relative to it resolve against the working directory.
func (l *Loader) ReadSource(ctx context.Context, src string, stdin io.Reader) (*SourceData, error) {
	if src == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading from stdin: %w", err)
		}
		stdinPath := fsext.Abs(l.opts.Pwd, "-")
		if cached, ok := l.filesystems["file"].(fsext.CacheOnReadFs); ok {
			err = fsext.WriteFile(cached.GetCachingFs(), stdinPath, data, 0o644)
			if err != nil {
				return nil, fmt.Errorf("caching data read from -: %w", err)
			}
		}
		data, err = decodeText(data)
		if err != nil {
			return nil, err
		}
		return &SourceData{URL: &url.URL{Scheme: "file", Path: filepath.ToSlash(stdinPath)}, Data: data}, nil
	}

	u, err := Resolve(l.opts.Pwd, src)
	if err != nil {
		return nil, err
	}
	data, err := l.Load(ctx, u)
	if err != nil {
		return nil, err
	}
	return &SourceData{URL: u, Data: data}, nil
}
