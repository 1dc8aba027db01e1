package loader

import (
	"github.com/liuxd6825/smresolve/lib/fsext"
)

// CreateFilesystems creates the correct filesystem map for the loader:
// local files are read through a cache, remote content only lives in memory.
func CreateFilesystems(osfs fsext.Fs) map[string]fsext.Fs {
	return map[string]fsext.Fs{
		"file":  fsext.NewCacheOnReadFs(fsext.NewReadOnlyFs(osfs), fsext.NewMemMapFs(), 0),
		"http":  fsext.NewMemMapFs(),
		"https": fsext.NewMemMapFs(),
	}
}
