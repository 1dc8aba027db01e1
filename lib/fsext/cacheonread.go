package fsext

import (
	"time"

	"github.com/spf13/afero"
)

// CacheOnReadFs is a wrapper around afero.CacheOnReadFs which also gives
// access to the layer used as cache, so what was read can be listed later.
type CacheOnReadFs struct {
	afero.Fs
	cache afero.Fs
}

// NewCacheOnReadFs returns a new CacheOnReadFs. A cacheTime of zero means
// the cached copy never expires.
func NewCacheOnReadFs(base, layer afero.Fs, cacheTime time.Duration) afero.Fs {
	return CacheOnReadFs{
		Fs:    afero.NewCacheOnReadFs(base, layer, cacheTime),
		cache: layer,
	}
}

// GetCachingFs returns the afero.Fs being used for cache
func (c CacheOnReadFs) GetCachingFs() afero.Fs {
	return c.cache
}
