package srcmap

import "context"

// Fetcher retrieves the content behind a url. The url it gets is already
// percent-decoded and has Windows paths normalized, so it can be used as a
// key for a filesystem or a cache directly.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc is a function which implements Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// TextFetcher adapts a blocking function which returns text to a Fetcher.
// The context is not passed on, so it can't cancel fn.
func TextFetcher(fn func(url string) (string, error)) Fetcher {
	return FetcherFunc(func(_ context.Context, url string) ([]byte, error) {
		text, err := fn(url)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	})
}
