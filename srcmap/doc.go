// Package srcmap locates the source map of generated code and resolves the
// original sources listed in it.
//
// The package doesn't retrieve anything by itself, every map or source which
// isn't embedded is fetched through the Fetcher given to New. See the loader
// package for a Fetcher reading from local files and remote hosts.
package srcmap
