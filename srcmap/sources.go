package srcmap

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/guregu/null.v3"
)

// SourceOptions control how the sources of a map are resolved.
type SourceOptions struct {
	// SourceRoot overrides the sourceRoot of the map when valid.
	SourceRoot null.String
	// IgnoreSourceRoot makes sources resolve against the map url directly,
	// ignoring the sourceRoot of the map. It has no effect if SourceRoot is valid.
	IgnoreSourceRoot bool
}

// sourceRoot returns the root to prefix sources of doc with, or an empty
// string if there is none.
func (o SourceOptions) sourceRoot(doc *Document) string {
	var root string
	switch {
	case o.SourceRoot.Valid:
		root = o.SourceRoot.String
	case o.IgnoreSourceRoot:
	case doc.SourceRoot.Valid:
		root = doc.SourceRoot.String
	}
	// a root pointing to a file makes no sense, /scripts/sub is the same as /scripts/sub/
	if root != "" && !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root
}

// SourceContent is the content of a single source, either the text or the
// error which prevented it from being retrieved.
type SourceContent struct {
	Text string
	Err  error
}

// Failed returns true if the content couldn't be retrieved.
func (c SourceContent) Failed() bool {
	return c.Err != nil
}

// MarshalJSON encodes the content as a string or as an object with an error field.
func (c SourceContent) MarshalJSON() ([]byte, error) {
	if c.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{c.Err.Error()})
	}
	return json.Marshal(c.Text)
}

// Sources are the resolved sources of a map. Both slices are indexed the same
// way as the sources of the map.
type Sources struct {
	SourcesResolved []string        `json:"sourcesResolved"`
	SourcesContent  []SourceContent `json:"sourcesContent"`
}

// Failed returns the number of sources whose content couldn't be retrieved.
func (s Sources) Failed() int {
	var n int
	for _, c := range s.SourcesContent {
		if c.Failed() {
			n++
		}
	}
	return n
}

// ResolveSource returns the absolute url of the source at index of doc, for
// a map located at mapURL.
func ResolveSource(doc *Document, mapURL string, index int, opts SourceOptions) (string, error) {
	if index < 0 || index >= len(doc.Sources) {
		return "", fmt.Errorf("source index %d out of range [0, %d)", index, len(doc.Sources))
	}
	return resolveSource(mapURL, opts.sourceRoot(doc), doc.Sources[index])
}

func resolveSource(mapURL, root, source string) (string, error) {
	if root == "" {
		return ResolveChain(mapURL, source)
	}
	return ResolveChain(mapURL, root, source)
}

// ResolveAllSources resolves the url of every source of doc and retrieves the
// content of the ones which aren't embedded in the map. A source which can't
// be retrieved doesn't fail the whole resolution, the error is recorded as its
// content instead.
func (r *Resolver) ResolveAllSources(
	ctx context.Context, doc *Document, mapURL string, opts SourceOptions,
) Sources {
	result := Sources{
		SourcesResolved: make([]string, len(doc.Sources)),
		SourcesContent:  make([]SourceContent, len(doc.Sources)),
	}
	if len(doc.Sources) == 0 {
		return result
	}

	mapURL = NormalizePath(r.Options.PathStyle, mapURL)
	root := opts.sourceRoot(doc)
	logger := r.logger.WithFields(logrus.Fields{"mapURL": mapURL, "sourceRoot": root})
	startTime := time.Now()

	var g errgroup.Group
	if r.Options.Concurrency > 0 {
		g.SetLimit(r.Options.Concurrency)
	}
	for i, source := range doc.Sources {
		fullURL, err := resolveSource(mapURL, root, source)
		if err != nil {
			result.SourcesResolved[i] = source
			result.SourcesContent[i] = SourceContent{Err: err}
			continue
		}
		result.SourcesResolved[i] = fullURL

		if content := doc.Content(i); content.Valid {
			result.SourcesContent[i] = SourceContent{Text: content.String}
			continue
		}

		g.Go(func() error {
			// every goroutine writes only to its own index
			result.SourcesContent[i] = r.fetchSource(ctx, logger, fullURL)
			return nil
		})
	}
	_ = g.Wait()

	logger.WithFields(logrus.Fields{
		"sources": len(doc.Sources),
		"failed":  result.Failed(),
		"t":       time.Since(startTime),
	}).Debug("Resolved sources")
	return result
}

func (r *Resolver) fetchSource(ctx context.Context, logger logrus.FieldLogger, fullURL string) SourceContent {
	fetchURL := FetchKey(fullURL)
	data, err := r.fetcher.Fetch(ctx, fetchURL)
	if err != nil {
		err = fmt.Errorf("%w source %q: %w", ErrRetrieval, fetchURL, err)
		logger.WithError(err).Debug("Couldn't retrieve source content")
		return SourceContent{Err: err}
	}
	return SourceContent{Text: string(data)}
}
