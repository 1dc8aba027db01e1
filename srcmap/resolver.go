package srcmap

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v3"
)

// Reference describes where the source map of a piece of code is and, once
// it has been parsed, the map itself.
type Reference struct {
	// SourceMappingURL is the raw value of the annotation. It isn't valid when
	// the location of the map was given directly.
	SourceMappingURL null.String `json:"sourceMappingURL"`
	// URL is the absolute url of the map. It isn't valid for inline maps.
	URL null.String `json:"url"`
	// SourcesRelativeTo is the url the sources of the map are relative to.
	SourcesRelativeTo string `json:"sourcesRelativeTo"`
	// Map is the parsed map.
	Map *Document `json:"map"`
	// MapText is the map text as it was last seen, for errors that's the
	// value which couldn't be decoded or parsed.
	MapText null.String `json:"-"`
}

// Resolved is a Reference together with its resolved sources.
type Resolved struct {
	Reference
	Sources
}

// Options are options to the Resolver.
type Options struct {
	// PathStyle is how local paths given as code or map urls are written.
	PathStyle PathStyle
	// Concurrency limits how many sources are fetched at the same time, zero
	// means no limit.
	Concurrency int
}

// A Resolver locates source maps and their sources, retrieving content with a Fetcher.
type Resolver struct {
	logger  logrus.FieldLogger
	fetcher Fetcher
	Options Options
}

// New returns a new Resolver.
func New(logger logrus.FieldLogger, fetcher Fetcher) *Resolver {
	return &Resolver{
		logger:  logger,
		fetcher: fetcher,
	}
}

// ResolveMapReference locates and parses the source map of code, which is
// located at codeURL. If code isn't valid, codeURL is taken to be the url of
// the map itself. A nil Reference without an error is returned if code has no
// sourceMappingURL annotation.
func (r *Resolver) ResolveMapReference(ctx context.Context, code null.String, codeURL string) (*Reference, error) {
	if !code.Valid {
		// the map location is reported as given, only the fetch sees the normalized path
		ref := &Reference{
			URL:               null.StringFrom(codeURL),
			SourcesRelativeTo: codeURL,
		}
		if err := r.loadMap(ctx, ref, NormalizePath(r.Options.PathStyle, codeURL)); err != nil {
			return nil, err
		}
		return ref, nil
	}
	codeURL = NormalizePath(r.Options.PathStyle, codeURL)

	sourceMappingURL, err := ScanAnnotation(code.String)
	if err != nil {
		return nil, newError(&Reference{SourcesRelativeTo: codeURL}, err)
	}
	if !sourceMappingURL.Valid || sourceMappingURL.String == "" {
		r.logger.WithField("codeURL", codeURL).Debug("No sourceMappingURL annotation found")
		return nil, nil //nolint:nilnil
	}

	ref, err := classify(sourceMappingURL.String, codeURL)
	if err != nil {
		return nil, err
	}
	if ref.Map != nil {
		r.logger.WithField("codeURL", codeURL).Debug("Using inline source map")
		return ref, nil
	}
	if err := r.loadMap(ctx, ref, ref.URL.String); err != nil {
		return nil, err
	}
	return ref, nil
}

// loadMap fetches and parses the map at mapURL into ref.
func (r *Resolver) loadMap(ctx context.Context, ref *Reference, mapURL string) error {
	fetchURL := FetchKey(mapURL)
	logger := r.logger.WithFields(logrus.Fields{
		"sourceMappingURL": ref.SourceMappingURL,
		"url":              fetchURL,
	})
	logger.Debug("Fetching source map...")
	startTime := time.Now()

	data, err := r.fetcher.Fetch(ctx, fetchURL)
	if err != nil {
		return newError(ref, fmt.Errorf("%w source map %q: %w", ErrRetrieval, fetchURL, err))
	}
	ref.MapText = null.StringFrom(string(data))

	doc, err := ParseMapText(ref.MapText.String)
	if err != nil {
		return newError(ref, err)
	}
	ref.Map = doc

	logger.WithFields(logrus.Fields{
		"t":   time.Since(startTime),
		"len": len(data),
	}).Debug("Fetched source map")
	return nil
}

// ResolveFull resolves the source map of code like ResolveMapReference and
// then all of its sources like ResolveAllSources.
func (r *Resolver) ResolveFull(
	ctx context.Context, code null.String, codeURL string, opts SourceOptions,
) (*Resolved, error) {
	ref, err := r.ResolveMapReference(ctx, code, codeURL)
	if err != nil || ref == nil {
		return nil, err
	}
	return &Resolved{
		Reference: *ref,
		Sources:   r.ResolveAllSources(ctx, ref.Map, ref.SourcesRelativeTo, opts),
	}, nil
}
