package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/smresolve/cmd/state"
	"github.com/liuxd6825/smresolve/errext"
	"github.com/liuxd6825/smresolve/errext/exitcodes"
	"github.com/liuxd6825/smresolve/loader"
	"github.com/liuxd6825/smresolve/srcmap"
)

// resolution holds what every command resolving source maps needs.
type resolution struct {
	gs       *state.GlobalState
	conf     Config
	loader   *loader.Loader
	resolver *srcmap.Resolver
}

func newResolution(gs *state.GlobalState, cliConf Config) (*resolution, error) {
	conf, err := getConsolidatedConfig(gs, cliConf)
	if err != nil {
		return nil, err
	}
	gs.Logger.WithFields(logrus.Fields{
		"concurrency": conf.Concurrency.Int64,
		"timeout":     conf.Timeout.String,
		"rps":         conf.RPS.Float64,
		"retries":     conf.Retries.Int64,
	}).Debug("Consolidated the configuration")

	pwd, err := gs.Getwd()
	if err != nil {
		return nil, err
	}

	l := loader.New(gs.Logger, loader.CreateFilesystems(gs.FS), loader.Options{
		Pwd:          pwd,
		UserAgent:    conf.UserAgent.String,
		RPS:          conf.RPS.Float64,
		Retries:      int(conf.Retries.Int64),
		RetryBackoff: defaultRetryBackoff,
	})
	r := srcmap.New(gs.Logger, l)
	r.Options = srcmap.Options{
		PathStyle:   conf.PathStyle(),
		Concurrency: int(conf.Concurrency.Int64),
	}

	return &resolution{gs: gs, conf: conf, loader: l, resolver: r}, nil
}

// run calls fn with a context which is cancelled when the timeout expires
// or when the process is interrupted.
func (res *resolution) run(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(res.gs.Ctx, res.conf.TimeoutDuration())
	defer cancel()

	var interrupted atomic.Bool
	stop := handleAbortSignals(res.gs, func(sig os.Signal) {
		res.gs.Logger.WithField("sig", sig).Warn("Stopping, press Ctrl+C again to exit immediately")
		interrupted.Store(true)
		cancel()
	})
	defer stop()

	err := fn(ctx)
	switch {
	case interrupted.Load():
		return &errext.InterruptError{Reason: errext.AbortSignal}
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		hint := fmt.Sprintf("the timeout of %s was reached, it can be raised with --timeout", res.conf.Timeout.String)
		if err == nil {
			res.gs.Logger.Warn(hint)
			return nil
		}
		return errext.WithHint(err, hint)
	}
	return err
}

// readInput reads the code or map given as argument.
func (res *resolution) readInput(ctx context.Context, arg string) (*loader.SourceData, error) {
	src, err := res.loader.ReadSource(ctx, arg, res.gs.Stdin)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("couldn't read %s: %w", arg, err), exitcodes.ResolveFailed)
	}
	return src, nil
}

// input returns what to resolve from a read argument: the code, unless isMap
// is set, and the url to resolve against. The read data is served for that
// url from then on, so a map given with --map isn't retrieved a second time
// and codeURL doesn't need to point to anything real.
func (res *resolution) input(src *loader.SourceData, isMap bool, codeURL string) (null.String, string) {
	if codeURL == "" {
		codeURL = src.URL.String()
	}

	opts := res.resolver.Options
	res.resolver = srcmap.New(res.gs.Logger, &inputFetcher{
		key:     srcmap.FetchKey(srcmap.NormalizePath(opts.PathStyle, codeURL)),
		data:    src.Data,
		Fetcher: res.loader,
	})
	res.resolver.Options = opts

	if isMap {
		return null.String{}, codeURL
	}
	return null.StringFrom(string(src.Data)), codeURL
}

// inputFetcher serves the input for its own key and passes everything else on.
type inputFetcher struct {
	key  string
	data []byte
	srcmap.Fetcher
}

func (f *inputFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	if key == f.key {
		return f.data, nil
	}
	return f.Fetcher.Fetch(ctx, key)
}

func resolveError(err error) error {
	return errext.WithExitCodeIfNone(err, exitcodes.ResolveFailed)
}

func noSourceMapError(codeURL string) error {
	return errext.WithHint(
		errext.WithExitCodeIfNone(fmt.Errorf("%s has no sourceMappingURL annotation", codeURL), exitcodes.NoSourceMap),
		"if the location of the source map is known, pass the map itself with --map",
	)
}
