package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/smresolve/cmd/state"
	"github.com/liuxd6825/smresolve/errext"
	"github.com/liuxd6825/smresolve/errext/exitcodes"
	"github.com/liuxd6825/smresolve/loader"
	"github.com/liuxd6825/smresolve/srcmap"
)

type scanResult struct {
	Page    string          `json:"page" yaml:"page"`
	Scripts []resolveResult `json:"scripts" yaml:"scripts"`
}

// problems returns how many scripts couldn't be resolved or have sources
// which couldn't be retrieved.
func (r scanResult) problems() int {
	var n int
	for _, s := range r.Scripts {
		if s.Error != "" || s.Failed > 0 {
			n++
		}
	}
	return n
}

type cmdScan struct {
	gs *state.GlobalState
}

func (c *cmdScan) run(cmd *cobra.Command, args []string) error {
	res, err := newResolution(c.gs, getConfig(cmd.Flags()))
	if err != nil {
		return err
	}

	var result scanResult
	err = res.run(func(ctx context.Context) error {
		page, err := res.readInput(ctx, args[0])
		if err != nil {
			return err
		}
		result.Page = page.URL.String()

		scripts, err := loader.ScriptURLs(result.Page, page.Data, "")
		if err != nil {
			return errext.WithExitCodeIfNone(err, exitcodes.ResolveFailed)
		}
		c.gs.Logger.WithFields(logrus.Fields{"page": result.Page, "scripts": len(scripts)}).Debug("Found scripts")

		result.Scripts = make([]resolveResult, len(scripts))
		g, gctx := errgroup.WithContext(ctx)
		if n := res.conf.Concurrency.Int64; n > 0 {
			g.SetLimit(int(n))
		}
		for i, script := range scripts {
			g.Go(func() error {
				// every goroutine writes only to its own index
				result.Scripts[i] = c.resolveScript(gctx, res, script)
				// only cancellation stops the other scripts
				return gctx.Err()
			})
		}
		return g.Wait()
	})
	if err != nil {
		return err
	}

	printed, err := printStructured(c.gs, res.conf.Output.String, result)
	if err != nil {
		return err
	}
	if !printed {
		newUI(c.gs).printScanResults(result.Page, result.Scripts)
	}

	if n := result.problems(); n > 0 {
		return errext.WithHint(
			errext.WithExitCodeIfNone(
				fmt.Errorf("%d of %d scripts couldn't be resolved completely", n, len(result.Scripts)),
				exitcodes.SourcesIncomplete,
			),
			"run resolve on a single script for the details",
		)
	}
	return nil
}

func (c *cmdScan) resolveScript(ctx context.Context, res *resolution, script string) resolveResult {
	result := resolveResult{Code: script, Sources: []sourceResult{}}
	logger := c.gs.Logger.WithField("script", script)

	code, err := res.loader.Fetch(ctx, srcmap.FetchKey(script))
	if err != nil {
		logger.WithError(err).Debug("Couldn't retrieve the script")
		result.Error = err.Error()
		return result
	}

	resolved, err := res.resolver.ResolveFull(ctx, null.StringFrom(string(code)), script, res.conf.SourceOptions())
	switch {
	case err != nil:
		logger.WithError(err).Debug("Couldn't resolve the source map")
		var serr *srcmap.Error
		if errors.As(err, &serr) && serr.Reference.URL.Valid {
			result.MapURL = serr.Reference.URL.String
		}
		result.Error = err.Error()
	case resolved == nil:
		logger.Debug("The script has no source map")
	default:
		result = newResolveResult(script, resolved, res.conf.IncludeContent.Bool)
	}
	return result
}

func getCmdScan(gs *state.GlobalState) *cobra.Command {
	c := &cmdScan{gs: gs}

	scanCmd := &cobra.Command{
		Use:   "scan [flags] page",
		Short: "Resolve the source maps of every script of a page",
		Long: `Resolve the source maps of every script of an html page.

The page can be a local path, an http(s) url or "-" to read from stdin. Every
<script src> of it is retrieved and its source map and sources are resolved.`,
		Example: getExampleText(gs, `
  # List which scripts of a site ship source maps
  {{.}} scan https://example.com/

  # Get everything as yaml, including the content of the sources
  {{.}} scan -o yaml --include-content https://example.com/`[1:]),
		Args: exactArgsWithMsg(1, "arg should either be \"-\", if reading the page from stdin, or a path or url to the page"),
		RunE: c.run,
	}
	scanCmd.Flags().SortFlags = false
	scanCmd.Flags().AddFlagSet(configFlagSet())

	return scanCmd
}
