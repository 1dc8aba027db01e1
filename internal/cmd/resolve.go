package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/smresolve/cmd/state"
	"github.com/liuxd6825/smresolve/errext"
	"github.com/liuxd6825/smresolve/errext/exitcodes"
	"github.com/liuxd6825/smresolve/lib/fsext"
	"github.com/liuxd6825/smresolve/srcmap"
)

type cmdResolve struct {
	gs      *state.GlobalState
	isMap   bool
	codeURL string
}

func (c *cmdResolve) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.BoolVar(&c.isMap, "map", false, "the argument is the source map itself instead of code annotated with one")
	flags.StringVar(&c.codeURL, "code-url", "", "resolve relative references against this url instead of the location of the argument")
	flags.String("out-dir", "", "write the resolved sources below this directory")
	flags.AddFlagSet(configFlagSet())
	return flags
}

func (c *cmdResolve) run(cmd *cobra.Command, args []string) error {
	cliConf := getConfig(cmd.Flags())
	cliConf.OutDir = getNullString(cmd.Flags(), "out-dir")

	res, err := newResolution(c.gs, cliConf)
	if err != nil {
		return err
	}

	var result resolveResult
	err = res.run(func(ctx context.Context) error {
		src, err := res.readInput(ctx, args[0])
		if err != nil {
			return err
		}
		code, codeURL := res.input(src, c.isMap, c.codeURL)

		resolved, err := res.resolver.ResolveFull(ctx, code, codeURL, res.conf.SourceOptions())
		if err != nil {
			return resolveError(err)
		}
		if resolved == nil {
			return noSourceMapError(codeURL)
		}

		if res.conf.OutDir.String != "" {
			if err := c.writeSources(res.conf.OutDir.String, resolved); err != nil {
				return err
			}
		}
		result = newResolveResult(codeURL, resolved, res.conf.IncludeContent.Bool)
		return nil
	})
	if err != nil {
		return err
	}

	printed, err := printStructured(c.gs, res.conf.Output.String, result)
	if err != nil {
		return err
	}
	if !printed {
		newUI(c.gs).printResolveResult(result)
	}

	if result.Failed > 0 {
		return errext.WithHint(
			errext.WithExitCodeIfNone(
				fmt.Errorf("%d of %d sources couldn't be retrieved", result.Failed, len(result.Sources)),
				exitcodes.SourcesIncomplete,
			),
			"the sources which were retrieved are still part of the output",
		)
	}
	return nil
}

// writeSources writes the content of every retrieved source to a file below
// dir, named after the resolved url of the source.
func (c *cmdResolve) writeSources(dir string, resolved *srcmap.Resolved) error {
	pwd, err := c.gs.Getwd()
	if err != nil {
		return err
	}
	dir = fsext.Abs(pwd, dir)

	var written int
	for i, u := range resolved.SourcesResolved {
		content := resolved.SourcesContent[i]
		if content.Failed() {
			continue
		}
		p := fsext.OutputPath(dir, u)
		if err := fsext.WriteFile(c.gs.FS, p, []byte(content.Text), 0o644); err != nil {
			return errext.WithExitCodeIfNone(fmt.Errorf("couldn't write source %q: %w", u, err), exitcodes.ResolveFailed)
		}
		c.gs.Logger.WithField("path", p).Debug("Wrote source")
		written++
	}
	c.gs.Logger.WithFields(logrus.Fields{"dir": dir, "sources": written}).Info("Wrote the sources")
	return nil
}

func getCmdResolve(gs *state.GlobalState) *cobra.Command {
	c := &cmdResolve{gs: gs}

	exampleText := getExampleText(gs, `
  # Resolve the sources of a local bundle
  {{.}} resolve dist/app.min.js

  # Resolve a deployed script and print the result as json
  {{.}} resolve -o json https://example.com/static/js/main.js

  # Resolve a map directly, writing the sources to ./src
  {{.}} resolve --map --out-dir src dist/app.min.js.map

  # Read the code from stdin, resolving relative references against its real location
  cat main.js | {{.}} resolve --code-url https://example.com/static/js/main.js -`[1:])

	resolveCmd := &cobra.Command{
		Use:   "resolve [flags] code",
		Short: "Resolve the source map of code and its sources",
		Long: `Resolve the source map of code and its sources.

The source map is located with the sourceMappingURL annotation of the code, which
can be a local path, an http(s) url or "-" to read from stdin. Inline data: maps
are decoded, external ones are retrieved. Every source of the map is then resolved
against its sourceRoot and retrieved unless its content is embedded in the map.`,
		Example: exampleText,
		Args:    exactArgsWithMsg(1, "arg should either be \"-\", if reading code from stdin, or a path or url to the code"),
		RunE:    c.run,
	}
	resolveCmd.Flags().SortFlags = false
	resolveCmd.Flags().AddFlagSet(c.flagSet())

	return resolveCmd
}
