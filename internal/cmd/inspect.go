package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sourcemap/sourcemap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"

	"github.com/liuxd6825/smresolve/cmd/state"
	"github.com/liuxd6825/smresolve/errext"
	"github.com/liuxd6825/smresolve/errext/exitcodes"
	"github.com/liuxd6825/smresolve/srcmap"
)

type mapPosition struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// parsePosition parses line:column, with a 1-based line and 0-based column
// the way browsers report them.
func parsePosition(s string) (*mapPosition, error) {
	line, column, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("position %q has to be line:column", s)
	}
	l, err := strconv.Atoi(line)
	if err != nil || l < 1 {
		return nil, fmt.Errorf("invalid line %q, it has to be a number starting from 1", line)
	}
	c, err := strconv.Atoi(column)
	if err != nil || c < 0 {
		return nil, fmt.Errorf("invalid column %q, it has to be a number starting from 0", column)
	}
	return &mapPosition{Line: l, Column: c}, nil
}

type originalPosition struct {
	Source string `json:"source" yaml:"source"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Line   int    `json:"line" yaml:"line"`
	Column int    `json:"column" yaml:"column"`
}

type mapSummary struct {
	Code              string `json:"code" yaml:"code"`
	SourceMappingURL  string `json:"sourceMappingURL,omitempty" yaml:"sourceMappingURL,omitempty"`
	MapURL            string `json:"mapURL,omitempty" yaml:"mapURL,omitempty"`
	Inline            bool   `json:"inline" yaml:"inline"`
	SourcesRelativeTo string `json:"sourcesRelativeTo" yaml:"sourcesRelativeTo"`
	Version           int64  `json:"version,omitempty" yaml:"version,omitempty"`
	File              string `json:"file,omitempty" yaml:"file,omitempty"`
	SourceRoot        string `json:"sourceRoot,omitempty" yaml:"sourceRoot,omitempty"`
	Sources           int    `json:"sources" yaml:"sources"`
	SourcesContent    int    `json:"sourcesContent" yaml:"sourcesContent"`
	Names             int64  `json:"names" yaml:"names"`
	Mappings          int    `json:"mappings" yaml:"mappings"`
	Sections          int64  `json:"sections,omitempty" yaml:"sections,omitempty"`
	// Valid is false if the mappings of the map can't be decoded.
	Valid bool   `json:"valid" yaml:"valid"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	Position *mapPosition      `json:"position,omitempty" yaml:"position,omitempty"`
	Original *originalPosition `json:"original,omitempty" yaml:"original,omitempty"`
}

func newMapSummary(codeURL string, ref *srcmap.Reference) mapSummary {
	doc := ref.Map
	summary := mapSummary{
		Code:              codeURL,
		SourceMappingURL:  ref.SourceMappingURL.String,
		MapURL:            ref.URL.String,
		Inline:            ref.SourceMappingURL.Valid && !ref.URL.Valid,
		SourcesRelativeTo: ref.SourcesRelativeTo,
		Version:           doc.Version.Int64,
		File:              doc.File.String,
		SourceRoot:        doc.SourceRoot.String,
		Sources:           len(doc.Sources),
		Names:             gjson.GetBytes(doc.Raw, "names.#").Int(),
		Mappings:          len(gjson.GetBytes(doc.Raw, "mappings").String()),
		Sections:          gjson.GetBytes(doc.Raw, "sections.#").Int(),
	}
	for i := range doc.Sources {
		if doc.Content(i).Valid {
			summary.SourcesContent++
		}
	}
	return summary
}

type cmdInspect struct {
	gs       *state.GlobalState
	isMap    bool
	codeURL  string
	position string
}

func (c *cmdInspect) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.BoolVar(&c.isMap, "map", false, "the argument is the source map itself instead of code annotated with one")
	flags.StringVar(&c.codeURL, "code-url", "", "resolve relative references against this url instead of the location of the argument")
	flags.StringVar(&c.position, "position", "", "look up the original position of a generated line:column")
	flags.AddFlagSet(configFlagSet())
	return flags
}

func (c *cmdInspect) run(cmd *cobra.Command, args []string) error {
	var pos *mapPosition
	if c.position != "" {
		var err error
		if pos, err = parsePosition(c.position); err != nil {
			return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
		}
	}

	res, err := newResolution(c.gs, getConfig(cmd.Flags()))
	if err != nil {
		return err
	}

	var summary mapSummary
	err = res.run(func(ctx context.Context) error {
		src, err := res.readInput(ctx, args[0])
		if err != nil {
			return err
		}
		code, codeURL := res.input(src, c.isMap, c.codeURL)

		ref, err := res.resolver.ResolveMapReference(ctx, code, codeURL)
		if err != nil {
			return resolveError(err)
		}
		if ref == nil {
			return noSourceMapError(codeURL)
		}
		summary = newMapSummary(codeURL, ref)
		return c.decodeMappings(&summary, ref, pos, res.resolver.Options.PathStyle)
	})
	if err != nil {
		return err
	}

	printed, err := printStructured(c.gs, res.conf.Output.String, summary)
	if err != nil {
		return err
	}
	if !printed {
		c.printSummary(summary)
	}
	return nil
}

// decodeMappings checks that the mappings of the map can be decoded and looks
// up pos in them, if it's set.
func (c *cmdInspect) decodeMappings(
	summary *mapSummary, ref *srcmap.Reference, pos *mapPosition, style srcmap.PathStyle,
) error {
	consumer, err := sourcemap.Parse(srcmap.NormalizePath(style, ref.SourcesRelativeTo), ref.Map.Raw)
	if err != nil {
		summary.Error = err.Error()
		if pos != nil {
			return errext.WithExitCodeIfNone(
				fmt.Errorf("couldn't decode the mappings of the source map: %w", err), exitcodes.ResolveFailed)
		}
		c.gs.Logger.WithError(err).Warn("The mappings of the source map can't be decoded")
		return nil
	}
	summary.Valid = true

	if pos == nil {
		return nil
	}
	summary.Position = pos
	source, name, line, column, ok := consumer.Source(pos.Line, pos.Column)
	if !ok {
		return errext.WithExitCodeIfNone(
			fmt.Errorf("no mapping for the generated position %d:%d", pos.Line, pos.Column), exitcodes.ResolveFailed)
	}
	summary.Original = &originalPosition{Source: source, Name: name, Line: line, Column: column}
	return nil
}

func (c *cmdInspect) printSummary(s mapSummary) {
	u := newUI(c.gs)
	mapURL := s.MapURL
	if s.Inline {
		mapURL = "inline"
	}
	valid := u.colorize(statusColors[statusFetched], "yes")
	if !s.Valid {
		valid = u.colorize(statusColors[statusFailed], "no, "+s.Error)
	}
	kv := [][2]string{
		{"code", s.Code},
		{"map", mapURL},
		{"sources relative to", s.SourcesRelativeTo},
		{"version", strconv.FormatInt(s.Version, 10)},
		{"file", s.File},
		{"source root", s.SourceRoot},
		{"sources", fmt.Sprintf("%d, %d with embedded content", s.Sources, s.SourcesContent)},
		{"names", strconv.FormatInt(s.Names, 10)},
		{"mappings", formatSize(s.Mappings)},
	}
	if s.Sections > 0 {
		kv = append(kv, [2]string{"sections", strconv.FormatInt(s.Sections, 10)})
	}
	kv = append(kv, [2]string{"valid", valid})
	if s.Original != nil {
		original := fmt.Sprintf("%s:%d:%d", s.Original.Source, s.Original.Line, s.Original.Column)
		if s.Original.Name != "" {
			original += " (" + s.Original.Name + ")"
		}
		kv = append(kv, [2]string{fmt.Sprintf("%d:%d", s.Position.Line, s.Position.Column), original})
	}

	var sb strings.Builder
	u.printKeyValues(&sb, kv)
	printToStdout(c.gs, sb.String())
}

func getCmdInspect(gs *state.GlobalState) *cobra.Command {
	c := &cmdInspect{gs: gs}

	inspectCmd := &cobra.Command{
		Use:   "inspect [flags] code",
		Short: "Inspect the source map of code",
		Long: `Inspect the source map of code without retrieving its sources.

Prints where the map is, what it contains and whether its mappings can be decoded.
With --position, the original position of a generated one is looked up.`,
		Example: getExampleText(gs, `
  # Show where the map of a deployed script is and what's in it
  {{.}} inspect https://example.com/static/js/main.js

  # Find the original location of an error reported at line 1, column 3810
  {{.}} inspect --position 1:3810 dist/app.min.js`[1:]),
		Args: exactArgsWithMsg(1, "arg should either be \"-\", if reading code from stdin, or a path or url to the code"),
		RunE: c.run,
	}
	inspectCmd.Flags().SortFlags = false
	inspectCmd.Flags().AddFlagSet(c.flagSet())

	return inspectCmd
}
