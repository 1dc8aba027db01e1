package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/liuxd6825/smresolve/cmd/state"
)

//nolint:gochecknoglobals
var (
	sizePrinter  = message.NewPrinter(language.English)
	statusColors = map[string]*color.Color{
		statusInline:  color.New(color.FgCyan),
		statusFetched: color.New(color.FgGreen),
		statusFailed:  color.New(color.FgRed),
	}
	faint = color.New(color.Faint)
)

// ui renders tables and other human readable output to stdout.
type ui struct {
	gs    *state.GlobalState
	color bool
}

func newUI(gs *state.GlobalState) *ui {
	return &ui{gs: gs, color: !gs.Flags.NoColor && gs.Stdout.IsTTY}
}

func (u *ui) colorize(c *color.Color, s string) string {
	if !u.color || c == nil {
		return s
	}
	// fatih/color decides on its own based on os.Stdout otherwise
	forced := *c
	forced.EnableColor()
	return forced.Sprint(s)
}

func (u *ui) newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// shorten cuts s in the middle so it fits into width characters.
func shorten(s string, width int) string {
	if width < 8 || len(s) <= width {
		return s
	}
	half := (width - 3) / 2
	return s[:half] + "..." + s[len(s)-(width-3-half):]
}

func formatSize(n int) string {
	return sizePrinter.Sprintf("%d B", n)
}

func (u *ui) printKeyValues(w io.Writer, kv [][2]string) {
	width := 0
	for _, p := range kv {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	for _, p := range kv {
		_, _ = fmt.Fprintf(w, "%s %s\n", u.colorize(faint, fmt.Sprintf("%-*s", width+1, p[0]+":")), p[1])
	}
}

func (u *ui) printResolveResult(result resolveResult) {
	var sb strings.Builder
	mapURL := result.MapURL
	if result.Inline {
		mapURL = "inline"
	}
	u.printKeyValues(&sb, [][2]string{
		{"code", result.Code},
		{"map", mapURL},
		{"sources relative to", result.SourcesRelativeTo},
		{"sources", fmt.Sprintf("%d, %d failed", len(result.Sources), result.Failed)},
	})
	sb.WriteString("\n")

	urlWidth := u.gs.Stdout.TermWidth() - 30
	table := u.newTable(&sb, "#", "Source", "Status", "Size")
	for i, source := range result.Sources {
		status := u.colorize(statusColors[source.Status], source.Status)
		if source.Error != "" {
			status += " " + source.Error
		}
		size := ""
		if source.Status != statusFailed {
			size = formatSize(source.Size)
		}
		table.Append([]string{strconv.Itoa(i), shorten(source.URL, urlWidth), status, size})
	}
	table.Render()

	printToStdout(u.gs, sb.String())
}

func (u *ui) printScanResults(page string, results []resolveResult) {
	var sb strings.Builder
	u.printKeyValues(&sb, [][2]string{
		{"page", page},
		{"scripts", strconv.Itoa(len(results))},
	})
	sb.WriteString("\n")

	urlWidth := (u.gs.Stdout.TermWidth() - 24) / 2
	table := u.newTable(&sb, "Script", "Map", "Sources", "Failed")
	for _, result := range results {
		mapURL := result.MapURL
		switch {
		case result.Error != "":
			mapURL = u.colorize(statusColors[statusFailed], result.Error)
		case result.Inline:
			mapURL = u.colorize(statusColors[statusInline], "inline")
		case result.MapURL == "":
			mapURL = u.colorize(faint, "none")
		default:
			mapURL = shorten(mapURL, urlWidth)
		}
		failed := strconv.Itoa(result.Failed)
		if result.Failed > 0 {
			failed = u.colorize(statusColors[statusFailed], failed)
		}
		table.Append([]string{shorten(result.Code, urlWidth), mapURL, strconv.Itoa(len(result.Sources)), failed})
	}
	table.Render()

	printToStdout(u.gs, sb.String())
}
