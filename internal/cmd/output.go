package cmd

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/smresolve/cmd/state"
	"github.com/liuxd6825/smresolve/srcmap"
)

// Status of a single source.
const (
	statusInline  = "inline"
	statusFetched = "fetched"
	statusFailed  = "failed"
)

type sourceResult struct {
	Source  string  `json:"source" yaml:"source"`
	URL     string  `json:"url" yaml:"url"`
	Status  string  `json:"status" yaml:"status"`
	Size    int     `json:"size" yaml:"size"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
	Content *string `json:"content,omitempty" yaml:"content,omitempty"`
}

type resolveResult struct {
	Code              string         `json:"code" yaml:"code"`
	SourceMappingURL  string         `json:"sourceMappingURL,omitempty" yaml:"sourceMappingURL,omitempty"`
	MapURL            string         `json:"mapURL,omitempty" yaml:"mapURL,omitempty"`
	Inline            bool           `json:"inline" yaml:"inline"`
	SourcesRelativeTo string         `json:"sourcesRelativeTo,omitempty" yaml:"sourcesRelativeTo,omitempty"`
	Sources           []sourceResult `json:"sources" yaml:"sources"`
	Failed            int            `json:"failed" yaml:"failed"`
	// only set by scan, for scripts which couldn't be resolved at all
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newResolveResult(codeURL string, resolved *srcmap.Resolved, includeContent bool) resolveResult {
	result := resolveResult{
		Code:              codeURL,
		SourceMappingURL:  resolved.SourceMappingURL.String,
		MapURL:            resolved.URL.String,
		Inline:            !resolved.URL.Valid,
		SourcesRelativeTo: resolved.SourcesRelativeTo,
		Sources:           make([]sourceResult, len(resolved.SourcesResolved)),
		Failed:            resolved.Failed(),
	}
	for i, u := range resolved.SourcesResolved {
		content := resolved.SourcesContent[i]
		source := sourceResult{URL: u, Status: statusFetched}
		if i < len(resolved.Map.Sources) {
			source.Source = resolved.Map.Sources[i]
		}
		switch {
		case content.Failed():
			source.Status = statusFailed
			source.Error = content.Err.Error()
		case resolved.Map.Content(i).Valid:
			source.Status = statusInline
		}
		if !content.Failed() {
			source.Size = len(content.Text)
			if includeContent {
				text := content.Text
				source.Content = &text
			}
		}
		result.Sources[i] = source
	}
	return result
}

// printStructured prints v as json or yaml, which it returns false for any
// other format.
func printStructured(gs *state.GlobalState, format string, v interface{}) (bool, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case outputJSON:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	case outputYAML:
		data, err = yaml.Marshal(v)
	default:
		return false, nil
	}
	if err != nil {
		return true, fmt.Errorf("couldn't encode the %s output: %w", format, err)
	}
	printToStdout(gs, string(data))
	return true, nil
}
