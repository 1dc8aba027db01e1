package srcmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/guregu/null.v3"
)

// xssiPrefix is prepended by some servers to JSON responses to prevent them
// from being included as scripts.
const xssiPrefix = `)]}'`

// Document is a parsed source map. Only the fields needed to locate the
// original sources are extracted; the complete document is available as Raw
// and Value.
type Document struct {
	Version        null.Int
	File           null.String
	SourceRoot     null.String
	Sources        []string
	SourcesContent []null.String

	Raw   json.RawMessage
	Value interface{}
}

// MarshalJSON returns the document as it was parsed.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.Raw, nil
}

// ParseMapText parses text as a source map, stripping a leading )]}' first.
func ParseMapText(text string) (*Document, error) {
	text = strings.TrimPrefix(text, xssiPrefix)

	var value interface{}
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}

	doc := &Document{Raw: json.RawMessage(text), Value: value}
	switch v := value.(type) {
	case map[string]interface{}:
		if err := doc.extract([]byte(text)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
		}
	case []interface{}:
		// nothing to extract, it has no sources
	default:
		return nil, fmt.Errorf("%w: expected an object or an array but got %T", ErrMalformedDocument, v)
	}
	return doc, nil
}

func (d *Document) extract(data []byte) error {
	var fields struct {
		Version        json.RawMessage `json:"version"`
		File           json.RawMessage `json:"file"`
		SourceRoot     json.RawMessage `json:"sourceRoot"`
		Sources        json.RawMessage `json:"sources"`
		SourcesContent json.RawMessage `json:"sourcesContent"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	d.Version = optionalInt(fields.Version)
	d.File = optionalString(fields.File)
	d.SourceRoot = optionalString(fields.SourceRoot)

	if len(fields.Sources) != 0 && string(fields.Sources) != "null" {
		var sources []json.RawMessage
		if err := json.Unmarshal(fields.Sources, &sources); err != nil {
			return errors.New(`"sources" has to be an array`)
		}
		d.Sources = make([]string, len(sources))
		for i, s := range sources {
			if err := json.Unmarshal(s, &d.Sources[i]); err != nil || string(s) == "null" {
				return fmt.Errorf(`"sources[%d]" has to be a string but is %s`, i, s)
			}
		}
	}

	// anything but an array of strings is treated as missing content
	var content []json.RawMessage
	if err := json.Unmarshal(fields.SourcesContent, &content); err == nil {
		d.SourcesContent = make([]null.String, len(content))
		for i, c := range content {
			d.SourcesContent[i] = optionalString(c)
		}
	}
	return nil
}

// Content returns the embedded content of the source at index, if any.
func (d *Document) Content(index int) null.String {
	if index < 0 || index >= len(d.SourcesContent) {
		return null.String{}
	}
	return d.SourcesContent[index]
}

func optionalString(raw json.RawMessage) null.String {
	var s string
	if len(raw) == 0 || raw[0] != '"' || json.Unmarshal(raw, &s) != nil {
		return null.String{}
	}
	return null.StringFrom(s)
}

func optionalInt(raw json.RawMessage) null.Int {
	var i int64
	if len(raw) == 0 || string(raw) == "null" || json.Unmarshal(raw, &i) != nil {
		return null.Int{}
	}
	return null.IntFrom(i)
}
