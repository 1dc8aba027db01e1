package srcmap

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"gopkg.in/guregu/null.v3"
)

//nolint:gochecknoglobals
var dataURIRegex = func() *regexp2.Regexp {
	re := regexp2.MustCompile(`^data:([^,;]*)(;[^,;]*)*(?:,(.*))?$`, regexp2.ECMAScript)
	re.MatchTimeout = matchTimeout
	return re
}()

const defaultMediaType = "text/plain"

// dataURI is a parsed data: url.
type dataURI struct {
	mediaType     string
	lastParameter string
	body          string
}

// parseDataURI returns nil if u isn't a data uri.
func parseDataURI(u string) (*dataURI, error) {
	m, err := dataURIRegex.FindStringMatch(u)
	if err != nil || m == nil {
		return nil, err
	}
	d := &dataURI{
		mediaType:     m.GroupByNumber(1).String(),
		lastParameter: m.GroupByNumber(2).String(),
		body:          m.GroupByNumber(3).String(),
	}
	if d.mediaType == "" {
		d.mediaType = defaultMediaType
	}
	return d, nil
}

// JSON text exchanged between systems has to be UTF-8 (RFC 8259, section 8.1),
// text/json is the non standard alias of application/json.
func isJSONMediaType(mediaType string) bool {
	return mediaType == "application/json" || mediaType == "text/json"
}

// classify decides whether the annotation found in the code at codeURL
// points to an external map or embeds it. Inline maps are decoded and parsed
// right away.
func classify(sourceMappingURL, codeURL string) (*Reference, error) {
	d, err := parseDataURI(sourceMappingURL)
	if err != nil {
		return nil, newError(&Reference{
			SourceMappingURL:  null.StringFrom(sourceMappingURL),
			SourcesRelativeTo: codeURL,
		}, err)
	}

	if d == nil {
		ref := &Reference{
			SourceMappingURL:  null.StringFrom(sourceMappingURL),
			SourcesRelativeTo: codeURL,
		}
		mapURL, err := ResolveChain(codeURL, sourceMappingURL)
		if err != nil {
			return nil, newError(ref, err)
		}
		ref.URL = null.StringFrom(mapURL)
		ref.SourcesRelativeTo = mapURL
		return ref, nil
	}

	ref := &Reference{
		SourceMappingURL:  null.StringFrom(sourceMappingURL),
		SourcesRelativeTo: codeURL,
		MapText:           null.StringFrom(d.body),
	}
	if !isJSONMediaType(d.mediaType) {
		return nil, newError(ref, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, d.mediaType))
	}

	text, err := d.decode()
	if err != nil {
		return nil, newError(ref, err)
	}
	ref.MapText = null.StringFrom(text)

	doc, err := ParseMapText(text)
	if err != nil {
		return nil, newError(ref, err)
	}
	ref.Map = doc
	return ref, nil
}

func (d *dataURI) decode() (string, error) {
	if d.lastParameter == ";base64" {
		return decodeBase64UTF8(d.body)
	}

	// '+' is a literal plus here, not a space as in form encoding
	text, err := url.PathUnescape(strings.ReplaceAll(d.body, "+", "%2B"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	// unlike the base64 form, a leading byte order mark is kept
	return validateUTF8(text, transform.Nop)
}

// decodeBase64UTF8 decodes s the way browsers' atob does, ignoring ASCII
// whitespace and missing padding, and then decodes the bytes as UTF-8.
func decodeBase64UTF8(s string) (string, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\f', '\r':
			return -1
		}
		return r
	}, s)
	if len(s)%4 == 0 {
		s = strings.TrimSuffix(strings.TrimSuffix(s, "="), "=")
	}

	b, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return validateUTF8(string(b), unicode.UTF8BOM.NewDecoder())
}

// validateUTF8 fails on any invalid byte sequence instead of replacing it
// and then runs s through dec.
func validateUTF8(s string, dec transform.Transformer) (string, error) {
	decoded, _, err := transform.String(transform.Chain(encoding.UTF8Validator, dec), s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return decoded, nil
}
