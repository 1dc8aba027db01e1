package srcmap

import (
	"errors"
	"fmt"
)

// Errors which a resolution can fail with. They are always wrapped, use errors.Is.
var (
	ErrUnsupportedMediaType = errors.New("unsupported data uri media type")
	ErrMalformedPayload     = errors.New("malformed data uri payload")
	ErrMalformedDocument    = errors.New("malformed source map")
	ErrRetrieval            = errors.New("couldn't retrieve")
	ErrInvalidURL           = errors.New("invalid url")
)

// Error is returned when the map document itself couldn't be established. It
// carries the reference as it was known at the moment of the failure.
type Error struct {
	Reference Reference
	err       error
}

func newError(ref *Reference, err error) *Error {
	return &Error{Reference: *ref, err: err}
}

func (e *Error) Error() string {
	return e.err.Error()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.err
}

// Hint names the annotation or url which caused the failure.
func (e *Error) Hint() string {
	switch {
	case e.Reference.URL.Valid:
		return fmt.Sprintf("source map url %q", e.Reference.URL.String)
	case e.Reference.SourceMappingURL.Valid:
		return fmt.Sprintf("sourceMappingURL annotation %q", truncate(e.Reference.SourceMappingURL.String, 80))
	default:
		return fmt.Sprintf("code at %q", e.Reference.SourcesRelativeTo)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
