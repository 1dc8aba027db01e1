package errext

import "errors"

// HasHint is an error with a human readable hint attached, usually naming the
// input which caused it or how it could be fixed.
type HasHint interface {
	error
	Hint() string
}

// WithHint attaches hint to err. A hint already present somewhere in the chain
// of err is kept, the result reads "new hint (old hint)". Nil stays nil.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return withHint{err, hint}
}

type withHint struct {
	error
	hint string
}

func (wh withHint) Unwrap() error {
	return wh.error
}

func (wh withHint) Hint() string {
	var oldhint HasHint
	if errors.As(wh.error, &oldhint) {
		return wh.hint + " (" + oldhint.Hint() + ")"
	}
	return wh.hint
}

var _ HasHint = withHint{}
