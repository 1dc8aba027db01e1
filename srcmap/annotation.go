package srcmap

import (
	"time"

	"github.com/dlclark/regexp2"
	"gopkg.in/guregu/null.v3"
)

const matchTimeout = 5 * time.Second

const annotationValue = `[#@] sourceMappingURL=([^\s'"]*)`

//nolint:gochecknoglobals
var annotationRegex = func() *regexp2.Regexp {
	re := regexp2.MustCompile(
		`(?:`+
			`/\*`+
			`(?:\s*\r?\n(?://)?)?`+
			`(?:`+annotationValue+`)`+
			`\s*`+
			`\*/`+
			`|`+
			`//(?:`+annotationValue+`)`+
			`)`+
			`\s*`,
		regexp2.ECMAScript)
	re.MatchTimeout = matchTimeout
	return re
}()

// ScanAnnotation returns the value of the last sourceMappingURL annotation in
// text, whether written as a line or as a block comment. The result isn't
// valid if there is no annotation at all and is an empty string if the
// annotation has no value.
func ScanAnnotation(text string) (null.String, error) {
	var last *regexp2.Match
	m, err := annotationRegex.FindStringMatch(text)
	for m != nil && err == nil {
		last = m
		m, err = annotationRegex.FindNextMatch(m)
	}
	if err != nil {
		return null.String{}, err
	}
	if last == nil {
		return null.String{}, nil
	}

	for _, n := range []int{1, 2} {
		if g := last.GroupByNumber(n); g != nil && len(g.Captures) > 0 && g.String() != "" {
			return null.StringFrom(g.String()), nil
		}
	}
	return null.StringFrom(""), nil
}
