package srcmap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"
)

func TestParseMapText(t *testing.T) {
	t.Parallel()

	t.Run("fields", func(t *testing.T) {
		t.Parallel()
		doc, err := ParseMapText(`{"version":3,"file":"out.js","sourceRoot":"/src","sources":["a.js","b.js"],` +
			`"sourcesContent":["a",null],"mappings":"AAAA"}`)
		require.NoError(t, err)
		assert.Equal(t, null.IntFrom(3), doc.Version)
		assert.Equal(t, null.StringFrom("out.js"), doc.File)
		assert.Equal(t, null.StringFrom("/src"), doc.SourceRoot)
		assert.Equal(t, []string{"a.js", "b.js"}, doc.Sources)
		assert.Equal(t, null.StringFrom("a"), doc.Content(0))
		assert.False(t, doc.Content(1).Valid)
		assert.False(t, doc.Content(2).Valid)
		assert.False(t, doc.Content(-1).Valid)
	})

	t.Run("xssi prefix", func(t *testing.T) {
		t.Parallel()
		doc, err := ParseMapText(mapXSSISafe)
		require.NoError(t, err)
		assert.Equal(t, []string{"foo.js"}, doc.Sources)

		data, err := json.Marshal(doc)
		require.NoError(t, err)
		assert.JSONEq(t, mapSimple, string(data))
	})

	t.Run("value", func(t *testing.T) {
		t.Parallel()
		doc, err := ParseMapText(mapSimple)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{
			"mappings": "AAAA",
			"sources":  []interface{}{"foo.js"},
			"names":    []interface{}{},
		}, doc.Value)
	})

	t.Run("optional fields", func(t *testing.T) {
		t.Parallel()
		doc, err := ParseMapText(`{"version":null,"file":1,"sourceRoot":null,"sourcesContent":"nope"}`)
		require.NoError(t, err)
		assert.False(t, doc.Version.Valid)
		assert.False(t, doc.File.Valid)
		assert.False(t, doc.SourceRoot.Valid)
		assert.Empty(t, doc.Sources)
		assert.Empty(t, doc.SourcesContent)
	})

	t.Run("array", func(t *testing.T) {
		t.Parallel()
		doc, err := ParseMapText(`[1,2]`)
		require.NoError(t, err)
		assert.Empty(t, doc.Sources)
		assert.Equal(t, []interface{}{float64(1), float64(2)}, doc.Value)
	})

	invalid := map[string]string{
		"not json":           "invalid JSON",
		"empty":              "",
		"only prefix":        ")]}'",
		"number":             "42",
		"string":             `"map"`,
		"null":               "null",
		"sources not array":  `{"sources":"foo.js"}`,
		"source not string":  `{"sources":["foo.js",1]}`,
		"source null":        `{"sources":[null]}`,
		"trailing garbage":   `{"sources":[]} x`,
	}
	for name, text := range invalid {
		text := text
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			doc, err := ParseMapText(text)
			require.ErrorIs(t, err, ErrMalformedDocument)
			assert.Nil(t, doc)
		})
	}
}
