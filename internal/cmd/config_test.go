package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/smresolve/errext"
	"github.com/liuxd6825/smresolve/errext/exitcodes"
	"github.com/liuxd6825/smresolve/internal/cmd/tests"
	"github.com/liuxd6825/smresolve/lib/fsext"
	"github.com/liuxd6825/smresolve/srcmap"
)

func TestConfigApply(t *testing.T) {
	t.Parallel()

	conf := NewConfig().Apply(Config{
		Concurrency: null.IntFrom(2),
		SourceRoot:  null.StringFrom("/src/"),
	}).Apply(Config{
		Concurrency: null.IntFrom(4),
		Output:      null.StringFrom(outputJSON),
	})

	assert.Equal(t, null.IntFrom(4), conf.Concurrency)
	assert.Equal(t, null.StringFrom("/src/"), conf.SourceRoot)
	assert.Equal(t, null.StringFrom(outputJSON), conf.Output)
	// untouched defaults stay invalid so they can still be told apart
	assert.Equal(t, null.NewInt(2, false), conf.Retries)
	assert.Equal(t, time.Minute, conf.TimeoutDuration())
}

func TestConfigSourceOptions(t *testing.T) {
	t.Parallel()

	conf := NewConfig().Apply(Config{
		IgnoreSourceRoot: null.BoolFrom(true),
		WindowsPaths:     null.BoolFrom(true),
	})
	assert.Equal(t, srcmap.SourceOptions{IgnoreSourceRoot: true}, conf.SourceOptions())
	assert.Equal(t, srcmap.PathStyleWindows, conf.PathStyle())

	conf = conf.Apply(Config{WindowsPaths: null.BoolFrom(false)})
	assert.Equal(t, srcmap.PathStylePOSIX, conf.PathStyle())
}

func TestGetConfigFromFlags(t *testing.T) {
	t.Parallel()

	flags := configFlagSet()
	require.NoError(t, flags.Parse([]string{"--concurrency", "3", "--source-root", "/s", "-o", "yaml"}))

	conf := getConfig(flags)
	assert.Equal(t, null.IntFrom(3), conf.Concurrency)
	assert.Equal(t, null.StringFrom("/s"), conf.SourceRoot)
	assert.Equal(t, null.StringFrom(outputYAML), conf.Output)
	assert.False(t, conf.Retries.Valid)
	assert.False(t, conf.Timeout.Valid)
}

func TestReadEnvConfig(t *testing.T) {
	t.Parallel()

	conf, err := readEnvConfig(map[string]string{
		"SMRESOLVE_CONCURRENCY":        "16",
		"SMRESOLVE_IGNORE_SOURCE_ROOT": "true",
		"SMRESOLVE_RPS":                "2.5",
		"SMRESOLVE_TIMEOUT":            "10s",
		"UNRELATED":                    "x",
	})
	require.NoError(t, err)
	assert.Equal(t, null.IntFrom(16), conf.Concurrency)
	assert.Equal(t, null.BoolFrom(true), conf.IgnoreSourceRoot)
	assert.Equal(t, null.FloatFrom(2.5), conf.RPS)
	assert.Equal(t, null.StringFrom("10s"), conf.Timeout)
	assert.False(t, conf.Output.Valid)

	_, err = readEnvConfig(map[string]string{"SMRESOLVE_CONCURRENCY": "many"})
	require.Error(t, err)
}

func TestReadDiskConfig(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		name     string
		content  string
		expected Config
		err      string
	}{
		"json": {
			name:     "config.json",
			content:  `{"concurrency":3,"userAgent":"ua"}`,
			expected: Config{Concurrency: null.IntFrom(3), UserAgent: null.StringFrom("ua")},
		},
		"yaml": {
			name:     "config.yaml",
			content:  "concurrency: 3\nsourceRoot: /src/\nrps: 1.5\n",
			expected: Config{Concurrency: null.IntFrom(3), SourceRoot: null.StringFrom("/src/"), RPS: null.FloatFrom(1.5)},
		},
		"invalid json": {
			name:    "config.json",
			content: `{"concurrency":`,
			err:     "couldn't parse the configuration",
		},
		"invalid yaml": {
			name:    "config.yml",
			content: "concurrency: [",
			err:     "couldn't parse the configuration",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ts := tests.NewGlobalTestState(t)
			ts.Flags.ConfigFilePath = filepath.Join(ts.Cwd, tc.name)
			require.NoError(t, fsext.WriteFile(ts.FS, ts.Flags.ConfigFilePath, []byte(tc.content), 0o644))

			conf, err := readDiskConfig(ts.GlobalState)
			if tc.err != "" {
				require.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, conf)
		})
	}

	t.Run("missing default", func(t *testing.T) {
		t.Parallel()

		ts := tests.NewGlobalTestState(t)
		conf, err := readDiskConfig(ts.GlobalState)
		require.NoError(t, err)
		assert.Equal(t, Config{}, conf)
	})
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateConfig(NewConfig()))

	err := validateConfig(NewConfig().Apply(Config{
		Concurrency: null.IntFrom(-1),
		Retries:     null.IntFrom(-2),
		RPS:         null.FloatFrom(-1),
		Timeout:     null.StringFrom("0s"),
		Output:      null.StringFrom("xml"),
	}))
	require.Error(t, err)
	for _, msg := range []string{
		"concurrency can't be negative",
		"retries can't be negative",
		"rps can't be negative",
		"timeout has to be positive",
		`unknown output format "xml"`,
	} {
		assert.ErrorContains(t, err, msg)
	}

	var ecerr errext.HasExitCode
	require.ErrorAs(t, err, &ecerr)
	assert.Equal(t, exitcodes.InvalidConfig, ecerr.ExitCode())

	var herr errext.HasHint
	require.ErrorAs(t, err, &herr)
	assert.Contains(t, herr.Hint(), "SMRESOLVE_")
}
