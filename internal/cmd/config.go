package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/smresolve/cmd/state"
	"github.com/liuxd6825/smresolve/errext"
	"github.com/liuxd6825/smresolve/errext/exitcodes"
	"github.com/liuxd6825/smresolve/lib/consts"
	"github.com/liuxd6825/smresolve/lib/fsext"
	"github.com/liuxd6825/smresolve/srcmap"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

const defaultRetryBackoff = 500 * time.Millisecond

// Config is the configuration of the resolution commands, it can come from
// a config file, the environment and flags.
type Config struct {
	SourceRoot       null.String `json:"sourceRoot" envconfig:"SMRESOLVE_SOURCE_ROOT"`
	IgnoreSourceRoot null.Bool   `json:"ignoreSourceRoot" envconfig:"SMRESOLVE_IGNORE_SOURCE_ROOT"`
	Concurrency      null.Int    `json:"concurrency" envconfig:"SMRESOLVE_CONCURRENCY"`
	IncludeContent   null.Bool   `json:"includeContent" envconfig:"SMRESOLVE_INCLUDE_CONTENT"`
	WindowsPaths     null.Bool   `json:"windowsPaths" envconfig:"SMRESOLVE_WINDOWS_PATHS"`
	Timeout          null.String `json:"timeout" envconfig:"SMRESOLVE_TIMEOUT"`
	RPS              null.Float  `json:"rps" envconfig:"SMRESOLVE_RPS"`
	Retries          null.Int    `json:"retries" envconfig:"SMRESOLVE_RETRIES"`
	UserAgent        null.String `json:"userAgent" envconfig:"SMRESOLVE_USER_AGENT"`
	Output           null.String `json:"output" envconfig:"SMRESOLVE_OUTPUT"`
	OutDir           null.String `json:"outDir" envconfig:"SMRESOLVE_OUT_DIR"`
}

// NewConfig returns a Config with the default values set.
func NewConfig() Config {
	return Config{
		IgnoreSourceRoot: null.NewBool(false, false),
		Concurrency:      null.NewInt(8, false),
		IncludeContent:   null.NewBool(false, false),
		WindowsPaths:     null.NewBool(srcmap.DefaultPathStyle() == srcmap.PathStyleWindows, false),
		Timeout:          null.NewString("1m", false),
		RPS:              null.NewFloat(0, false),
		Retries:          null.NewInt(2, false),
		UserAgent:        null.NewString("smresolve/v"+consts.Version, false),
		Output:           null.NewString(outputTable, false),
	}
}

// Apply saves config non-zero config values from the passed config in the receiver.
func (c Config) Apply(cfg Config) Config {
	if cfg.SourceRoot.Valid {
		c.SourceRoot = cfg.SourceRoot
	}
	if cfg.IgnoreSourceRoot.Valid {
		c.IgnoreSourceRoot = cfg.IgnoreSourceRoot
	}
	if cfg.Concurrency.Valid {
		c.Concurrency = cfg.Concurrency
	}
	if cfg.IncludeContent.Valid {
		c.IncludeContent = cfg.IncludeContent
	}
	if cfg.WindowsPaths.Valid {
		c.WindowsPaths = cfg.WindowsPaths
	}
	if cfg.Timeout.Valid {
		c.Timeout = cfg.Timeout
	}
	if cfg.RPS.Valid {
		c.RPS = cfg.RPS
	}
	if cfg.Retries.Valid {
		c.Retries = cfg.Retries
	}
	if cfg.UserAgent.Valid {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.Output.Valid {
		c.Output = cfg.Output
	}
	if cfg.OutDir.Valid {
		c.OutDir = cfg.OutDir
	}
	return c
}

// TimeoutDuration returns the parsed Timeout, it has to be validated first.
func (c Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout.String)
	return d
}

// PathStyle returns how local paths are written.
func (c Config) PathStyle() srcmap.PathStyle {
	if c.WindowsPaths.Bool {
		return srcmap.PathStyleWindows
	}
	return srcmap.PathStylePOSIX
}

// SourceOptions returns the options sources are resolved with.
func (c Config) SourceOptions() srcmap.SourceOptions {
	return srcmap.SourceOptions{
		SourceRoot:       c.SourceRoot,
		IgnoreSourceRoot: c.IgnoreSourceRoot.Bool,
	}
}

func configFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.String("source-root", "", "resolve sources against this root instead of the sourceRoot of the map")
	flags.Bool("ignore-source-root", false, "resolve sources against the map url, ignoring the sourceRoot of the map")
	flags.Int64("concurrency", 8, "how many sources are fetched at the same time, 0 for no limit")
	flags.Bool("include-content", false, "include the content of the sources in the json and yaml output")
	flags.Bool("windows-paths", false, `treat local paths like C:\dir\file.js as Windows ones`)
	flags.String("timeout", "1m", "give up on the whole resolution after this long")
	flags.Float64("rps", 0, "limit remote requests to this many per second, 0 for no limit")
	flags.Int64("retries", 2, "retry failing remote requests this many times")
	flags.String("user-agent", "smresolve/v"+consts.Version, "user agent sent with remote requests")
	flags.StringP("output", "o", outputTable, "output format, one of table, json or yaml")
	return flags
}

func getConfig(flags *pflag.FlagSet) Config {
	return Config{
		SourceRoot:       getNullString(flags, "source-root"),
		IgnoreSourceRoot: getNullBool(flags, "ignore-source-root"),
		Concurrency:      getNullInt64(flags, "concurrency"),
		IncludeContent:   getNullBool(flags, "include-content"),
		WindowsPaths:     getNullBool(flags, "windows-paths"),
		Timeout:          getNullString(flags, "timeout"),
		RPS:              getNullFloat64(flags, "rps"),
		Retries:          getNullInt64(flags, "retries"),
		UserAgent:        getNullString(flags, "user-agent"),
		Output:           getNullString(flags, "output"),
	}
}

// readDiskConfig reads the JSON or YAML config file, if there is one. A
// missing file is only an error if a path other than the default was given.
func readDiskConfig(gs *state.GlobalState) (Config, error) {
	path := gs.Flags.ConfigFilePath
	exists, err := fsext.Exists(gs.FS, path)
	if err != nil {
		return Config{}, err
	}
	if !exists {
		if path != gs.DefaultFlags.ConfigFilePath {
			return Config{}, fmt.Errorf("config file %s doesn't exist", path)
		}
		return Config{}, nil
	}

	data, err := fsext.ReadFile(gs.FS, path)
	if err != nil {
		return Config{}, fmt.Errorf("couldn't load the configuration from %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw map[string]interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("couldn't parse the configuration from %q: %w", path, err)
		}
		if data, err = json.Marshal(raw); err != nil {
			return Config{}, fmt.Errorf("couldn't parse the configuration from %q: %w", path, err)
		}
	}

	var conf Config
	if err := json.Unmarshal(data, &conf); err != nil {
		return Config{}, fmt.Errorf("couldn't parse the configuration from %q: %w", path, err)
	}
	return conf, nil
}

func readEnvConfig(envMap map[string]string) (Config, error) {
	var conf Config
	err := envconfig.Process("", &conf, func(key string) (string, bool) {
		v, ok := envMap[key]
		return v, ok
	})
	return conf, err
}

// getConsolidatedConfig assembles the final configuration, later sources
// override earlier ones:
//   - defaults
//   - the config file
//   - environment variables
//   - flags
func getConsolidatedConfig(gs *state.GlobalState, cliConf Config) (Config, error) {
	fileConf, err := readDiskConfig(gs)
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	envConf, err := readEnvConfig(gs.Env)
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	conf := NewConfig().Apply(fileConf).Apply(envConf).Apply(cliConf)
	if err := validateConfig(conf); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func validateConfig(conf Config) error {
	var errs []error
	if conf.Concurrency.Int64 < 0 {
		errs = append(errs, fmt.Errorf("concurrency can't be negative but is %d", conf.Concurrency.Int64))
	}
	if conf.Retries.Int64 < 0 {
		errs = append(errs, fmt.Errorf("retries can't be negative but is %d", conf.Retries.Int64))
	}
	if conf.RPS.Float64 < 0 {
		errs = append(errs, fmt.Errorf("rps can't be negative but is %g", conf.RPS.Float64))
	}
	if d, err := time.ParseDuration(conf.Timeout.String); err != nil {
		errs = append(errs, fmt.Errorf("invalid timeout %q: %w", conf.Timeout.String, err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("timeout has to be positive but is %s", d))
	}
	switch conf.Output.String {
	case outputTable, outputJSON, outputYAML:
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q, it has to be one of table, json or yaml", conf.Output.String))
	}

	if len(errs) == 0 {
		return nil
	}
	return errext.WithHint(
		errext.WithExitCodeIfNone(errors.Join(errs...), exitcodes.InvalidConfig),
		"check the config file, the SMRESOLVE_* environment variables and the flags",
	)
}
