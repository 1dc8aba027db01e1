package state

import "path/filepath"

const defaultConfigFileName = "config.json"

// GlobalOptions contains global config values that apply for all smresolve sub-commands.
type GlobalOptions struct {
	ConfigFilePath string
	Quiet          bool
	NoColor        bool
	LogOutput      string
	LogFormat      string
	Verbose        bool
}

// GetDefaultFlags returns the default global flags.
func GetDefaultFlags(homeDir string) GlobalOptions {
	return GlobalOptions{
		ConfigFilePath: filepath.Join(homeDir, "smresolve", defaultConfigFileName),
		LogOutput:      "stderr",
	}
}

func consolidateGlobalFlags(defaultFlags GlobalOptions, env map[string]string) GlobalOptions {
	result := defaultFlags

	if val, ok := env["SMRESOLVE_CONFIG"]; ok {
		result.ConfigFilePath = val
	}
	if val, ok := env["SMRESOLVE_LOG_OUTPUT"]; ok {
		result.LogOutput = val
	}
	if val, ok := env["SMRESOLVE_LOG_FORMAT"]; ok {
		result.LogFormat = val
	}
	if env["SMRESOLVE_NO_COLOR"] != "" {
		result.NoColor = true
	}
	// Support https://no-color.org/, even an empty value should disable the
	// color output.
	if _, ok := env["NO_COLOR"]; ok {
		result.NoColor = true
	}
	if env["SMRESOLVE_VERBOSE"] != "" {
		result.Verbose = true
	}
	return result
}
