// Package exitcodes contains the constants representing the exit codes of smresolve.
package exitcodes

// ExitCode is just a type representing a process exit code for smresolve
type ExitCode uint8

// list of exit codes used by smresolve
const (
	InvalidConfig     ExitCode = 104
	ExternalAbort     ExitCode = 105
	NoSourceMap       ExitCode = 106 // the code has no sourceMappingURL annotation
	ResolveFailed     ExitCode = 110 // the map itself couldn't be established
	SourcesIncomplete ExitCode = 111 // the map was resolved but some sources couldn't be retrieved
	GoPanic           ExitCode = 112
)
