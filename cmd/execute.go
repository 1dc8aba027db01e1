// Package cmd is the entry point of the smresolve command line tool.
package cmd

import (
	"context"

	"github.com/liuxd6825/smresolve/cmd/state"
	"github.com/liuxd6825/smresolve/internal/cmd"
)

// Execute runs smresolve with the state of the current process.
func Execute() {
	gs := state.NewGlobalState(context.Background())
	cmd.ExecuteWithGlobalState(gs)
}
