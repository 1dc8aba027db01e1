// Package log contains the logrus hooks used to send logs somewhere other
// than the standard output or error.
package log

import (
	"context"

	"github.com/sirupsen/logrus"
)

// AsyncHook extends the logrus.Hook functionality by handling logs
// asynchronously, so a slow destination doesn't slow down the resolution.
type AsyncHook interface {
	logrus.Hook
	Listen(ctx context.Context)
}
