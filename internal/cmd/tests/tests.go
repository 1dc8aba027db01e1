package tests

import (
	"fmt"
	"os"
	"testing"

	"go.uber.org/goleak"
)

// Main is a TestMain function that can be imported by other test packages
// that want to check for leaked goroutines after all of their tests ran.
func Main(m *testing.M) {
	exitCode := 1 // error out by default
	defer func() {
		os.Exit(exitCode)
	}()

	defer func() {
		opts := []goleak.Option{
			// the Writer of a logrus logger is closed asynchronously
			goleak.IgnoreTopFunction("io.(*pipe).read"),
			// keep-alive connections of http.DefaultClient to closed test servers
			goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
			goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
			// the clock of regexp2 match timeouts
			goleak.IgnoreAnyFunction("github.com/dlclark/regexp2.runClock"),
		}
		if err := goleak.Find(opts...); err != nil {
			fmt.Println(err) //nolint:forbidigo
			exitCode = 3
		}
	}()

	exitCode = m.Run()
}
