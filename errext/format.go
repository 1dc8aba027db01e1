package errext

import (
	"errors"
)

// Format splits err into a message and the logrus fields to log it with. The
// hint of a HasHint and the code of a HasExitCode become fields.
func Format(err error) (string, map[string]interface{}) {
	if err == nil {
		return "", nil
	}

	fields := make(map[string]interface{})
	var herr HasHint
	if errors.As(err, &herr) {
		fields["hint"] = herr.Hint()
	}
	var ecerr HasExitCode
	if errors.As(err, &ecerr) {
		fields["exitCode"] = ecerr.ExitCode()
	}
	return err.Error(), fields
}
