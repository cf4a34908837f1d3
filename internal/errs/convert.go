package errs

import (
	"errors"
	"io/fs"
	"os/exec"
	"strings"
)

// Conversion maps a foreign error onto a Kind.
type Conversion struct {
	Name  string
	Match func(error) bool
	Kind  Kind
}

// Conversions is consulted in order for errors that do not implement Kinded.
var Conversions = []Conversion{
	{Name: "path", Match: isPathError, Kind: KindIO},
	{Name: "exec", Match: isExecError, Kind: KindLink},
	{Name: "safecast", Match: messageContains("out of bounds"), Kind: KindIntegerConversion},
	{Name: "msgpack", Match: messageContains("msgpack"), Kind: KindSerialization},
}

func classify(err error) Kind {
	var k Kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	for _, c := range Conversions {
		if c.Match(err) {
			return c.Kind
		}
	}
	return KindUnknown
}

func isPathError(err error) bool {
	var pe *fs.PathError
	return errors.As(err, &pe)
}

func isExecError(err error) bool {
	var ee *exec.Error
	if errors.As(err, &ee) {
		return true
	}
	var xe *exec.ExitError
	return errors.As(err, &xe)
}

func messageContains(s string) func(error) bool {
	return func(err error) bool {
		return strings.Contains(err.Error(), s)
	}
}
