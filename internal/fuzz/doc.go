// Package fuzztests houses Go fuzz harnesses for the front of the
// compiler: Sierra text parsing and compilation of whatever parses. The
// harnesses guard against panics and hangs on arbitrary input; errors are
// expected and ignored.
package fuzztests
