// Package assert provides a debug-only invariant check used by internal
// cache bookkeeping. It is not meant for validating caller input.
package assert

import "fmt"

// Enabled gates whether T panics. Leave false in production; flip it on
// in tests that want to catch internal bookkeeping bugs early.
var Enabled bool

func T(check bool, msg string, args ...any) {
	if Enabled && !check {
		// Sprintf is done inside the assert because putting it as the argument to 'msg' blocks
		// the function from getting fully optimized out on a release build (and slower in general)
		panic("Assert failed: " + fmt.Sprintf(msg, args...))
	}
}
