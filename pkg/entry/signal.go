package entry

import "syscall"

// signalOf converts a plain integer signal number (as passed to Kill,
// e.g. 15 by Manager.Delete when the delete request sets kill) to a
// syscall.Signal.
func signalOf(n int) syscall.Signal {
	return syscall.Signal(n)
}
