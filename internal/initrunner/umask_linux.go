package initrunner

import "syscall"

// umask sets the process umask and returns the previous value, used to
// scope initcmd subprocesses to 022.
func umask(mask int) int {
	return syscall.Umask(mask)
}
