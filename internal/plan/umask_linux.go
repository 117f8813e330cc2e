package plan

import "syscall"

// umask sets the process umask and returns the previous value, used to
// scope mountpoint creation to 022.
func umask(mask int) int {
	return syscall.Umask(mask)
}
