package mountexec

import (
	"bufio"
	"os"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// unixMounter issues real Linux bind mounts via golang.org/x/sys/unix,
// the syscall equivalent of `mount --bind --make-private -o (ro|rw)`.
type unixMounter struct{}

func (unixMounter) Bind(src, dest string, ro bool) error {
	if err := unix.Mount(src, dest, "", unix.MS_BIND, ""); err != nil {
		return err
	}
	if err := unix.Mount("", dest, "", unix.MS_PRIVATE, ""); err != nil {
		return err
	}
	if ro {
		if err := unix.Mount(src, dest, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
			return err
		}
	}
	return nil
}

// UnmountRecursive detaches target and every mount nested under it, deepest
// first, so a composition with several bind mounts comes down in one call
// even though the kernel has no single recursive-unmount syscall.
func (unixMounter) UnmountRecursive(target string) error {
	mounts, err := mountsUnder(target)
	if err != nil {
		return err
	}
	var firstErr error
	for _, m := range mounts {
		if err := unix.Unmount(m, unix.MNT_DETACH); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// mountsUnder returns every mountpoint equal to or nested under target,
// deepest (longest path) first, read from /proc/self/mountinfo.
func mountsUnder(target string) ([]string, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	prefix := strings.TrimRight(target, "/")
	var found []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		mountPoint := fields[4]
		if mountPoint == prefix || strings.HasPrefix(mountPoint, prefix+"/") {
			found = append(found, mountPoint)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool { return len(found[i]) > len(found[j]) })
	return found, nil
}
