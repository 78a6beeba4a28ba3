//go:build unix

package scanner

import "golang.org/x/sys/unix"

// descriptorBudget returns the soft RLIMIT_NOFILE for the process, or the
// fallback when the limit cannot be read.
func descriptorBudget() int {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return fallbackDescriptorBudget
	}
	if rl.Cur > maxDescriptorBudget {
		return maxDescriptorBudget
	}
	return int(rl.Cur)
}
