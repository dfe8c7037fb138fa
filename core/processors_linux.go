//go:build linux

package core

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// usableProcessors returns the number of CPUs this process may run on
// according to its scheduler affinity mask.
func usableProcessors() int {
	var mask unix.CPUSet
	mask.Zero()
	if err := unix.SchedGetaffinity(0, &mask); err != nil {
		return runtime.NumCPU()
	}
	if n := mask.Count(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}
