package core

import "runtime"

// ProcessorCount is the default worker floor: the usable processors of this
// process, bounded by GOMAXPROCS.
func ProcessorCount() int {
	n := usableProcessors()
	if procs := runtime.GOMAXPROCS(0); procs < n {
		n = procs
	}
	return max(n, 1)
}
