//go:build !linux

package core

import "runtime"

func usableProcessors() int {
	return runtime.NumCPU()
}
