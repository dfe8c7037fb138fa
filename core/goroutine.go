package core

import "runtime"

// goroutineID returns the current goroutine's ID, parsed from the header of
// runtime.Stack ("goroutine 42 [running]:").
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// CurrentGoroutineID exposes the goroutine identity used for thread
// confinement checks.
func CurrentGoroutineID() uint64 {
	return goroutineID()
}
