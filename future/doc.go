// Package future provides the asynchronous-operation primitive consumed and
// produced by taskbridge: a write-once Future with blocking observation
// (Get, Done) and continuation registration (OnComplete).
//
// The package deliberately knows nothing about goroutines, pools or routing.
// A callback registered with OnComplete runs on whichever goroutine completes
// the future. Package core adapts that registration to its routing contexts so
// that continuations resume on a pump or pool queue instead.
//
// Outcomes are one of three terminal states:
//
//	p := future.NewPromise[int]()
//	p.Resolve(42)              // Succeeded
//	p.Reject(err)              // Faulted
//	p.Cancel(context.Canceled) // Canceled, err matches future.ErrCanceled
//
// Complete(v, err) classifies an operation's return values into one of them.
package future
