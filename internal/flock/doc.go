// Package flock provides cross-platform file locking utilities.
//
// The store uses an exclusive, non-blocking lock on a sidecar file next to
// the database so concurrent taskctl invocations fail fast instead of
// interleaving writes.
//
// Usage:
//
//	file, _ := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
//	if err := flock.Exclusive(file.Fd()); err != nil {
//	    // Lock not acquired - another invocation is running
//	}
//	defer flock.Unlock(file.Fd())
package flock
