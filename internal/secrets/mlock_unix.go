//go:build linux || darwin

package secrets

import "golang.org/x/sys/unix"

// Locking is best effort; RLIMIT_MEMLOCK may refuse it.
func lockMemory(b []byte) error   { return unix.Mlock(b) }
func unlockMemory(b []byte) error { return unix.Munlock(b) }
