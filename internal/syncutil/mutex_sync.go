//go:build !deadlock

// Package syncutil provides the mutex used to guard capture state. By default
// it is a plain sync.Mutex; build with -tags=deadlock to swap in
// github.com/sasha-s/go-deadlock and catch lock misuse between edge producers
// and the poll loop.
package syncutil

import "sync"

// Mutex wraps sync.Mutex. Build with -tags=deadlock for deadlock detection.
type Mutex struct {
	sync.Mutex
}
