// Package clock provides the process-wide monotonic time base shared by
// every peer component. All rott measurements and frame timestamps derive
// from it.
package clock

import (
	"sync"
	"time"
)

var (
	originOnce sync.Once
	origin     time.Time
)

func initOrigin() {
	originOnce.Do(func() { origin = time.Now() })
}

// Now returns elapsed microseconds since the first call to Now (or any
// clock function) in this process. It saturates at 0 instead of going
// negative if the monotonic reading ever precedes the origin.
func Now() uint64 {
	initOrigin()
	d := time.Since(origin)
	if d < 0 {
		return 0
	}
	return uint64(d.Microseconds())
}
