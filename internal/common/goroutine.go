// -----------------------------------------------------------------------
// Safe goroutines - panic-isolated spawning for fire-and-forget work
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// safeGoSpawned counts goroutines started through SafeGo. Crash reports
// include it so a leak shows up next to the runtime's total.
var safeGoSpawned int64

// SafeGo runs fn in a goroutine that logs a panic instead of crashing
// the process. For async work whose failure must stay local, like event
// fan-out; work that owns a lifecycle should manage its own goroutine.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&safeGoSpawned, 1)

	go func() {
		defer logRecoveredPanic(logger, name)
		fn()
	}()
}

func logRecoveredPanic(logger arbor.ILogger, name string) {
	r := recover()
	if r == nil {
		return
	}

	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	if logger == nil {
		fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, stack)
		return
	}
	logger.Error().
		Str("goroutine", name).
		Str("panic", fmt.Sprintf("%v", r)).
		Str("stack", stack).
		Msg("Recovered panic in goroutine")
}
