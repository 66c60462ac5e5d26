package breaker

import (
	"log"
	"sync"
)

// logMutex serializes panic-recovery log lines, matching the teacher
// library's approach of guarding stdlib log output rather than letting
// concurrent recoveries interleave partial lines.
var logMutex sync.Mutex

func logCallbackPanic(name, callback string, recovered any) {
	logMutex.Lock()
	defer logMutex.Unlock()
	log.Printf("[BREAKER WARNING] circuit %q: %s callback panicked: %v", name, callback, recovered)
}

// safeCallOnStateChange invokes an OnStateChange callback, recovering from
// any panic so a misbehaving callback can never take the breaker down with
// it. The transition has already been committed by the time this runs, so a
// panicking callback only loses its own notification, not the breaker's
// correctness.
func safeCallOnStateChange(fn func(name string, from, to State), name string, from, to State) {
	defer func() {
		if r := recover(); r != nil {
			logCallbackPanic(name, "OnStateChange", r)
		}
	}()
	fn(name, from, to)
}
