package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with its stack.
// It must be called directly in a defer statement. The panic is not re-raised.
//
//	func job() {
//	    defer observability.RecoverPanic(logger, "nightly job")
//	    ...
//	}
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
