package errors

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/mcdexio/chain-collector/common/logging"
)

var logger logging.Logger

// Initialize sets the logger used by Catch.
func Initialize(l logging.Logger) {
	logger = l
}

// Catch logs a panic with its stack as critical, which terminates the process. Call it with defer
// at the top of every long-lived goroutine.
func Catch() {
	if recovered := recover(); recovered != nil {
		logger.Critical("%v\n%s", recovered, string(debug.Stack()))
	}
}

// CatchWithLogger is a panic handler expected to be deferred. It logs and lets the process live.
func CatchWithLogger(l logging.Logger) {
	if recovered := recover(); recovered != nil {
		format := "\x1b[31m%v\n[Stack Trace]\n%s\x1b[m"
		stack := debug.Stack()
		if l != nil {
			l.Error(format, recovered, stack)
		} else {
			fmt.Fprintf(os.Stderr, format, recovered, stack)
		}
	}
}

// Recover turns a panic into an error stored in *pErr. Call it with defer.
func Recover(pErr *error) {
	if r := recover(); r != nil {
		if err, ok := r.(error); ok {
			*pErr = fmt.Errorf("panic: %w\n%s", err, debug.Stack())
			return
		}
		*pErr = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
	}
}
