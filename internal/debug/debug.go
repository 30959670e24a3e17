// Package debug provides env-gated trace output for the concurrency
// core. It is off by default and cheap to call from hot paths: the
// enabled check is resolved once at startup.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// EnableDebug can be overridden at build time:
// go build -ldflags "-X github.com/standardbeagle/crag/internal/debug.EnableDebug=true"
var EnableDebug = "false"

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	enabled bool
)

func init() {
	if EnableDebug == "true" {
		enabled = true
		return
	}
	switch os.Getenv("CRAG_DEBUG") {
	case "1", "true":
		enabled = true
	}
}

// SetOutput redirects trace output. Pass nil to discard.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Enabled reports whether tracing is on.
func Enabled() bool {
	return enabled
}

// Printf writes a trace line when tracing is enabled.
func Printf(format string, args ...interface{}) {
	if !enabled {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return
	}
	fmt.Fprintf(out, "[TRACE] "+format, args...)
}

// Log writes a trace line tagged with a component name.
func Log(component, format string, args ...interface{}) {
	if !enabled {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return
	}
	fmt.Fprintf(out, "[TRACE:"+component+"] "+format, args...)
}
