// Package logger prints progress lines to stderr. Most levels are gated
// behind the --verbose flag so that ingest and ablate runs stay quiet by
// default; errors always print.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type level string

const (
	levelDebug level = "DEBUG"
	levelInfo  level = "INFO"
	levelWarn  level = "WARN"
	levelError level = "ERROR"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose toggles the gated levels.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether the gated levels currently print.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects log lines, mainly for tests. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func emit(lv level, gated bool, format string, args []any) {
	mu.RLock()
	defer mu.RUnlock()
	if gated && !verbose {
		return
	}
	fmt.Fprintf(output, "["+string(lv)+"] "+format+"\n", args...)
}

// Debug prints a gated debug line.
func Debug(format string, args ...any) { emit(levelDebug, true, format, args) }

// Info prints a gated progress line.
func Info(format string, args ...any) { emit(levelInfo, true, format, args) }

// Warn prints a gated warning line.
func Warn(format string, args ...any) { emit(levelWarn, true, format, args) }

// Error always prints.
func Error(format string, args ...any) { emit(levelError, false, format, args) }

// Section prints a gated header separating pipeline phases in verbose runs.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
