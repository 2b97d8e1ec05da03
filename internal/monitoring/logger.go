// Package monitoring carries the decode progress output: the CPU backend's
// "n/total rows" lines with running phase statistics, and the one-line run
// summary both backends print when a decode finishes.
package monitoring

import "log"

// Logf receives every progress and run-summary line, formatted like
// log.Printf. Callers that want the lines elsewhere, or not at all, swap it
// with SetLogger.
var Logf func(format string, v ...any) = log.Printf

// SetLogger routes progress lines to f. A nil f discards them.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		f = func(string, ...any) {}
	}

	Logf = f
}
