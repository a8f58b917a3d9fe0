// Package tools provides host command execution for runtime drivers.
//
// Ownership boundary:
// - context-bound process execution
// - stdout/stderr/exit-code capture
package tools
