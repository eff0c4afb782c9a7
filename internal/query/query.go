package query

import (
	"context"
	"strconv"
	"time"
)

// Query is a single Get-WinEvent invocation with every field already
// rendered into the text the cmdlet expects.
type Query struct {
	// Providers is the joined provider list, e.g. "A,  B, C".
	Providers string

	// Start is the formatted lower bound of the window.
	Start string

	// End is the formatted upper bound of the window.
	End string

	// MaxEvents caps the number of records returned.
	MaxEvents int
}

// Script returns the PowerShell pipeline for the query. Output is requested
// as JSON via ConvertTo-Json.
func (q Query) Script() string {
	return "Get-WinEvent -FilterHashTable @{ProviderName='" + q.Providers +
		"'; StartTime='" + q.Start +
		"'; EndTime='" + q.End +
		"'; } -MaxEvents " + strconv.Itoa(q.MaxEvents) +
		" | ConvertTo-Json"
}

// CommandLine returns the query as a single shell command line, suitable for
// logging or for running through cmd.exe by hand.
func (q Query) CommandLine() string {
	return `powershell "` + q.Script() + `"`
}

// Result holds everything a finished query produced on standard output.
type Result struct {
	// Stdout is every standard output chunk, concatenated in read order.
	Stdout []byte

	// ExitCode is the process exit status. Get-WinEvent exits non-zero when
	// no events match, so a non-zero code is not an error on its own.
	ExitCode int

	// Duration is the wall time between process start and exit.
	Duration time.Duration
}

// Runner executes a [Query].
//
// Run blocks until the external process has exited and both of its output
// streams are closed. Every standard error chunk is passed to onStderr as
// soon as it is read, possibly concurrently with standard output being
// collected. onStderr may be nil.
//
// Run returns an error only when the process could not be run at all or
// ctx was cancelled; a non-zero exit is reported through [Result.ExitCode].
type Runner interface {
	Run(ctx context.Context, q Query, onStderr func(chunk []byte)) (Result, error)
}

// RunnerFunc adapts an ordinary function to the [Runner] interface.
type RunnerFunc func(ctx context.Context, q Query, onStderr func(chunk []byte)) (Result, error)

// Run calls f(ctx, q, onStderr).
func (f RunnerFunc) Run(ctx context.Context, q Query, onStderr func(chunk []byte)) (Result, error) {
	return f(ctx, q, onStderr)
}
