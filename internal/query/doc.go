// Package query runs the external event log query for winevent.
//
// This package is internal to winevent. It owns the textual contract with
// the Get-WinEvent cmdlet: the filter hash table script, the legacy single
// command line, and the process plumbing that collects standard output and
// streams standard error chunk by chunk.
//
// The main components are:
//
//   - [Query]: One formatted query window (providers, bounds, max events)
//   - [Runner]: Interface for anything that can execute a [Query]
//   - [ExecRunner]: os/exec implementation that launches PowerShell
//
// The scheduler treats the mechanism as opaque: run a query, get text back.
package query
