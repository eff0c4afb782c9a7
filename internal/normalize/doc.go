// Package normalize converts raw Get-WinEvent JSON output into flat event
// records.
//
// ConvertTo-Json emits a bare object when a query matches one record and an
// array otherwise; [Normalize] accepts both and always returns a slice in
// input order. Only ten fields survive the projection, everything else the
// cmdlet reports is discarded.
package normalize
