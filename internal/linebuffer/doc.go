// Package linebuffer turns event log records into log lines and batches
// them for delivery.
//
// [FromEvent] maps a [winevent.LogEvent] to a [Line]. A [Buffer] collects
// lines and hands them to a [Writer] in batches, either every flush interval
// or as soon as the maximum batch size is reached.
package linebuffer
