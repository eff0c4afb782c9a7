// Package poller implements the query window scheduler behind winevent.
//
// A [Scheduler] owns one polling configuration (providers, window,
// frequency, max events) and runs a strictly sequential loop: wait, query
// the current window through a [query.Runner], normalize the output, emit
// each event, then slide the window forward from the moment the query
// finished. Windows are therefore contiguous and never overlap, at the cost
// of drifting by each query's run time.
//
// The main components are:
//
//   - [Scheduler]: The timer loop and per-cycle pipeline
//   - [Window]: The [Start, End) interval queried by one cycle
//   - [FormatProviders] and [FormatDate]: Rendering for the Get-WinEvent filter
//
// Users of the winevent library should not need to interact with this
// package directly. Configuration is done through the root winevent package.
package poller
