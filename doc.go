// Package winevent tails the Windows event log by polling it on a fixed
// cadence.
//
// A [Reader] runs Get-WinEvent through PowerShell for a sliding time window,
// decodes the JSON it prints into [LogEvent] values and delivers each one to
// its data subscribers. Windows are contiguous: once a query finishes the
// next window starts at that moment and spans one frequency interval, so no
// interval is queried twice while the reader runs.
//
// # Quick Start
//
//	r, err := winevent.New(
//	    winevent.WithProviders("Microsoft-Windows-DNS-Client"),
//	    winevent.WithFrequency(2 * time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//
//	r.OnData(func(ev winevent.LogEvent) {
//	    fmt.Println(ev.TimeCreated, ev.ProviderName, ev.Message)
//	})
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	if err := r.Start(ctx); err != nil {
//	    return err
//	}
//	<-ctx.Done()
//	r.Stop()
//
// # Subscribers
//
// There are three subscriber kinds, registered with [Reader.On] or the typed
// helpers:
//
//   - [KindData]: func([LogEvent]), one call per event in output order
//   - [KindError]: func(string), raw standard error text of the query
//   - [KindEnd]: func(), once per [Reader.Stop] call
//
// A query that prints invalid JSON produces no events for its window. The
// failure is logged and passed to the handler set with [WithFailureHandler].
//
// # Architecture
//
// The reader is built from several internal packages (under internal/):
//
//   - internal/poller: window scheduling and cycle execution
//   - internal/query: PowerShell command synthesis and process execution
//   - internal/normalize: Get-WinEvent JSON decoding
//   - internal/linebuffer, internal/sink: batching and line output for the agent
//   - internal/store, internal/server: reader status and its HTTP API
//   - internal/agent: runs one reader per configured source
//
// The internal packages are not part of the public API and may change
// without notice.
package winevent
