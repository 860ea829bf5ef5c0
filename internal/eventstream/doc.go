// Package eventstream is the tracer's single event loop.
//
// A reader goroutine pulls raw lines from a transport.Source and hands them
// over a channel. The loop goroutine parses each line, dispatches it to the
// Handler and, on a ticker, asks the Handler to expire stale records. The
// Handler is therefore only ever called from one goroutine.
//
// When the source ends (io.EOF) the loop drains the handler so that records
// still awaiting data are emitted, then stops. Cancelling the context or
// calling Stop ends the loop without draining.
package eventstream
