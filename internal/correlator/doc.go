// Package correlator pairs symbol and data fragments of intercepted calls into
// complete records and releases them in arrival order.
//
// The agent reports every intercepted call as two notifications sharing a
// millisecond timestamp: first the symbol of the call site, later the data
// (connection descriptor and message body). Several calls can share one
// timestamp, so each timestamp owns a stack of records:
//
//	 insertion order ──────────────────────────────────►
//	┌──────────────┐   ┌──────────────┐   ┌──────────────┐
//	│ ts=100       │   │ ts=97        │   │ ts=101       │
//	│  top: bar ✓  │   │  top: baz ✗  │   │  top: qux ✓  │
//	│       foo ✗  │   │              │   │              │
//	└──────┬───────┘   └──────────────┘   └──────────────┘
//	       │
//	       ▼ Flush
//	  emit bar, stop at foo (ts=97 and ts=101 wait behind it)
//
// Data attaches to the topmost record of its timestamp that still awaits
// data: nested calls within one millisecond return in reverse order of entry.
//
// Flush walks timestamps in the order their first symbol arrived (never in
// numeric order), emits complete records from the top of each stack and
// stops at the first incomplete one. A later timestamp is never emitted
// before an earlier one is fully resolved.
//
// A timestamp whose data never arrives would block every later record
// forever. Buffer therefore supports two bounds, both off by default:
//   - MaxPending: pushing a new timestamp past the limit force-completes the
//     oldest timestamp's awaiting records with SentinelEvicted.
//   - Expire(maxAge): force-completes records of timestamps untouched for
//     maxAge with SentinelTimedOut.
//
// Buffer is not safe for concurrent use; it is owned by a single event loop.
package correlator
