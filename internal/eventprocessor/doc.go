// Package eventprocessor turns agent notifications into correlated records.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│      eventstream (single goroutine)     │
//	└─────────────────┬───────────────────────┘
//	                  │ *notification.Notification
//	                  ▼
//	┌─────────────────────────────────────────┐
//	│   eventprocessor.Processor              │  ← Routing by kind
//	└─────────┬───────────────────────────────┘
//	          │
//	          ├──→ hooks_installed ──→ StatusHandler
//	          │                       - Installing → Running, once
//	          │
//	          ├──→ trace:symbol ─────→ correlator.Buffer.PushSymbol
//	          │
//	          ├──→ trace:data ───────→ decoder.Registry (if --parse)
//	          │                       └→ correlator.Buffer.AttachData
//	          │
//	          └──→ error / other ────→ DiagnosticHandler
//
// After every notification the buffer is flushed; records matching the symbol
// filter go to the RecordHandler (usually output.MultiHandler).
//
// Nothing reported here is fatal. Problems become Diagnostics, are counted in
// metrics and are returned so callers can decide whether to log them.
//
// The processor is not safe for concurrent use; the stream owns it.
package eventprocessor
