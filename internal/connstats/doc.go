// Package connstats keeps per-service counters of emitted records.
//
// Manager provides command-query separation:
//
// Queries (read-only):
//   - Get(service) - Snapshot of one service's counters
//   - Services() - Known services, busiest first
//   - Total() - Records seen across all services
//
// Commands (mutations):
//   - Add(service, symbol, sentinel, at) - Count one record
//   - Reset() - Forget everything
//
// Collector adapts Manager to the record handler interface, resolving the
// service name from the record's connection descriptor.
//
// Exporter publishes the same counters to Prometheus at scrape time.
//
// Thread-safe with RWMutex: the event loop writes while the metrics endpoint
// and shutdown summary read.
package connstats
