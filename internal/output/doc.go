// Package output renders correlated records.
//
// Formatters:
//   - TextFormatter: human-readable blocks separated by dashed rules
//   - JSONFormatter: one JSON object per line
//   - YAMLFormatter: one YAML document per record
//   - OTELFormatter: one OpenTelemetry span per record
//
// All of them implement HandleRecord and are fanned out by MultiHandler in
// the order given on the command line. Formatters are called from the event
// loop goroutine only.
//
// Structured data shared by the JSON and YAML formatters comes from
// Builder, which resolves connection descriptors through conninfo and renders
// timestamps through timesync.
package output
