// Package attributes evaluates user expressions against correlated records.
//
// Expressions use the expr language over an Env describing one record:
//
//	symbol     string             intercepted symbol
//	timestamp  int                milliseconds since the epoch
//	conn       any                connection descriptor as received
//	message    any                message body, decoded when parsing is enabled
//	service    string             service name from the descriptor, if any
//	pid        int                peer pid from the descriptor, -1 if unknown
//	fields     map[string]string  every key = value pair of the descriptor
//
// Three evaluators:
//   - Evaluator: custom span attributes; map results expand to name.key
//   - TraceIDEvaluator: trace ID per record (32 hex chars)
//   - ParentIDEvaluator: parent span ID per record (16 hex chars)
//
// Invalid trace IDs are hashed with SHA-256 to produce valid IDs, so an
// expression like `service` groups each service's messages into one trace.
// Invalid parent IDs result in a null parent (zero span ID).
package attributes
