package attributes

import (
	"crypto/sha256"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func compile(kind, exprStr string) (*vm.Program, error) {
	if exprStr == "" {
		return nil, nil
	}
	program, err := expr.Compile(exprStr, expr.Env(Env{}))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s expression: %w", kind, err)
	}
	return program, nil
}

// TraceIDEvaluator handles evaluation and validation of trace ID expressions.
type TraceIDEvaluator struct {
	program *vm.Program
}

// NewTraceIDEvaluator creates a new trace ID evaluator.
// If exprStr is empty, the evaluator returns zero trace IDs and the SDK
// generates random ones.
func NewTraceIDEvaluator(exprStr string) (*TraceIDEvaluator, error) {
	program, err := compile("trace-id", exprStr)
	if err != nil {
		return nil, err
	}
	return &TraceIDEvaluator{program: program}, nil
}

// Configured reports whether an expression was given.
func (e *TraceIDEvaluator) Configured() bool {
	return e.program != nil
}

// EvaluateAndValidate evaluates the trace-id expression for env.
// Returns the trace ID and any warnings to attach to the span. Results that
// are not 32 hex characters are hashed into a valid ID.
func (e *TraceIDEvaluator) EvaluateAndValidate(env Env) (trace.TraceID, []attribute.KeyValue, error) {
	if e.program == nil {
		return trace.TraceID{}, nil, nil
	}

	output, err := expr.Run(e.program, env)
	if err != nil {
		return trace.TraceID{}, nil, fmt.Errorf("failed to evaluate trace-id expression: %w", err)
	}

	resultStr := fmt.Sprint(output)
	if len(resultStr) == 32 {
		if traceID, err := trace.TraceIDFromHex(resultStr); err == nil {
			return traceID, nil, nil
		}
	}

	return HashTraceID(resultStr), []attribute.KeyValue{
		attribute.String("_trace_id_expr_result", resultStr),
		attribute.String("_trace_id_invalid_warning", fmt.Sprintf("expression result %q is not a valid 32-char hex trace ID, used SHA-256 hash instead", resultStr)),
	}, nil
}

// HashTraceID derives a trace ID from the first 16 bytes of the SHA-256 of s.
func HashTraceID(s string) trace.TraceID {
	hash := sha256.Sum256([]byte(s))
	var traceID trace.TraceID
	copy(traceID[:], hash[:16])
	return traceID
}

// ParentIDEvaluator handles evaluation and validation of parent span ID expressions.
type ParentIDEvaluator struct {
	program *vm.Program
}

// NewParentIDEvaluator creates a new parent ID evaluator.
// If exprStr is empty, spans have no parent.
func NewParentIDEvaluator(exprStr string) (*ParentIDEvaluator, error) {
	program, err := compile("parent-id", exprStr)
	if err != nil {
		return nil, err
	}
	return &ParentIDEvaluator{program: program}, nil
}

// Configured reports whether an expression was given.
func (e *ParentIDEvaluator) Configured() bool {
	return e.program != nil
}

// EvaluateAndValidate evaluates the parent-id expression for env.
// Invalid results yield a zero span ID (no parent) plus warnings.
func (e *ParentIDEvaluator) EvaluateAndValidate(env Env) (trace.SpanID, []attribute.KeyValue, error) {
	if e.program == nil {
		return trace.SpanID{}, nil, nil
	}

	output, err := expr.Run(e.program, env)
	if err != nil {
		return trace.SpanID{}, nil, fmt.Errorf("failed to evaluate parent-id expression: %w", err)
	}

	resultStr := fmt.Sprint(output)
	if len(resultStr) == 16 {
		if spanID, err := trace.SpanIDFromHex(resultStr); err == nil {
			return spanID, nil, nil
		}
	}

	return trace.SpanID{}, []attribute.KeyValue{
		attribute.String("_parent_id_expr_result", resultStr),
		attribute.String("_parent_id_invalid_warning", fmt.Sprintf("expression result %q is not a valid 16-char hex span ID, using null parent ID instead", resultStr)),
	}, nil
}
