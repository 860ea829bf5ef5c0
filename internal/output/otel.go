package output

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mrzor/xpcspy/internal/attributes"
	"github.com/mrzor/xpcspy/internal/conninfo"
	"github.com/mrzor/xpcspy/internal/correlator"
	"github.com/mrzor/xpcspy/internal/timesync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanName is the name of every exported span.
const SpanName = "xpc.message"

// maxAttributeValue bounds rendered connection and message attributes.
const maxAttributeValue = 8192

// OTELOptions configures an OTELFormatter. Nil evaluators are treated as
// unconfigured.
type OTELOptions struct {
	Attributes *attributes.Evaluator
	TraceID    *attributes.TraceIDEvaluator
	ParentID   *attributes.ParentIDEvaluator
}

// OTELFormatter formats records as OpenTelemetry spans.
//
// A record is a point in time, so each span starts and ends at the record's
// timestamp. When a trace ID expression is configured but no parent, spans
// hang off a synthetic root span derived from the trace ID.
type OTELFormatter struct {
	tracer    trace.Tracer
	resolver  *conninfo.Resolver
	converter *timesync.Converter
	opts      OTELOptions
	newID     func() string
}

// NewOTELFormatter creates a new OTELFormatter.
func NewOTELFormatter(tracer trace.Tracer, resolver *conninfo.Resolver, converter *timesync.Converter, opts OTELOptions) *OTELFormatter {
	return &OTELFormatter{
		tracer:    tracer,
		resolver:  resolver,
		converter: converter,
		opts:      opts,
		newID:     uuid.NewString,
	}
}

// HandleRecord emits one span for rec.
func (f *OTELFormatter) HandleRecord(ctx context.Context, rec *correlator.Record) error {
	var info *conninfo.Info
	if rec.Data != nil && f.resolver != nil {
		info = f.resolver.Lookup(rec.Data.Conn)
	}
	env := attributes.NewEnv(rec, info)

	var tracingIssues []attribute.KeyValue
	var tracingErrors int
	addError := func(err error) {
		tracingIssues = append(tracingIssues, attribute.String(fmt.Sprintf("_tracing_error_%d", tracingErrors), err.Error()))
		tracingErrors++
	}

	ctx, warnings, err := f.parentContext(ctx, env)
	tracingIssues = append(tracingIssues, warnings...)
	if err != nil {
		addError(err)
	}

	at := f.converter.ToWallClock(rec.Timestamp)
	_, span := f.tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(at),
	)

	span.SetAttributes(
		attribute.String("xpc.record_id", f.newID()),
		attribute.String("xpc.symbol", rec.Symbol),
		attribute.Int64("xpc.timestamp_ms", rec.Timestamp),
	)

	if rec.Data != nil {
		span.SetAttributes(attribute.String("xpc.connection", truncate(renderValue(rec.Data.Conn))))
		if s, ok := rec.Data.Sentinel(); ok {
			span.SetStatus(codes.Error, string(s))
		} else {
			span.SetAttributes(attribute.String("xpc.message", truncate(renderValue(rec.Data.Message))))
		}
	}

	if info != nil {
		if info.Service != "" {
			span.SetAttributes(attribute.String("xpc.service", info.Service))
		}
		if info.Address != "" {
			span.SetAttributes(attribute.String("xpc.connection.address", info.Address))
		}
		if info.PID >= 0 {
			span.SetAttributes(attribute.Int("process.pid", info.PID))
		}
		if info.EUID >= 0 {
			span.SetAttributes(attribute.Int("process.owner.uid", info.EUID))
		}
		span.SetAttributes(attribute.Bool("xpc.listener", info.Listener))
	}

	if f.opts.Attributes != nil {
		customAttrs, err := f.opts.Attributes.EvaluateCustomAttributes(env)
		if len(customAttrs) > 0 {
			span.SetAttributes(customAttrs...)
		}
		if err != nil {
			addError(err)
		}
	}

	if len(tracingIssues) > 0 {
		span.SetAttributes(tracingIssues...)
	}

	span.End(trace.WithTimestamp(at))
	return nil
}

// parentContext returns ctx carrying the remote parent dictated by the trace
// and parent ID expressions, if any.
func (f *OTELFormatter) parentContext(ctx context.Context, env attributes.Env) (context.Context, []attribute.KeyValue, error) {
	var warnings []attribute.KeyValue

	var traceID trace.TraceID
	if f.opts.TraceID != nil && f.opts.TraceID.Configured() {
		id, w, err := f.opts.TraceID.EvaluateAndValidate(env)
		if err != nil {
			return ctx, nil, err
		}
		traceID = id
		warnings = append(warnings, w...)
	}

	var parentID trace.SpanID
	if f.opts.ParentID != nil && f.opts.ParentID.Configured() {
		id, w, err := f.opts.ParentID.EvaluateAndValidate(env)
		if err != nil {
			return ctx, warnings, err
		}
		parentID = id
		warnings = append(warnings, w...)
	}

	if !traceID.IsValid() {
		// A parent span ID is meaningless without its trace.
		return ctx, warnings, nil
	}
	if !parentID.IsValid() {
		parentID = syntheticRoot(traceID)
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     parentID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(ctx, sc), warnings, nil
}

// syntheticRoot derives a stable span ID from traceID.
func syntheticRoot(traceID trace.TraceID) trace.SpanID {
	hash := sha256.Sum256(traceID[:])
	var id trace.SpanID
	copy(id[:], hash[:8])
	return id
}

// truncate bounds s to maxAttributeValue bytes without splitting a rune.
// The exporter rejects attribute values that are not valid UTF-8.
func truncate(s string) string {
	s = strings.ToValidUTF8(s, string(utf8.RuneError))
	if len(s) <= maxAttributeValue {
		return s
	}
	cut := maxAttributeValue
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
