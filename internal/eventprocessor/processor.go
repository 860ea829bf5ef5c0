package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mrzor/xpcspy/internal/correlator"
	"github.com/mrzor/xpcspy/internal/decoder"
	"github.com/mrzor/xpcspy/internal/filter"
	"github.com/mrzor/xpcspy/internal/metrics"
	"github.com/mrzor/xpcspy/internal/notification"
)

var (
	// ErrUnhandledNotificationKind is returned for notifications of unknown kind.
	ErrUnhandledNotificationKind = errors.New("unhandled notification kind")
	// ErrTransport is returned for error notifications raised by the bridge.
	ErrTransport = errors.New("transport error")
)

// RecordHandler receives records in emission order.
type RecordHandler interface {
	HandleRecord(ctx context.Context, rec *correlator.Record) error
}

// RecordHandlerFunc adapts a function to RecordHandler.
type RecordHandlerFunc func(ctx context.Context, rec *correlator.Record) error

// HandleRecord calls f.
func (f RecordHandlerFunc) HandleRecord(ctx context.Context, rec *correlator.Record) error {
	return f(ctx, rec)
}

// StatusHandler is told about lifecycle transitions.
type StatusHandler interface {
	HandleStatus(state State)
}

// StatusFunc adapts a function to StatusHandler.
type StatusFunc func(state State)

// HandleStatus calls f.
func (f StatusFunc) HandleStatus(state State) { f(state) }

// DiagnosticHandler receives non-fatal problems.
type DiagnosticHandler interface {
	HandleDiagnostic(d Diagnostic)
}

// Options configures a Processor. The zero value processes everything with
// decoding disabled and logs diagnostics through slog.Default().
type Options struct {
	// Parse enables decoding of tagged message bodies.
	Parse    bool
	Decoders *decoder.Registry
	Filter   *filter.SymbolFilter

	Status      StatusHandler
	Diagnostics DiagnosticHandler
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Processor routes notifications into the correlation buffer and emits
// flushed records.
type Processor struct {
	buffer  *correlator.Buffer
	handler RecordHandler

	parse       bool
	decoders    *decoder.Registry
	filter      *filter.SymbolFilter
	status      StatusHandler
	diagnostics DiagnosticHandler
	metrics     *metrics.Metrics
	logger      *slog.Logger

	state State
}

// NewProcessor creates a processor that owns buffer and emits into handler.
func NewProcessor(buffer *correlator.Buffer, handler RecordHandler, opts Options) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	diagnostics := opts.Diagnostics
	if diagnostics == nil {
		diagnostics = &LogDiagnostics{Logger: logger}
	}

	decoders := opts.Decoders
	if decoders == nil {
		decoders = decoder.NewRegistry()
	}

	return &Processor{
		buffer:      buffer,
		handler:     handler,
		parse:       opts.Parse,
		decoders:    decoders,
		filter:      opts.Filter,
		status:      opts.Status,
		diagnostics: diagnostics,
		metrics:     opts.Metrics,
		logger:      logger,
		state:       StateInstalling,
	}
}

// State returns the lifecycle state.
func (p *Processor) State() State {
	return p.state
}

// HandleNotification routes one notification by kind, then flushes.
// The returned error describes what went wrong with this notification; it has
// already been reported as a Diagnostic.
func (p *Processor) HandleNotification(ctx context.Context, n *notification.Notification) error {
	p.metrics.Notification(string(n.Kind))

	var err error
	switch n.Kind {
	case notification.KindHooksInstalled:
		p.handleHooksInstalled()
	case notification.KindSymbol:
		p.handleSymbol(n)
	case notification.KindData:
		err = p.handleData(ctx, n)
	case notification.KindError:
		err = fmt.Errorf("%w: %s", ErrTransport, n.Description)
		p.report(Diagnostic{Kind: DiagnosticTransport, Err: err, Detail: n.Stack})
	default:
		err = fmt.Errorf("%w: %q", ErrUnhandledNotificationKind, n.Kind)
		p.report(Diagnostic{Kind: DiagnosticUnhandledKind, Err: err})
	}

	if flushErr := p.Flush(ctx); flushErr != nil {
		err = errors.Join(err, flushErr)
	}
	return err
}

func (p *Processor) handleHooksInstalled() {
	if p.state == StateRunning {
		return
	}
	p.state = StateRunning
	if p.status != nil {
		p.status.HandleStatus(p.state)
	} else {
		p.logger.Info("hooks installed")
	}
}

func (p *Processor) handleSymbol(n *notification.Notification) {
	if evicted := p.buffer.PushSymbol(n.Timestamp, n.Symbol); evicted > 0 {
		p.metrics.Sentinel(string(correlator.SentinelEvicted), evicted)
		p.report(Diagnostic{
			Kind:      DiagnosticEvicted,
			Timestamp: n.Timestamp,
			Count:     evicted,
			Err:       fmt.Errorf("pending limit reached, %d records evicted", evicted),
		})
	}
}

func (p *Processor) handleData(ctx context.Context, n *notification.Notification) error {
	data := correlator.Data{Conn: n.Conn, Message: n.Message}

	// Decoding is skipped when the data has no slot to fill.
	var decodeErr error
	if p.parse && p.buffer.Awaiting(n.Timestamp) {
		data.Message, decodeErr = p.decode(ctx, n)
	}

	err := p.buffer.AttachData(n.Timestamp, data)
	if err != nil {
		kind := DiagnosticAlreadyComplete
		if errors.Is(err, correlator.ErrUnknownTimestamp) {
			kind = DiagnosticUnknownTimestamp
		}
		p.report(Diagnostic{Kind: kind, Timestamp: n.Timestamp, Err: err})
	} else if decodeErr != nil {
		p.metrics.Sentinel(string(correlator.SentinelUndecodable), 1)
	}

	return errors.Join(decodeErr, err)
}

// decode returns the decoded body for tagged strings, the body unchanged for
// anything else, and SentinelUndecodable on failure.
func (p *Processor) decode(ctx context.Context, n *notification.Notification) (any, error) {
	body, ok := n.Message.(string)
	if !ok {
		return n.Message, nil
	}
	tag, _, ok := p.decoders.Split(body)
	if !ok {
		return n.Message, nil
	}

	start := time.Now()
	decoded, err := p.decoders.Decode(ctx, body)
	p.metrics.ObserveDecode(tag, time.Since(start))
	if err != nil {
		err = fmt.Errorf("failed to decode message at %d: %w", n.Timestamp, err)
		p.report(Diagnostic{Kind: DiagnosticUndecodable, Timestamp: n.Timestamp, Err: err})
		return correlator.SentinelUndecodable, err
	}
	return decoded, nil
}

// Flush emits every record the buffer can release, in order.
func (p *Processor) Flush(ctx context.Context) error {
	var errs []error

	for _, rec := range p.buffer.Flush() {
		if !p.filter.Match(rec.Symbol) {
			p.metrics.RecordFiltered()
			continue
		}
		p.metrics.RecordEmitted()
		if err := p.handler.HandleRecord(ctx, rec); err != nil {
			err = fmt.Errorf("failed to handle record %s@%d: %w", rec.Symbol, rec.Timestamp, err)
			p.report(Diagnostic{Kind: DiagnosticOutput, Timestamp: rec.Timestamp, Err: err})
			errs = append(errs, err)
		}
	}

	p.metrics.SetPending(p.buffer.PendingTimestamps(), p.buffer.PendingRecords())
	return errors.Join(errs...)
}

// Expire completes records whose timestamp has seen no activity for maxAge,
// then flushes. A non-positive maxAge disables expiry.
func (p *Processor) Expire(ctx context.Context, maxAge time.Duration) error {
	if maxAge <= 0 {
		return nil
	}
	return p.expire(ctx, maxAge)
}

// Drain completes every record still awaiting data and flushes them, leaving
// the buffer empty. Used when the input ends.
func (p *Processor) Drain(ctx context.Context) error {
	return p.expire(ctx, -1)
}

func (p *Processor) expire(ctx context.Context, maxAge time.Duration) error {
	if n := p.buffer.Expire(maxAge); n > 0 {
		p.metrics.Sentinel(string(correlator.SentinelTimedOut), n)
		p.report(Diagnostic{
			Kind:  DiagnosticTimedOut,
			Count: n,
			Err:   fmt.Errorf("%d records timed out waiting for data", n),
		})
	}
	return p.Flush(ctx)
}

// Pending returns the number of records held in the buffer.
func (p *Processor) Pending() int {
	return p.buffer.PendingRecords()
}

func (p *Processor) report(d Diagnostic) {
	p.metrics.Diagnostic(string(d.Kind))
	p.diagnostics.HandleDiagnostic(d)
}
