package eventstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrzor/xpcspy/internal/notification"
	"github.com/mrzor/xpcspy/internal/transport"
)

// Handler consumes parsed notifications.
type Handler interface {
	HandleNotification(ctx context.Context, n *notification.Notification) error
	Expire(ctx context.Context, maxAge time.Duration) error
	Drain(ctx context.Context) error
}

// Options tunes the loop.
type Options struct {
	// PendingTimeout is passed to Handler.Expire; zero disables expiry.
	PendingTimeout time.Duration
	// ExpireInterval is the expiry check period, default one second.
	ExpireInterval time.Duration
	Logger         *slog.Logger
}

// Stats counts what the loop has seen.
type Stats struct {
	Lines     int64
	Malformed int64
}

// Stream reads notifications from a source and dispatches them to a handler.
type Stream struct {
	source  transport.Source
	parser  notification.Parser
	handler Handler
	opts    Options
	logger  *slog.Logger

	lines     atomic.Int64
	malformed atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error
}

type readResult struct {
	line []byte
	err  error
}

// New creates a new Stream.
func New(source transport.Source, handler Handler, opts Options) *Stream {
	if opts.ExpireInterval <= 0 {
		opts.ExpireInterval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		source:  source,
		handler: handler,
		opts:    opts,
		logger:  logger,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins processing in the background and returns immediately.
// Processing continues until the source ends, ctx is cancelled or Stop is
// called.
func (s *Stream) Start(ctx context.Context) error {
	go s.run(ctx)
	return nil
}

// Stop signals the loop to stop. It is safe to call more than once.
func (s *Stream) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// Done is closed once the loop has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the loop exits and returns the read error that ended it,
// if any. End of input, cancellation and Stop are not errors.
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// Stats returns the line counters.
func (s *Stream) Stats() Stats {
	return Stats{Lines: s.lines.Load(), Malformed: s.malformed.Load()}
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan readResult)
	go s.read(readCtx, results)

	var tick <-chan time.Time
	if s.opts.PendingTimeout > 0 {
		ticker := time.NewTicker(s.opts.ExpireInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-tick:
			if err := s.handler.Expire(ctx, s.opts.PendingTimeout); err != nil {
				s.logger.Debug("expiring pending records", "error", err)
			}
		case res := <-results:
			if res.err != nil {
				s.finish(ctx, res.err)
				return
			}
			s.dispatch(ctx, res.line)
		}
	}
}

// read pulls lines until the source fails or ends.
func (s *Stream) read(ctx context.Context, out chan<- readResult) {
	for {
		line, err := s.source.Next(ctx)
		select {
		case out <- readResult{line: line, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Stream) dispatch(ctx context.Context, line []byte) {
	s.lines.Add(1)

	n, err := s.parser.Parse(line)
	if err != nil {
		s.malformed.Add(1)
		s.logger.Warn("skipping malformed notification", "error", err)
		return
	}

	if err := s.handler.HandleNotification(ctx, n); err != nil {
		s.logger.Debug("notification not applied", "kind", string(n.Kind), "error", err)
	}
}

func (s *Stream) finish(ctx context.Context, err error) {
	switch {
	case errors.Is(err, io.EOF):
		if drainErr := s.handler.Drain(ctx); drainErr != nil {
			s.logger.Debug("draining pending records", "error", drainErr)
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		s.err = err
	}
}
