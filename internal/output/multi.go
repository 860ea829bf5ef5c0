package output

import (
	"context"
	"errors"
	"io"

	"github.com/mrzor/xpcspy/internal/correlator"
)

// Handler consumes records.
type Handler interface {
	HandleRecord(ctx context.Context, rec *correlator.Record) error
}

// MultiHandler passes each record to every handler in order.
type MultiHandler struct {
	handlers []Handler
}

// NewMultiHandler creates a fan-out over handlers.
func NewMultiHandler(handlers ...Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

// Add appends h.
func (m *MultiHandler) Add(h Handler) {
	m.handlers = append(m.handlers, h)
}

// HandleRecord calls every handler even if some fail, and joins the errors.
func (m *MultiHandler) HandleRecord(ctx context.Context, rec *correlator.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if err := h.HandleRecord(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every handler that is an io.Closer.
func (m *MultiHandler) Close() error {
	var errs []error
	for _, h := range m.handlers {
		if c, ok := h.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
