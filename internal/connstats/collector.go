package connstats

import (
	"context"
	"time"

	"github.com/mrzor/xpcspy/internal/conninfo"
	"github.com/mrzor/xpcspy/internal/correlator"
)

// Collector feeds emitted records into a Manager.
type Collector struct {
	manager  *Manager
	resolver *conninfo.Resolver
	now      func() time.Time
}

// NewCollector creates a collector counting into manager.
func NewCollector(manager *Manager, resolver *conninfo.Resolver) *Collector {
	return &Collector{
		manager:  manager,
		resolver: resolver,
		now:      time.Now,
	}
}

// HandleRecord counts one record.
func (c *Collector) HandleRecord(_ context.Context, rec *correlator.Record) error {
	var service string
	var sentinel bool
	if rec.Data != nil {
		if info := c.resolver.Lookup(rec.Data.Conn); info != nil {
			service = info.Service
		}
		_, sentinel = rec.Data.Sentinel()
	}

	c.manager.Add(service, rec.Symbol, sentinel, c.now())
	return nil
}
