package correlator

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownTimestamp is returned when data arrives for a timestamp with no pending symbol.
	ErrUnknownTimestamp = errors.New("no pending symbol for timestamp")
	// ErrAlreadyComplete is returned when every record of a timestamp already has data.
	ErrAlreadyComplete = errors.New("all records for timestamp already have data")
)

// stack holds the records sharing one timestamp, last pushed on top.
type stack struct {
	timestamp  int64
	records    []*Record
	lastUpdate time.Time
}

func (s *stack) top() *Record {
	return s.records[len(s.records)-1]
}

// awaiting returns the topmost record that has no data yet, or nil.
func (s *stack) awaiting() *Record {
	for i := len(s.records) - 1; i >= 0; i-- {
		if !s.records[i].Complete() {
			return s.records[i]
		}
	}
	return nil
}

// forceComplete attaches a sentinel body to every record still awaiting data.
func (s *stack) forceComplete(sentinel Sentinel) int {
	n := 0
	for _, rec := range s.records {
		if !rec.Complete() {
			rec.Data = &Data{Message: sentinel}
			n++
		}
	}
	return n
}

// Buffer is the ordered timestamp -> record stack mapping.
type Buffer struct {
	order      []*stack         // insertion order of timestamps
	stacks     map[int64]*stack // timestamp -> stack
	records    int
	maxPending int
	now        func() time.Time
}

// NewBuffer creates an empty buffer. maxPending bounds the number of pending
// timestamps; zero or less means unbounded.
func NewBuffer(maxPending int) *Buffer {
	return &Buffer{
		stacks:     make(map[int64]*stack),
		maxPending: maxPending,
		now:        time.Now,
	}
}

// PushSymbol starts a new record for timestamp on top of its stack, creating
// the stack at the end of the insertion order if needed.
// It returns the number of records force-completed to honor the pending limit.
func (b *Buffer) PushSymbol(timestamp int64, symbol string) int {
	evicted := 0

	s, ok := b.stacks[timestamp]
	if !ok {
		if b.maxPending > 0 && len(b.order) >= b.maxPending {
			evicted = b.evictOldest()
		}
		s = &stack{timestamp: timestamp}
		b.stacks[timestamp] = s
		b.order = append(b.order, s)
	}

	s.records = append(s.records, &Record{Timestamp: timestamp, Symbol: symbol})
	s.lastUpdate = b.now()
	b.records++

	return evicted
}

// AttachData completes the topmost record of timestamp that still awaits data.
// A duplicate data notification yields ErrAlreadyComplete and is dropped; the
// existing data is never overwritten.
func (b *Buffer) AttachData(timestamp int64, data Data) error {
	s, ok := b.stacks[timestamp]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTimestamp, timestamp)
	}

	rec := s.awaiting()
	if rec == nil {
		return fmt.Errorf("%w: %d (%d records)", ErrAlreadyComplete, timestamp, len(s.records))
	}

	rec.Data = &data
	s.lastUpdate = b.now()
	return nil
}

// Flush removes and returns every record that can be emitted without breaking
// the arrival order. It stops at the first record still awaiting data.
func (b *Buffer) Flush() []*Record {
	var out []*Record

	for len(b.order) > 0 {
		s := b.order[0]
		for len(s.records) > 0 {
			rec := s.top()
			if !rec.Complete() {
				return out
			}
			out = append(out, rec)
			s.records[len(s.records)-1] = nil
			s.records = s.records[:len(s.records)-1]
			b.records--
		}

		delete(b.stacks, s.timestamp)
		b.order[0] = nil
		b.order = b.order[1:]
	}

	return out
}

// Expire force-completes, with SentinelTimedOut, the awaiting records of every
// timestamp that has not been updated for longer than maxAge.
// Returns the number of records completed; call Flush afterwards to emit them.
func (b *Buffer) Expire(maxAge time.Duration) int {
	now := b.now()
	expired := 0

	for _, s := range b.order {
		if now.Sub(s.lastUpdate) > maxAge {
			expired += s.forceComplete(SentinelTimedOut)
		}
	}

	return expired
}

// evictOldest force-completes the oldest timestamp that still has records
// awaiting data.
func (b *Buffer) evictOldest() int {
	for _, s := range b.order {
		if n := s.forceComplete(SentinelEvicted); n > 0 {
			return n
		}
	}
	return 0
}

// Awaiting reports whether timestamp has a record still waiting for data,
// i.e. whether AttachData would succeed.
func (b *Buffer) Awaiting(timestamp int64) bool {
	s, ok := b.stacks[timestamp]
	return ok && s.awaiting() != nil
}

// PendingTimestamps returns the number of timestamps held in the buffer.
func (b *Buffer) PendingTimestamps() int {
	return len(b.order)
}

// PendingRecords returns the number of records held in the buffer, complete or not.
func (b *Buffer) PendingRecords() int {
	return b.records
}

// Empty reports whether the buffer holds no records.
func (b *Buffer) Empty() bool {
	return len(b.order) == 0
}
