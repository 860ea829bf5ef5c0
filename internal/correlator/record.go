package correlator

// Sentinel is a synthetic message body that stands in for data that could not
// be obtained. Records carrying a sentinel are complete, so they never block
// the flush order.
type Sentinel string

const (
	// SentinelUndecodable replaces a tagged body the decoder rejected.
	SentinelUndecodable Sentinel = "<undecodable>"
	// SentinelTimedOut replaces data that did not arrive within the pending timeout.
	SentinelTimedOut Sentinel = "<timed out>"
	// SentinelEvicted replaces data of a record evicted by the pending limit.
	SentinelEvicted Sentinel = "<evicted>"
)

// Data is the payload half of an intercepted call.
// Conn and Message are either strings or structured values (maps, slices and
// scalars) as parsed from the wire or produced by a decoder.
type Data struct {
	Conn    any
	Message any
}

// Sentinel reports the sentinel carried in the message body, if any.
func (d *Data) Sentinel() (Sentinel, bool) {
	if d == nil {
		return "", false
	}
	s, ok := d.Message.(Sentinel)
	return s, ok
}

// Record is one intercepted call: the symbol plus, once arrived, its data.
type Record struct {
	Timestamp int64
	Symbol    string
	Data      *Data
}

// Complete reports whether the data half has arrived.
func (r *Record) Complete() bool {
	return r.Data != nil
}
