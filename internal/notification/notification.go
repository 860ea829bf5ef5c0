// Package notification parses the messages the injection bridge forwards from
// the agent.
//
// Each message is one JSON object:
//
//	{"type": "send", "payload": {"type": "agent:trace:symbol",
//	  "message": {"timestamp": 1700000000123, "symbol": "xpc_connection_send_message"}}}
//	{"type": "send", "payload": {"type": "agent:trace:data",
//	  "message": {"timestamp": 1700000000123, "data": {"conn": "...", "message": "..."}}}}
//	{"type": "error", "description": "...", "stack": "..."}
//
// The top-level discriminator may also be spelled "kind". Payload types are
// accepted with or without the "agent:" prefix.
package notification

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrzor/xpcspy/internal/jsonvalue"
	"github.com/valyala/fastjson"
)

// Kind identifies what a notification carries.
type Kind string

// Notification kinds understood by the event processor.
const (
	KindHooksInstalled Kind = "hooks_installed"
	KindSymbol         Kind = "trace:symbol"
	KindData           Kind = "trace:data"
	KindError          Kind = "error"
)

const agentPrefix = "agent:"

// ErrMalformed is returned for messages that cannot be interpreted at all.
var ErrMalformed = errors.New("malformed notification")

// Notification is one parsed message.
type Notification struct {
	Kind      Kind
	Timestamp int64
	Symbol    string
	Conn      any
	Message   any

	// Description and Stack are set for KindError.
	Description string
	Stack       string
}

// Parser parses notifications. It is safe for concurrent use.
type Parser struct {
	pool fastjson.ParserPool
}

// Parse parses one JSON message.
func (p *Parser) Parse(raw []byte) (*Notification, error) {
	parser := p.pool.Get()
	defer p.pool.Put(parser)

	v, err := parser.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("%w: expected object, got %s", ErrMalformed, v.Type())
	}

	transportType := string(v.GetStringBytes("type"))
	if transportType == "" {
		transportType = string(v.GetStringBytes("kind"))
	}

	if transportType == string(KindError) {
		return &Notification{
			Kind:        KindError,
			Description: string(v.GetStringBytes("description")),
			Stack:       string(v.GetStringBytes("stack")),
		}, nil
	}

	payload := v.Get("payload")
	if payload == nil || payload.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformed)
	}

	n := &Notification{
		Kind: Kind(strings.TrimPrefix(string(payload.GetStringBytes("type")), agentPrefix)),
	}
	if n.Kind == "" {
		return nil, fmt.Errorf("%w: missing payload type", ErrMalformed)
	}

	switch n.Kind {
	case KindSymbol:
		err = parseSymbol(n, payload.Get("message"))
	case KindData:
		err = parseData(n, payload.Get("message"))
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func parseTimestamp(msg *fastjson.Value) (int64, error) {
	ts := msg.Get("timestamp")
	if ts == nil || ts.Type() != fastjson.TypeNumber {
		return 0, fmt.Errorf("%w: missing numeric timestamp", ErrMalformed)
	}
	if n, err := ts.Int64(); err == nil {
		return n, nil
	}
	return int64(ts.GetFloat64()), nil
}

func parseSymbol(n *Notification, msg *fastjson.Value) error {
	if msg == nil || msg.Type() != fastjson.TypeObject {
		return fmt.Errorf("%w: %s without message", ErrMalformed, n.Kind)
	}

	ts, err := parseTimestamp(msg)
	if err != nil {
		return err
	}
	n.Timestamp = ts

	symbol := msg.Get("symbol")
	if symbol == nil || symbol.Type() != fastjson.TypeString {
		return fmt.Errorf("%w: %s without symbol", ErrMalformed, n.Kind)
	}
	n.Symbol = string(symbol.GetStringBytes())
	return nil
}

func parseData(n *Notification, msg *fastjson.Value) error {
	if msg == nil || msg.Type() != fastjson.TypeObject {
		return fmt.Errorf("%w: %s without message", ErrMalformed, n.Kind)
	}

	ts, err := parseTimestamp(msg)
	if err != nil {
		return err
	}
	n.Timestamp = ts

	data := msg.Get("data")
	if data == nil || data.Type() != fastjson.TypeObject {
		return fmt.Errorf("%w: %s without data object", ErrMalformed, n.Kind)
	}
	n.Conn = jsonvalue.From(data.Get("conn"))
	n.Message = jsonvalue.From(data.Get("message"))
	return nil
}
