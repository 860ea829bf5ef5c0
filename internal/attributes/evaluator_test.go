package attributes

import (
	"strings"
	"testing"

	"github.com/mrzor/xpcspy/internal/config"
	"github.com/mrzor/xpcspy/internal/conninfo"
	"github.com/mrzor/xpcspy/internal/correlator"
)

const lsdConn = "<OS_xpc_connection: <connection: 0x1> { name = com.apple.lsd.mapdb, listener = false, pid = 91, euid = 501 }>"

func testEnv() Env {
	rec := &correlator.Record{
		Timestamp: 1700000000123,
		Symbol:    "xpc_connection_send_message",
		Data: &correlator.Data{
			Conn:    lsdConn,
			Message: map[string]any{"op": "lookup", "args": map[string]any{"n": int64(2)}},
		},
	}
	return NewEnv(rec, conninfo.New().Lookup(lsdConn))
}

func TestEvaluator_Simple(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "xpc.op", Expression: `message.op`},
		{Name: "xpc.where", Expression: `service + "/" + string(pid)`},
		{Name: "xpc.euid", Expression: `fields["euid"]`},
	}

	evaluator, err := NewEvaluator(attrs)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	if evaluator.Len() != 3 {
		t.Errorf("Len() = %d, want 3", evaluator.Len())
	}

	result, err := evaluator.EvaluateCustomAttributes(testEnv())
	if err != nil {
		t.Fatalf("EvaluateCustomAttributes() error = %v", err)
	}

	want := map[string]string{
		"xpc.op":    "lookup",
		"xpc.where": "com.apple.lsd.mapdb/91",
		"xpc.euid":  "501",
	}
	if len(result) != len(want) {
		t.Fatalf("Expected %d attributes, got %d", len(want), len(result))
	}
	for _, kv := range result {
		if want[string(kv.Key)] != kv.Value.AsString() {
			t.Errorf("%s = %q, want %q", kv.Key, kv.Value.AsString(), want[string(kv.Key)])
		}
	}
}

func TestEvaluator_MapExpansion(t *testing.T) {
	evaluator, err := NewEvaluator([]config.CustomAttribute{
		{Name: "msg", Expression: `message.args`},
	})
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	result, err := evaluator.EvaluateCustomAttributes(testEnv())
	if err != nil {
		t.Fatalf("EvaluateCustomAttributes() error = %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("Expected 1 attribute (map expansion), got %d", len(result))
	}
	if result[0].Key != "msg.n" || result[0].Value.AsString() != "2" {
		t.Errorf("result[0] = %s=%q, want msg.n=2", result[0].Key, result[0].Value.AsString())
	}
}

func TestEvaluator_SanitizesExpandedKeys(t *testing.T) {
	evaluator, err := NewEvaluator([]config.CustomAttribute{
		{Name: "conn", Expression: `{"peer.name": service}`},
	})
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	result, _ := evaluator.EvaluateCustomAttributes(testEnv())
	if len(result) != 1 || result[0].Key != "conn.peer_name" {
		t.Errorf("result = %v, want conn.peer_name", result)
	}
}

func TestEvaluator_RuntimeErrorSkipsAttribute(t *testing.T) {
	evaluator, err := NewEvaluator([]config.CustomAttribute{
		{Name: "bad", Expression: `message.op + 1`},
		{Name: "good", Expression: `symbol`},
	})
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	result, err := evaluator.EvaluateCustomAttributes(testEnv())
	if err == nil || !strings.Contains(err.Error(), `"bad"`) {
		t.Errorf("error = %v, want failure naming the bad attribute", err)
	}
	if len(result) != 1 || result[0].Key != "good" {
		t.Errorf("result = %v, want only the good attribute", result)
	}
}

func TestEvaluator_NilResultSkipped(t *testing.T) {
	evaluator, err := NewEvaluator([]config.CustomAttribute{
		{Name: "missing", Expression: `pid > 0 ? service : nil`},
	})
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	result, err := evaluator.EvaluateCustomAttributes(NewEnv(&correlator.Record{Symbol: "s"}, nil))
	if err != nil {
		t.Fatalf("EvaluateCustomAttributes() error = %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected no attributes, got %v", result)
	}
}

func TestEvaluator_CompileError(t *testing.T) {
	_, err := NewEvaluator([]config.CustomAttribute{
		{Name: "broken", Expression: `symbol +`},
	})
	if err == nil {
		t.Fatal("Expected compile error")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error %q should name the attribute", err)
	}
}

func TestEvaluator_Empty(t *testing.T) {
	evaluator, err := NewEvaluator(nil)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	result, err := evaluator.EvaluateCustomAttributes(testEnv())
	if err != nil || result != nil {
		t.Errorf("EvaluateCustomAttributes() = %v, %v; want nil, nil", result, err)
	}
}

func TestNewEnv(t *testing.T) {
	env := NewEnv(&correlator.Record{
		Timestamp: 5,
		Symbol:    "s",
		Data:      &correlator.Data{Message: correlator.SentinelTimedOut},
	}, nil)

	if env.Message != "<timed out>" {
		t.Errorf("Message = %#v, want plain sentinel string", env.Message)
	}
	if env.PID != -1 || env.Service != "" {
		t.Errorf("PID/Service = %d/%q, want -1/empty without descriptor", env.PID, env.Service)
	}
	if env.Fields == nil {
		t.Error("Fields should never be nil")
	}
}
