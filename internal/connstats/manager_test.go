package connstats

import (
	"context"
	"testing"
	"time"

	"github.com/mrzor/xpcspy/internal/conninfo"
	"github.com/mrzor/xpcspy/internal/correlator"
)

func TestManager_AddAndGet(t *testing.T) {
	m := NewManager()
	t0 := time.Unix(100, 0)
	t1 := time.Unix(200, 0)

	m.Add("com.apple.lsd", "xpc_connection_send_message", false, t0)
	m.Add("com.apple.lsd", "xpc_connection_send_message", true, t1)
	m.Add("com.apple.lsd", "xpc_connection_send_message_with_reply", false, t1)

	got := m.Get("com.apple.lsd")
	if got == nil {
		t.Fatal("Get() returned nil")
	}
	if got.Records != 3 {
		t.Errorf("Records = %d, want 3", got.Records)
	}
	if got.Sentinels != 1 {
		t.Errorf("Sentinels = %d, want 1", got.Sentinels)
	}
	if got.Symbols["xpc_connection_send_message"] != 2 {
		t.Errorf("Symbols[send_message] = %d, want 2", got.Symbols["xpc_connection_send_message"])
	}
	if !got.FirstSeen.Equal(t0) || !got.LastSeen.Equal(t1) {
		t.Errorf("FirstSeen/LastSeen = %v/%v, want %v/%v", got.FirstSeen, got.LastSeen, t0, t1)
	}
}

func TestManager_GetNonExistent(t *testing.T) {
	m := NewManager()

	if got := m.Get("nope"); got != nil {
		t.Error("Expected nil for unknown service")
	}
}

func TestManager_GetReturnsSnapshot(t *testing.T) {
	m := NewManager()
	m.Add("svc", "sym", false, time.Now())

	snapshot := m.Get("svc")
	snapshot.Symbols["sym"] = 99

	if m.Get("svc").Symbols["sym"] != 1 {
		t.Error("mutating a snapshot must not change the manager")
	}
}

func TestManager_EmptyServiceIsUnknown(t *testing.T) {
	m := NewManager()
	m.Add("", "sym", false, time.Now())

	if m.Get(UnknownService) == nil {
		t.Errorf("expected record under %q", UnknownService)
	}
}

func TestManager_ServicesOrdering(t *testing.T) {
	m := NewManager()
	now := time.Now()
	m.Add("b", "s", false, now)
	m.Add("a", "s", false, now)
	m.Add("c", "s", false, now)
	m.Add("c", "s", false, now)

	services := m.Services()
	if len(services) != 3 {
		t.Fatalf("Services() length = %d, want 3", len(services))
	}
	want := []string{"c", "a", "b"}
	for i, name := range want {
		if services[i].Service != name {
			t.Errorf("Services()[%d] = %q, want %q", i, services[i].Service, name)
		}
	}
	if m.Total() != 4 {
		t.Errorf("Total() = %d, want 4", m.Total())
	}
}

func TestManager_Reset(t *testing.T) {
	m := NewManager()
	m.Add("svc", "sym", false, time.Now())
	m.Reset()

	if m.Total() != 0 || len(m.Services()) != 0 {
		t.Error("Reset() should clear all statistics")
	}
}

func TestManager_Concurrent(_ *testing.T) {
	m := NewManager()
	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			m.Add("svc", "sym", i%2 == 0, time.Now())
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			_ = m.Get("svc")
			_ = m.Services()
		}
		done <- true
	}()

	<-done
	<-done
}

func TestCollector_HandleRecord(t *testing.T) {
	m := NewManager()
	c := NewCollector(m, conninfo.New())

	records := []*correlator.Record{
		{Symbol: "send", Data: &correlator.Data{
			Conn:    "<OS_xpc_connection: <connection: 0x1> { name = com.apple.lsd, listener = false, pid = 91 }>",
			Message: "m",
		}},
		{Symbol: "send", Data: &correlator.Data{Message: correlator.SentinelUndecodable}},
	}
	for _, rec := range records {
		if err := c.HandleRecord(context.Background(), rec); err != nil {
			t.Fatalf("HandleRecord() error = %v", err)
		}
	}

	if got := m.Get("com.apple.lsd"); got == nil || got.Records != 1 {
		t.Errorf("com.apple.lsd stats = %+v, want 1 record", got)
	}
	unknown := m.Get(UnknownService)
	if unknown == nil || unknown.Sentinels != 1 {
		t.Errorf("unknown stats = %+v, want 1 sentinel", unknown)
	}
}
