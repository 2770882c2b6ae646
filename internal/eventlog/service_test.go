package eventlog

import (
	"path/filepath"
	"testing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestLogAndReadBack(t *testing.T) {
	svc := newTestService(t)

	if err := svc.Log("s1", "chat_request_received", map[string]any{"message": "hi"}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := svc.Log("s1", "turn_complete", nil); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := svc.Log("s2", "session_created", nil); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := svc.Events("s1")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].EventType != "chat_request_received" || entries[1].EventType != "turn_complete" {
		t.Errorf("entries out of order: %q, %q", entries[0].EventType, entries[1].EventType)
	}
	if msg, _ := entries[0].Data["message"].(string); msg != "hi" {
		t.Errorf("data round trip = %v", entries[0].Data)
	}
}

func TestClearIsScopedToSession(t *testing.T) {
	svc := newTestService(t)
	svc.Log("s1", "a", nil)
	svc.Log("s2", "b", nil)

	if err := svc.Clear("s1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if entries, _ := svc.Events("s1"); len(entries) != 0 {
		t.Errorf("s1 not cleared: %d entries", len(entries))
	}
	if entries, _ := svc.Events("s2"); len(entries) != 1 {
		t.Errorf("s2 affected by clear: %d entries", len(entries))
	}
}

func TestEventsEmptySession(t *testing.T) {
	svc := newTestService(t)
	entries, err := svc.Events("never-seen")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}
