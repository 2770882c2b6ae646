package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestMessageRoundTripOrder(t *testing.T) {
	store := NewStore(nil)
	id := store.Create()

	const pairs = 10
	for i := 0; i < pairs; i++ {
		if err := store.AppendMessage(id, Message{Role: RoleUser, Content: fmt.Sprintf("u%d", i)}); err != nil {
			t.Fatalf("append user: %v", err)
		}
		if err := store.AppendMessage(id, Message{Role: RoleAssistant, Content: fmt.Sprintf("a%d", i)}); err != nil {
			t.Fatalf("append assistant: %v", err)
		}
	}

	msgs, err := store.Messages(id)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != pairs*2 {
		t.Fatalf("got %d messages, want %d", len(msgs), pairs*2)
	}
	for i := 0; i < pairs; i++ {
		if msgs[2*i].Content != fmt.Sprintf("u%d", i) || msgs[2*i+1].Content != fmt.Sprintf("a%d", i) {
			t.Fatalf("messages out of order at pair %d: %q %q", i, msgs[2*i].Content, msgs[2*i+1].Content)
		}
	}
}

func TestUnknownSession(t *testing.T) {
	store := NewStore(nil)
	if err := store.AppendMessage("nope", Message{Role: RoleUser, Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendMessage err = %v, want ErrNotFound", err)
	}
	if _, err := store.Messages("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Messages err = %v, want ErrNotFound", err)
	}
	if _, err := store.Pending("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Pending err = %v, want ErrNotFound", err)
	}
}

func TestPendingSlotHoldsAtMostOne(t *testing.T) {
	store := NewStore(nil)
	id := store.Create()

	if err := store.SetPending(id, PendingAction{Tool: "terminal", Command: "whoami", ToolCallID: "c1"}); err != nil {
		t.Fatalf("SetPending: %v", err)
	}
	err := store.SetPending(id, PendingAction{Tool: "terminal", Command: "pwd", ToolCallID: "c2"})
	if !errors.Is(err, ErrPendingExists) {
		t.Fatalf("second SetPending err = %v, want ErrPendingExists", err)
	}

	p, err := store.Pending(id)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if p == nil || p.Command != "whoami" {
		t.Fatalf("pending = %+v, want original whoami action", p)
	}

	if err := store.ClearPending(id); err != nil {
		t.Fatalf("ClearPending: %v", err)
	}
	p, _ = store.Pending(id)
	if p != nil {
		t.Fatalf("pending not cleared: %+v", p)
	}
	// Clearing twice is fine.
	if err := store.ClearPending(id); err != nil {
		t.Fatalf("second ClearPending: %v", err)
	}
}

func TestResetDropsStateAndFiresHook(t *testing.T) {
	var resets []string
	store := NewStore(func(id string) { resets = append(resets, id) })
	id := store.Create()
	if len(resets) != 1 || resets[0] != id {
		t.Fatalf("create hook calls = %v", resets)
	}

	store.AppendMessage(id, Message{Role: RoleUser, Content: "hi"})
	store.SetPending(id, PendingAction{Tool: "terminal", Command: "ls", ToolCallID: "c1"})

	if err := store.Reset(id); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	msgs, _ := store.Messages(id)
	if len(msgs) != 0 {
		t.Errorf("messages after reset: %d", len(msgs))
	}
	if p, _ := store.Pending(id); p != nil {
		t.Errorf("pending after reset: %+v", p)
	}
	if len(resets) != 2 {
		t.Errorf("reset hook calls = %d, want 2", len(resets))
	}
}

func TestConcurrentSessionsIsolated(t *testing.T) {
	store := NewStore(nil)
	ids := make([]string, 8)
	for i := range ids {
		ids[i] = store.Create()
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			release, err := store.AcquireTurn(id)
			if err != nil {
				t.Errorf("AcquireTurn: %v", err)
				return
			}
			defer release()
			for j := 0; j < 50; j++ {
				store.AppendMessage(id, Message{Role: RoleUser, Content: fmt.Sprintf("s%d-m%d", i, j)})
			}
		}(i, id)
	}
	wg.Wait()

	for _, id := range ids {
		msgs, err := store.Messages(id)
		if err != nil {
			t.Fatalf("Messages: %v", err)
		}
		if len(msgs) != 50 {
			t.Errorf("session %s has %d messages, want 50", id, len(msgs))
		}
	}
}
