package presence

import (
	"fmt"
	"sync"
	"testing"
)

func TestJoinLeave(t *testing.T) {
	r := NewRegistry()

	if r.IsOnline("pat-1") {
		t.Fatal("nobody joined yet")
	}

	r.Join("pat-1", "conn-a")
	if !r.IsOnline("pat-1") {
		t.Fatal("expected online after join")
	}

	r.Join("pat-1", "conn-b")
	if got := len(r.ConnectionsFor("pat-1")); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}

	r.Leave("pat-1", "conn-a")
	if !r.IsOnline("pat-1") {
		t.Fatal("still one connection left")
	}

	r.Leave("pat-1", "conn-b")
	if r.IsOnline("pat-1") {
		t.Fatal("expected offline after last leave")
	}
	if got := len(r.ConnectionsFor("pat-1")); got != 0 {
		t.Fatalf("expected empty snapshot, got %d", got)
	}
}

func TestJoinIdempotent(t *testing.T) {
	r := NewRegistry()

	r.Join("pat-1", "conn-a")
	r.Join("pat-1", "conn-a")
	if got := len(r.ConnectionsFor("pat-1")); got != 1 {
		t.Errorf("expected 1 connection, got %d", got)
	}

	r.Leave("pat-1", "conn-a")
	if r.IsOnline("pat-1") {
		t.Error("expected offline after single leave")
	}
}

func TestLeaveUnknown(t *testing.T) {
	r := NewRegistry()
	// must not panic or create entries
	r.Leave("pat-9", "conn-x")
	if r.IsOnline("pat-9") {
		t.Error("leave must not create presence")
	}
}

func TestOnConnectionClosed(t *testing.T) {
	r := NewRegistry()
	r.Join("pat-1", "conn-a")
	r.Join("pat-1", "conn-b")
	r.Join("pat-2", "conn-c")

	r.OnConnectionClosed("conn-a")
	if got := len(r.ConnectionsFor("pat-1")); got != 1 {
		t.Fatalf("expected 1 connection for pat-1, got %d", got)
	}

	r.OnConnectionClosed("conn-c")
	if r.IsOnline("pat-2") {
		t.Error("pat-2 should be pruned after its only connection closed")
	}
	if !r.IsOnline("pat-1") {
		t.Error("pat-1 should still be online")
	}
}

func TestConcurrentMutation(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("conn-%d", i)
			r.Join("pat-1", conn)
			r.IsOnline("pat-1")
			r.ConnectionsFor("pat-1")
			r.Leave("pat-1", conn)
		}(i)
	}
	wg.Wait()

	if r.IsOnline("pat-1") {
		t.Error("all connections left, expected offline")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	r.Join("pat-1", "conn-a")

	snap := r.ConnectionsFor("pat-1")
	snap[0] = "mutated"

	if got := r.ConnectionsFor("pat-1"); got[0] != "conn-a" {
		t.Error("snapshot mutation leaked into registry")
	}
}
