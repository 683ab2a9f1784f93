package notification

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBroadcastReachesLocalConnections(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	conn := &Connection{Send: make(chan []byte, 4)}
	hub.Register(conn)
	defer hub.Unregister(conn)

	waitForConnections(t, hub, 1)

	hub.Broadcast(map[string]string{"type": "evidence_submitted"})

	select {
	case data := <-conn.Send:
		var event map[string]string
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if event["type"] != "evidence_submitted" {
			t.Fatalf("unexpected event: %v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("expected broadcast to reach connection")
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	conn := &Connection{Send: make(chan []byte, 1)}
	hub.Register(conn)
	defer hub.Unregister(conn)

	waitForConnections(t, hub, 1)

	// The second broadcast must not block on the full buffer.
	done := make(chan struct{})
	go func() {
		hub.Broadcast(map[string]string{"n": "1"})
		hub.Broadcast(map[string]string{"n": "2"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on slow consumer")
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	conn := &Connection{Send: make(chan []byte, 1)}
	hub.Register(conn)
	waitForConnections(t, hub, 1)

	hub.Unregister(conn)
	waitForConnections(t, hub, 0)

	select {
	case _, ok := <-conn.Send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("expected send channel to be closed")
	}
}

func waitForConnections(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ConnectionCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d connections, got %d", want, hub.ConnectionCount())
}
