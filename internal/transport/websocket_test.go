package transport

import (
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startTestServer(t *testing.T) *WebSocketTransport {
	t.Helper()
	wst := NewWebSocketTransport("127.0.0.1:0", "/notes")
	if err := wst.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { wst.Close() })
	return wst
}

func dial(t *testing.T, wst *WebSocketTransport, path string) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://%s%s", wst.Addr(), path)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, wst *WebSocketTransport, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", wst.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst := startTestServer(t)
	c1 := dial(t, wst, "/notes")
	c2 := dial(t, wst, "/notes")
	waitForClients(t, wst, 2)

	event := NewDetection("abc", 7, time.Unix(0, 0).UTC(), matched("A4", 99, 10))
	if err := wst.Send(event); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for i, c := range []*websocket.Conn{c1, c2} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got Detection
		if err := c.ReadJSON(&got); err != nil {
			t.Fatalf("client %d ReadJSON: %v", i, err)
		}
		if got != event {
			t.Errorf("client %d got %+v, want %+v", i, got, event)
		}
	}
}

func TestWebSocketClientDisconnect(t *testing.T) {
	wst := startTestServer(t)
	c := dial(t, wst, "/notes")
	waitForClients(t, wst, 1)

	c.Close()
	waitForClients(t, wst, 0)
}

func TestWebSocketWrongPath(t *testing.T) {
	wst := startTestServer(t)
	url := fmt.Sprintf("ws://%s/other", wst.Addr())
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Error("expected dial on an unknown path to fail")
	}
}

func TestWebSocketStartBindError(t *testing.T) {
	wst := startTestServer(t)
	other := NewWebSocketTransport(wst.Addr().String(), "/notes")
	if err := other.Start(); err == nil {
		other.Close()
		t.Error("expected an error binding an address in use")
	}
}

func TestWebSocketCloseIsIdempotent(t *testing.T) {
	wst := NewWebSocketTransport("127.0.0.1:0", "/notes")
	if err := wst.Start(); err != nil {
		t.Fatal(err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	// Send after close must not block.
	for range broadcastQueue + 1 {
		wst.Send("x")
	}
}
