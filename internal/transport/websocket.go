package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	applog "tuner/internal/log"

	"github.com/gorilla/websocket"
)

const (
	broadcastQueue = 256
	writeTimeout   = 2 * time.Second
)

// WebSocketTransport implements the Transport interface for WebSocket connections
type WebSocketTransport struct {
	addr      string
	path      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	server    *http.Server
	listener  net.Listener
	done      chan struct{}
	closeOnce sync.Once
	dropped   uint64
}

// NewWebSocketTransport creates a new WebSocketTransport instance. Call Start
// to begin accepting clients.
func NewWebSocketTransport(addr, path string) *WebSocketTransport {
	if path == "" {
		path = "/"
	}
	return &WebSocketTransport{
		addr: addr,
		path: path,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Clients are local visualisers
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
	}
}

// Start binds the listen address and begins serving. Bind failures are
// returned rather than logged so the session can abort.
func (wst *WebSocketTransport) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc(wst.path, wst.handleWebSocket)

	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", wst.addr, err)
	}
	wst.listener = ln
	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		applog.Infof("WebSocketTransport: Serving ws://%s%s", ln.Addr(), wst.path)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()

	go wst.handleBroadcasts()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (wst *WebSocketTransport) Addr() net.Addr {
	if wst.listener == nil {
		return nil
	}
	return wst.listener.Addr()
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients never send; reading only detects the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wst.clientsMu.Lock()
		delete(wst.clients, conn)
		total := len(wst.clients)
		wst.clientsMu.Unlock()
		conn.Close()
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}()
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteJSON(data); err != nil {
					applog.Warnf("WebSocketTransport: Error sending to client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send queues data for broadcast. It never blocks; when the queue is full the
// message is dropped.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case wst.broadcast <- data:
	default:
		wst.dropped++
		if wst.dropped%broadcastQueue == 1 {
			applog.Warnf("WebSocketTransport: Broadcast queue full, %d messages dropped", wst.dropped)
		}
	}
	return nil
}

// Close shuts down the WebSocket server
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
