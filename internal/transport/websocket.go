// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	applog "sampler/internal/log"
)

// shutdownTimeout bounds how long ListenAndServe waits for open requests.
const shutdownTimeout = time.Second

// WebSocketTransport serves the presentation bridge at /ws. Every client
// receives every outbound message; inbound messages from any client are
// dispatched to the controller.
type WebSocketTransport struct {
	addr       string
	upgrader   websocket.Upgrader
	controller Controller
	clients    map[*websocket.Conn]bool
	clientsMu  sync.Mutex // Also serializes writes to client connections.
	broadcast  chan any
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// NewWebSocketTransport creates the bridge and starts its broadcast loop. The
// HTTP listener is started by Start; tests can mount Handler directly.
func NewWebSocketTransport(addr string, controller Controller) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr:       addr,
		controller: controller,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local tool; any page may connect.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
		done:      make(chan struct{}),
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Handler returns the HTTP handler serving /ws.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	return mux
}

// ListenAndServe serves the bridge on the configured address until ctx is
// done. Connected clients are dropped by Close.
func (wst *WebSocketTransport) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:    wst.addr,
		Handler: wst.Handler(),
	}
	errc := make(chan error, 1)
	go func() {
		applog.Infof("WebSocketTransport: Starting WebSocket server on %s", wst.addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("websocket server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	// Greet before registering so the broadcast loop cannot interleave.
	wst.clientsMu.Lock()
	if wst.controller != nil {
		for _, msg := range wst.controller.Greeting() {
			if err := conn.WriteJSON(msg); err != nil {
				wst.clientsMu.Unlock()
				conn.Close()
				applog.Warnf("WebSocketTransport: Greeting failed: %v", err)
				return
			}
		}
	}
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client connected, total: %d", total)

	go wst.readLoop(conn)
}

// readLoop dispatches inbound commands until the client goes away.
func (wst *WebSocketTransport) readLoop(conn *websocket.Conn) {
	defer wst.drop(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if wst.controller == nil {
			continue
		}
		if err := Dispatch(wst.controller, data); err != nil {
			applog.Warnf("WebSocketTransport: Rejected command: %v", err)
		}
	}
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	conn.Close()
	if ok {
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends queued messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				if err := client.WriteJSON(data); err != nil {
					applog.Warnf("WebSocketTransport: Error sending to client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		case <-wst.done:
			return
		}
	}
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Send queues data for broadcast. When the queue is full the message is
// dropped; the next message supersedes it.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case wst.broadcast <- data:
	case <-wst.done:
	default:
		applog.Debugf("WebSocketTransport: Broadcast queue full, dropping %T", data)
	}
	return nil
}

// Close stops the broadcast loop and disconnects every client. It is safe to
// call more than once.
func (wst *WebSocketTransport) Close() error {
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)
		wst.wg.Wait()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()
	})
	return nil
}

var _ Transport = (*WebSocketTransport)(nil)
