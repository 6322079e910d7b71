package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/fes.go/pkg/fes"
)

// DefaultWriteTimeout bounds a send to one websocket client.
const DefaultWriteTimeout = time.Second

// Hub streams status snapshots as JSON to websocket clients. Every client
// has its own writer, Broadcast never waits for a client.
type Hub struct {
	// WriteTimeout drops clients which do not accept a status in time.
	WriteTimeout time.Duration

	lock    sync.Mutex
	clients map[*websocket.Conn]chan fes.Status
	last    *fes.Status
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{
		WriteTimeout: DefaultWriteTimeout,
		clients:      make(map[*websocket.Conn]chan fes.Status),
	}
}

// Handler returns the websocket endpoint.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(h.serve)
}

func (h *Hub) serve(conn *websocket.Conn) {
	out := make(chan fes.Status, 1)
	h.lock.Lock()
	if h.last != nil {
		out <- *h.last
	}
	h.clients[conn] = out
	h.lock.Unlock()
	glog.V(1).Infof("ws client %s connected", conn.Request().RemoteAddr)

	go h.write(conn, out)

	// clients only listen, reading detects the disconnect.
	var discard []byte
	for {
		if err := websocket.Message.Receive(conn, &discard); err != nil {
			break
		}
	}
	h.lock.Lock()
	delete(h.clients, conn)
	close(out)
	h.lock.Unlock()
	conn.Close()
}

func (h *Hub) write(conn *websocket.Conn, out <-chan fes.Status) {
	for st := range out {
		if h.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout))
		}
		if err := websocket.JSON.Send(conn, st); err != nil {
			glog.V(1).Infof("ws client dropped: %v", err)
			// unblocks the reader in serve, which removes the client.
			conn.Close()
			for range out {
			}
			return
		}
	}
}

// Broadcast queues st for all clients. A client still sending an older
// status only gets the latest one.
func (h *Hub) Broadcast(st fes.Status) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.last = &st
	for _, out := range h.clients {
		select {
		case out <- st:
		default:
			select {
			case <-out:
			default:
			}
			out <- st
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// PublishStatus broadcasts st.
func (h *Hub) PublishStatus(st fes.Status) error {
	h.Broadcast(st)
	return nil
}
