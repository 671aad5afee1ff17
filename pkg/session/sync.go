package session

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SyncEvent is the wire message pushed to every attached tab of a
// visitor when the store transitions. A logout in one tab reaches the
// others through this channel.
type SyncEvent struct {
	Event  string `json:"event"`
	Status string `json:"status"`
	User   *User  `json:"user,omitempty"`
}

// syncEventName is the single event kind currently on the wire.
const syncEventName = "session"

// SyncHub fans session state transitions out to WebSocket clients,
// grouped by visitor session ID.
type SyncHub struct {
	upgrader websocket.Upgrader
	log      *slog.Logger

	writeTimeout time.Duration
	pingInterval time.Duration

	mu      sync.RWMutex
	clients map[string]map[string]*syncClient // sid -> client id -> client
	closed  bool
}

type syncClient struct {
	id   string
	conn *websocket.Conn
	send chan SyncEvent
	once sync.Once
	done chan struct{}
}

// SyncOption configures a SyncHub.
type SyncOption func(*SyncHub)

// WithSyncLogger sets the structured logger.
func WithSyncLogger(log *slog.Logger) SyncOption {
	return func(h *SyncHub) { h.log = log }
}

// WithCheckOrigin sets the WebSocket origin check. By default only
// same-origin upgrades are accepted (gorilla's default).
func WithCheckOrigin(check func(r *http.Request) bool) SyncOption {
	return func(h *SyncHub) { h.upgrader.CheckOrigin = check }
}

// WithWriteTimeout sets the per-message write deadline. Default: 10s.
func WithWriteTimeout(d time.Duration) SyncOption {
	return func(h *SyncHub) { h.writeTimeout = d }
}

// NewSyncHub creates an empty hub.
func NewSyncHub(opts ...SyncOption) *SyncHub {
	h := &SyncHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		writeTimeout: 10 * time.Second,
		pingInterval: 30 * time.Second,
		clients:      make(map[string]map[string]*syncClient),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	return h
}

// Watch subscribes the hub to a store and broadcasts every transition
// under the given visitor session ID. Returns the unsubscribe func.
func (h *SyncHub) Watch(store *Store, sid string) func() {
	return store.Subscribe(func(state State) {
		h.Broadcast(sid, SyncEvent{
			Event:  syncEventName,
			Status: state.Status.String(),
			User:   state.User,
		})
	})
}

// Handler upgrades the request and attaches the connection under sid.
// It returns immediately after starting the connection's pumps.
// respHeader is emitted with the handshake response; the upgrade
// hijacks the connection, so headers written to w directly would be
// lost. It may be nil.
func (h *SyncHub) Handler(sid string, respHeader http.Header) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, respHeader)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			h.log.Warn("sync: upgrade failed", "error", err)
			return
		}
		h.attach(sid, conn)
	}
}

func (h *SyncHub) attach(sid string, conn *websocket.Conn) {
	client := &syncClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan SyncEvent, 8),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	group, ok := h.clients[sid]
	if !ok {
		group = make(map[string]*syncClient)
		h.clients[sid] = group
	}
	group[client.id] = client
	h.mu.Unlock()

	go h.writePump(client)
	go h.readPump(sid, client)
}

// Broadcast queues an event for every connection of the visitor. A
// client whose buffer is full is dropped rather than allowed to stall
// the broadcaster.
func (h *SyncHub) Broadcast(sid string, event SyncEvent) {
	h.mu.RLock()
	group := h.clients[sid]
	clients := make([]*syncClient, 0, len(group))
	for _, c := range group {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- event:
		default:
			h.log.Warn("sync: dropping slow client", "sid", sid)
			h.detach(sid, c)
		}
	}
}

// Close detaches every client and rejects future attachments.
func (h *SyncHub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	groups := h.clients
	h.clients = make(map[string]map[string]*syncClient)
	h.mu.Unlock()

	for _, group := range groups {
		for _, c := range group {
			c.close()
		}
	}
	return nil
}

func (h *SyncHub) detach(sid string, client *syncClient) {
	h.mu.Lock()
	if group, ok := h.clients[sid]; ok {
		delete(group, client.id)
		if len(group) == 0 {
			delete(h.clients, sid)
		}
	}
	h.mu.Unlock()
	client.close()
}

func (c *syncClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// writePump serializes all writes for one connection: queued events
// and keepalive pings.
func (h *SyncHub) writePump(c *syncClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteJSON(event); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// readPump drains and discards client frames so pong handling and
// close detection work, then detaches.
func (h *SyncHub) readPump(sid string, c *syncClient) {
	defer h.detach(sid, c)

	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				h.log.Debug("sync: read error", "error", err)
			}
			return
		}
	}
}
