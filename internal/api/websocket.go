package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"bernar-snake/internal/game"
	"bernar-snake/internal/input"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// MaxWSConnectionsTotal is the default cap on WebSocket connections
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the default per-IP cap
	MaxWSConnectionsPerIP = 10

	// MaxWSMessageSize bounds incoming command frames
	MaxWSMessageSize = 512

	wsWriteTimeout = 2 * time.Second
)

// Outgoing event names
const (
	WSEventState = "game:state"
	WSEventGame  = "game:event"
)

// CommandSink accepts parsed commands from clients
type CommandSink interface {
	Enqueue(cmd input.Command) bool
}

// SnapshotSource provides the latest snapshot for periodic broadcasts
type SnapshotSource interface {
	GetSnapshot() *game.Snapshot
}

// WSMessage is the envelope for every server push
type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// HubConfig configures connection limits and command routing
type HubConfig struct {
	MaxConnections      int
	MaxConnectionsPerIP int
	Origins             *OriginChecker // nil allows every origin
	Commands            CommandSink    // nil ignores incoming messages
	Limits              SourceForgetter
}

// SourceForgetter drops per-source rate limit state when a client leaves
type SourceForgetter interface {
	Forget(source string)
}

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	conn *websocket.Conn
	ip   string
	id   string
}

// WebSocketHub manages all WebSocket connections with DoS protection.
// Only the Run goroutine writes to connections.
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	config   HubConfig
	slots    *connSlots
	upgrader websocket.Upgrader
}

// NewWebSocketHub creates a new hub with connection limiting
func NewWebSocketHub(cfg HubConfig) *WebSocketHub {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = MaxWSConnectionsTotal
	}
	if cfg.MaxConnectionsPerIP <= 0 {
		cfg.MaxConnectionsPerIP = MaxWSConnectionsPerIP
	}

	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		config:     cfg,
		slots:      newConnSlots(cfg.MaxConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHub) checkOrigin(r *http.Request) bool {
	if h.config.Origins == nil {
		return true
	}
	origin := r.Header.Get("Origin")
	if h.config.Origins.Allowed(origin) {
		return true
	}
	log.Warn().Str("origin", origin).Msg("⚠️ WebSocket connection rejected from origin")
	RecordConnectionRejected("origin")
	return false
}

// Run services registrations and broadcasts until Stop
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for conn, client := range h.clients {
				h.slots.release(client.ip)
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
					time.Now().Add(wsWriteTimeout))
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Info().Str("ip", client.ip).Str("client", client.id).Int("total", count).Msg("📱 Client connected")
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.mu.Lock()
			h.remove(conn)
			count := len(h.clients)
			h.mu.Unlock()

			log.Info().Int("remaining", count).Msg("📱 Client disconnected")
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.remove(conn)
				}
			}
			count := len(h.clients)
			h.mu.Unlock()

			UpdateWSConnections(count)
			IncrementWSMessages()
		}
	}
}

// remove must be called with h.mu held
func (h *WebSocketHub) remove(conn *websocket.Conn) {
	if client, ok := h.clients[conn]; ok {
		h.slots.release(client.ip)
		delete(h.clients, conn)
		conn.Close()
	}
}

// Stop closes every connection and ends Run
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast sends a message to all connected clients (non-blocking)
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	jsonBytes, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
		// Channel full, skip (backpressure)
	}
}

// BroadcastEvent forwards an engine event. Registered as an engine listener.
func (h *WebSocketHub) BroadcastEvent(ev game.Event) {
	h.Broadcast(WSEventGame, ev)
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop pushes the latest snapshot every interval while clients are connected
func (h *WebSocketHub) StartBroadcastLoop(source SnapshotSource, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
			}
			if h.ClientCount() == 0 {
				continue
			}
			if snap := source.GetSnapshot(); snap != nil {
				h.Broadcast(WSEventState, snap)
			}
		}
	}()
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= h.config.MaxConnections {
		log.Warn().Int("total", total).Msg("⚠️ WebSocket connection rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		writeError(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.slots.acquire(ip) {
		log.Warn().Str("ip", ip).Msg("⚠️ WebSocket connection rejected: per-IP limit reached")
		RecordConnectionRejected("ws_ip_limit")
		writeError(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("WebSocket upgrade error")
		h.slots.release(ip) // Release the slot we reserved
		return
	}
	conn.SetReadLimit(MaxWSMessageSize)

	client := &wsClient{conn: conn, ip: ip, id: uuid.NewString()}
	select {
	case h.register <- client:
	case <-h.done:
		h.slots.release(ip)
		conn.Close()
		return
	}

	go h.readLoop(client)
}

// readLoop turns incoming frames into commands
func (h *WebSocketHub) readLoop(client *wsClient) {
	source := "ws:" + client.id
	defer func() {
		if h.config.Limits != nil {
			h.config.Limits.Forget(source)
		}
		select {
		case h.unregister <- client.conn:
		case <-h.done:
		}
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if h.config.Commands == nil {
			continue
		}

		cmd, err := parseWSCommand(message)
		if err != nil {
			RecordWSCommand("invalid")
			log.Debug().Str("client", client.id).Bytes("msg", message).Msg("📨 Ignored WebSocket message")
			continue
		}
		cmd.Source = source
		if h.config.Commands.Enqueue(cmd) {
			RecordWSCommand("queued")
		} else {
			RecordWSCommand("dropped")
		}
	}
}

// parseWSCommand accepts plain text ("up", "!restart") or {"command":"up"}
func parseWSCommand(message []byte) (input.Command, error) {
	text := strings.TrimSpace(string(message))
	if strings.HasPrefix(text, "{") {
		var msg struct {
			Command string `json:"command"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			return input.Command{}, errors.Join(input.ErrUnknownCommand, err)
		}
		text = msg.Command
	}
	return input.Parse(text)
}
