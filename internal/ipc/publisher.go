package ipc

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"bernar-snake/internal/game"

	"github.com/rs/zerolog/log"
)

// SnapshotSource is the part of the engine the publisher needs
type SnapshotSource interface {
	GetSnapshot() *game.Snapshot
	OnEvent(game.EventListener)
}

// PublisherStats is a point-in-time view for monitoring
type PublisherStats struct {
	Clients int   `json:"clients"`
	Sent    int64 `json:"sent"`
	Dropped int64 `json:"dropped"`
}

// Publisher streams engine snapshots to connected spectators
type Publisher struct {
	socketPath string
	listener   net.Listener

	clients   map[net.Conn]struct{}
	clientsMu sync.RWMutex

	// Ring buffer behavior: drop the oldest if full
	snapshotCh chan *game.Snapshot
	last       atomic.Pointer[game.Snapshot]
	sequence   atomic.Uint64

	hello   HelloMessage
	helloMu sync.RWMutex

	clientCount   atomic.Int32
	snapshotsSent atomic.Int64
	droppedFrames atomic.Int64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPublisher creates a publisher. An empty path uses DefaultSocketPath.
func NewPublisher(socketPath string) *Publisher {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Publisher{
		socketPath: socketPath,
		clients:    make(map[net.Conn]struct{}),
		snapshotCh: make(chan *game.Snapshot, 8),
		stopCh:     make(chan struct{}),
	}
}

// SetHello sets the greeting sent to every new spectator
func (p *Publisher) SetHello(hello HelloMessage) {
	p.helloMu.Lock()
	p.hello = hello
	p.helloMu.Unlock()
}

// Attach publishes the source's snapshot whenever it emits an event.
// Events that leave the snapshot unchanged are skipped.
func (p *Publisher) Attach(src SnapshotSource) {
	if snap := src.GetSnapshot(); snap != nil {
		p.last.Store(snap)
	}
	src.OnEvent(func(game.Event) {
		p.PublishSnapshot(src.GetSnapshot())
	})
}

// Start listens for spectators
func (p *Publisher) Start() error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}

	listener, err := CreatePlatformListener(p.socketPath)
	if err != nil {
		p.running.Store(false)
		return err
	}
	p.listener = listener

	p.wg.Add(2)
	go p.acceptLoop()
	go p.broadcastLoop()

	log.Info().Str("addr", PlatformAddress(p.socketPath)).Msg("📡 Spectator feed started")
	return nil
}

// Stop closes the listener and every spectator connection
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	close(p.stopCh)
	if p.listener != nil {
		p.listener.Close()
	}

	p.clientsMu.Lock()
	for conn := range p.clients {
		conn.Close()
	}
	p.clients = make(map[net.Conn]struct{})
	p.clientsMu.Unlock()

	p.wg.Wait()
	releaseAddress(p.socketPath)
	log.Info().Msg("📡 Spectator feed stopped")
}

// PublishSnapshot queues a snapshot for broadcast without blocking.
// Safe to call from inside an engine listener.
func (p *Publisher) PublishSnapshot(snap *game.Snapshot) {
	if snap == nil || p.last.Swap(snap) == snap {
		return
	}
	if !p.running.Load() {
		return
	}

	select {
	case p.snapshotCh <- snap:
	default:
		select {
		case <-p.snapshotCh:
			p.droppedFrames.Add(1)
		default:
		}
		select {
		case p.snapshotCh <- snap:
		default:
		}
	}
}

// Stats returns publisher counters
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Clients: int(p.clientCount.Load()),
		Sent:    p.snapshotsSent.Load(),
		Dropped: p.droppedFrames.Load(),
	}
}

func (p *Publisher) acceptLoop() {
	defer p.wg.Done()

	for p.running.Load() {
		conn, err := p.listener.Accept()
		if err != nil {
			if !p.running.Load() {
				return
			}
			log.Warn().Err(err).Msg("⚠️ Spectator accept error")
			continue
		}
		p.addClient(conn)
	}
}

// addClient greets the spectator with the board and the current state
// before it joins the broadcast set, so frames never interleave
func (p *Publisher) addClient(conn net.Conn) {
	p.helloMu.RLock()
	hello := p.hello
	p.helloMu.RUnlock()

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := WriteMessage(conn, MsgTypeHello, hello); err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to greet spectator")
		conn.Close()
		return
	}
	if snap := p.last.Load(); snap != nil {
		msg := NewSnapshotMessage(p.sequence.Add(1), snap)
		if err := WriteMessage(conn, MsgTypeSnapshot, msg); err != nil {
			conn.Close()
			return
		}
	}

	p.clientsMu.Lock()
	if !p.running.Load() {
		p.clientsMu.Unlock()
		conn.Close()
		return
	}
	p.clients[conn] = struct{}{}
	p.clientsMu.Unlock()

	count := p.clientCount.Add(1)
	log.Info().Int32("total", count).Msg("✅ Spectator connected")
}

func (p *Publisher) removeClient(conn net.Conn) {
	p.clientsMu.Lock()
	if _, ok := p.clients[conn]; !ok {
		p.clientsMu.Unlock()
		return
	}
	delete(p.clients, conn)
	conn.Close()
	p.clientsMu.Unlock()

	count := p.clientCount.Add(-1)
	log.Info().Int32("remaining", count).Msg("🔌 Spectator disconnected")
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case snap := <-p.snapshotCh:
			p.broadcast(snap)
		}
	}
}

func (p *Publisher) broadcast(snap *game.Snapshot) {
	msg := NewSnapshotMessage(p.sequence.Add(1), snap)

	p.clientsMu.RLock()
	clients := make([]net.Conn, 0, len(p.clients))
	for conn := range p.clients {
		clients = append(clients, conn)
	}
	p.clientsMu.RUnlock()

	var failed []net.Conn
	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err := WriteMessage(conn, MsgTypeSnapshot, msg); err != nil {
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		p.removeClient(conn)
	}

	if len(clients) > 0 && len(failed) < len(clients) {
		p.snapshotsSent.Add(1)
	}
}
