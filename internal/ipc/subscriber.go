package ipc

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"bernar-snake/internal/game"

	"github.com/rs/zerolog/log"
)

// SubscriberStats is a point-in-time view for monitoring
type SubscriberStats struct {
	Received   int64 `json:"received"`
	Reconnects int64 `json:"reconnects"`
	Errors     int64 `json:"errors"`
}

// Subscriber follows a publisher and keeps the latest snapshot
type Subscriber struct {
	socketPath string
	conn       net.Conn
	connMu     sync.Mutex

	latest atomic.Pointer[game.Snapshot]

	hello   HelloMessage
	helloMu sync.RWMutex
	helloCh chan HelloMessage

	received   atomic.Int64
	reconnects atomic.Int64
	errors     atomic.Int64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Callbacks run on the read goroutine; set them before Start
	onSnapshot   func(*game.Snapshot)
	onHello      func(HelloMessage)
	onConnect    func()
	onDisconnect func()
}

// NewSubscriber creates a subscriber. An empty path uses DefaultSocketPath.
func NewSubscriber(socketPath string) *Subscriber {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Subscriber{
		socketPath: socketPath,
		helloCh:    make(chan HelloMessage, 1),
		stopCh:     make(chan struct{}),
	}
}

// OnSnapshot sets a callback for every received snapshot
func (s *Subscriber) OnSnapshot(fn func(*game.Snapshot)) {
	s.onSnapshot = fn
}

// OnHello sets a callback for the greeting
func (s *Subscriber) OnHello(fn func(HelloMessage)) {
	s.onHello = fn
}

// OnConnect sets a callback for when the connection is established
func (s *Subscriber) OnConnect(fn func()) {
	s.onConnect = fn
}

// OnDisconnect sets a callback for when the connection is lost
func (s *Subscriber) OnDisconnect(fn func()) {
	s.onDisconnect = fn
}

// Start connects in the background and reconnects until Stop
func (s *Subscriber) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	s.wg.Add(1)
	go s.connectionLoop()

	log.Info().Str("addr", PlatformAddress(s.socketPath)).Msg("📡 Spectator connecting")
	return nil
}

// Stop closes the connection and waits for the read loop
func (s *Subscriber) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	close(s.stopCh)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	log.Info().Msg("📡 Spectator stopped")
}

// Latest returns the most recent snapshot, or nil before the first one
func (s *Subscriber) Latest() *game.Snapshot {
	return s.latest.Load()
}

// Hello returns the last greeting received
func (s *Subscriber) Hello() HelloMessage {
	s.helloMu.RLock()
	defer s.helloMu.RUnlock()
	return s.hello
}

// WaitForHello blocks until the greeting arrives, the timeout passes or Stop
func (s *Subscriber) WaitForHello(timeout time.Duration) (HelloMessage, bool) {
	select {
	case hello := <-s.helloCh:
		return hello, true
	case <-time.After(timeout):
		return HelloMessage{}, false
	case <-s.stopCh:
		return HelloMessage{}, false
	}
}

// Stats returns subscriber counters
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{
		Received:   s.received.Load(),
		Reconnects: s.reconnects.Load(),
		Errors:     s.errors.Load(),
	}
}

// IsConnected reports whether a connection is open
func (s *Subscriber) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

func (s *Subscriber) connectionLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := ConnectPlatform(s.socketPath)
		if err != nil {
			select {
			case <-s.stopCh:
				return
			case <-time.After(ReconnectDelay):
				continue
			}
		}

		s.connMu.Lock()
		if !s.running.Load() {
			s.connMu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.connMu.Unlock()

		log.Info().Str("addr", PlatformAddress(s.socketPath)).Msg("✅ Connected to game")
		if s.onConnect != nil {
			s.onConnect()
		}

		s.readLoop(conn)

		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		conn.Close()

		if s.onDisconnect != nil {
			s.onDisconnect()
		}
		s.reconnects.Add(1)

		select {
		case <-s.stopCh:
			return
		case <-time.After(ReconnectDelay):
		}
	}
}

func (s *Subscriber) readLoop(conn net.Conn) {
	// No read deadline: a board can sit idle for minutes, and Stop closes
	// the connection to unblock the read
	for s.running.Load() {
		msgType, data, err := ReadMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info().Msg("🔌 Game closed the feed")
				return
			}
			if !s.running.Load() {
				return
			}
			log.Warn().Err(err).Msg("⚠️ Spectator read error")
			s.errors.Add(1)
			return
		}

		switch msgType {
		case MsgTypeSnapshot:
			s.handleSnapshot(data)
		case MsgTypeHello:
			s.handleHello(data)
		case MsgTypePing:
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			WriteMessage(conn, MsgTypePong, nil)
		}
	}
}

func (s *Subscriber) handleSnapshot(data []byte) {
	msg, err := DecodeSnapshot(data)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to decode snapshot")
		s.errors.Add(1)
		return
	}

	snap := msg.ToSnapshot()
	s.latest.Store(snap)
	s.received.Add(1)

	if s.onSnapshot != nil {
		s.onSnapshot(snap)
	}
}

func (s *Subscriber) handleHello(data []byte) {
	hello, err := DecodeHello(data)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to decode hello")
		s.errors.Add(1)
		return
	}

	s.helloMu.Lock()
	s.hello = *hello
	s.helloMu.Unlock()

	log.Info().Int("width", hello.Width).Int("height", hello.Height).
		Int("winTarget", hello.WinTarget).Msg("📺 Watching board")

	select {
	case s.helloCh <- *hello:
	default:
	}
	if s.onHello != nil {
		s.onHello(*hello)
	}
}
