// Package ipc feeds engine snapshots to spectator processes.
// Uses Unix domain sockets on Linux/macOS and localhost TCP on Windows.
package ipc

import (
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	// DefaultSocketPath is the Unix socket path for the spectator feed
	DefaultSocketPath = "/tmp/bernar-snake.sock"

	// DefaultTCPPort is used instead of the socket path on Windows
	DefaultTCPPort = "127.0.0.1:7071"

	// Message types
	MsgTypeSnapshot byte = 0x01
	MsgTypePing     byte = 0x02
	MsgTypePong     byte = 0x03
	MsgTypeHello    byte = 0x04

	// Protocol version for compatibility checking
	ProtocolVersion uint16 = 1

	// Connection settings
	MaxMessageSize = 1024 * 1024 // 1MB max message
	WriteTimeout   = 50 * time.Millisecond
	ReconnectDelay = 500 * time.Millisecond
)

// SnapshotMessage is the wire form of game.Snapshot
type SnapshotMessage struct {
	Sequence  uint64
	Timestamp int64 // Unix nano

	RunID     string
	Phase     uint8
	Collision uint8
	Tick      uint64

	Width, Height int
	Segments      []SegmentData

	HasApple           bool
	AppleCol, AppleRow int

	ApplesEaten    int
	TickIntervalMs int64
	WinTarget      int
	MilestoneAt    int
}

// SegmentData is one snake segment on the wire
type SegmentData struct {
	Col, Row  int
	Direction uint8
}

// HelloMessage is sent once to every spectator on connect
type HelloMessage struct {
	Width       int
	Height      int
	WinTarget   int
	MilestoneAt int
	Seed        int64
}

// Header is the message header for framing
type Header struct {
	Version  uint16
	Type     byte
	Reserved byte
	Length   uint32
}

const HeaderSize = 8 // 2 + 1 + 1 + 4

// WriteMessage writes a framed message to the connection
func WriteMessage(w io.Writer, msgType byte, data interface{}) error {
	var buf []byte
	if data != nil {
		gobBuf := getBuffer()
		defer putBuffer(gobBuf)

		if err := gob.NewEncoder(gobBuf).Encode(data); err != nil {
			return fmt.Errorf("gob encode: %w", err)
		}
		buf = gobBuf.Bytes()
	}

	if len(buf) > MaxMessageSize {
		return fmt.Errorf("message too large: %d > %d", len(buf), MaxMessageSize)
	}

	header := Header{
		Version: ProtocolVersion,
		Type:    msgType,
		Length:  uint32(len(buf)),
	}

	headerBuf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(headerBuf[0:2], header.Version)
	headerBuf[2] = header.Type
	headerBuf[3] = header.Reserved
	binary.LittleEndian.PutUint32(headerBuf[4:8], header.Length)

	if _, err := w.Write(headerBuf); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(buf) > 0 {
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
	}
	return nil
}

// ReadMessage reads a framed message from the connection
func ReadMessage(r io.Reader) (byte, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}

	header := Header{
		Version: binary.LittleEndian.Uint16(headerBuf[0:2]),
		Type:    headerBuf[2],
		Length:  binary.LittleEndian.Uint32(headerBuf[4:8]),
	}

	if header.Version != ProtocolVersion {
		return 0, nil, fmt.Errorf("version mismatch: got %d, want %d", header.Version, ProtocolVersion)
	}
	if header.Length > MaxMessageSize {
		return 0, nil, fmt.Errorf("message too large: %d > %d", header.Length, MaxMessageSize)
	}

	var body []byte
	if header.Length > 0 {
		body = make([]byte, header.Length)
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, fmt.Errorf("read body: %w", err)
		}
	}
	return header.Type, body, nil
}

// DecodeSnapshot decodes a snapshot from gob bytes
func DecodeSnapshot(data []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := decode(data, &msg); err != nil {
		return nil, fmt.Errorf("gob decode snapshot: %w", err)
	}
	return &msg, nil
}

// DecodeHello decodes a hello from gob bytes
func DecodeHello(data []byte) (*HelloMessage, error) {
	var msg HelloMessage
	if err := decode(data, &msg); err != nil {
		return nil, fmt.Errorf("gob decode hello: %w", err)
	}
	return &msg, nil
}

func decode(data []byte, v interface{}) error {
	buf := getBytesBuffer(data)
	defer putBytesBuffer(buf)
	return gob.NewDecoder(buf).Decode(v)
}

// CleanupSocket removes the socket file if it exists
func CleanupSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	}
	return nil
}

// Buffer pool for encoding
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(gobBuffer)
	},
}

type gobBuffer struct {
	buf []byte
}

func (b *gobBuffer) Write(p []byte) (n int, err error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *gobBuffer) Bytes() []byte {
	return b.buf
}

func (b *gobBuffer) Reset() {
	b.buf = b.buf[:0]
}

func getBuffer() *gobBuffer {
	buf := bufferPool.Get().(*gobBuffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *gobBuffer) {
	bufferPool.Put(buf)
}

// Bytes buffer pool for decoding
var bytesBufferPool = sync.Pool{
	New: func() interface{} {
		return &bytesReader{}
	},
}

type bytesReader struct {
	data []byte
	pos  int
}

func (b *bytesReader) Read(p []byte) (n int, err error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n = copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

func (b *bytesReader) Reset(data []byte) {
	b.data = data
	b.pos = 0
}

func getBytesBuffer(data []byte) *bytesReader {
	buf := bytesBufferPool.Get().(*bytesReader)
	buf.Reset(data)
	return buf
}

func putBytesBuffer(buf *bytesReader) {
	buf.Reset(nil)
	bytesBufferPool.Put(buf)
}
