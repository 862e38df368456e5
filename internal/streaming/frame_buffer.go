package streaming

import (
	"sync/atomic"
)

// BufferSize is the number of frame slots in the ring buffer.
// At 30fps 16 frames is about half a second of slack for the encoder.
const BufferSize = 16

// FrameRingBuffer decouples frame production from FFmpeg writes.
// One producer (the frame loop) and one consumer (the writer); when the
// buffer is full new frames are dropped instead of blocking the producer.
type FrameRingBuffer struct {
	frames    [BufferSize][]byte
	readIdx   uint32 // atomic - consumer index
	writeIdx  uint32 // atomic - producer index
	frameSize int

	framesWritten uint64
	framesDropped uint64
	framesRead    uint64
}

// BufferStats counts frames through the ring buffer
type BufferStats struct {
	Written   uint64 `json:"written"`
	Dropped   uint64 `json:"dropped"`
	Read      uint64 `json:"read"`
	Available int    `json:"available"`
}

// NewFrameRingBuffer pre-allocates every slot at frameSize bytes
func NewFrameRingBuffer(frameSize int) *FrameRingBuffer {
	rb := &FrameRingBuffer{frameSize: frameSize}
	for i := 0; i < BufferSize; i++ {
		rb.frames[i] = make([]byte, frameSize)
	}
	return rb
}

// FrameSize is the byte length every frame must have
func (rb *FrameRingBuffer) FrameSize() int {
	return rb.frameSize
}

// TryWrite copies frame into the next slot. It returns false when the
// frame has the wrong size or the buffer is full.
func (rb *FrameRingBuffer) TryWrite(frame []byte) bool {
	if len(frame) != rb.frameSize {
		return false
	}

	currentWrite := atomic.LoadUint32(&rb.writeIdx)
	nextWrite := (currentWrite + 1) % BufferSize

	// One slot stays empty so full and empty are distinguishable
	if nextWrite == atomic.LoadUint32(&rb.readIdx) {
		atomic.AddUint64(&rb.framesDropped, 1)
		return false
	}

	copy(rb.frames[currentWrite], frame)
	atomic.StoreUint32(&rb.writeIdx, nextWrite)
	atomic.AddUint64(&rb.framesWritten, 1)
	return true
}

// TryRead returns the oldest frame, or nil when empty. The slice is only
// valid until the producer wraps around to its slot.
func (rb *FrameRingBuffer) TryRead() []byte {
	readIdx := atomic.LoadUint32(&rb.readIdx)
	if readIdx == atomic.LoadUint32(&rb.writeIdx) {
		return nil
	}

	frame := rb.frames[readIdx]
	atomic.StoreUint32(&rb.readIdx, (readIdx+1)%BufferSize)
	atomic.AddUint64(&rb.framesRead, 1)
	return frame
}

// Available returns the number of frames waiting to be read
func (rb *FrameRingBuffer) Available() int {
	readIdx := atomic.LoadUint32(&rb.readIdx)
	writeIdx := atomic.LoadUint32(&rb.writeIdx)

	if writeIdx >= readIdx {
		return int(writeIdx - readIdx)
	}
	return int(BufferSize - readIdx + writeIdx)
}

// Stats returns buffer counters
func (rb *FrameRingBuffer) Stats() BufferStats {
	return BufferStats{
		Written:   atomic.LoadUint64(&rb.framesWritten),
		Dropped:   atomic.LoadUint64(&rb.framesDropped),
		Read:      atomic.LoadUint64(&rb.framesRead),
		Available: rb.Available(),
	}
}

// Reset empties the buffer and zeroes the counters. Only call it while
// neither side is running.
func (rb *FrameRingBuffer) Reset() {
	atomic.StoreUint32(&rb.readIdx, 0)
	atomic.StoreUint32(&rb.writeIdx, 0)
	atomic.StoreUint64(&rb.framesWritten, 0)
	atomic.StoreUint64(&rb.framesDropped, 0)
	atomic.StoreUint64(&rb.framesRead, 0)
}
