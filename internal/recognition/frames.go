package recognition

import (
	"errors"
	"sync"
	"time"
)

// ErrNoFrame is returned when no camera frame has been pushed yet, or the
// latest one is too old to be useful.
var ErrNoFrame = errors.New("no recent camera frame available")

// frameMaxAge guards against recognizing a frame from a browser tab that
// stopped pushing long ago.
const frameMaxAge = 10 * time.Second

// FrameBuffer holds the most recent camera frame pushed by the browser.
// Only the latest frame is kept.
type FrameBuffer struct {
	mu    sync.RWMutex
	frame []byte
	at    time.Time
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Put replaces the stored frame.
func (f *FrameBuffer) Put(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = frame
	f.at = time.Now()
}

// Latest returns a copy of the most recent frame.
func (f *FrameBuffer) Latest() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.frame == nil || time.Since(f.at) > frameMaxAge {
		return nil, ErrNoFrame
	}
	out := make([]byte, len(f.frame))
	copy(out, f.frame)
	return out, nil
}
