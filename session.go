package wiegand

import (
	"time"

	"github.com/asjoyner/wiegand-decode/internal/syncutil"
)

// DefaultMaxBits bounds the bit buffer. No supported format comes close.
const DefaultMaxBits = 100

// State is the phase of the frame currently being captured.
type State int

const (
	// StateIdle means no bits have been received since the last reset.
	StateIdle State = iota
	// StateCapturing means bits are arriving and the quiet interval has not
	// elapsed since the last one.
	StateCapturing
	// StateQuiescing means the quiet interval has elapsed but the frame has
	// not been decoded yet.
	StateQuiescing
	// StateDecoded is held while the decoded frame is handed to the handler,
	// right before the session is reset.
	StateDecoded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateQuiescing:
		return "quiescing"
	case StateDecoded:
		return "decoded"
	default:
		return "unknown"
	}
}

// Frame is an immutable snapshot of captured bits.
type Frame struct {
	Bits    []byte    // one 0/1 value per bit, in arrival order
	LastBit time.Time // timestamp of Bits[len(Bits)-1]; zero when empty
	Dropped int       // bits discarded because the buffer was full
}

// Session holds the bits of the frame being captured. It is safe for
// concurrent use: edge producers call RecordBit while a single consumer
// polls Complete or Take.
type Session struct {
	mu      syncutil.Mutex
	bits    []byte
	last    time.Time
	dropped int
	maxBits int
}

// NewSession returns an empty session that holds at most maxBits bits.
// A non-positive maxBits selects DefaultMaxBits.
func NewSession(maxBits int) *Session {
	if maxBits <= 0 {
		maxBits = DefaultMaxBits
	}
	return &Session{
		bits:    make([]byte, 0, maxBits),
		maxBits: maxBits,
	}
}

// RecordBit appends bit to the frame and stamps the frame with at unless an
// earlier bit carried a later time. Any non-zero bit is stored as 1. When the buffer is full the bit is dropped
// and RecordBit returns false.
func (s *Session) RecordBit(bit byte, at time.Time) bool {
	if bit != 0 {
		bit = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bits) >= s.maxBits {
		s.dropped++
		return false
	}
	s.bits = append(s.bits, bit)
	if at.After(s.last) {
		s.last = at
	}
	return true
}

// Len returns the number of bits captured so far.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bits)
}

// MaxBits returns the capacity of the session.
func (s *Session) MaxBits() int {
	return s.maxBits
}

// Complete reports whether the frame has at least one bit and no bit has
// arrived for quiet or longer as of now.
func (s *Session) Complete(now time.Time, quiet time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete(now, quiet)
}

func (s *Session) complete(now time.Time, quiet time.Duration) bool {
	return len(s.bits) > 0 && now.Sub(s.last) >= quiet
}

// State reports the capture phase as of now. It never returns StateDecoded;
// that phase belongs to the Reader.
func (s *Session) State(now time.Time, quiet time.Duration) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case len(s.bits) == 0:
		return StateIdle
	case s.complete(now, quiet):
		return StateQuiescing
	default:
		return StateCapturing
	}
}

// Snapshot copies the current frame without resetting it.
func (s *Session) Snapshot() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() Frame {
	bits := make([]byte, len(s.bits))
	copy(bits, s.bits)
	return Frame{Bits: bits, LastBit: s.last, Dropped: s.dropped}
}

// Take returns the captured frame and resets the session if the frame is
// complete as of now. The check, the copy and the reset happen under one
// lock so that no concurrently recorded bit is lost or split across frames.
func (s *Session) Take(now time.Time, quiet time.Duration) (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.complete(now, quiet) {
		return Frame{}, false
	}
	f := s.snapshot()
	s.reset()
	return f, true
}

// Reset discards any captured bits.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Session) reset() {
	clear(s.bits)
	s.bits = s.bits[:0]
	s.last = time.Time{}
	s.dropped = 0
}
