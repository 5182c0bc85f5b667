// Package wiresim simulates a Wiegand reader for tests. It plays frames as
// falling edges on the two data lines with configurable gaps.
package wiresim

import (
	"context"
	"strings"
	"sync"
	"time"

	wiegand "github.com/asjoyner/wiegand-decode"
)

const (
	// DefaultBitGap is the spacing between edges within a frame.
	DefaultBitGap = 200 * time.Microsecond
	// DefaultFrameGap is the silence after each frame.
	DefaultFrameGap = 100 * time.Millisecond
)

// Source is a wiegand.EdgeSource that plays Frames once and then idles
// until cancelled, or returns Err if it is set.
type Source struct {
	Frames   [][]byte
	BitGap   time.Duration
	FrameGap time.Duration
	Err      error

	once   sync.Once
	played chan struct{}
}

// New returns a Source that plays frames with the default gaps.
func New(frames ...[]byte) *Source {
	return &Source{Frames: frames}
}

// Played is closed once every frame has been emitted.
func (s *Source) Played() <-chan struct{} {
	s.init()
	return s.played
}

func (s *Source) init() {
	s.once.Do(func() { s.played = make(chan struct{}) })
}

// Run implements wiegand.EdgeSource.
func (s *Source) Run(ctx context.Context, emit func(wiegand.Edge)) error {
	s.init()
	bitGap, frameGap := s.BitGap, s.FrameGap
	if bitGap <= 0 {
		bitGap = DefaultBitGap
	}
	if frameGap <= 0 {
		frameGap = DefaultFrameGap
	}

	for _, frame := range s.Frames {
		for _, bit := range frame {
			line := wiegand.Line0
			if bit != 0 {
				line = wiegand.Line1
			}
			emit(wiegand.Edge{Line: line, Time: time.Now()})
			if !sleep(ctx, bitGap) {
				return nil
			}
		}
		if !sleep(ctx, frameGap) {
			return nil
		}
	}
	close(s.played)

	if s.Err != nil {
		return s.Err
	}
	<-ctx.Done()
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Bits parses a string of '0' and '1' characters into a frame. Any other
// character is ignored, so "1 0110 1" is a valid 6-bit frame.
func Bits(s string) []byte {
	bits := make([]byte, 0, len(s))
	for _, r := range strings.TrimSpace(s) {
		switch r {
		case '0':
			bits = append(bits, 0)
		case '1':
			bits = append(bits, 1)
		}
	}
	return bits
}

// Repeat returns a frame of n copies of bit.
func Repeat(bit byte, n int) []byte {
	bits := make([]byte, n)
	for i := range bits {
		bits[i] = bit
	}
	return bits
}
