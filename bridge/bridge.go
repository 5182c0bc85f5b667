// Package bridge reads Wiegand edges relayed by a microcontroller over a
// serial port. The bridge firmware writes one ASCII '0' for every falling
// edge on DATA0 and one '1' for every falling edge on DATA1 as they happen,
// and ends each frame with a newline. Only lines made entirely of '0' and
// '1' are relayed; banners and any line containing other bytes are
// dropped. Frame boundaries are still found by the wiegand quiet interval.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	wiegand "github.com/asjoyner/wiegand-decode"
)

// DefaultBaudRate matches the bridge firmware default.
const DefaultBaudRate = 115200

// readTimeout bounds each read so cancellation is noticed.
const readTimeout = 100 * time.Millisecond

// ErrClosed is returned when the serial port reports end of file.
var ErrClosed = errors.New("serial bridge closed")

// Source is a wiegand.EdgeSource for a serial bridge.
type Source struct {
	Port     string // e.g. "/dev/ttyUSB0"
	BaudRate int    // DefaultBaudRate when zero
}

// Run opens the port and emits edges until ctx is done.
func (s Source) Run(ctx context.Context, emit func(wiegand.Edge)) error {
	baud := s.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(s.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", s.Port, err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(readTimeout); err != nil {
		return fmt.Errorf("set read timeout on %s: %w", s.Port, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input buffer on %s: %w", s.Port, err)
	}
	return readEdges(ctx, port, emit)
}

// maxLine bounds a pending line. Longer lines cannot be frames and are
// dropped.
const maxLine = 256

// lineBuffer holds the data lines named by the current text line until its newline shows
// whether the line is a frame.
type lineBuffer struct {
	lines []wiegand.Line
	bad   bool
}

func (l *lineBuffer) add(b byte) {
	switch {
	case l.bad:
	case len(l.lines) >= maxLine:
		l.bad = true
	case b == '0':
		l.lines = append(l.lines, wiegand.Line0)
	case b == '1':
		l.lines = append(l.lines, wiegand.Line1)
	default:
		l.bad = true
	}
}

// flush emits the pending edges unless the line held other bytes. All
// edges of a line share one timestamp so the frame cannot look finished
// halfway through being relayed.
func (l *lineBuffer) flush(at time.Time, emit func(wiegand.Edge)) {
	if !l.bad {
		for _, line := range l.lines {
			emit(wiegand.Edge{Line: line, Time: at})
		}
	}
	l.lines = l.lines[:0]
	l.bad = false
}

// readEdges relays every newline-terminated line of '0' and '1' bytes read
// from r as edges stamped with the time the newline was read. A zero-length
// read is a read timeout. An unterminated line at end of file is dropped.
func readEdges(ctx context.Context, r io.Reader, emit func(wiegand.Edge)) error {
	buf := make([]byte, 64)
	var line lineBuffer
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := r.Read(buf)
		now := time.Now()
		for _, b := range buf[:n] {
			switch b {
			case '\n':
				line.flush(now, emit)
			case '\r':
			default:
				line.add(b)
			}
		}
		if errors.Is(err, io.EOF) {
			return ErrClosed
		}
		if err != nil {
			return fmt.Errorf("read serial bridge: %w", err)
		}
	}
}
