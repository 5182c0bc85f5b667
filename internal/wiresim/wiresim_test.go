package wiresim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wiegand "github.com/asjoyner/wiegand-decode"
)

func TestBits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{1, 0, 1, 1, 0, 1}, Bits(" 1 0110 1\n"))
	assert.Empty(t, Bits("xyz"))
	assert.Equal(t, []byte{1, 1, 1}, Repeat(1, 3))
}

func TestSourcePlaysFrames(t *testing.T) {
	t.Parallel()

	boom := errors.New("done")
	src := &Source{
		Frames:   [][]byte{Bits("101"), Bits("0")},
		BitGap:   time.Microsecond,
		FrameGap: time.Millisecond,
		Err:      boom,
	}
	var lines []wiegand.Line
	err := src.Run(context.Background(), func(e wiegand.Edge) { lines = append(lines, e.Line) })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []wiegand.Line{wiegand.Line1, wiegand.Line0, wiegand.Line1, wiegand.Line0}, lines)

	select {
	case <-src.Played():
	default:
		t.Fatal("Played not closed")
	}
}
