package cdev

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiocdev"

	wiegand "github.com/asjoyner/wiegand-decode"
)

func TestHandlerEmitsFallingEdges(t *testing.T) {
	t.Parallel()

	var got []wiegand.Edge
	h := handler(wiegand.Line1, func(e wiegand.Edge) { got = append(got, e) })

	h(gpiocdev.LineEvent{Offset: 17, Type: gpiocdev.LineEventFallingEdge})
	h(gpiocdev.LineEvent{Offset: 17, Type: gpiocdev.LineEventRisingEdge})
	h(gpiocdev.LineEvent{Offset: 17, Type: gpiocdev.LineEventFallingEdge})

	require.Len(t, got, 2)
	for _, e := range got {
		assert.Equal(t, wiegand.Line1, e.Line)
		assert.False(t, e.Time.IsZero())
	}
	assert.False(t, got[1].Time.Before(got[0].Time))
}

func TestRunRejectsSameLine(t *testing.T) {
	t.Parallel()

	err := Source{D0: 4, D1: 4}.Run(context.Background(), func(wiegand.Edge) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be different")
}

func TestParseOffset(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]int{"17": 17, "GPIO17": 17, "gpio4": 4, "0": 0} {
		got, err := ParseOffset(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "GPIO", "GPIO_INVALID", "-1", "D0"} {
		_, err := ParseOffset(in)
		assert.Error(t, err, in)
	}
}
