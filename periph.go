package wiegand

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// edgeWait bounds each WaitForEdge call so cancellation is noticed.
const edgeWait = 100 * time.Millisecond

// PeriphSource reads the D0 and D1 lines of a reader wired to GPIO pins
// through periph.io.
type PeriphSource struct {
	d0, d1 gpio.PinIO
}

// NewPeriphSource initializes periph.io and configures the named pins as
// pulled-up inputs that detect falling edges. Wiegand lines idle high.
func NewPeriphSource(d0Pin, d1Pin string) (*PeriphSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	d0 := gpioreg.ByName(d0Pin)
	d1 := gpioreg.ByName(d1Pin)
	if d0 == nil || d1 == nil {
		return nil, fmt.Errorf("invalid GPIO pins: D0=%s, D1=%s", d0Pin, d1Pin)
	}

	if err := d0.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("failed to configure D0 pin %s: %w", d0Pin, err)
	}
	if err := d1.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("failed to configure D1 pin %s: %w", d1Pin, err)
	}
	return &PeriphSource{d0: d0, d1: d1}, nil
}

// Run watches both pins until ctx is done. Each pin gets its own goroutine.
func (p *PeriphSource) Run(ctx context.Context, emit func(Edge)) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		watchPin(ctx, p.d0, Line0, emit)
	}()
	go func() {
		defer wg.Done()
		watchPin(ctx, p.d1, Line1, emit)
	}()
	wg.Wait()

	// Stop edge detection so the pins can be reused.
	if err := p.d0.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return fmt.Errorf("failed to release D0 pin %s: %w", p.d0, err)
	}
	if err := p.d1.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return fmt.Errorf("failed to release D1 pin %s: %w", p.d1, err)
	}
	return nil
}

// watchPin emits an edge for every falling edge on pin.
func watchPin(ctx context.Context, pin gpio.PinIO, line Line, emit func(Edge)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			// Pulses last tens of microseconds, so the level is usually
			// back high by the time it could be read.
			if pin.WaitForEdge(edgeWait) {
				emit(Edge{Line: line, Time: time.Now()})
			}
		}
	}
}
