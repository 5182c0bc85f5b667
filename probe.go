package wiegand

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/pin"
	"periph.io/x/host/v3"
)

// ErrNoProbePins is returned by ProbePins when no usable pin remains.
var ErrNoProbePins = errors.New("no GPIO pins to probe")

// reservedPins are Raspberry Pi header pins with a fixed role (HAT EEPROM,
// I2C1, SPI0, UART0) that are never probed implicitly.
var reservedPins = map[string]struct{}{
	"GPIO0":  {},
	"GPIO1":  {},
	"GPIO2":  {},
	"GPIO3":  {},
	"GPIO7":  {},
	"GPIO8":  {},
	"GPIO9":  {},
	"GPIO10": {},
	"GPIO11": {},
	"GPIO14": {},
	"GPIO15": {},
}

// PinEvent is reported by ProbePins for a pin's initial level and for every
// transition afterwards.
type PinEvent struct {
	Pin     string
	Level   gpio.Level
	Initial bool
	Time    time.Time
}

func (e PinEvent) String() string {
	if e.Initial {
		return fmt.Sprintf("pin %s initial state: %s", e.Pin, e.Level)
	}
	return fmt.Sprintf("edge on pin %s: %s", e.Pin, e.Level)
}

// ProbePins watches the named pins for transitions on both edges, which
// helps find the pins a reader's D0 and D1 wires are attached to. With no
// names every free GPIO pin is watched. report is called from one goroutine
// per pin. ProbePins blocks until ctx is done.
func ProbePins(ctx context.Context, names []string, report func(PinEvent)) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph host: %w", err)
	}

	pins, err := probeTargets(names)
	if err != nil {
		return err
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		first error
	)
	for _, p := range pins {
		wg.Add(1)
		go func(p gpio.PinIO) {
			defer wg.Done()
			if err := probePin(ctx, p, report); err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	return first
}

func probeTargets(names []string) ([]gpio.PinIO, error) {
	var pins []gpio.PinIO
	if len(names) == 0 {
		for _, p := range gpioreg.All() {
			if !probeable(p) {
				continue
			}
			pins = append(pins, p)
		}
	} else {
		for _, name := range names {
			p := gpioreg.ByName(name)
			if p == nil {
				return nil, fmt.Errorf("invalid GPIO pin: %s", name)
			}
			pins = append(pins, p)
		}
	}
	if len(pins) == 0 {
		return nil, ErrNoProbePins
	}
	return pins, nil
}

// probeable reports whether p is a general purpose pin not already claimed
// by an alternate function.
func probeable(p gpio.PinIO) bool {
	name := p.Name()
	if _, ok := reservedPins[name]; ok {
		return false
	}
	for _, prefix := range []string{"3.3V", "5V", "GND"} {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	if pf, ok := p.(pin.PinFunc); ok {
		fn := string(pf.Func())
		for _, alt := range []string{"I2C", "SPI", "UART", "SDIO"} {
			if strings.Contains(fn, alt) {
				return false
			}
		}
	}
	return true
}

func probePin(ctx context.Context, p gpio.PinIO, report func(PinEvent)) error {
	if err := p.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return fmt.Errorf("failed to configure pin %s: %w", p, err)
	}
	defer func() { _ = p.In(gpio.PullUp, gpio.NoEdge) }()

	report(PinEvent{Pin: p.Name(), Level: p.Read(), Initial: true, Time: time.Now()})
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if p.WaitForEdge(edgeWait) {
				report(PinEvent{Pin: p.Name(), Level: p.Read(), Time: time.Now()})
			}
		}
	}
}
