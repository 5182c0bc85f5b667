// Package feedback drives a badge reader's LED and beeper lines so the
// person at the door knows whether a card was read.
//
// Both lines are active-low, as on most Wiegand readers: driving the pin low
// turns the LED green or sounds the beeper.
package feedback

import (
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	wiegand "github.com/asjoyner/wiegand-decode"
)

const (
	// GoodPulse is held once after a frame decodes into a known format
	// with valid or unchecked parity.
	GoodPulse = 200 * time.Millisecond
	// BadPulse is repeated three times for unknown frames and bad parity.
	BadPulse = 50 * time.Millisecond
)

// Pattern returns the alternating on/off durations signalled for c,
// starting with on.
func Pattern(c wiegand.Credential) []time.Duration {
	if c.Format == wiegand.FormatUnknown || c.Parity == wiegand.ParityBad {
		return []time.Duration{BadPulse, BadPulse, BadPulse, BadPulse, BadPulse}
	}
	return []time.Duration{GoodPulse}
}

// output is an active-low indicator line. rpio.Pin satisfies it.
type output interface {
	High()
	Low()
}

// Config holds BCM/GPIO pin numbers. A negative pin is not driven.
type Config struct {
	PinLED    int
	PinBeeper int
}

// Indicator signals decoded credentials. Signals are played one at a time
// from a background goroutine; a credential arriving while another is still
// being signalled is dropped.
type Indicator struct {
	outputs []output
	queue   chan []time.Duration
	sleep   func(time.Duration)
	wg      sync.WaitGroup
	close   func() error
}

// Open maps the GPIO registers and configures the pins in cfg as outputs.
func Open(cfg Config) (*Indicator, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open GPIO registers: %w", err)
	}
	var outs []output
	for _, n := range []int{cfg.PinLED, cfg.PinBeeper} {
		if n < 0 {
			continue
		}
		p := rpio.Pin(n)
		p.Output()
		outs = append(outs, p)
	}
	return newIndicator(outs, time.Sleep, rpio.Close), nil
}

func newIndicator(outs []output, sleep func(time.Duration), closeFn func() error) *Indicator {
	ind := &Indicator{
		outputs: outs,
		queue:   make(chan []time.Duration, 1),
		sleep:   sleep,
		close:   closeFn,
	}
	ind.set(false)
	ind.wg.Add(1)
	go ind.run()
	return ind
}

// Handle queues the signal for c. It never blocks and has the signature of
// wiegand.Config.Handler.
func (ind *Indicator) Handle(c wiegand.Credential) {
	select {
	case ind.queue <- Pattern(c):
	default:
	}
}

func (ind *Indicator) run() {
	defer ind.wg.Done()
	for pattern := range ind.queue {
		for i, d := range pattern {
			ind.set(i%2 == 0)
			ind.sleep(d)
		}
		ind.set(false)
	}
}

func (ind *Indicator) set(on bool) {
	for _, o := range ind.outputs {
		if on {
			o.Low()
		} else {
			o.High()
		}
	}
}

// Close finishes any pending signal, turns the lines off and releases the
// GPIO registers. Handle must not be called after Close.
func (ind *Indicator) Close() error {
	close(ind.queue)
	ind.wg.Wait()
	ind.set(false)
	if ind.close != nil {
		return ind.close()
	}
	return nil
}
