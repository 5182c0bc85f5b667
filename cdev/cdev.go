// Package cdev reads Wiegand data lines through the Linux GPIO character
// device using go-gpiocdev. Unlike the periph.io source it needs no
// polling: the kernel queues edge events and a handler runs per line.
package cdev

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/warthog618/go-gpiocdev"

	wiegand "github.com/asjoyner/wiegand-decode"
)

// DefaultChip is the GPIO chip of the Raspberry Pi header.
const DefaultChip = "gpiochip0"

const consumer = "wiegand"

// Source is a wiegand.EdgeSource for two lines of one GPIO chip.
type Source struct {
	Chip string // e.g. "gpiochip0"; DefaultChip when empty
	D0   int    // line offset of DATA0
	D1   int    // line offset of DATA1
}

// ParseOffset parses a line offset given either as a number or as a
// Raspberry Pi pin name such as "GPIO17", whose BCM number is the line
// offset on DefaultChip.
func ParseOffset(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(s), "GPIO"))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid line offset %q", s)
	}
	return n, nil
}

// Run requests both lines with falling-edge detection and emits an edge per
// event until ctx is done.
func (s Source) Run(ctx context.Context, emit func(wiegand.Edge)) error {
	chip := s.Chip
	if chip == "" {
		chip = DefaultChip
	}
	if s.D0 == s.D1 {
		return fmt.Errorf("D0 and D1 must be different lines, both are %d", s.D0)
	}

	d0, err := requestLine(chip, s.D0, wiegand.Line0, emit)
	if err != nil {
		return err
	}
	d1, err := requestLine(chip, s.D1, wiegand.Line1, emit)
	if err != nil {
		_ = d0.Close()
		return err
	}

	<-ctx.Done()
	return errors.Join(d0.Close(), d1.Close())
}

func requestLine(chip string, offset int, line wiegand.Line, emit func(wiegand.Edge)) (*gpiocdev.Line, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.WithConsumer(consumer),
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(handler(line, emit)))
	if err != nil {
		return nil, fmt.Errorf("request %s line %s:%d: %w", line, chip, offset, err)
	}
	return l, nil
}

// handler maps kernel edge events on one line to edges. Event timestamps
// are kernel monotonic durations, not comparable to time.Now, so the edge
// is stamped on receipt.
func handler(line wiegand.Line, emit func(wiegand.Edge)) gpiocdev.EventHandler {
	return func(evt gpiocdev.LineEvent) {
		if evt.Type != gpiocdev.LineEventFallingEdge {
			return
		}
		emit(wiegand.Edge{Line: line, Time: time.Now()})
	}
}
