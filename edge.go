package wiegand

import (
	"context"
	"time"
)

// Line identifies one of the two Wiegand data lines.
type Line uint8

const (
	// Line0 is DATA0. A falling edge on it encodes a 0 bit.
	Line0 Line = iota
	// Line1 is DATA1. A falling edge on it encodes a 1 bit.
	Line1
)

// Bit returns the bit value a falling edge on l encodes.
func (l Line) Bit() byte {
	if l == Line1 {
		return 1
	}
	return 0
}

func (l Line) String() string {
	if l == Line1 {
		return "D1"
	}
	return "D0"
}

// Edge is a single falling edge observed on one of the data lines.
type Edge struct {
	Line Line
	Time time.Time
}

// EdgeSource delivers falling edges from a Wiegand reader.
//
// Run blocks until ctx is done, in which case it returns nil, or until the
// underlying hardware fails. emit may be called concurrently from several
// goroutines, typically one per line.
type EdgeSource interface {
	Run(ctx context.Context, emit func(Edge)) error
}

// EdgeSourceFunc adapts a function to the EdgeSource interface.
type EdgeSourceFunc func(ctx context.Context, emit func(Edge)) error

// Run calls f(ctx, emit).
func (f EdgeSourceFunc) Run(ctx context.Context, emit func(Edge)) error {
	return f(ctx, emit)
}
