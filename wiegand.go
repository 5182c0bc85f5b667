// Package wiegand provides a thread-safe library for reading Wiegand protocol
// data. Falling edges on the two data lines are captured into a bounded bit
// buffer, a frame is considered finished once the lines have been quiet for
// a configured interval, and the frame is decoded into facility code, card
// code or UID according to its length. Edges come from a pluggable
// EdgeSource; by default the D0 and D1 pins are read through periph.io.
package wiegand

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTimeout is the default quiet interval that ends a Wiegand frame.
// Readers space bits roughly 2ms apart.
const DefaultTimeout = 25 * time.Millisecond

// DefaultPollInterval is how often the reader checks for a finished frame.
const DefaultPollInterval = 5 * time.Millisecond

var (
	// ErrNoHandler is returned by New when Config.Handler is nil.
	ErrNoHandler = errors.New("handler function must be provided")
	// ErrNoPins is returned by New when no Source is given and the D0 or
	// D1 pin name is missing.
	ErrNoPins = errors.New("D0Pin and D1Pin must be specified")
)

// Config holds configuration for creating a new Wiegand Reader.
type Config struct {
	// Source delivers edges. When nil, a PeriphSource on D0Pin and D1Pin
	// is used.
	Source       EdgeSource
	D0Pin, D1Pin string           // GPIO pin names (e.g., "GPIO4", "GPIO17")
	Handler      func(Credential) // Receives every decoded frame
	Timeout      time.Duration    // Quiet interval ending a frame (default 25ms)
	PollInterval time.Duration    // Frame completion poll cadence (default 5ms)
	MaxBits      int              // Bit buffer capacity (default 100)
	SiteCode     bool             // Decode 26-bit frames as facility + card
	Verbose      bool             // Log every frame
}

// Reader captures frames from an EdgeSource and decodes them.
type Reader struct {
	source   EdgeSource
	session  *Session
	handler  func(Credential)
	timeout  time.Duration
	poll     time.Duration
	siteCode bool
	verbose  bool
	now      func() time.Time

	decoding atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	err      error // set by the source goroutine before wg.Done
}

// New creates a Reader and starts capturing. The reader runs until ctx is
// cancelled, Close is called, or the edge source fails.
func New(ctx context.Context, cfg Config) (*Reader, error) {
	r, err := newReader(cfg)
	if err != nil {
		return nil, err
	}
	r.start(ctx)
	return r, nil
}

func newReader(cfg Config) (*Reader, error) {
	if cfg.Handler == nil {
		return nil, ErrNoHandler
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxBits <= 0 {
		cfg.MaxBits = DefaultMaxBits
	}
	if cfg.Source == nil {
		if cfg.D0Pin == "" || cfg.D1Pin == "" {
			return nil, ErrNoPins
		}
		src, err := NewPeriphSource(cfg.D0Pin, cfg.D1Pin)
		if err != nil {
			return nil, err
		}
		cfg.Source = src
	}

	return &Reader{
		source:   cfg.Source,
		session:  NewSession(cfg.MaxBits),
		handler:  cfg.Handler,
		timeout:  cfg.Timeout,
		poll:     cfg.PollInterval,
		siteCode: cfg.SiteCode,
		verbose:  cfg.Verbose,
		now:      time.Now,
	}, nil
}

func (r *Reader) start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(2)
	go r.watchSource()
	go r.processFrames()
}

// watchSource runs the edge source and stops the reader when it returns.
func (r *Reader) watchSource() {
	defer r.wg.Done()
	err := r.source.Run(r.ctx, r.record)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("wiegand: edge source stopped: %v", err)
		r.err = fmt.Errorf("edge source: %w", err)
	}
	r.cancel()
}

// record is the single entry point for edges from both lines. Edges without
// a timestamp are stamped on arrival.
func (r *Reader) record(e Edge) {
	at := e.Time
	if at.IsZero() {
		at = r.now()
	}
	r.session.RecordBit(e.Line.Bit(), at)
}

// processFrames polls for finished frames, decodes them and hands them to
// the handler.
func (r *Reader) processFrames() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.check()
		}
	}
}

// check decodes the pending frame if the quiet interval has elapsed.
func (r *Reader) check() bool {
	frame, ok := r.session.Take(r.now(), r.timeout)
	if !ok {
		return false
	}
	c := Decode(frame.Bits, r.siteCode)
	if r.verbose {
		log.Printf("wiegand: received %d-bit frame %v", len(frame.Bits), frame.Bits)
		if frame.Dropped > 0 {
			log.Printf("wiegand: dropped %d bits past the %d-bit buffer", frame.Dropped, r.session.MaxBits())
		}
		log.Printf("wiegand: %s", c)
	}

	r.decoding.Store(true)
	r.handler(c)
	r.decoding.Store(false)
	return true
}

// State reports the lifecycle phase of the frame being captured. While a
// decoded frame is with the handler it reports StateDecoded; bits arriving
// meanwhile are already captured into the next frame.
func (r *Reader) State() State {
	if r.decoding.Load() {
		return StateDecoded
	}
	return r.session.State(r.now(), r.timeout)
}

// Wait blocks until the reader stops and returns the edge source's error,
// or nil if the reader was cancelled.
func (r *Reader) Wait() error {
	r.wg.Wait()
	return r.err
}

// Close stops the Wiegand reader and waits for its goroutines to exit.
func (r *Reader) Close() error {
	r.cancel()
	r.wg.Wait()
	return nil
}

// Listen starts a Reader and delivers its credentials on the returned
// channel, which is closed once the reader stops. Any cfg.Handler is
// replaced. The channel is unbuffered; a slow receiver delays decoding of
// later frames but not the capture of their bits.
//
// An edge source error is logged and the channel is closed; the error
// itself is not reported. Callers that need it use New with a Handler and
// call Wait.
func Listen(ctx context.Context, cfg Config) (<-chan Credential, error) {
	ch := make(chan Credential)
	cfg.Handler = func(Credential) {}
	r, err := newReader(cfg)
	if err != nil {
		return nil, err
	}
	r.handler = func(c Credential) {
		select {
		case ch <- c:
		case <-r.ctx.Done():
		}
	}
	r.start(ctx)
	go func() {
		defer close(ch)
		_ = r.Wait()
	}()
	return ch, nil
}
