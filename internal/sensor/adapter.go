package sensor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

const (
	// DefaultPollInterval is used by poll adapters created without WithInterval.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultMaxBackoff caps the poll delay after consecutive fetch failures.
	DefaultMaxBackoff = 30 * time.Second
)

// Descriptor identifies the external signal an adapter reads: a
// management-protocol object and attribute, a URL path and JSON field, a
// host:port, or a command line.
type Descriptor struct {
	Target    string
	Attribute string
}

func (d Descriptor) String() string {
	if d.Attribute == "" {
		return d.Target
	}
	return fmt.Sprintf("%s[%s]", d.Target, d.Attribute)
}

// Fetcher pulls the current raw value of a source. It is the poll-mode
// external collaborator.
type Fetcher interface {
	Fetch(ctx context.Context, d Descriptor) (any, error)
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc func(ctx context.Context, d Descriptor) (any, error)

// Fetch implements Fetcher.
func (f FetchFunc) Fetch(ctx context.Context, d Descriptor) (any, error) {
	return f(ctx, d)
}

// Update is one value pushed by a Subscriber. Err reports a source-side
// failure and counts like a failed fetch.
type Update struct {
	Value any
	Err   error
}

// Subscriber pushes raw values whenever the source changes. The subscription
// lasts until ctx is cancelled; implementations close the channel when done.
type Subscriber interface {
	Subscribe(ctx context.Context, d Descriptor) (<-chan Update, error)
}

// Mode tells how an adapter obtains values.
type Mode int

const (
	ModePoll Mode = iota
	ModeSubscribe
)

func (m Mode) String() string {
	if m == ModeSubscribe {
		return "subscribe"
	}
	return "poll"
}

// Adapter maps one external source onto one sensor of an entity.
type Adapter struct {
	sensor     string
	source     Descriptor
	transform  Transform
	mode       Mode
	fetcher    Fetcher
	subscriber Subscriber
	interval   time.Duration
	maxBackoff time.Duration

	failures atomic.Int64
	samples  atomic.Int64
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithTransform sets the raw-to-sensor transform. The default is Identity.
func WithTransform(t Transform) Option {
	return func(a *Adapter) {
		if t != nil {
			a.transform = t
		}
	}
}

// WithInterval sets the poll interval. In subscribe mode it is the base delay
// before resubscribing after the source failed.
func WithInterval(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithMaxBackoff caps the delay between attempts after consecutive failures.
func WithMaxBackoff(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.maxBackoff = d
		}
	}
}

func newAdapter(mode Mode, d Descriptor, sensor string, opts []Option) *Adapter {
	a := &Adapter{
		sensor:     sensor,
		source:     d,
		transform:  Identity,
		mode:       mode,
		interval:   DefaultPollInterval,
		maxBackoff: DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxBackoff < a.interval {
		a.maxBackoff = a.interval
	}
	return a
}

// Poll creates an adapter that fetches d on a fixed interval and writes the
// transformed value into sensor.
func Poll(f Fetcher, d Descriptor, sensor string, opts ...Option) *Adapter {
	a := newAdapter(ModePoll, d, sensor, opts)
	a.fetcher = f
	return a
}

// Subscribe creates an adapter that writes every value pushed by s for d.
func Subscribe(s Subscriber, d Descriptor, sensor string, opts ...Option) *Adapter {
	a := newAdapter(ModeSubscribe, d, sensor, opts)
	a.subscriber = s
	return a
}

// Sensor returns the name of the sensor this adapter writes.
func (a *Adapter) Sensor() string {
	return a.sensor
}

// Source returns the descriptor of the external signal.
func (a *Adapter) Source() Descriptor {
	return a.source
}

// Mode returns the operating mode.
func (a *Adapter) Mode() Mode {
	return a.mode
}

// Interval returns the poll interval.
func (a *Adapter) Interval() time.Duration {
	return a.interval
}

// Failures returns the number of consecutive failed fetches.
func (a *Adapter) Failures() int {
	return int(a.failures.Load())
}

// Samples returns the number of values written so far.
func (a *Adapter) Samples() int {
	return int(a.samples.Load())
}

// sink receives everything an adapter produces; the registry implements it.
type sink interface {
	apply(a *Adapter, raw any)
	fetchFailed(a *Adapter, err error, failures int, next time.Duration)
	fetchSucceeded(a *Adapter)
}

func (a *Adapter) run(ctx context.Context, s sink) {
	if a.mode == ModeSubscribe {
		a.runSubscription(ctx, s)
		return
	}
	a.runPoll(ctx, s)
}

func (a *Adapter) runPoll(ctx context.Context, s sink) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		raw, err := a.fetcher.Fetch(ctx, a.source)
		if ctx.Err() != nil {
			return
		}

		var next time.Duration
		if err != nil {
			n := int(a.failures.Add(1))
			next = NextDelay(a.interval, a.maxBackoff, n)
			s.fetchFailed(a, err, n, next)
		} else {
			a.failures.Store(0)
			s.fetchSucceeded(a)
			s.apply(a, raw)
			next = a.interval
		}
		timer.Reset(next)
	}
}

func (a *Adapter) runSubscription(ctx context.Context, s sink) {
	for {
		updates, err := a.subscriber.Subscribe(ctx, a.source)
		if err == nil {
			a.consume(ctx, updates, s)
		} else if ctx.Err() == nil {
			n := int(a.failures.Add(1))
			s.fetchFailed(a, err, n, NextDelay(a.interval, a.maxBackoff, n))
		}

		if ctx.Err() != nil {
			return
		}

		// The subscription ended or could not be established; resubscribe.
		delay := NextDelay(a.interval, a.maxBackoff, a.Failures())
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (a *Adapter) consume(ctx context.Context, updates <-chan Update, s sink) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			if u.Err != nil {
				n := int(a.failures.Add(1))
				s.fetchFailed(a, u.Err, n, 0)
				continue
			}
			a.failures.Store(0)
			s.fetchSucceeded(a)
			s.apply(a, u.Value)
		}
	}
}
