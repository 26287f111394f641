package sensor

import (
	"context"
	"sync"
)

const channelBufferSize = 64

// ChannelSource is an in-process Subscriber fed by Publish. New subscribers
// receive the most recent value first. Used for values computed inside the
// process, such as a cluster's aggregated state.
type ChannelSource struct {
	mu     sync.Mutex
	subs   map[chan Update]struct{}
	last   *Update
	closed bool
}

// NewChannelSource creates an empty ChannelSource.
func NewChannelSource() *ChannelSource {
	return &ChannelSource{subs: make(map[chan Update]struct{})}
}

// Subscribe implements Subscriber. The descriptor is ignored.
func (c *ChannelSource) Subscribe(ctx context.Context, _ Descriptor) (<-chan Update, error) {
	ch := make(chan Update, channelBufferSize)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if c.last != nil {
		ch <- *c.last
	}
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
		c.mu.Unlock()
	}()

	return ch, nil
}

// Publish delivers a value to every subscriber. Slow subscribers miss values
// rather than block the publisher.
func (c *ChannelSource) Publish(v any) {
	c.send(Update{Value: v})
}

// Fail delivers a source error to every subscriber.
func (c *ChannelSource) Fail(err error) {
	c.send(Update{Err: err})
}

func (c *ChannelSource) send(u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if u.Err == nil {
		c.last = &u
	}
	for ch := range c.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Close ends all subscriptions.
func (c *ChannelSource) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
}
