package sensor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/steward/internal/api"
)

// scriptedFetcher returns the values of a script in order, repeating the last.
type scriptedFetcher struct {
	mu     sync.Mutex
	script []fetchResult
	calls  int
}

type fetchResult struct {
	value any
	err   error
}

func (f *scriptedFetcher) Fetch(_ context.Context, _ Descriptor) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++
	return f.script[i].value, f.script[i].err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type countingObserver struct {
	succeeded atomic.Int64
	failed    atomic.Int64
	discarded atomic.Int64
}

func (o *countingObserver) PollSucceeded(string)   { o.succeeded.Add(1) }
func (o *countingObserver) PollFailed(string)      { o.failed.Add(1) }
func (o *countingObserver) SampleDiscarded(string) { o.discarded.Add(1) }

var testSource = Descriptor{Target: "Catalina:type=Connector,port=8080", Attribute: "stateName"}

func TestRegistry_PollWritesTransformedValue(t *testing.T) {
	r := NewRegistry(WithOwner("tomcat-1"), WithWaitInterval(5*time.Millisecond))
	defer r.Close()

	f := &scriptedFetcher{script: []fetchResult{{value: "STARTED"}}}
	_, err := r.Register(Poll(f, testSource, ServiceUp,
		WithTransform(Equals("STARTED")), WithInterval(10*time.Millisecond)))
	require.NoError(t, err)

	err = r.AssertAttributeEventually(context.Background(), ServiceUp, IsTrue, time.Second)
	require.NoError(t, err)

	v, ok := r.GetAttribute(ServiceUp)
	assert.True(t, ok)
	assert.Equal(t, true, v)
}

func TestRegistry_FailedFetchKeepsPreviousValue(t *testing.T) {
	obs := &countingObserver{}
	r := NewRegistry(WithObserver(obs), WithWaitInterval(5*time.Millisecond))
	defer r.Close()

	f := &scriptedFetcher{script: []fetchResult{
		{value: "STARTED"},
		{err: errors.New("connection refused")},
	}}
	a := Poll(f, testSource, ServiceUp,
		WithTransform(Equals("STARTED")),
		WithInterval(5*time.Millisecond),
		WithMaxBackoff(20*time.Millisecond))
	_, err := r.Register(a)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.Calls() >= 4 }, time.Second, 5*time.Millisecond)

	v, ok := r.GetAttribute(ServiceUp)
	require.True(t, ok)
	assert.Equal(t, true, v, "a failed fetch must not clear the last value")
	assert.GreaterOrEqual(t, a.Failures(), 1)
	assert.GreaterOrEqual(t, obs.failed.Load(), int64(1))
	assert.Equal(t, 1, a.Samples())
}

func TestRegistry_MalformedSampleDiscarded(t *testing.T) {
	obs := &countingObserver{}
	r := NewRegistry(WithObserver(obs))
	defer r.Close()

	f := &scriptedFetcher{script: []fetchResult{{value: int64(3)}, {value: "not-a-number"}}}
	_, err := r.Register(Poll(f, testSource, "requestCount",
		WithTransform(ToInt64), WithInterval(5*time.Millisecond)))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return obs.discarded.Load() >= 1 }, time.Second, 5*time.Millisecond)

	v, ok := r.GetAttribute("requestCount")
	require.True(t, ok)
	assert.Equal(t, int64(3), v)
}

func TestRegistry_SecondAdapterConflicts(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	f := &scriptedFetcher{script: []fetchResult{{value: "x"}}}
	_, err := r.Register(Poll(f, testSource, ServiceUp))
	require.NoError(t, err)

	_, err = r.Register(Poll(f, testSource, ServiceUp))
	require.Error(t, err)
	assert.True(t, api.IsConflict(err))
}

func TestRegistry_DetachStopsWritesAndReleasesSensor(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	var n atomic.Int64
	fetch := FetchFunc(func(context.Context, Descriptor) (any, error) {
		return n.Add(1), nil
	})
	h, err := r.Register(Poll(fetch, testSource, "counter", WithInterval(2*time.Millisecond)))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, 2*time.Millisecond)
	h.Detach()
	h.Detach()

	before, _ := r.Attribute("counter")
	time.Sleep(20 * time.Millisecond)
	after, _ := r.Attribute("counter")
	assert.Equal(t, before.Seq, after.Seq, "detached adapter must not write")
	assert.Empty(t, r.Attached())

	_, err = r.Register(Poll(fetch, testSource, "counter"))
	assert.NoError(t, err)
}

func TestRegistry_LatestValueWins(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.SetAttribute("value", i)
		}(i)
	}
	wg.Wait()

	a, ok := r.Attribute("value")
	require.True(t, ok)
	assert.Equal(t, uint64(50), a.Seq)
	assert.IsType(t, 0, a.Value)
}

func TestRegistry_SubscribeMode(t *testing.T) {
	r := NewRegistry(WithWaitInterval(5 * time.Millisecond))
	defer r.Close()

	ch := NewChannelSource()
	_, err := r.Register(Subscribe(ch, Descriptor{Target: "cluster"}, "cluster.status"))
	require.NoError(t, err)

	ch.Publish("yellow")
	ch.Publish("green")

	err = r.AttributeEqualsEventually(context.Background(), "cluster.status", "green", time.Second)
	require.NoError(t, err)
}

func TestRegistry_CloseRejectsRegistration(t *testing.T) {
	r := NewRegistry()
	r.Close()
	r.Close()

	_, err := r.Register(Poll(FetchFunc(func(context.Context, Descriptor) (any, error) { return 1, nil }), testSource, "x"))
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestRegistry_AttributesSorted(t *testing.T) {
	r := NewRegistry()
	r.SetAttribute("b", 2)
	r.SetAttribute("a", 1)

	attrs := r.Attributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, "a", attrs[0].Name)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, r.Snapshot())
}
