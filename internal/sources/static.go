package sources

import (
	"context"
	"sort"

	"github.com/giantswarm/steward/internal/sensor"
)

// Static is a Subscriber emitting the value stored under the descriptor's
// Target once per subscription. Keys without a value emit nothing.
type Static struct {
	values map[string]any
}

// NewStatic creates a Static source over a copy of values.
func NewStatic(values map[string]any) *Static {
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Static{values: copied}
}

// Subscribe implements sensor.Subscriber. The channel stays open until ctx
// is done so the adapter does not resubscribe.
func (s *Static) Subscribe(ctx context.Context, d sensor.Descriptor) (<-chan sensor.Update, error) {
	ch := make(chan sensor.Update, 1)
	if v, ok := s.values[d.Target]; ok {
		ch <- sensor.Update{Value: v}
	}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// Adapters returns one subscribe adapter per key, writing the sensor
// prefix+key. Keys are sorted for a stable order.
func (s *Static) Adapters(prefix string) []*sensor.Adapter {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	adapters := make([]*sensor.Adapter, 0, len(keys))
	for _, k := range keys {
		adapters = append(adapters, sensor.Subscribe(s, sensor.Descriptor{Target: k}, prefix+k))
	}
	return adapters
}
