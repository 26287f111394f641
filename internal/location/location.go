package location

import (
	"context"
	"sort"
	"sync"
)

// Spec describes what an entity needs from a location.
type Spec struct {
	// Ports maps a port name ("http", "shutdown") to the range it may use.
	Ports map[string]PortRange
}

// PortNames returns the port names sorted.
func (s Spec) PortNames() []string {
	names := make([]string, 0, len(s.Ports))
	for name := range s.Ports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Location is a machine handed out by a Provider with the ports allocated on
// it. Launchers may attach metadata such as a container or pod name.
type Location struct {
	ID    string
	Host  string
	Ports map[string]int

	mu   sync.RWMutex
	meta map[string]string
}

// Port returns the allocated port for name, or 0.
func (l *Location) Port(name string) int {
	return l.Ports[name]
}

// SetMeta stores launcher metadata on the location.
func (l *Location) SetMeta(key, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.meta == nil {
		l.meta = make(map[string]string)
	}
	l.meta[key] = value
}

// Meta returns launcher metadata.
func (l *Location) Meta(key string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.meta[key]
	return v, ok
}

// Provider acquires and releases locations.
type Provider interface {
	Acquire(ctx context.Context, spec Spec) (*Location, error)
	Release(ctx context.Context, loc *Location) error
}
