package location

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/giantswarm/steward/pkg/logging"
)

const localhostSubsystem = "Location"

// LocalhostProvider hands out locations on one host.
type LocalhostProvider struct {
	host    string
	probe   bool
	allowed *PortRange

	mu        sync.Mutex
	allocated map[int]string
	locations map[string]*Location
}

// LocalhostOption customizes a LocalhostProvider.
type LocalhostOption func(*LocalhostProvider)

// WithPortProbe makes the provider skip ports that are already bound on the
// host by trying to listen on them first.
func WithPortProbe(enabled bool) LocalhostOption {
	return func(p *LocalhostProvider) {
		p.probe = enabled
	}
}

// WithAllowedPorts restricts every allocation to ports inside pr, whatever
// range a spec asks for.
func WithAllowedPorts(pr PortRange) LocalhostOption {
	return func(p *LocalhostProvider) {
		p.allowed = &pr
	}
}

// NewLocalhostProvider creates a provider for host. An empty host means
// 127.0.0.1.
func NewLocalhostProvider(host string, opts ...LocalhostOption) *LocalhostProvider {
	if host == "" {
		host = "127.0.0.1"
	}
	p := &LocalhostProvider{
		host:      host,
		allocated: make(map[int]string),
		locations: make(map[string]*Location),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Host returns the host name used for every location.
func (p *LocalhostProvider) Host() string {
	return p.host
}

// Acquire implements Provider. Ports are allocated atomically: either every
// requested port is assigned or none is.
func (p *LocalhostProvider) Acquire(ctx context.Context, spec Spec) (*Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc := &Location{
		ID:    uuid.NewString(),
		Host:  p.host,
		Ports: make(map[string]int, len(spec.Ports)),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, name := range spec.PortNames() {
		port, ok := p.pickLocked(spec.Ports[name])
		if !ok {
			for _, taken := range loc.Ports {
				delete(p.allocated, taken)
			}
			return nil, fmt.Errorf("no free port for %s in range %s on %s", name, spec.Ports[name], p.host)
		}
		p.allocated[port] = loc.ID
		loc.Ports[name] = port
	}
	p.locations[loc.ID] = loc

	logging.Debug(localhostSubsystem, "Acquired location %s on %s with ports %v", loc.ID, p.host, loc.Ports)
	return loc, nil
}

func (p *LocalhostProvider) pickLocked(pr PortRange) (int, bool) {
	chosen := 0
	pr.Each(func(port int) bool {
		if _, taken := p.allocated[port]; taken {
			return true
		}
		if p.allowed != nil && !p.allowed.Contains(port) {
			return true
		}
		if p.probe && !portFree(p.host, port) {
			return true
		}
		chosen = port
		return false
	})
	return chosen, chosen != 0
}

func portFree(host string, port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// Release implements Provider. Releasing an unknown location is a no-op.
func (p *LocalhostProvider) Release(_ context.Context, loc *Location) error {
	if loc == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.locations[loc.ID]; !ok {
		return nil
	}
	for _, port := range loc.Ports {
		if p.allocated[port] == loc.ID {
			delete(p.allocated, port)
		}
	}
	delete(p.locations, loc.ID)

	logging.Debug(localhostSubsystem, "Released location %s on %s", loc.ID, p.host)
	return nil
}

// InUse returns the number of locations currently handed out.
func (p *LocalhostProvider) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locations)
}
