package orchestrator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/giantswarm/steward/internal/api"
)

// Catalog is the table of registered entity types.
type Catalog struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewCatalog creates a catalog holding the given drivers.
func NewCatalog(drivers ...Driver) (*Catalog, error) {
	c := &Catalog{drivers: make(map[string]Driver)}
	for _, d := range drivers {
		if err := c.Register(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a driver. Registering a type twice is an error.
func (c *Catalog) Register(d Driver) error {
	if d == nil || d.Type() == "" {
		return fmt.Errorf("driver must have a type")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.drivers[d.Type()]; exists {
		return fmt.Errorf("entity type %s is already registered", d.Type())
	}
	c.drivers[d.Type()] = d
	return nil
}

// Lookup returns the driver of an entity type.
func (c *Catalog) Lookup(entityType string) (Driver, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.drivers[entityType]
	if !ok {
		return nil, api.NewEntityTypeNotFoundError(entityType)
	}
	return d, nil
}

// Types returns the registered type names sorted.
func (c *Catalog) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.drivers))
	for name := range c.drivers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
