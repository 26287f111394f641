package entity

import (
	"fmt"
	"sort"
	"strings"
)

// Spec is the recipe an entity is created from: its type, name and
// configuration. Cluster templates are Specs.
type Spec struct {
	Type   string
	Name   string
	Config map[string]any
}

// Clone returns a copy whose Config map can be modified independently.
func (s Spec) Clone() Spec {
	out := Spec{Type: s.Type, Name: s.Name}
	if s.Config != nil {
		out.Config = make(map[string]any, len(s.Config))
		for k, v := range s.Config {
			out.Config[k] = v
		}
	}
	return out
}

// With returns a clone with key set to value.
func (s Spec) With(key string, value any) Spec {
	out := s.Clone()
	if out.Config == nil {
		out.Config = make(map[string]any)
	}
	out.Config[key] = value
	return out
}

// Validate checks the fields required to create an entity.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Type) == "" {
		return fmt.Errorf("entity spec %q has no type", s.Name)
	}
	return nil
}

// ConfigKeys returns the config keys sorted.
func (s Spec) ConfigKeys() []string {
	keys := make([]string, 0, len(s.Config))
	for k := range s.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
