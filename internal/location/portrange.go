package location

import (
	"fmt"
	"strconv"
	"strings"
)

const maxPort = 65535

type span struct {
	from, to int
}

// PortRange is an ordered set of candidate ports.
type PortRange struct {
	spans []span
	raw   string
}

// ParsePortRange parses a comma-separated list of ports ("8080"), open
// ranges ("31880+", up to 65535) and closed ranges ("8080-8090").
func ParsePortRange(s string) (PortRange, error) {
	pr := PortRange{raw: strings.TrimSpace(s)}
	if pr.raw == "" {
		return pr, fmt.Errorf("empty port range")
	}

	for _, part := range strings.Split(pr.raw, ",") {
		part = strings.TrimSpace(part)
		var sp span
		var err error

		switch {
		case strings.HasSuffix(part, "+"):
			sp.from, err = parsePort(strings.TrimSuffix(part, "+"))
			sp.to = maxPort
		case strings.Contains(part, "-"):
			bounds := strings.SplitN(part, "-", 2)
			if sp.from, err = parsePort(bounds[0]); err == nil {
				sp.to, err = parsePort(bounds[1])
			}
			if err == nil && sp.to < sp.from {
				err = fmt.Errorf("range end %d before start %d", sp.to, sp.from)
			}
		default:
			sp.from, err = parsePort(part)
			sp.to = sp.from
		}
		if err != nil {
			return PortRange{}, fmt.Errorf("invalid port range %q: %w", s, err)
		}
		pr.spans = append(pr.spans, sp)
	}
	return pr, nil
}

// MustParsePortRange is ParsePortRange for literals known to be valid.
func MustParsePortRange(s string) PortRange {
	pr, err := ParsePortRange(s)
	if err != nil {
		panic(err)
	}
	return pr
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("port %q is not a number", s)
	}
	if p < 1 || p > maxPort {
		return 0, fmt.Errorf("port %d out of range", p)
	}
	return p, nil
}

func (pr PortRange) String() string {
	return pr.raw
}

// Contains reports whether port is part of the range.
func (pr PortRange) Contains(port int) bool {
	for _, sp := range pr.spans {
		if port >= sp.from && port <= sp.to {
			return true
		}
	}
	return false
}

// Each calls fn for every port in order until fn returns false.
func (pr PortRange) Each(fn func(port int) bool) {
	for _, sp := range pr.spans {
		for p := sp.from; p <= sp.to; p++ {
			if !fn(p) {
				return
			}
		}
	}
}

// First returns the lowest-ordered port of the range.
func (pr PortRange) First() int {
	if len(pr.spans) == 0 {
		return 0
	}
	return pr.spans[0].from
}
