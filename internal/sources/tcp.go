package sources

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/giantswarm/steward/internal/sensor"
)

const defaultDialTimeout = 2 * time.Second

// TCPPort reports true when the descriptor's Target (host:port) accepts a
// TCP connection. A refused or timed out dial is a fetch failure.
type TCPPort struct {
	Timeout time.Duration
}

// Fetch implements sensor.Fetcher.
func (t TCPPort) Fetch(ctx context.Context, d sensor.Descriptor) (any, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.Target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.Target, err)
	}
	_ = conn.Close()
	return true, nil
}
