package software

import (
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/sensor"
)

const waitTimeout = 2 * time.Second

func newEntity(t *testing.T, typ, name string, config map[string]any) *entity.Entity {
	t.Helper()
	e, err := entity.New(entity.Spec{Type: typ, Name: name, Config: config},
		entity.WithRegistryOptions(sensor.WithWaitInterval(5*time.Millisecond)))
	require.NoError(t, err)
	t.Cleanup(func() { e.Sensors().Close() })
	return e
}

// serverPort returns the port of an httptest server.
func serverPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	_, p, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return port
}

func localLocation(ports map[string]int) *location.Location {
	return &location.Location{ID: "loc-test", Host: "127.0.0.1", Ports: ports}
}

func attach(t *testing.T, e *entity.Entity, adapters []*sensor.Adapter) {
	t.Helper()
	for _, a := range adapters {
		_, err := e.Sensors().Register(a)
		require.NoError(t, err, a.Sensor())
	}
}
