package software

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/orchestrator"
	"github.com/giantswarm/steward/internal/sensor"
	"github.com/giantswarm/steward/internal/sources"
)

var _ orchestrator.Driver = (*PostgreSQL)(nil)

func TestPostgreSQL_Sensors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	pg := NewPostgreSQL(Options{DialTimeout: time.Second})
	e := newEntity(t, PostgreSQLType, "db-1", nil)
	loc := localLocation(map[string]int{"postgresql": port})

	adapters, err := pg.Sensors(e, loc, sensor.WithInterval(10*time.Millisecond))
	require.NoError(t, err)
	attach(t, e, adapters)

	ctx := context.Background()
	reg := e.Sensors()
	require.NoError(t, reg.AttributeEqualsEventually(ctx, sensor.ServiceUp, true, waitTimeout))
	require.NoError(t, reg.AttributeEqualsEventually(ctx, DatastoreURL, fmt.Sprintf("postgresql://127.0.0.1:%d/", port), waitTimeout))
}

type scriptedRunner struct {
	mu       sync.Mutex
	output   string
	commands []string
}

func (r *scriptedRunner) Run(_ context.Context, command string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	return r.output, nil
}

func (r *scriptedRunner) set(output string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output = output
}

func (r *scriptedRunner) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commands) == 0 {
		return ""
	}
	return r.commands[len(r.commands)-1]
}

func TestPostgreSQL_AcceptingRunsInsideContainer(t *testing.T) {
	runner := &scriptedRunner{output: "/var/run/postgresql:5432 - no response\n"}
	var execLoc *location.Location
	pg := NewPostgreSQL(Options{Exec: func(loc *location.Location) sources.Runner {
		execLoc = loc
		return runner
	}})
	e := newEntity(t, PostgreSQLType, "db-1", nil)
	loc := localLocation(map[string]int{"postgresql": 5433})

	adapters, err := pg.Sensors(e, loc, sensor.WithInterval(5*time.Millisecond))
	require.NoError(t, err)
	assert.Same(t, loc, execLoc)
	attach(t, e, adapters)

	ctx := context.Background()
	reg := e.Sensors()
	require.NoError(t, reg.AttributeEqualsEventually(ctx, PostgreSQLAccepting, false, waitTimeout))

	runner.set("127.0.0.1:5432 - accepting connections\n")
	require.NoError(t, reg.AttributeEqualsEventually(ctx, PostgreSQLAccepting, true, waitTimeout))
	assert.Equal(t, "pg_isready -h 127.0.0.1 -p 5432 || true", runner.last())
}

func TestPostgreSQL_ReadyCheckFallsBackToLocal(t *testing.T) {
	loc := localLocation(map[string]int{"postgresql": 5433})

	runner, check := NewPostgreSQL(Options{}).readyCheck(loc)
	assert.Equal(t, sources.LocalRunner{}, runner)
	assert.Equal(t, "pg_isready -h 127.0.0.1 -p 5433 || true", check)

	noExec := NewPostgreSQL(Options{Exec: func(*location.Location) sources.Runner { return nil }})
	runner, _ = noExec.readyCheck(loc)
	assert.Equal(t, sources.LocalRunner{}, runner)
}

func TestPostgreSQL_InstallSpec(t *testing.T) {
	pg := NewPostgreSQL(Options{})
	loc := localLocation(map[string]int{"postgresql": 5433})

	spec, err := pg.InstallSpec(newEntity(t, PostgreSQLType, "db-1", nil), loc)
	require.NoError(t, err)
	assert.Equal(t, "postgres:16", spec.Image)
	assert.Equal(t, "trust", spec.Env["POSTGRES_HOST_AUTH_METHOD"])
	assert.Equal(t, []orchestrator.PortMapping{{Name: "postgresql", HostPort: 5433, ContainerPort: 5432}}, spec.Ports)

	spec, err = pg.InstallSpec(newEntity(t, PostgreSQLType, "db-2", map[string]any{"password": "s3cret"}), loc)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", spec.Env["POSTGRES_PASSWORD"])
	assert.NotContains(t, spec.Env, "POSTGRES_HOST_AUTH_METHOD")
}
