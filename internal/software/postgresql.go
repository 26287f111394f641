package software

import (
	"fmt"
	"strings"
	"time"

	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/orchestrator"
	"github.com/giantswarm/steward/internal/sensor"
	"github.com/giantswarm/steward/internal/sources"
)

const PostgreSQLType = "postgresql"

// DatastoreURL is the connection URL sensor of datastores.
const DatastoreURL = "datastore.url"

// PostgreSQLAccepting reports whether pg_isready sees the server accepting
// connections.
const PostgreSQLAccepting = "postgresql.accepting"

// PostgreSQL runs a PostgreSQL server. It is up when its port accepts
// connections.
type PostgreSQL struct {
	base
}

// NewPostgreSQL creates the postgresql driver.
func NewPostgreSQL(opts Options) *PostgreSQL {
	return &PostgreSQL{base: base{
		typeName: PostgreSQLType,
		image:    "postgres:16",
		ports: []portDef{
			{name: "postgresql", defaultRange: "5432+", containerPort: 5432},
		},
		readiness: 2 * time.Minute,
		opts:      opts,
	}}
}

// InstallSpec implements orchestrator.Driver.
func (p *PostgreSQL) InstallSpec(e *entity.Entity, loc *location.Location) (orchestrator.InstallSpec, error) {
	env := map[string]string{"POSTGRES_HOST_AUTH_METHOD": "trust"}
	if password, ok := e.GetConfig("password"); ok {
		env = map[string]string{"POSTGRES_PASSWORD": fmt.Sprint(password)}
	}
	return orchestrator.InstallSpec{
		Name:   e.GetName(),
		Image:  p.imageFor(e),
		Env:    env,
		Ports:  p.portMappings(loc),
		Labels: p.labels(e),
	}, nil
}

// Sensors implements orchestrator.Driver.
func (p *PostgreSQL) Sensors(e *entity.Entity, loc *location.Location, opts ...sensor.Option) ([]*sensor.Adapter, error) {
	addr := fmt.Sprintf("%s:%d", loc.Host, loc.Port("postgresql"))
	url := fmt.Sprintf("postgresql://%s/", addr)

	runner, check := p.readyCheck(loc)
	accepting := append(append([]sensor.Option{}, opts...), sensor.WithTransform(acceptingConnections))

	adapters := []*sensor.Adapter{
		sensor.Poll(sources.TCPPort{Timeout: p.opts.DialTimeout}, sensor.Descriptor{Target: addr}, sensor.ServiceUp, opts...),
		sensor.Poll(sources.NewCommand(runner), sensor.Descriptor{Target: check}, PostgreSQLAccepting, accepting...),
	}
	adapters = append(adapters, sources.NewStatic(map[string]any{DatastoreURL: url}).Adapters("")...)
	return append(adapters, configAdapters(e)...), nil
}

// readyCheck returns where pg_isready runs and its command line: inside the
// server's container when the launcher can exec there, locally against the
// published port otherwise. pg_isready exits non-zero when the server is not
// ready; "|| true" keeps that a sample rather than an error.
func (p *PostgreSQL) readyCheck(loc *location.Location) (sources.Runner, string) {
	if p.opts.Exec != nil {
		if runner := p.opts.Exec(loc); runner != nil {
			return runner, fmt.Sprintf("pg_isready -h 127.0.0.1 -p %d || true", p.containerPort("postgresql"))
		}
	}
	return sources.LocalRunner{}, fmt.Sprintf("pg_isready -h %s -p %d || true", loc.Host, loc.Port("postgresql"))
}

func acceptingConnections(raw any) (any, error) {
	out, err := sensor.ToString(raw)
	if err != nil {
		return nil, err
	}
	return strings.Contains(out.(string), "accepting connections"), nil
}
