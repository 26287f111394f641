package software

import (
	"fmt"
	"net/http"
	"time"

	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/orchestrator"
	"github.com/giantswarm/steward/internal/sensor"
	"github.com/giantswarm/steward/internal/sources"
)

// ConfigImage overrides a type's container image.
const ConfigImage = "image"

// ConfigSensorPrefix prefixes sensors publishing configuration values.
const ConfigSensorPrefix = "config."

// Options are shared by all built-in drivers.
type Options struct {
	// HTTPClient is used by HTTP based sensors. nil uses a client with a
	// ten second timeout.
	HTTPClient *http.Client

	// DialTimeout bounds TCP port checks.
	DialTimeout time.Duration

	// Images override the default image per type.
	Images map[string]string

	// Exec returns a runner executing commands next to the process on loc,
	// or nil when the launcher cannot. Command sensors fall back to running
	// locally.
	Exec func(loc *location.Location) sources.Runner
}

type portDef struct {
	name          string
	defaultRange  string
	containerPort int
}

type base struct {
	typeName  string
	image     string
	ports     []portDef
	readiness time.Duration
	opts      Options
}

func (b *base) Type() string {
	return b.typeName
}

func (b *base) ReadinessSensor() string {
	return sensor.ServiceUp
}

func (b *base) ReadinessTimeout() time.Duration {
	return b.readiness
}

// LocationSpec reads "<port>.port" config keys, falling back to the type's
// default ranges.
func (b *base) LocationSpec(e *entity.Entity) (location.Spec, error) {
	spec := location.Spec{Ports: make(map[string]location.PortRange, len(b.ports))}
	for _, p := range b.ports {
		raw := e.GetConfigString(sensor.PortSensor(p.name), p.defaultRange)
		pr, err := location.ParsePortRange(raw)
		if err != nil {
			return location.Spec{}, fmt.Errorf("%s of %s: %w", sensor.PortSensor(p.name), e.GetName(), err)
		}
		spec.Ports[p.name] = pr
	}
	return spec, nil
}

func (b *base) imageFor(e *entity.Entity) string {
	def := b.image
	if img, ok := b.opts.Images[b.typeName]; ok && img != "" {
		def = img
	}
	return e.GetConfigString(ConfigImage, def)
}

func (b *base) portMappings(loc *location.Location) []orchestrator.PortMapping {
	out := make([]orchestrator.PortMapping, 0, len(b.ports))
	for _, p := range b.ports {
		out = append(out, orchestrator.PortMapping{
			Name:          p.name,
			HostPort:      loc.Port(p.name),
			ContainerPort: p.containerPort,
		})
	}
	return out
}

func (b *base) containerPort(name string) int {
	for _, p := range b.ports {
		if p.name == name {
			return p.containerPort
		}
	}
	return 0
}

func (b *base) labels(e *entity.Entity) map[string]string {
	return map[string]string{
		"steward.entity.id":   e.GetID(),
		"steward.entity.type": b.typeName,
	}
}

func (b *base) httpClient() *http.Client {
	if b.opts.HTTPClient != nil {
		return b.opts.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (b *base) baseURL(loc *location.Location, port string) string {
	return fmt.Sprintf("http://%s:%d", loc.Host, loc.Port(port))
}

// configAdapters publishes every config value as a sensor.
func configAdapters(e *entity.Entity) []*sensor.Adapter {
	return sources.NewStatic(e.ConfigMap()).Adapters(ConfigSensorPrefix)
}

// Builtin returns the drivers of every built-in type.
func Builtin(opts Options) []orchestrator.Driver {
	return []orchestrator.Driver{
		NewTomcat(opts),
		NewElasticsearch(opts),
		NewPostgreSQL(opts),
	}
}
