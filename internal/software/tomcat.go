package software

import (
	"fmt"
	"time"

	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/orchestrator"
	"github.com/giantswarm/steward/internal/sensor"
	"github.com/giantswarm/steward/internal/sources"
)

const TomcatType = "tomcat"

// Tomcat sensors.
const (
	TomcatConnectorStatus = "webapp.tomcat.connectorStatus"
	TomcatErrorCount      = "webapp.reqs.errors"
	TomcatRequestCount    = "webapp.reqs.total"
	TomcatProcessingTime  = "webapp.reqs.processingTime"
)

const (
	tomcatHTTPContainerPort     = 8080
	tomcatShutdownContainerPort = 8005
	jolokiaContainerPort        = 8778
)

// Tomcat runs an Apache Tomcat server with a Jolokia agent and reads its
// connector and request processor MBeans.
type Tomcat struct {
	base
}

// NewTomcat creates the tomcat driver.
func NewTomcat(opts Options) *Tomcat {
	return &Tomcat{base: base{
		typeName: TomcatType,
		image:    "tomcat:9.0",
		ports: []portDef{
			{name: "http", defaultRange: "8080+", containerPort: tomcatHTTPContainerPort},
			{name: "shutdown", defaultRange: "31880+", containerPort: tomcatShutdownContainerPort},
			{name: "jolokia", defaultRange: "8778+", containerPort: jolokiaContainerPort},
		},
		readiness: 5 * time.Minute,
		opts:      opts,
	}}
}

// InstallSpec implements orchestrator.Driver.
func (t *Tomcat) InstallSpec(e *entity.Entity, loc *location.Location) (orchestrator.InstallSpec, error) {
	return orchestrator.InstallSpec{
		Name:  e.GetName(),
		Image: t.imageFor(e),
		Env: map[string]string{
			"CATALINA_OPTS": fmt.Sprintf("-javaagent:/opt/jolokia/jolokia-agent.jar=port=%d,host=0.0.0.0", jolokiaContainerPort),
			"JAVA_OPTS":     e.GetConfigString("javaOpts", "-Xmx512m"),
		},
		Ports:  t.portMappings(loc),
		Labels: t.labels(e),
	}, nil
}

// Sensors implements orchestrator.Driver.
func (t *Tomcat) Sensors(e *entity.Entity, loc *location.Location, opts ...sensor.Option) ([]*sensor.Adapter, error) {
	jolokia := sources.NewJolokia(t.baseURL(loc, "jolokia"), t.httpClient())

	connector := fmt.Sprintf("Catalina:type=Connector,port=%d", tomcatHTTPContainerPort)
	processor := fmt.Sprintf("Catalina:type=GlobalRequestProcessor,name=\"http-nio-%d\"", tomcatHTTPContainerPort)

	with := func(tr sensor.Transform) []sensor.Option {
		return append(append([]sensor.Option{}, opts...), sensor.WithTransform(tr))
	}

	adapters := []*sensor.Adapter{
		sensor.Poll(jolokia, sensor.Descriptor{Target: connector, Attribute: "stateName"},
			TomcatConnectorStatus, with(sensor.ToString)...),
		sensor.Poll(jolokia, sensor.Descriptor{Target: connector, Attribute: "stateName"},
			sensor.ServiceUp, with(sensor.Equals("STARTED"))...),
		sensor.Poll(jolokia, sensor.Descriptor{Target: processor, Attribute: "errorCount"},
			TomcatErrorCount, with(sensor.ToInt64)...),
		sensor.Poll(jolokia, sensor.Descriptor{Target: processor, Attribute: "requestCount"},
			TomcatRequestCount, with(sensor.ToInt64)...),
		sensor.Poll(jolokia, sensor.Descriptor{Target: processor, Attribute: "processingTime"},
			TomcatProcessingTime, with(sensor.ToInt64)...),
	}
	return append(adapters, configAdapters(e)...), nil
}
