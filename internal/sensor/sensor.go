package sensor

import "time"

// Well-known sensor names shared by drivers, the orchestrator and clusters.
const (
	// ServiceUp is the default readiness sensor: true once the process is
	// externally confirmed to be up and serving.
	ServiceUp = "service.isUp"

	// ServiceState mirrors the entity lifecycle state.
	ServiceState = "service.state"

	// ServiceProblems lists children that went ON_FIRE.
	ServiceProblems = "service.problems"

	// HostName is the address of the location the entity runs on.
	HostName = "host.name"
)

// PortSensor returns the sensor name carrying the allocated port for a named port.
func PortSensor(name string) string {
	return name + ".port"
}

// Attribute is the current value of one sensor.
type Attribute struct {
	Name  string
	Value any

	// Seq counts the writes applied to this sensor, starting at 1.
	Seq       uint64
	UpdatedAt time.Time
}
