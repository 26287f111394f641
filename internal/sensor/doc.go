// Package sensor implements the attribute model of an entity: adapters that
// sample or subscribe to an external signal, the registry holding the current
// value of every sensor, and the eventual-consistency wait used to gate
// lifecycle steps on externally observed state.
//
// # Adapters
//
// An Adapter reads exactly one external source and writes exactly one sensor.
// Poll adapters call a Fetcher on a fixed interval; when a fetch fails the
// previous value is kept and the next attempt is delayed geometrically
// (interval, 2x, 4x, ... up to a cap), resetting on the next success.
// Subscribe adapters receive updates from a Subscriber channel and write each
// one immediately. Both modes share the same write path: transform, then an
// atomic single-key write into the registry.
//
//	registry := sensor.NewRegistry(sensor.WithOwner("tomcat-1"))
//	_, err := registry.Register(sensor.Poll(jolokia, sensor.Descriptor{
//	    Target:    "Catalina:type=Connector,port=8080",
//	    Attribute: "stateName",
//	}, sensor.ServiceUp, sensor.WithTransform(sensor.Equals("STARTED"))))
//
// # Waiting
//
// AssertAttributeEventually re-checks a sensor on a short fixed interval until
// a predicate holds or the timeout elapses. Success means the predicate held at
// one observed instant; an adapter may overwrite the value right after.
//
//	err := registry.AssertAttributeEventually(ctx, sensor.ServiceUp, sensor.IsTrue, 5*time.Minute)
//
// A sensor that is unknown to the registry fails immediately with a
// NotFoundError; an expired wait fails with a TimeoutError that records whether
// the sensor was ever sampled.
//
// # Concurrency
//
// Every adapter runs in its own goroutine. Writes to one sensor happen in the
// order its adapter produced them and readers always see a complete value
// ("latest value wins"). There is no lock shared between registries.
package sensor
