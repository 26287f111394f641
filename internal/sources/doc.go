// Package sources contains the concrete external signal sources sensor
// adapters read from.
//
// Poll sources implement sensor.Fetcher:
//
//   - Jolokia reads JMX attributes through a Jolokia HTTP agent.
//   - HTTPJSON reads a field of a JSON document, or checks liveness of a URL.
//   - TCPPort reports whether a host:port accepts connections.
//   - Command runs a shell command through a Runner and returns its output.
//
// Static implements sensor.Subscriber and publishes fixed values, typically
// an entity's configuration, as sensors.
package sources
