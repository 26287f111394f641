// Package app wires steward together and runs it.
//
// # Bootstrap
//
// NewApplication initializes logging, loads the configuration directory and
// builds the services in dependency order:
//
//  1. Prometheus registry and the metrics collectors
//  2. Driver catalog with the built-in entity types
//  3. Launcher (docker, podman or kubernetes) and the localhost location provider
//  4. Orchestrator, with metrics attached to sensors, transitions and starts
//  5. ClusterController, which owns every running cluster
//  6. Reconciliation manager watching clusters/ for definition changes
//
// # Modes
//
// Run serves until the context ends: it reconciles every cluster definition,
// exposes /metrics, tells systemd it is ready once the initial scale-outs
// settled and stops every cluster on shutdown.
//
// Scale is a one-shot operation: it creates one defined cluster, scales it
// out and reports the per-member results.
package app
