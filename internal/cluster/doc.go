// Package cluster implements dynamic clusters: groups of homogeneous member
// entities created from a template and scaled out or in at runtime.
//
// Every member gets a unique index from a single atomic counter owned by the
// cluster. Indexes are never reused, so member names rendered from them stay
// unique for the cluster's lifetime even when several scale operations run
// at the same time. Members start concurrently; one failing member never
// aborts its siblings, and every scale operation reports a result per member.
//
// A cluster is itself an entity. Members are its children, and it carries the
// cluster.name, cluster.counter and group.size sensors.
package cluster
