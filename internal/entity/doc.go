// Package entity provides the typed, stateful node every managed process is
// represented by.
//
// An Entity has an immutable ID, a display name, a type naming its driver,
// configuration frozen once it leaves CREATED, and a sensor registry holding
// its attributes. Lifecycle transitions are checked against the legal
// transition table in the api package and every transition is written to the
// service.state sensor.
//
// Entities form a tree. A child's parent is set exactly once when the child
// is added; destroying a parent destroys its children first. A child going
// ON_FIRE is surfaced to its parent through the parent's service.problems
// sensor, which lists the names of failed children.
//
// Starting and stopping is delegated to a Manager, normally the orchestrator.
package entity
