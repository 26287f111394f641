// Package orchestrator drives entities through their lifecycle.
//
// Starting an entity runs a fixed sequence:
//
//  1. acquire a location from the LocationProvider
//  2. launch the process through the Launcher, retrying a bounded number of
//     times with exponential backoff
//  3. build the entity type's sensor adapters (plus any the launcher
//     provides) and attach them to the entity's registry
//  4. wait until the type's readiness sensor holds, bounded by the type's
//     readiness timeout
//  5. move the entity to RUNNING
//
// A failure in steps 1-4 moves the entity to ON_FIRE and returns an
// *api.LifecycleError naming the failed phase. Stopping detaches all
// adapters, terminates the process and releases the location.
//
// Entity types are described by Drivers registered in a Catalog. A Driver is
// the capability set of one type: what ports it needs, how to install it,
// which sensors it exposes and which sensor signals readiness.
package orchestrator
