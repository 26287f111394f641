// Package location models the machines entities run on and hands them out.
//
// A Spec lists the named ports an entity needs, each as a port range such as
// "8080+", "31880-31890" or "5432,15432". A Provider turns a Spec into a
// Location with a host and one concrete port per name, and takes it back on
// Release. LocalhostProvider allocates ports on a single host and never hands
// out the same port twice while it is in use.
package location
