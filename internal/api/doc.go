// Package api holds the types shared by every layer of steward: the entity
// lifecycle states with their legal transitions, and the typed error taxonomy
// used to tell timeouts, missing sensors, lifecycle failures and partial
// cluster failures apart.
//
// Errors are plain structs implementing error and are matched with the Is*
// helpers, which use errors.As and therefore see through wrapping:
//
//	err := registry.AssertAttributeEventually(ctx, "service.isUp", isTrue, time.Minute)
//	switch {
//	case api.IsTimeout(err):
//	    // sampled (or not) but never matched
//	case api.IsNotFound(err):
//	    // nothing will ever write this sensor
//	}
package api
