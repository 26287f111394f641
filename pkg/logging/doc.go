// Package logging provides subsystem-tagged structured logging for steward.
//
// It is a thin layer over the standard log/slog package. Callers log through
// package-level functions and tag every entry with the subsystem producing it,
// which keeps the call sites short and the output easy to filter:
//
//	logging.Init(logging.Options{Level: logging.LevelDebug, Output: os.Stderr})
//
//	logging.Info("Orchestrator", "Starting entity %s", e.Name())
//	logging.Debug("SensorRegistry", "Poll of %s failed (attempt %d)", sensor, n)
//	logging.Error("Cluster", err, "Member %s failed to start", name)
//
// # Formats
//
// Two handler formats are supported: "text" (the default, logfmt-like) and
// "json". Both include the subsystem attribute and, for Error, an "error"
// attribute with the error text.
//
// # Defaults
//
// Until Init is called, entries at INFO and above are written to stderr in
// text format. Tests that want silence can call Init with io.Discard.
//
// # Thread Safety
//
// All functions are safe for concurrent use. Init swaps the underlying logger
// atomically, so it may be called while other goroutines are logging.
package logging
