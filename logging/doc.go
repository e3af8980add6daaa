// Package logging provides a minimal logging interface and adapters for referralmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the network registry and agents use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - MeshLogger with query / component context and referral helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	mesh, err := referralmesh.New(func(o *referralmesh.Options) { o.Logger = logger })
//
// The interface stays minimal to avoid vendor lock-in while supporting
// structured logging where available.
package logging
