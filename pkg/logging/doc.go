// Package logging provides structured logging for authbridge on top of the
// standard slog package.
//
// Log entries carry a subsystem identifier for filtering (Credentials, Flow,
// Client, Storage, Config, Lifecycle) and printf-style message formatting.
// Initialize once at startup:
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Info("Client", "session refreshed for %s", baseURL)
//	logging.Error("Storage", err, "failed to persist cookie record")
//
// Credential values are never logged by any subsystem; log sites report key
// names and URLs only.
package logging
