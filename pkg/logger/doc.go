// Package logger provides the structured logging interface used across e621dl.
//
// It wraps zerolog with:
//   - Colored console output on stderr (plain when stderr is not a terminal)
//   - Optional JSON lines appended to a file
//   - Child loggers carrying fields via WithField / WithFields
//   - A global logger for code that is not handed one explicitly
//
// Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//
//	log := logger.GetLogger().WithField("search", "cats")
//	log.InfoWithFields("downloaded", map[string]interface{}{
//	    "post_id": 12345,
//	    "size":    "1.2 MB",
//	})
//
// Tests use NewTestLogger to capture messages, or NewNopLogger to discard them.
package logger
