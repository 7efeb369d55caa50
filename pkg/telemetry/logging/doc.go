// Package logging builds the process-wide slog logger.
//
// The level is held in a slog.LevelVar so a configuration reload can change
// verbosity without rebuilding handlers. Request-scoped fields travel in the
// context and are attached with FromContext.
package logging
