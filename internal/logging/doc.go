// Package logging assembles structured slog loggers and formatting helpers used
// across the checkweigher simulator.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so line code tags every record with the
// machine name, run ID and item ID. A no-op logger is provided for tests and
// wiring code that cannot fail.
package logging
