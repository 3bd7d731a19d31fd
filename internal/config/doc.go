// Package config loads, normalizes, and validates checkweigher configuration data.
//
// It supplies repository defaults (the small and large package presets, two
// machines, and their production orders), expands user paths, reads TOML
// files, and honours environment fallbacks such as CHECKWEIGHER_SEED and
// CHECKWEIGHER_LOG_LEVEL. Profile tables keep pointer fields so a preset that
// omits a value is reported by key instead of silently weighing against zero.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
