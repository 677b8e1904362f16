// Package config loads and validates the TOML configuration file, applies
// environment overrides for secrets, and exposes derived paths (database,
// summaries directory, lock file).
package config
