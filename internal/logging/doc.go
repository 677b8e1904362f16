// Package logging builds the process-wide slog logger and provides the
// standardized attribute keys and context helpers the pipeline stamps onto
// every record. The logger is created once at startup and injected; nothing
// in this repository logs through ambient package state.
package logging
