// Package logging provides slog-based structured logging for the
// pipeline. It offers a console handler for interactive runs, a JSON
// handler for machine-readable logs, and helpers for carrying the
// active stage and run identifier through context.
package logging
