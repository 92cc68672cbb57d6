// Package logging builds the slog loggers used across scribed and
// carries the shared attribute helpers and field-name conventions.
package logging
