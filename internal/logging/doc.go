// Package logging wraps log/slog with the attribute helpers, context
// annotation, and output handlers shared by every clipforge component.
//
// Components log through a named child logger (NewComponentLogger) and
// pipeline code annotates context with the job ID and stage so that
// WithContext folds both into every record.
package logging
