// Package faults defines the closed set of composition error kinds.
//
// Every failure surfaced by the pipeline carries a Kind from this package
// plus a recoverable flag that drives retry eligibility. Errors are built
// through the per-kind factory functions; call sites never invent new
// kinds. Classify maps low-level tool and transport errors onto the
// taxonomy before they leave a stage.
package faults
