// Package media wraps the external encoder and prober binaries behind the
// Toolkit capability surface: probe, mux, frame extraction, scaling, text
// overlay, audio trim/pad, and canvas rendering.
//
// Every operation is a blocking child-process invocation; callers bound
// process-level concurrency (the orchestrator's worker pool is the only
// legitimate caller of Mux).
package media
