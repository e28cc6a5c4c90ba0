// Package progress tracks composition jobs through their weighted
// stages. The tracker keeps an in-memory arena of job states, computes
// overall completion from per-stage percentages, fans events out to
// subscribers, estimates remaining time, and watches for stalled jobs.
//
// State is process-local. A restart forgets all jobs; callers that need
// durability re-submit.
package progress
