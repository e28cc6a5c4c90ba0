// Package compose drives composition jobs through the pipeline state
// machine: download both sources, validate, normalize audio duration
// against the visuals, encode the merged output, validate it, publish,
// and derive a thumbnail. Recoverable failures retry the whole run with
// backoff; batches fan out over a bounded worker pool.
package compose
