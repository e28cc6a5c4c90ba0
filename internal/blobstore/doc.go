// Package blobstore owns every file the pipeline touches: scratch-space
// downloads with size and timeout enforcement, source validation, temp
// path allocation, cleanup of per-job scratch files, free-space
// preflight, and the durable upload backends (local CDN directory or
// S3-compatible object storage).
package blobstore
