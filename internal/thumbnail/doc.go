// Package thumbnail derives still images for composed videos: a frame
// grab scaled to the configured canvas with optional title overlay, or
// a rendered text card when no video frame is available. Thumbnail
// failures never fail the owning job; callers receive the configured
// placeholder URI instead.
package thumbnail
