package media

import "errors"

// Pipeline errors. Every failure is local to one task.
var (
	// ErrProbeNotFound is returned when no identifier/quality pair validated.
	ErrProbeNotFound = errors.New("no video id found")

	// ErrManifestUnavailable is returned when the playlist could not be fetched or used.
	ErrManifestUnavailable = errors.New("manifest unavailable")

	// ErrEmptyManifest is returned when the playlist parsed but lists no segments.
	ErrEmptyManifest = errors.New("manifest has no segments")

	// ErrSegmentExhausted is returned when a segment failed on every attempt.
	ErrSegmentExhausted = errors.New("segment download failed after retries")

	// ErrMuxToolMissing is returned when the ffmpeg binary cannot be found.
	ErrMuxToolMissing = errors.New("ffmpeg not found")

	// ErrMuxFailed is returned when ffmpeg exits non-zero.
	ErrMuxFailed = errors.New("ffmpeg failed")

	// ErrNamesNotDetected is returned when course/video names could not be scraped.
	ErrNamesNotDetected = errors.New("could not detect course and video names")

	// ErrInvalidTask is returned when a task's names sanitize to nothing.
	ErrInvalidTask = errors.New("invalid task")

	// ErrInsufficientResources is returned when the host is short on disk, memory or CPU.
	ErrInsufficientResources = errors.New("insufficient system resources")
)
