package models

// SourceKind identifies which upstream media server a session or
// capture came from
type SourceKind string

const (
	SourcePlex     SourceKind = "plex"
	SourceJellyfin SourceKind = "jellyfin"
)

// CaptureType represents the kind of artifact a capture produces
type CaptureType string

const (
	CaptureScreenshot CaptureType = "screenshot"
	CaptureClip       CaptureType = "clip"
)

// CaptureStatus represents the lifecycle state of a capture.
// Pending is initial; complete and failed are terminal and a record
// never leaves a terminal state.
type CaptureStatus string

const (
	StatusPending  CaptureStatus = "pending"
	StatusComplete CaptureStatus = "complete"
	StatusFailed   CaptureStatus = "failed"
)
