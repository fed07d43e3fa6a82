package models

// Session is a playback session reported by Plex or Jellyfin, normalized
// into one canonical shape. Sessions are ephemeral: they live in the
// aggregator's cache and may disappear between polls without notice.
type Session struct {
	SessionID       string     `json:"session_id"` // "plex-<id>" or "jf-<id>"
	Source          SourceKind `json:"source"`
	Title           string     `json:"title"`
	Subtitle        string     `json:"subtitle"` // e.g. "S02E05 — The One With..."
	MediaPath       string     `json:"media_path"` // absolute path on the server filesystem
	PositionSeconds float64    `json:"position_seconds"`
	DurationSeconds float64    `json:"duration_seconds"`
	ThumbnailURL    string     `json:"thumbnail_url"` // relative proxy URL, no host, no credential
	Year            *int       `json:"year,omitempty"`
}

// MediaTitle composes the display title persisted on captures
func (s Session) MediaTitle() string {
	if s.Subtitle == "" {
		return s.Title
	}
	return s.Title + " — " + s.Subtitle
}
