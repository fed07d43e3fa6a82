package models

// Capture is a durable record of a screenshot or clip extracted from a
// session's source file. It is persisted before a clip job starts and
// transitions pending -> complete or pending -> failed exactly once.
type Capture struct {
	ID               string        `gorm:"column:id;primaryKey" json:"id"`
	Source           SourceKind    `gorm:"column:source;not null" json:"source"`
	MediaTitle       string        `gorm:"column:media_title;not null" json:"media_title"`
	MediaPath        string        `gorm:"column:media_path;not null" json:"-"`
	TimestampSeconds float64       `gorm:"column:timestamp_seconds;not null" json:"timestamp_seconds"`
	CaptureType      CaptureType   `gorm:"column:capture_type;not null" json:"capture_type"`
	FilePath         string        `gorm:"column:file_path;not null" json:"-"`
	FileName         string        `gorm:"column:file_name;not null" json:"file_name"`
	FileSizeBytes    int64         `gorm:"column:file_size_bytes;default:0" json:"file_size_bytes"`
	DurationSeconds  *float64      `gorm:"column:duration_seconds" json:"duration_seconds"`
	Status           CaptureStatus `gorm:"column:status;not null;default:pending" json:"status"`
	ErrorMessage     *string       `gorm:"column:error_message" json:"error_message"`
	CreatedAt        string        `gorm:"column:created_at;not null" json:"created_at"` // ISO-8601 UTC

	// FileURL is the client-fetchable relative URL, derived, not stored
	FileURL string `gorm:"-" json:"file_url"`
}

// TableName sets the gorm table name
func (Capture) TableName() string {
	return "captures"
}
