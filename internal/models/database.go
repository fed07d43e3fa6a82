package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the gorm store for capture records
type Database struct {
	db *gorm.DB
}

// NewDatabase opens the SQLite database and applies the captures schema
// idempotently (create-if-absent, no migration chain)
func NewDatabase(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Capture{}); err != nil {
		return nil, fmt.Errorf("failed to migrate captures table: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Capture operations

// CreateCapture persists a new capture record
func (d *Database) CreateCapture(capture *Capture) error {
	if capture.CreatedAt == "" {
		capture.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return d.db.Create(capture).Error
}

// GetCaptureByID retrieves a capture by ID
func (d *Database) GetCaptureByID(id string) (*Capture, error) {
	var capture Capture
	err := d.db.First(&capture, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &capture, nil
}

// ListCaptures retrieves captures newest first, optionally filtered by type
func (d *Database) ListCaptures(limit, offset int, captureType CaptureType) ([]*Capture, error) {
	var captures []*Capture
	query := d.db.Order("created_at DESC").Limit(limit).Offset(offset)
	if captureType != "" {
		query = query.Where("capture_type = ?", captureType)
	}
	err := query.Find(&captures).Error
	return captures, err
}

// MarkCaptureComplete transitions a pending capture to complete with its
// final byte size. The conditional update guarantees a record never
// leaves a terminal state.
func (d *Database) MarkCaptureComplete(id string, sizeBytes int64) error {
	return d.transition(id, map[string]interface{}{
		"status":          StatusComplete,
		"file_size_bytes": sizeBytes,
	})
}

// MarkCaptureFailed transitions a pending capture to failed with an error
// detail
func (d *Database) MarkCaptureFailed(id string, errorMessage string) error {
	return d.transition(id, map[string]interface{}{
		"status":        StatusFailed,
		"error_message": errorMessage,
	})
}

func (d *Database) transition(id string, updates map[string]interface{}) error {
	result := d.db.Model(&Capture{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing record from a finished one
		if _, err := d.GetCaptureByID(id); err != nil {
			return err
		}
		return ErrTerminalStatus
	}
	return nil
}

// ListPendingOlderThan retrieves pending captures created before the cutoff
func (d *Database) ListPendingOlderThan(cutoff time.Time) ([]*Capture, error) {
	var captures []*Capture
	err := d.db.
		Where("status = ? AND created_at < ?", StatusPending, cutoff.UTC().Format(time.RFC3339)).
		Find(&captures).Error
	return captures, err
}

// DeleteCapture removes a capture row
func (d *Database) DeleteCapture(id string) error {
	result := d.db.Delete(&Capture{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
