package controllers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amaumene/mediasnap/internal/config"
	"github.com/amaumene/mediasnap/internal/metrics"
	"github.com/amaumene/mediasnap/internal/models"
	"github.com/amaumene/mediasnap/internal/services/ffmpeg"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrCaptureJobFailed is returned when the external process exits
// non-zero or produces no output
var ErrCaptureJobFailed = errors.New("capture job failed")

// Error detail persisted on failed records is cut to a user-presentable
// length
const maxErrorLength = 500

// SessionResolver resolves a session ID against the last merged cache
type SessionResolver interface {
	Resolve(id string) (models.Session, error)
}

// JobRunner executes a capture plan and reports the outcome
type JobRunner interface {
	Run(ctx context.Context, plan *ffmpeg.Plan) ffmpeg.Result
}

// ScreenshotRequest asks for a still at position + offset
type ScreenshotRequest struct {
	SessionID     string  `json:"session_id"`
	OffsetSeconds float64 `json:"offset_seconds"`
}

// ClipRequest asks for a moving extract, either relative (e.g. -30 =
// last 30s) or with explicit start/end bounds
type ClipRequest struct {
	SessionID       string   `json:"session_id"`
	RelativeSeconds *float64 `json:"relative_seconds"`
	StartSeconds    *float64 `json:"start_seconds"`
	EndSeconds      *float64 `json:"end_seconds"`
	Precise         bool     `json:"precise"` // re-encode for an exact start
}

// CaptureController owns the pending -> complete/failed lifecycle of
// captures
type CaptureController struct {
	db       *models.Database
	sessions SessionResolver
	runner   JobRunner
	logger   *logrus.Logger
	tracer   trace.Tracer

	captureDir        string
	ffmpegPath        string
	screenshotQuality int
	maxClipSeconds    int
}

// NewCaptureController creates a new capture controller
func NewCaptureController(db *models.Database, sessions SessionResolver, runner JobRunner, cfg *config.Config, logger *logrus.Logger) *CaptureController {
	return &CaptureController{
		db:                db,
		sessions:          sessions,
		runner:            runner,
		logger:            logger,
		tracer:            otel.Tracer("mediasnap/captures"),
		captureDir:        cfg.CaptureDir,
		ffmpegPath:        cfg.FFmpegPath,
		screenshotQuality: cfg.ScreenshotQuality,
		maxClipSeconds:    cfg.MaxClipSeconds,
	}
}

// TakeScreenshot extracts a single frame synchronously. Screenshots are
// fast enough to run inline, so the caller never sees a pending record:
// the persisted capture is already terminal.
func (c *CaptureController) TakeScreenshot(ctx context.Context, req ScreenshotRequest) (*models.Capture, error) {
	session, err := c.sessions.Resolve(req.SessionID)
	if err != nil {
		return nil, err
	}

	captureID := uuid.NewString()
	fileName := captureID + ".jpg"
	outputPath := filepath.Join(c.captureDir, fileName)

	plan, err := ffmpeg.PlanScreenshot(c.ffmpegPath, session, req.OffsetSeconds, c.screenshotQuality, outputPath)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"capture_id": captureID,
		"session_id": req.SessionID,
		"timestamp":  plan.TimestampSeconds,
	}).Info("Taking screenshot")

	result := c.runner.Run(ctx, plan)

	capture := &models.Capture{
		ID:               captureID,
		Source:           session.Source,
		MediaTitle:       session.MediaTitle(),
		MediaPath:        session.MediaPath,
		TimestampSeconds: plan.TimestampSeconds,
		CaptureType:      models.CaptureScreenshot,
		FilePath:         outputPath,
		FileName:         fileName,
		FileSizeBytes:    result.BytesWritten,
		Status:           models.StatusComplete,
	}
	if !result.Success {
		capture.Status = models.StatusFailed
		detail := truncate(result.Diagnostics, maxErrorLength)
		capture.ErrorMessage = &detail
	}

	if err := c.db.CreateCapture(capture); err != nil {
		return nil, fmt.Errorf("failed to persist capture: %w", err)
	}
	metrics.Captures.WithLabelValues(string(models.CaptureScreenshot), string(capture.Status)).Inc()

	if !result.Success {
		return nil, fmt.Errorf("%w: %s", ErrCaptureJobFailed, truncate(result.Diagnostics, maxErrorLength))
	}

	capture.FileURL = fileURL(capture)
	return capture, nil
}

// TakeClip records a pending capture and launches the extraction in the
// background. The pending record is visible to pollers immediately; the
// background job performs exactly one terminal status update.
func (c *CaptureController) TakeClip(ctx context.Context, req ClipRequest) (*models.Capture, error) {
	session, err := c.sessions.Resolve(req.SessionID)
	if err != nil {
		return nil, err
	}

	captureID := uuid.NewString()
	fileName := captureID + ".mp4"
	outputPath := filepath.Join(c.captureDir, fileName)

	window := ffmpeg.ClipWindow{
		RelativeSeconds: req.RelativeSeconds,
		StartSeconds:    req.StartSeconds,
		EndSeconds:      req.EndSeconds,
	}
	plan, err := ffmpeg.PlanClip(c.ffmpegPath, session, window, req.Precise, float64(c.maxClipSeconds), outputPath)
	if err != nil {
		return nil, err
	}

	duration := plan.DurationSeconds
	capture := &models.Capture{
		ID:               captureID,
		Source:           session.Source,
		MediaTitle:       session.MediaTitle(),
		MediaPath:        session.MediaPath,
		TimestampSeconds: plan.TimestampSeconds,
		CaptureType:      models.CaptureClip,
		FilePath:         outputPath,
		FileName:         fileName,
		DurationSeconds:  &duration,
		Status:           models.StatusPending,
	}

	if err := c.db.CreateCapture(capture); err != nil {
		return nil, fmt.Errorf("failed to persist capture: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"capture_id": captureID,
		"session_id": req.SessionID,
		"start":      plan.TimestampSeconds,
		"duration":   duration,
		"precise":    req.Precise,
	}).Info("Clip job started")

	go c.processClip(captureID, plan)

	capture.FileURL = fileURL(capture)
	return capture, nil
}

// processClip runs the extraction and writes the terminal status. It is
// detached from the request that spawned it.
func (c *CaptureController) processClip(captureID string, plan *ffmpeg.Plan) {
	ctx, span := c.tracer.Start(context.Background(), "captures.clip",
		trace.WithAttributes(attribute.String("capture.id", captureID)))
	defer span.End()

	result := c.runner.Run(ctx, plan)

	if result.Success {
		if err := c.db.MarkCaptureComplete(captureID, result.BytesWritten); err != nil {
			c.logger.WithError(err).WithField("capture_id", captureID).Error("Failed to mark clip complete")
			return
		}
		metrics.Captures.WithLabelValues(string(models.CaptureClip), string(models.StatusComplete)).Inc()
		c.logger.WithFields(logrus.Fields{
			"capture_id": captureID,
			"size_bytes": result.BytesWritten,
		}).Info("Clip completed")
		return
	}

	if err := c.db.MarkCaptureFailed(captureID, truncate(result.Diagnostics, maxErrorLength)); err != nil {
		c.logger.WithError(err).WithField("capture_id", captureID).Error("Failed to mark clip failed")
		return
	}
	metrics.Captures.WithLabelValues(string(models.CaptureClip), string(models.StatusFailed)).Inc()
	c.logger.WithField("capture_id", captureID).Warn("Clip failed")
}

// GetCapture retrieves one capture by ID
func (c *CaptureController) GetCapture(id string) (*models.Capture, error) {
	capture, err := c.db.GetCaptureByID(id)
	if err != nil {
		return nil, err
	}
	capture.FileURL = fileURL(capture)
	return capture, nil
}

// ListCaptures retrieves captures newest first
func (c *CaptureController) ListCaptures(limit, offset int, captureType models.CaptureType) ([]*models.Capture, error) {
	captures, err := c.db.ListCaptures(limit, offset, captureType)
	if err != nil {
		return nil, err
	}
	for _, capture := range captures {
		capture.FileURL = fileURL(capture)
	}
	return captures, nil
}

// DeleteCapture removes the record and the backing file. A file that is
// already gone does not fail the delete.
func (c *CaptureController) DeleteCapture(id string) error {
	capture, err := c.db.GetCaptureByID(id)
	if err != nil {
		return err
	}

	if err := os.Remove(capture.FilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove capture file: %w", err)
	}

	if err := c.db.DeleteCapture(id); err != nil {
		return err
	}

	c.logger.WithField("capture_id", id).Info("Capture deleted")
	return nil
}

// FailStalePending marks pending clips older than the cutoff as failed.
// A pending record that old means the background job died without its
// terminal write (crash, kill -9) and will never finish.
func (c *CaptureController) FailStalePending(olderThan time.Duration) (int, error) {
	captures, err := c.db.ListPendingOlderThan(time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale captures: %w", err)
	}

	failed := 0
	for _, capture := range captures {
		if err := c.db.MarkCaptureFailed(capture.ID, "capture job did not finish within the allowed time"); err != nil {
			c.logger.WithError(err).WithField("capture_id", capture.ID).Warn("Failed to fail stale capture")
			continue
		}
		metrics.Captures.WithLabelValues(string(capture.CaptureType), string(models.StatusFailed)).Inc()
		failed++
	}

	if failed > 0 {
		c.logger.WithField("count", failed).Warn("Marked stale pending captures as failed")
	}
	return failed, nil
}

func fileURL(capture *models.Capture) string {
	return "/captures/" + capture.FileName
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
