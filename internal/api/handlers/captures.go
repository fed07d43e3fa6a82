package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/amaumene/mediasnap/internal/controllers"
	"github.com/amaumene/mediasnap/internal/models"
	"github.com/amaumene/mediasnap/internal/services/ffmpeg"
	"github.com/sirupsen/logrus"
)

// CapturesHandler handles screenshot and clip creation, the gallery, and
// deletion
type CapturesHandler struct {
	captureCtrl *controllers.CaptureController
	logger      *logrus.Logger
}

// NewCapturesHandler creates a new captures handler
func NewCapturesHandler(captureCtrl *controllers.CaptureController, logger *logrus.Logger) *CapturesHandler {
	return &CapturesHandler{
		captureCtrl: captureCtrl,
		logger:      logger,
	}
}

// TakeScreenshot handles POST /api/capture/screenshot
func (h *CapturesHandler) TakeScreenshot(w http.ResponseWriter, r *http.Request) {
	var req controllers.ScreenshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	capture, err := h.captureCtrl.TakeScreenshot(r.Context(), req)
	if err != nil {
		h.writeCaptureError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, capture)
}

// TakeClip handles POST /api/capture/clip
func (h *CapturesHandler) TakeClip(w http.ResponseWriter, r *http.Request) {
	var req controllers.ClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	capture, err := h.captureCtrl.TakeClip(r.Context(), req)
	if err != nil {
		h.writeCaptureError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, capture)
}

// List handles GET /api/captures
func (h *CapturesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	captureType := models.CaptureType(r.URL.Query().Get("capture_type"))

	captures, err := h.captureCtrl.ListCaptures(limit, offset, captureType)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list captures")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, captures)
}

// Get handles GET /api/captures/{id}
func (h *CapturesHandler) Get(w http.ResponseWriter, r *http.Request) {
	capture, err := h.captureCtrl.GetCapture(r.PathValue("id"))
	if err != nil {
		h.writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, capture)
}

// Download handles GET /api/captures/{id}/file
func (h *CapturesHandler) Download(w http.ResponseWriter, r *http.Request) {
	capture, err := h.captureCtrl.GetCapture(r.PathValue("id"))
	if err != nil {
		h.writeCaptureError(w, err)
		return
	}
	if capture.Status != models.StatusComplete {
		writeError(w, http.StatusConflict, fmt.Sprintf("capture status is %q", capture.Status))
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", capture.FileName))
	http.ServeFile(w, r, capture.FilePath)
}

// Delete handles DELETE /api/captures/{id}
func (h *CapturesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.captureCtrl.DeleteCapture(id); err != nil {
		h.writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// writeCaptureError maps controller errors to HTTP status codes
func (h *CapturesHandler) writeCaptureError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ffmpeg.ErrInvalidTimestamp):
		writeError(w, http.StatusBadRequest, "offset resolves to a negative timestamp")
	case errors.Is(err, ffmpeg.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid clip range")
	case errors.Is(err, controllers.ErrCaptureJobFailed):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		h.logger.WithError(err).Error("Capture request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
