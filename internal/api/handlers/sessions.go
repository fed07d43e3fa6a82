package handlers

import (
	"net/http"

	"github.com/amaumene/mediasnap/internal/services/sessions"
	"github.com/sirupsen/logrus"
)

// SessionsHandler lists active playback sessions
type SessionsHandler struct {
	aggregator *sessions.Aggregator
	logger     *logrus.Logger
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(aggregator *sessions.Aggregator, logger *logrus.Logger) *SessionsHandler {
	return &SessionsHandler{
		aggregator: aggregator,
		logger:     logger,
	}
}

// List returns all active sessions across the configured sources. A
// source that could not be reached appears in the errors map while the
// other source's sessions are still returned.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	result := h.aggregator.Refresh(r.Context())
	writeJSON(w, http.StatusOK, result)
}
