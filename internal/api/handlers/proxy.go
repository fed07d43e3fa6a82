package handlers

import (
	"errors"
	"net/http"

	"github.com/amaumene/mediasnap/internal/metrics"
	"github.com/amaumene/mediasnap/internal/models"
	"github.com/amaumene/mediasnap/internal/services/proxy"
	"github.com/sirupsen/logrus"
)

// Thumbnails are immutable for a given upstream path, so clients may
// cache them for a day
const cacheControl = "public, max-age=86400"

// ProxyHandler serves Plex/Jellyfin thumbnails to the browser with
// credentials injected server-side
type ProxyHandler struct {
	fetcher *proxy.Fetcher
	logger  *logrus.Logger
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(fetcher *proxy.Fetcher, logger *logrus.Logger) *ProxyHandler {
	return &ProxyHandler{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Plex handles GET /api/proxy/plex?path=
func (h *ProxyHandler) Plex(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, models.SourcePlex)
}

// Jellyfin handles GET /api/proxy/jellyfin?path=
func (h *ProxyHandler) Jellyfin(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, models.SourceJellyfin)
}

func (h *ProxyHandler) serve(w http.ResponseWriter, r *http.Request, kind models.SourceKind) {
	body, contentType, err := h.fetcher.Fetch(r.Context(), kind, r.URL.Query().Get("path"))
	if err != nil {
		metrics.ProxyRequests.WithLabelValues(string(kind), "error").Inc()
		switch {
		case errors.Is(err, proxy.ErrInvalidPath):
			writeError(w, http.StatusBadRequest, "invalid path")
		case errors.Is(err, proxy.ErrSourceDisabled):
			writeError(w, http.StatusNotFound, "source is not configured")
		case errors.Is(err, models.ErrUpstreamUnreachable):
			writeError(w, http.StatusBadGateway, "failed to fetch thumbnail")
		default:
			h.logger.WithError(err).Error("Proxy request failed")
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	metrics.ProxyRequests.WithLabelValues(string(kind), "ok").Inc()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", cacheControl)
	w.Write(body)
}
