package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amaumene/mediasnap/internal/config"
	"github.com/amaumene/mediasnap/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidPath is returned when the relative path does not start
	// with /
	ErrInvalidPath = errors.New("invalid path")

	// ErrSourceDisabled is returned when the owning source is not
	// configured
	ErrSourceDisabled = errors.New("source is not configured")
)

// Upstream images can be large transcodes; keep a sane ceiling
const maxBodyBytes = 20 * 1024 * 1024

// Fetcher rewrites client-supplied relative paths into authenticated
// upstream requests. The credential is appended server-side and never
// appears in anything returned to the client.
type Fetcher struct {
	plex       config.SourceConfig
	jellyfin   config.SourceConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewFetcher creates a new credential-injecting fetcher
func NewFetcher(plex, jellyfin config.SourceConfig, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		plex:     plex,
		jellyfin: jellyfin,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Fetch validates the relative path, builds the authenticated upstream
// URL, and returns the response body and content type. Upstream failure
// is surfaced, not retried.
func (f *Fetcher) Fetch(ctx context.Context, kind models.SourceKind, relativePath string) ([]byte, string, error) {
	// No scheme or host is ever accepted: the path must be relative to
	// the configured origin
	if !strings.HasPrefix(relativePath, "/") || strings.HasPrefix(relativePath, "//") {
		return nil, "", ErrInvalidPath
	}

	upstreamURL, header, err := f.buildRequest(kind, relativePath)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", models.ErrUpstreamUnreachable, err)
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.WithError(err).WithField("source", kind).Warn("Thumbnail fetch failed")
		return nil, "", fmt.Errorf("%w: %v", models.ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.WithFields(logrus.Fields{
			"source": kind,
			"status": resp.StatusCode,
		}).Warn("Thumbnail fetch returned non-2xx")
		return nil, "", fmt.Errorf("%w: status %d", models.ErrUpstreamUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", models.ErrUpstreamUnreachable, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return body, contentType, nil
}

// buildRequest constructs the authenticated upstream URL. The credential
// is appended to the caller's path, never interpolated into it: Plex
// takes the token as a trailing query parameter, Jellyfin as a header.
func (f *Fetcher) buildRequest(kind models.SourceKind, relativePath string) (string, map[string]string, error) {
	switch kind {
	case models.SourcePlex:
		if !f.plex.Enabled() {
			return "", nil, ErrSourceDisabled
		}
		separator := "?"
		if strings.Contains(relativePath, "?") {
			separator = "&"
		}
		upstreamURL := f.plex.URL + relativePath + separator + "X-Plex-Token=" + url.QueryEscape(f.plex.Secret)
		return upstreamURL, nil, nil

	case models.SourceJellyfin:
		if !f.jellyfin.Enabled() {
			return "", nil, ErrSourceDisabled
		}
		return f.jellyfin.URL + relativePath, map[string]string{"X-Emby-Token": f.jellyfin.Secret}, nil

	default:
		return "", nil, ErrSourceDisabled
	}
}
