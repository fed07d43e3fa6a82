package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/amaumene/mediasnap/internal/config"
	"github.com/amaumene/mediasnap/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// mediaContainer represents the XML response from /status/sessions
type mediaContainer struct {
	XMLName xml.Name `xml:"MediaContainer"`
	Videos  []video  `xml:"Video"`
}

// video represents one active playback session
type video struct {
	Type             string   `xml:"type,attr"`
	Title            string   `xml:"title,attr"`
	GrandparentTitle string   `xml:"grandparentTitle,attr"`
	ParentIndex      string   `xml:"parentIndex,attr"`
	Index            string   `xml:"index,attr"`
	ViewOffset       string   `xml:"viewOffset,attr"` // milliseconds
	Duration         string   `xml:"duration,attr"`   // milliseconds
	Year             string   `xml:"year,attr"`
	Thumb            string   `xml:"thumb,attr"`
	SessionKey       string   `xml:"sessionKey,attr"`
	Session          *session `xml:"Session"`
	Parts            []part   `xml:"Media>Part"`
}

type session struct {
	ID string `xml:"id,attr"`
}

type part struct {
	File string `xml:"file,attr"`
}

// Client fetches active playback sessions from a Plex server
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new Plex client
func NewClient(src config.SourceConfig, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    src.URL,
		token:      src.Secret,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// Kind returns the source this client serves
func (c *Client) Kind() models.SourceKind {
	return models.SourcePlex
}

// FetchSessions queries Plex for currently-playing sessions. Entries that
// cannot be resolved to a source file are skipped; an unparseable body is
// a hard failure.
func (c *Client) FetchSessions(ctx context.Context) ([]models.Session, error) {
	sessionsURL := c.baseURL + "/status/sessions"
	c.logger.WithField("url", sessionsURL).Debug("Fetching Plex sessions")

	var body []byte
	fetch := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, sessionsURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("X-Plex-Token", c.token)
		req.Header.Set("Accept", "application/xml")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	// One bounded retry for transient failures, inside the caller's deadline
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		return nil, fmt.Errorf("%w: plex: %v", models.ErrUpstreamUnreachable, err)
	}

	var container mediaContainer
	if err := xml.Unmarshal(body, &container); err != nil {
		return nil, fmt.Errorf("%w: plex: %v", models.ErrUpstreamMalformed, err)
	}

	sessions := make([]models.Session, 0, len(container.Videos))
	for _, v := range container.Videos {
		s, ok := c.convertVideo(v)
		if !ok {
			continue
		}
		sessions = append(sessions, s)
	}

	c.logger.WithField("count", len(sessions)).Debug("Plex sessions fetched")
	return sessions, nil
}

// convertVideo normalizes one Video element into a canonical session
func (c *Client) convertVideo(v video) (models.Session, bool) {
	// Resolve file path from the first Media > Part element
	if len(v.Parts) == 0 || v.Parts[0].File == "" {
		c.logger.WithField("title", v.Title).Debug("Skipping Plex session without file path")
		return models.Session{}, false
	}
	mediaPath := v.Parts[0].File

	title, subtitle := composeTitle(v)

	viewOffsetMS, _ := strconv.ParseInt(v.ViewOffset, 10, 64)
	durationMS, _ := strconv.ParseInt(v.Duration, 10, 64)

	sid := v.SessionKey
	if v.Session != nil && v.Session.ID != "" {
		sid = v.Session.ID
	}
	if sid == "" {
		c.logger.WithField("title", v.Title).Debug("Skipping Plex session without identifier")
		return models.Session{}, false
	}

	var year *int
	if y, err := strconv.Atoi(v.Year); err == nil && y > 0 {
		year = &y
	}

	return models.Session{
		SessionID:       "plex-" + sid,
		Source:          models.SourcePlex,
		Title:           title,
		Subtitle:        subtitle,
		MediaPath:       mediaPath,
		PositionSeconds: float64(viewOffsetMS) / 1000.0,
		DurationSeconds: float64(durationMS) / 1000.0,
		ThumbnailURL:    thumbnailURL(v.Thumb),
		Year:            year,
	}, true
}

// composeTitle builds a human-readable title and subtitle
func composeTitle(v video) (string, string) {
	if v.Type != "episode" {
		if v.Title == "" {
			return "Unknown", ""
		}
		return v.Title, ""
	}

	season, _ := strconv.Atoi(v.ParentIndex)
	episode, _ := strconv.Atoi(v.Index)
	if season > 0 && episode > 0 {
		return v.GrandparentTitle, fmt.Sprintf("S%02dE%02d — %s", season, episode, v.Title)
	}
	return v.GrandparentTitle, v.Title
}

// thumbnailURL wraps the Plex thumb reference in a proxy URL. Only the
// upstream path travels to the client; the proxy adds origin and token.
func thumbnailURL(thumb string) string {
	if thumb == "" {
		return ""
	}
	upstreamPath := "/photo/:/transcode?width=400&height=225&minSize=1&url=" + thumb
	return "/api/proxy/plex?path=" + url.QueryEscape(upstreamPath)
}
