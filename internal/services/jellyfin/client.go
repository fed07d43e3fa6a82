package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/amaumene/mediasnap/internal/config"
	"github.com/amaumene/mediasnap/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Jellyfin reports positions in 100-nanosecond ticks
const ticksPerSecond = 10_000_000

// sessionEntry represents one entry of the /Sessions response
type sessionEntry struct {
	ID             string          `json:"Id"`
	NowPlayingItem *nowPlayingItem `json:"NowPlayingItem"`
	PlayState      *playState      `json:"PlayState"`
}

type nowPlayingItem struct {
	ID                string        `json:"Id"`
	Name              string        `json:"Name"`
	Type              string        `json:"Type"`
	SeriesName        string        `json:"SeriesName"`
	ParentIndexNumber int           `json:"ParentIndexNumber"`
	IndexNumber       int           `json:"IndexNumber"`
	RunTimeTicks      int64         `json:"RunTimeTicks"`
	ProductionYear    *int          `json:"ProductionYear"`
	MediaSources      []mediaSource `json:"MediaSources"`
}

type playState struct {
	PositionTicks int64 `json:"PositionTicks"`
}

type mediaSource struct {
	Path string `json:"Path"`
}

// Client fetches active playback sessions from a Jellyfin server
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new Jellyfin client
func NewClient(src config.SourceConfig, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    src.URL,
		apiKey:     src.Secret,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// Kind returns the source this client serves
func (c *Client) Kind() models.SourceKind {
	return models.SourceJellyfin
}

// FetchSessions queries Jellyfin for currently-playing sessions. Entries
// without a playing item or a resolvable file path are skipped; an
// unparseable body is a hard failure.
func (c *Client) FetchSessions(ctx context.Context) ([]models.Session, error) {
	sessionsURL := c.baseURL + "/Sessions"
	c.logger.WithField("url", sessionsURL).Debug("Fetching Jellyfin sessions")

	var body []byte
	fetch := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, sessionsURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("X-Emby-Token", c.apiKey)

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
		return nil, fmt.Errorf("%w: jellyfin: %v", models.ErrUpstreamUnreachable, err)
	}

	var entries []sessionEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: jellyfin: %v", models.ErrUpstreamMalformed, err)
	}

	sessions := make([]models.Session, 0, len(entries))
	for _, e := range entries {
		s, ok := c.convertEntry(e)
		if !ok {
			continue
		}
		sessions = append(sessions, s)
	}

	c.logger.WithField("count", len(sessions)).Debug("Jellyfin sessions fetched")
	return sessions, nil
}

// convertEntry normalizes one session entry into a canonical session
func (c *Client) convertEntry(e sessionEntry) (models.Session, bool) {
	item := e.NowPlayingItem
	if item == nil || e.PlayState == nil {
		return models.Session{}, false
	}

	// Resolve the file path from the first media source
	if len(item.MediaSources) == 0 || item.MediaSources[0].Path == "" {
		c.logger.WithField("item", item.Name).Debug("Skipping Jellyfin session without file path")
		return models.Session{}, false
	}
	mediaPath := item.MediaSources[0].Path

	if e.ID == "" {
		c.logger.WithField("item", item.Name).Debug("Skipping Jellyfin session without identifier")
		return models.Session{}, false
	}

	title, subtitle := composeTitle(item)

	return models.Session{
		SessionID:       "jf-" + e.ID,
		Source:          models.SourceJellyfin,
		Title:           title,
		Subtitle:        subtitle,
		MediaPath:       mediaPath,
		PositionSeconds: float64(e.PlayState.PositionTicks) / ticksPerSecond,
		DurationSeconds: float64(item.RunTimeTicks) / ticksPerSecond,
		ThumbnailURL:    thumbnailURL(item.ID),
		Year:            item.ProductionYear,
	}, true
}

// composeTitle builds a human-readable title and subtitle
func composeTitle(item *nowPlayingItem) (string, string) {
	if item.Type != "Episode" {
		if item.Name == "" {
			return "Unknown", ""
		}
		return item.Name, ""
	}

	if item.ParentIndexNumber > 0 && item.IndexNumber > 0 {
		return item.SeriesName, fmt.Sprintf("S%02dE%02d — %s", item.ParentIndexNumber, item.IndexNumber, item.Name)
	}
	return item.SeriesName, item.Name
}

// thumbnailURL wraps the primary image path in a proxy URL. The descriptor
// carries no origin and no api_key; the proxy injects the credential.
func thumbnailURL(itemID string) string {
	if itemID == "" {
		return ""
	}
	upstreamPath := fmt.Sprintf("/Items/%s/Images/Primary?maxWidth=400&quality=80", itemID)
	return "/api/proxy/jellyfin?path=" + url.QueryEscape(upstreamPath)
}
