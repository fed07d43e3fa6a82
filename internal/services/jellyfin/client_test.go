package jellyfin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amaumene/mediasnap/internal/config"
	"github.com/amaumene/mediasnap/internal/models"
	"github.com/sirupsen/logrus"
)

const sessionsJSON = `[
  {
    "Id": "sess-1",
    "PlayState": {"PositionTicks": 9000000000},
    "NowPlayingItem": {
      "Id": "item-1",
      "Name": "Heat",
      "Type": "Movie",
      "RunTimeTicks": 102000000000,
      "ProductionYear": 1995,
      "MediaSources": [{"Path": "/movies/Heat (1995)/Heat.1995.mkv"}]
    }
  },
  {
    "Id": "sess-2",
    "PlayState": {"PositionTicks": 3000000000},
    "NowPlayingItem": {
      "Id": "item-2",
      "Name": "Pilot",
      "Type": "Episode",
      "SeriesName": "Severance",
      "ParentIndexNumber": 1,
      "IndexNumber": 1,
      "RunTimeTicks": 33000000000,
      "MediaSources": [{"Path": "/tv/Severance/S01/Severance.S01E01.mkv"}]
    }
  },
  {
    "Id": "sess-3",
    "PlayState": {"PositionTicks": 0},
    "NowPlayingItem": {
      "Id": "item-3",
      "Name": "No Sources",
      "Type": "Movie",
      "RunTimeTicks": 1,
      "MediaSources": []
    }
  },
  {
    "Id": "sess-4"
  }
]`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewClient(config.SourceConfig{URL: server.URL, Secret: "jf-key"}, logger)
}

func TestFetchSessions(t *testing.T) {
	var gotToken string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Emby-Token")
		if r.URL.Path != "/Sessions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(sessionsJSON))
	})

	sessions, err := client.FetchSessions(context.Background())
	if err != nil {
		t.Fatalf("FetchSessions failed: %v", err)
	}
	if gotToken != "jf-key" {
		t.Errorf("expected api key header, got %q", gotToken)
	}

	// Entries without a media source or a playing item are skipped
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	movie := sessions[0]
	if movie.SessionID != "jf-sess-1" {
		t.Errorf("expected jf-sess-1, got %q", movie.SessionID)
	}
	if movie.Source != models.SourceJellyfin {
		t.Errorf("source mismatch: %q", movie.Source)
	}
	// Positions arrive in 100ns ticks: 9000000000 ticks = 900s
	if movie.PositionSeconds != 900.0 {
		t.Errorf("expected position 900s, got %v", movie.PositionSeconds)
	}
	if movie.DurationSeconds != 10200.0 {
		t.Errorf("expected duration 10200s, got %v", movie.DurationSeconds)
	}
	if movie.Year == nil || *movie.Year != 1995 {
		t.Errorf("year mismatch: %v", movie.Year)
	}

	episode := sessions[1]
	if episode.Title != "Severance" {
		t.Errorf("expected series title, got %q", episode.Title)
	}
	if episode.Subtitle != "S01E01 — Pilot" {
		t.Errorf("subtitle mismatch: %q", episode.Subtitle)
	}
}

func TestFetchSessionsThumbnailHasNoCredential(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sessionsJSON))
	})

	sessions, err := client.FetchSessions(context.Background())
	if err != nil {
		t.Fatalf("FetchSessions failed: %v", err)
	}

	thumb := sessions[0].ThumbnailURL
	if !strings.HasPrefix(thumb, "/api/proxy/jellyfin?path=") {
		t.Errorf("thumbnail should be a relative proxy URL, got %q", thumb)
	}
	if strings.Contains(thumb, "jf-key") || strings.Contains(thumb, "api_key") {
		t.Errorf("thumbnail leaks the credential: %q", thumb)
	}
	if strings.Contains(thumb, "http") {
		t.Errorf("thumbnail leaks the origin: %q", thumb)
	}
}

func TestFetchSessionsMalformed(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	})

	_, err := client.FetchSessions(context.Background())
	if !errors.Is(err, models.ErrUpstreamMalformed) {
		t.Errorf("expected ErrUpstreamMalformed, got %v", err)
	}
}

func TestFetchSessionsServerError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchSessions(context.Background())
	if !errors.Is(err, models.ErrUpstreamUnreachable) {
		t.Errorf("expected ErrUpstreamUnreachable, got %v", err)
	}
}
