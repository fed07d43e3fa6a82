package plex

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

const sessionsXML = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="3">
  <Video type="movie" title="Blade Runner" year="1982" viewOffset="4521000" duration="7020000" thumb="/library/metadata/101/thumb/1" sessionKey="12">
    <Media>
      <Part file="/movies/Blade Runner (1982)/Blade.Runner.1982.mkv"/>
    </Media>
    <Session id="abc123"/>
  </Video>
  <Video type="episode" title="The One With the Embryos" grandparentTitle="Friends" parentIndex="4" index="12" viewOffset="300000" duration="1320000" sessionKey="13">
    <Media>
      <Part file="/tv/Friends/S04/Friends.S04E12.mkv"/>
    </Media>
    <Session id="def456"/>
  </Video>
  <Video type="movie" title="No Part Entry" viewOffset="1000" duration="2000" sessionKey="14">
    <Session id="ghi789"/>
  </Video>
</MediaContainer>`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewClient(config.SourceConfig{URL: server.URL, Secret: "plex-token"}, logger)
}

func TestFetchSessions(t *testing.T) {
	var gotToken string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Plex-Token")
		if r.URL.Path != "/status/sessions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(sessionsXML))
	})

	sessions, err := client.FetchSessions(context.Background())
	if err != nil {
		t.Fatalf("FetchSessions failed: %v", err)
	}
	if gotToken != "plex-token" {
		t.Errorf("expected token header, got %q", gotToken)
	}

	// The entry without a Part element is skipped, not fatal
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	movie := sessions[0]
	if movie.SessionID != "plex-abc123" {
		t.Errorf("expected plex-abc123, got %q", movie.SessionID)
	}
	if movie.Source != models.SourcePlex {
		t.Errorf("source mismatch: %q", movie.Source)
	}
	if movie.Title != "Blade Runner" || movie.Subtitle != "" {
		t.Errorf("title mismatch: %q / %q", movie.Title, movie.Subtitle)
	}
	if movie.MediaPath != "/movies/Blade Runner (1982)/Blade.Runner.1982.mkv" {
		t.Errorf("media path mismatch: %q", movie.MediaPath)
	}
	// viewOffset and duration are milliseconds upstream
	if movie.PositionSeconds != 4521.0 {
		t.Errorf("expected position 4521s, got %v", movie.PositionSeconds)
	}
	if movie.DurationSeconds != 7020.0 {
		t.Errorf("expected duration 7020s, got %v", movie.DurationSeconds)
	}
	if movie.Year == nil || *movie.Year != 1982 {
		t.Errorf("year mismatch: %v", movie.Year)
	}

	episode := sessions[1]
	if episode.SessionID != "plex-def456" {
		t.Errorf("expected plex-def456, got %q", episode.SessionID)
	}
	if episode.Title != "Friends" {
		t.Errorf("expected series title, got %q", episode.Title)
	}
	if episode.Subtitle != "S04E12 — The One With the Embryos" {
		t.Errorf("subtitle mismatch: %q", episode.Subtitle)
	}

	for _, s := range sessions {
		if s.DurationSeconds > 0 && (s.PositionSeconds < 0 || s.PositionSeconds > s.DurationSeconds) {
			t.Errorf("position %v outside [0, %v]", s.PositionSeconds, s.DurationSeconds)
		}
	}
}

func TestFetchSessionsThumbnailHasNoCredential(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sessionsXML))
	})

	sessions, err := client.FetchSessions(context.Background())
	if err != nil {
		t.Fatalf("FetchSessions failed: %v", err)
	}

	thumb := sessions[0].ThumbnailURL
	if !strings.HasPrefix(thumb, "/api/proxy/plex?path=") {
		t.Errorf("thumbnail should be a relative proxy URL, got %q", thumb)
	}
	if strings.Contains(thumb, "plex-token") {
		t.Errorf("thumbnail leaks the token: %q", thumb)
	}
	if strings.Contains(thumb, "http") {
		t.Errorf("thumbnail leaks the origin: %q", thumb)
	}
}

func TestFetchSessionsMalformed(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not xml"))
	})

	_, err := client.FetchSessions(context.Background())
	if !errors.Is(err, models.ErrUpstreamMalformed) {
		t.Errorf("expected ErrUpstreamMalformed, got %v", err)
	}
}

func TestFetchSessionsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	client := NewClient(config.SourceConfig{URL: server.URL, Secret: "plex-token"}, logger)

	_, err := client.FetchSessions(context.Background())
	if !errors.Is(err, models.ErrUpstreamUnreachable) {
		t.Errorf("expected ErrUpstreamUnreachable, got %v", err)
	}
}

func TestFetchSessionsEmpty(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<MediaContainer size="0"></MediaContainer>`))
	})

	sessions, err := client.FetchSessions(context.Background())
	if err != nil {
		t.Fatalf("FetchSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(sessions))
	}
}
