package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// SourceConfig holds the connection details for one upstream media server.
// It is handed only to that server's session client and to the thumbnail
// proxy; no other component sees the secret.
type SourceConfig struct {
	URL    string
	Secret string
}

// Enabled reports whether this source is fully configured
func (s SourceConfig) Enabled() bool {
	return s.URL != "" && s.Secret != ""
}

// Config holds all application configuration
type Config struct {
	// Upstream media servers
	Plex     SourceConfig
	Jellyfin SourceConfig

	// Capture
	CaptureDir         string
	FFmpegPath         string
	ScreenshotQuality  int // 1 (best) to 31 (worst), passed to -q:v
	MaxClipSeconds     int
	ClipTimeoutMinutes int // Wall-clock ceiling before a clip job is killed

	// Sessions
	SessionPollSeconds int

	// Server
	ServerPort string

	// Paths
	DatabaseFile string // $CONFIG_DIR/mediasnap.db

	// Logging / tracing
	LogLevel     string
	TraceEnabled bool
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("FFMPEG_PATH", "ffmpeg")
	viper.SetDefault("SCREENSHOT_QUALITY", 2)
	viper.SetDefault("MAX_CLIP_SECONDS", 600)
	viper.SetDefault("CLIP_TIMEOUT_MINUTES", 15)
	viper.SetDefault("SESSION_POLL_SECONDS", 30)
	viper.SetDefault("SERVER_PORT", "8787")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TRACE_ENABLED", false)

	// NOW read CONFIG_DIR from viper (which has loaded .env file)
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "mediasnap")
	} else {
		// Convert relative path to absolute path
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	captureDir := viper.GetString("CAPTURE_DIR")
	if captureDir == "" {
		captureDir = filepath.Join(configDir, "captures")
	}

	databaseFile := viper.GetString("DATABASE_FILE")
	if databaseFile == "" {
		databaseFile = filepath.Join(configDir, "mediasnap.db")
	}

	config := &Config{
		Plex: SourceConfig{
			URL:    strings.TrimRight(viper.GetString("PLEX_URL"), "/"),
			Secret: viper.GetString("PLEX_TOKEN"),
		},
		Jellyfin: SourceConfig{
			URL:    strings.TrimRight(viper.GetString("JELLYFIN_URL"), "/"),
			Secret: viper.GetString("JELLYFIN_API_KEY"),
		},

		CaptureDir:         captureDir,
		FFmpegPath:         viper.GetString("FFMPEG_PATH"),
		ScreenshotQuality:  viper.GetInt("SCREENSHOT_QUALITY"),
		MaxClipSeconds:     viper.GetInt("MAX_CLIP_SECONDS"),
		ClipTimeoutMinutes: viper.GetInt("CLIP_TIMEOUT_MINUTES"),

		SessionPollSeconds: viper.GetInt("SESSION_POLL_SECONDS"),

		ServerPort: viper.GetString("SERVER_PORT"),

		DatabaseFile: databaseFile,

		LogLevel:     viper.GetString("LOG_LEVEL"),
		TraceEnabled: viper.GetBool("TRACE_ENABLED"),
	}

	// Validate required fields
	if !config.Plex.Enabled() && !config.Jellyfin.Enabled() {
		return nil, fmt.Errorf("at least one source must be configured (PLEX_URL + PLEX_TOKEN or JELLYFIN_URL + JELLYFIN_API_KEY)")
	}
	if config.ScreenshotQuality < 1 || config.ScreenshotQuality > 31 {
		return nil, fmt.Errorf("SCREENSHOT_QUALITY must be between 1 and 31")
	}

	return config, nil
}
