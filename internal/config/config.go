package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"

	"music-sync-srv/internal/matcher"
	"music-sync-srv/internal/models"
)

// Remote backends.
const (
	BackendSpotify = "spotify"
	BackendDAB     = "dab"
)

const appDir = "music-sync"

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration values
type Config struct {
	Backend  string
	Spotify  SpotifyConfig
	DAB      DABConfig
	Storage  StorageConfig
	Matching MatchingConfig
	Search   SearchConfig
	Port     string

	// keys whose values could not be parsed, reported by Validate
	invalid []string
}

// SpotifyConfig holds Spotify API configuration
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string // user token for playlist writes
}

type DABConfig struct {
	Token string
}

// StorageConfig locates the ledger database and the CSV report directory.
type StorageConfig struct {
	LedgerPath string
	ReportDir  string
}

type MatchingConfig struct {
	Mode string
	// Threshold overrides the mode threshold when set.
	Threshold *float64
	Weights   models.Weights
}

type SearchConfig struct {
	Limit    int
	Interval time.Duration
	// Exhaustive runs every query variant instead of stopping at the first
	// one with results.
	Exhaustive bool
	// MaxAttempts caps the query variants per track; zero means all.
	MaxAttempts int
}

// Load loads configuration following the specified order:
// 1. Defaults
// 2. OS environment variables (only if they exist)
// 3. .env file in the working directory (only if it exists)
func Load() (*Config, error) {
	return LoadWithOverrides("", nil)
}

// LoadWithOverrides loads configuration from envFile (".env" when empty) and
// then applies CLI flag overrides keyed by environment variable name.
func LoadWithOverrides(envFile string, overrides map[string]string) (*Config, error) {
	config := &Config{}

	config.initializeDefaults()
	config.loadFromOSEnv()
	if err := config.loadFromEnvFile(envFile); err != nil {
		return nil, err
	}
	config.applyOverrides(overrides)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// initializeDefaults sets up the initial configuration with default values
func (c *Config) initializeDefaults() {
	c.Backend = BackendSpotify
	c.Storage = StorageConfig{
		LedgerPath: filepath.Join(xdg.DataHome, appDir, "ledger.db"),
		ReportDir:  filepath.Join(xdg.DataHome, appDir, "reports"),
	}
	c.Matching = MatchingConfig{
		Mode:    matcher.ModeLenient,
		Weights: models.DefaultWeights(),
	}
	c.Search = SearchConfig{Limit: 15, Exhaustive: true}
	c.Port = "8080"
}

var keys = []string{
	"REMOTE_BACKEND",
	"SPOTIFY_ID",
	"SPOTIFY_SECRET",
	"SPOTIFY_REFRESH_TOKEN",
	"DAB_TOKEN",
	"LEDGER_PATH",
	"REPORT_DIR",
	"MATCHING_MODE",
	"MATCH_THRESHOLD",
	"WEIGHT_SONG",
	"WEIGHT_ARTIST",
	"WEIGHT_ALBUM",
	"SEARCH_LIMIT",
	"SEARCH_RATE_MS",
	"SEARCH_EXHAUSTIVE",
	"SEARCH_MAX_ATTEMPTS",
	"PORT",
}

func (c *Config) loadFromOSEnv() {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			c.set(key, value)
		}
	}
}

// loadFromEnvFile reads the .env file without touching the process
// environment. A missing default file is not an error; a missing explicit
// file is.
func (c *Config) loadFromEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	for _, key := range keys {
		if value := values[key]; value != "" {
			c.set(key, value)
		}
	}
	return nil
}

// applyOverrides applies CLI flag overrides to the configuration (only if they exist)
func (c *Config) applyOverrides(overrides map[string]string) {
	for key, value := range overrides {
		if value == "" {
			continue
		}
		c.set(key, value)
	}
}

func (c *Config) set(key, value string) {
	value = strings.TrimSpace(value)
	switch key {
	case "REMOTE_BACKEND":
		c.Backend = strings.ToLower(value)
	case "SPOTIFY_ID":
		c.Spotify.ClientID = value
	case "SPOTIFY_SECRET":
		c.Spotify.ClientSecret = value
	case "SPOTIFY_REFRESH_TOKEN":
		c.Spotify.RefreshToken = value
	case "DAB_TOKEN":
		c.DAB.Token = value
	case "LEDGER_PATH":
		c.Storage.LedgerPath = value
	case "REPORT_DIR":
		c.Storage.ReportDir = value
	case "MATCHING_MODE":
		c.Matching.Mode = strings.ToLower(value)
	case "MATCH_THRESHOLD":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			c.Matching.Threshold = &f
		} else {
			c.invalid = append(c.invalid, key)
		}
	case "WEIGHT_SONG":
		c.Matching.Weights.Song = c.parseFloat(key, value)
	case "WEIGHT_ARTIST":
		c.Matching.Weights.Artist = c.parseFloat(key, value)
	case "WEIGHT_ALBUM":
		c.Matching.Weights.Album = c.parseFloat(key, value)
	case "SEARCH_LIMIT":
		if n, err := strconv.Atoi(value); err == nil {
			c.Search.Limit = n
		} else {
			c.invalid = append(c.invalid, key)
		}
	case "SEARCH_RATE_MS":
		if n, err := strconv.Atoi(value); err == nil {
			c.Search.Interval = time.Duration(n) * time.Millisecond
		} else {
			c.invalid = append(c.invalid, key)
		}
	case "SEARCH_EXHAUSTIVE":
		if b, err := strconv.ParseBool(value); err == nil {
			c.Search.Exhaustive = b
		} else {
			c.invalid = append(c.invalid, key)
		}
	case "SEARCH_MAX_ATTEMPTS":
		if n, err := strconv.Atoi(value); err == nil {
			c.Search.MaxAttempts = n
		} else {
			c.invalid = append(c.invalid, key)
		}
	case "PORT":
		c.Port = value
	}
}

func (c *Config) parseFloat(key, value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		c.invalid = append(c.invalid, key)
		return 0
	}
	return f
}

// Validate reports every missing or invalid value in a single error.
func (c *Config) Validate() error {
	var missingFields, invalidFields []string
	invalidFields = append(invalidFields, c.invalid...)

	switch c.Backend {
	case BackendSpotify:
		if c.Spotify.ClientID == "" {
			missingFields = append(missingFields, "SPOTIFY_ID")
		}
		if c.Spotify.ClientSecret == "" {
			missingFields = append(missingFields, "SPOTIFY_SECRET")
		}
		if c.Spotify.RefreshToken == "" {
			missingFields = append(missingFields, "SPOTIFY_REFRESH_TOKEN")
		}
	case BackendDAB:
		if c.DAB.Token == "" {
			missingFields = append(missingFields, "DAB_TOKEN")
		}
	default:
		invalidFields = append(invalidFields, fmt.Sprintf("REMOTE_BACKEND (%q, want spotify or dab)", c.Backend))
	}

	if c.Storage.LedgerPath == "" {
		missingFields = append(missingFields, "LEDGER_PATH")
	}
	if c.Matching.Mode != matcher.ModeLenient && c.Matching.Mode != matcher.ModeStrict {
		invalidFields = append(invalidFields, fmt.Sprintf("MATCHING_MODE (%q, want lenient or strict)", c.Matching.Mode))
	}
	if t := c.Matching.Threshold; t != nil && (*t < 0 || *t > 1) {
		invalidFields = append(invalidFields, fmt.Sprintf("MATCH_THRESHOLD (%v, want 0..1)", *t))
	}
	if err := c.Matching.Weights.Validate(); err != nil {
		invalidFields = append(invalidFields, "WEIGHT_SONG/WEIGHT_ARTIST/WEIGHT_ALBUM ("+err.Error()+")")
	}
	if c.Search.Limit <= 0 || c.Search.Limit > 50 {
		invalidFields = append(invalidFields, fmt.Sprintf("SEARCH_LIMIT (%d, want 1..50)", c.Search.Limit))
	}
	if c.Search.Interval < 0 {
		invalidFields = append(invalidFields, "SEARCH_RATE_MS")
	}
	if c.Search.MaxAttempts < 0 {
		invalidFields = append(invalidFields, fmt.Sprintf("SEARCH_MAX_ATTEMPTS (%d, want 0 or more)", c.Search.MaxAttempts))
	}

	if len(missingFields) == 0 && len(invalidFields) == 0 {
		return nil
	}

	var b strings.Builder
	if len(missingFields) > 0 {
		fmt.Fprintf(&b, "missing required configuration values:\n%s\n", strings.Join(missingFields, "\n"))
	}
	if len(invalidFields) > 0 {
		fmt.Fprintf(&b, "invalid configuration values:\n%s\n", strings.Join(invalidFields, "\n"))
	}
	b.WriteString("\nSet these values via environment variables, .env file, or CLI flags")
	return fmt.Errorf("%w:\n%s", ErrInvalidConfig, b.String())
}

// RankOptions builds matcher options from the matching settings. A non-empty
// mode replaces the configured one for this call.
func (c *Config) RankOptions(mode string) matcher.RankOptions {
	if mode == "" {
		mode = c.Matching.Mode
	}
	return matcher.OptionsForMode(mode, c.Matching.Weights, c.Matching.Threshold)
}
