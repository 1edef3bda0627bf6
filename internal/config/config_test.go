package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"music-sync-srv/internal/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigValidation(t *testing.T) {
	cfg := &Config{}
	cfg.initializeDefaults()

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "SPOTIFY_ID")
	assert.Contains(t, err.Error(), "SPOTIFY_SECRET")
	assert.Contains(t, err.Error(), "SPOTIFY_REFRESH_TOKEN")

	cfg.Spotify = SpotifyConfig{ClientID: "id", ClientSecret: "secret", RefreshToken: "refresh"}
	assert.NoError(t, cfg.Validate())

	cfg.Backend = BackendDAB
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DAB_TOKEN")
	assert.NotContains(t, err.Error(), "SPOTIFY_ID")

	cfg.DAB.Token = "tok"
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidation_ListsEveryProblem(t *testing.T) {
	cfg := &Config{}
	cfg.initializeDefaults()
	cfg.Backend = "tidal"
	cfg.Matching.Mode = "fuzzy"
	cfg.Matching.Weights = models.Weights{Song: 0.9, Artist: 0.9}
	cfg.Search.Limit = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"REMOTE_BACKEND", "MATCHING_MODE", "WEIGHT_SONG", "SEARCH_LIMIT"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeEnvFile(t, "SPOTIFY_ID=id\nSPOTIFY_SECRET=secret\nSPOTIFY_REFRESH_TOKEN=refresh\n")

	cfg, err := LoadWithOverrides(path, nil)
	require.NoError(t, err)

	assert.Equal(t, BackendSpotify, cfg.Backend)
	assert.Equal(t, "lenient", cfg.Matching.Mode)
	assert.Equal(t, models.DefaultWeights(), cfg.Matching.Weights)
	assert.Equal(t, 15, cfg.Search.Limit)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "ledger.db", filepath.Base(cfg.Storage.LedgerPath))
	assert.Equal(t, appDir, filepath.Base(filepath.Dir(cfg.Storage.LedgerPath)))
	assert.InDelta(t, 0.6, cfg.RankOptions("").Threshold, 1e-9)
	assert.True(t, cfg.Search.Exhaustive)
	assert.Zero(t, cfg.Search.MaxAttempts)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMOTE_BACKEND", "dab")
	t.Setenv("DAB_TOKEN", "from-os")
	t.Setenv("MATCHING_MODE", "lenient")
	t.Setenv("PORT", "9000")
	path := writeEnvFile(t, "DAB_TOKEN=from-file\nMATCHING_MODE=strict\n")

	cfg, err := LoadWithOverrides(path, map[string]string{
		"MATCHING_MODE": "",
		"PORT":          "9100",
	})
	require.NoError(t, err)

	assert.Equal(t, BackendDAB, cfg.Backend)
	assert.Equal(t, "from-file", cfg.DAB.Token, ".env wins over OS env")
	assert.Equal(t, "strict", cfg.Matching.Mode, "empty override is ignored")
	assert.Equal(t, "9100", cfg.Port, "override wins over everything")
	assert.InDelta(t, 0.85, cfg.RankOptions("").Threshold, 1e-9)
	assert.InDelta(t, 0.6, cfg.RankOptions("lenient").Threshold, 1e-9)
}

func TestLoad_ParsesNumbers(t *testing.T) {
	clearEnv(t)
	path := writeEnvFile(t, `REMOTE_BACKEND=dab
DAB_TOKEN=tok
MATCH_THRESHOLD=0.75
WEIGHT_SONG=0.6
WEIGHT_ARTIST=0.4
WEIGHT_ALBUM=0
SEARCH_LIMIT=20
SEARCH_RATE_MS=250
SEARCH_EXHAUSTIVE=false
SEARCH_MAX_ATTEMPTS=3
`)

	cfg, err := LoadWithOverrides(path, nil)
	require.NoError(t, err)

	assert.Equal(t, models.Weights{Song: 0.6, Artist: 0.4, Album: 0}, cfg.Matching.Weights)
	assert.Equal(t, 20, cfg.Search.Limit)
	assert.Equal(t, 250*time.Millisecond, cfg.Search.Interval)
	assert.False(t, cfg.Search.Exhaustive)
	assert.Equal(t, 3, cfg.Search.MaxAttempts)
	assert.InDelta(t, 0.75, cfg.RankOptions("strict").Threshold, 1e-9, "explicit threshold beats the mode")
}

func TestLoad_ZeroThresholdIsHonored(t *testing.T) {
	clearEnv(t)
	path := writeEnvFile(t, "REMOTE_BACKEND=dab\nDAB_TOKEN=tok\nMATCHING_MODE=strict\nMATCH_THRESHOLD=0\n")

	cfg, err := LoadWithOverrides(path, nil)
	require.NoError(t, err)
	require.NotNil(t, cfg.Matching.Threshold)
	assert.Zero(t, cfg.RankOptions("").Threshold)
}

func TestLoad_RejectsUnparsableValues(t *testing.T) {
	clearEnv(t)
	path := writeEnvFile(t, "REMOTE_BACKEND=dab\nDAB_TOKEN=tok\nSEARCH_LIMIT=many\nMATCH_THRESHOLD=high\nSEARCH_EXHAUSTIVE=maybe\nSEARCH_MAX_ATTEMPTS=-1\n")

	_, err := LoadWithOverrides(path, nil)
	require.Error(t, err)
	for _, want := range []string{"SEARCH_LIMIT", "MATCH_THRESHOLD", "SEARCH_EXHAUSTIVE", "SEARCH_MAX_ATTEMPTS"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_MissingExplicitEnvFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadWithOverrides(filepath.Join(t.TempDir(), "nope.env"), nil)
	assert.Error(t, err)
}
