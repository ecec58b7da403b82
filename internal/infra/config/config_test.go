package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "SPOTIFY_REFRESH_TOKEN", "LASTFM_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), true)
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.History.Dir)
	assert.Equal(t, "public/data", cfg.Output.Dir)
	assert.Equal(t, 500, cfg.Leaderboard.Songs)
	assert.Equal(t, 500, cfg.Leaderboard.Albums)
	assert.Equal(t, 500, cfg.Leaderboard.Artists)
	assert.Equal(t, 100, cfg.Leaderboard.AlbumsWithSongs)
	assert.Equal(t, 50, cfg.Enrichment.TrackBatchSize)
	assert.Equal(t, 20, cfg.Enrichment.AlbumBatchSize)
	assert.Equal(t, 50, cfg.Enrichment.ArtistBatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Enrichment.BatchInterval())
	assert.Equal(t, 200*time.Millisecond, cfg.Enrichment.GenreInterval())
	assert.Equal(t, 5, cfg.Enrichment.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Enrichment.BaseBackoff)
	assert.Equal(t, time.Minute, cfg.Enrichment.MaxBackoff)
	assert.Equal(t, "JP", cfg.Spotify.Market)
	assert.Equal(t, 5, cfg.Stats.TopN)
	assert.False(t, cfg.Spotify.HasCredentials())
}

func TestLoad_MissingFileRequired(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.Error(t, err)
}

func TestLoad_FileValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
history:
  dir: exports
  patterns: ["history-*.json"]
output:
  dir: out
  compact: true
consolidation:
  strip_version_suffixes: true
leaderboard:
  songs: 50
enrichment:
  batch_delay: 250ms
  max_attempts: 3
spotify:
  client_id: id
  client_secret: secret
  refresh_token: refresh
  market: US
stats:
  location: Asia/Tokyo
`)

	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, "exports", cfg.History.Dir)
	assert.Equal(t, []string{"history-*.json"}, cfg.History.Patterns)
	assert.True(t, cfg.Output.Compact)
	assert.True(t, cfg.Consolidation.StripVersionSuffixes)
	assert.Equal(t, 50, cfg.Leaderboard.Songs)
	assert.Equal(t, 500, cfg.Leaderboard.Albums, "unset fields keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Enrichment.BatchInterval())
	assert.Equal(t, 200*time.Millisecond, cfg.Enrichment.GenreInterval(), "unset delay keeps default")
	assert.Equal(t, 3, cfg.Enrichment.MaxAttempts)
	assert.Equal(t, "US", cfg.Spotify.Market)
	assert.True(t, cfg.Spotify.HasCredentials())

	loc, err := cfg.StatsLocation()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestLoad_ExplicitZeroDelays(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
enrichment:
  batch_delay: 0s
  genre_delay: 0s
`)

	cfg, err := Load(path, false)
	require.NoError(t, err)
	require.NotNil(t, cfg.Enrichment.BatchDelay)
	assert.Zero(t, cfg.Enrichment.BatchInterval())
	assert.Zero(t, cfg.Enrichment.GenreInterval())
}

func TestEnrichmentConfig_UnsetIntervals(t *testing.T) {
	var e EnrichmentConfig
	assert.Zero(t, e.BatchInterval())
	assert.Zero(t, e.GenreInterval())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
spotify:
  client_id: from-file
lastfm:
  api_key: from-file
`)
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")
	t.Setenv("SPOTIFY_REFRESH_TOKEN", "env-refresh")
	t.Setenv("LASTFM_API_KEY", "env-key")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "env-id", cfg.Spotify.ClientID)
	assert.Equal(t, "env-secret", cfg.Spotify.ClientSecret)
	assert.Equal(t, "env-refresh", cfg.Spotify.RefreshToken)
	assert.Equal(t, "env-key", cfg.LastFM.APIKey)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "history: [unclosed"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestConfig_Validate(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "market must be two letters",
			body:   "spotify:\n  market: JPN\n",
			errMsg: "Market",
		},
		{
			name:   "album batch above ceiling",
			body:   "enrichment:\n  album_batch_size: 21\n",
			errMsg: "AlbumBatchSize",
		},
		{
			name:   "track batch above ceiling",
			body:   "enrichment:\n  track_batch_size: 51\n",
			errMsg: "TrackBatchSize",
		},
		{
			name:   "max backoff below base",
			body:   "enrichment:\n  base_backoff: 10s\n  max_backoff: 5s\n",
			errMsg: "MaxBackoff",
		},
		{
			name:   "unknown location",
			body:   "stats:\n  location: Mars/Olympus\n",
			errMsg: "stats.location",
		},
		{
			name:   "negative batch delay",
			body:   "enrichment:\n  batch_delay: -1s\n",
			errMsg: "BatchDelay",
		},
		{
			name:   "invalid base url",
			body:   "spotify:\n  base_url: not a url\n",
			errMsg: "BaseURL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_StatsLocationUnset(t *testing.T) {
	cfg := &Config{}
	loc, err := cfg.StatsLocation()
	require.NoError(t, err)
	assert.Nil(t, loc)
}
