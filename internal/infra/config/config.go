// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	History       HistoryConfig       `yaml:"history"`
	Output        OutputConfig        `yaml:"output"`
	Rules         RulesConfig         `yaml:"rules"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Leaderboard   LeaderboardConfig   `yaml:"leaderboard"`
	Enrichment    EnrichmentConfig    `yaml:"enrichment"`
	Spotify       SpotifyConfig       `yaml:"spotify"`
	LastFM        LastFMConfig        `yaml:"lastfm"`
	Stats         StatsConfig         `yaml:"stats"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// HistoryConfig represents where raw listening history exports are found.
type HistoryConfig struct {
	Dir      string   `yaml:"dir" default:"data"`
	Patterns []string `yaml:"patterns"`
	File     string   `yaml:"file"` // Explicit file, skips discovery
}

// OutputConfig represents where snapshots are written.
type OutputConfig struct {
	Dir     string `yaml:"dir" default:"public/data"`
	Compact bool   `yaml:"compact"` // Single-line JSON instead of indented
}

// RulesConfig represents the album alias rule file.
type RulesConfig struct {
	Path string `yaml:"path" default:"consolidation-rules.yaml"`
}

// ConsolidationConfig represents grouping options.
type ConsolidationConfig struct {
	StripVersionSuffixes bool `yaml:"strip_version_suffixes"`
}

// LeaderboardConfig represents how many ranked entries each collection keeps.
type LeaderboardConfig struct {
	Songs           int `yaml:"songs" default:"500" validate:"gte=1"`
	Albums          int `yaml:"albums" default:"500" validate:"gte=1"`
	Artists         int `yaml:"artists" default:"500" validate:"gte=1"`
	AlbumsWithSongs int `yaml:"albums_with_songs" default:"100" validate:"gte=1"`
}

// EnrichmentConfig represents catalog batching, pacing and retry settings.
// The delays are pointers so an explicit "0s" survives defaulting and turns
// pacing off.
type EnrichmentConfig struct {
	Disabled        bool           `yaml:"disabled"`
	TrackBatchSize  int            `yaml:"track_batch_size" default:"50" validate:"gte=1,lte=50"`
	AlbumBatchSize  int            `yaml:"album_batch_size" default:"20" validate:"gte=1,lte=20"`
	ArtistBatchSize int            `yaml:"artist_batch_size" default:"50" validate:"gte=1,lte=50"`
	BatchDelay      *time.Duration `yaml:"batch_delay" default:"100ms" validate:"gte=0"`
	MaxAttempts     int            `yaml:"max_attempts" default:"5" validate:"gte=1,lte=10"`
	BaseBackoff     time.Duration  `yaml:"base_backoff" default:"1s" validate:"gt=0"`
	MaxBackoff      time.Duration  `yaml:"max_backoff" default:"60s" validate:"gtefield=BaseBackoff"`
	GenreLimit      int            `yaml:"genre_limit" default:"3" validate:"gte=1"`
	GenreDelay      *time.Duration `yaml:"genre_delay" default:"200ms" validate:"gte=0"`
}

// BatchInterval returns batch_delay, or zero when unset.
func (e EnrichmentConfig) BatchInterval() time.Duration {
	return durationValue(e.BatchDelay)
}

// GenreInterval returns genre_delay, or zero when unset.
func (e EnrichmentConfig) GenreInterval() time.Duration {
	return durationValue(e.GenreDelay)
}

func durationValue(d *time.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return *d
}

// SpotifyConfig represents Spotify API configuration.
// Credentials are optional; without them enrichment is skipped.
type SpotifyConfig struct {
	ClientID        string        `yaml:"client_id"`
	ClientSecret    string        `yaml:"client_secret"`
	RefreshToken    string        `yaml:"refresh_token"`
	Market          string        `yaml:"market" validate:"omitempty,len=2" default:"JP"`
	BaseURL         string        `yaml:"base_url" validate:"omitempty,url"`
	TokenURL        string        `yaml:"token_url" validate:"omitempty,url"`
	Timeout         time.Duration `yaml:"timeout" default:"30s"`
	BreakerFailures uint32        `yaml:"breaker_failures" default:"5"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" default:"30s"`
}

// HasCredentials reports whether every credential needed for a token is set.
func (s SpotifyConfig) HasCredentials() bool {
	return s.ClientID != "" && s.ClientSecret != "" && s.RefreshToken != ""
}

// LastFMConfig represents the genre fallback configuration.
type LastFMConfig struct {
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout  time.Duration `yaml:"timeout" default:"10s"`
	MinCount int           `yaml:"min_count" default:"10" validate:"gte=0,lte=100"`
}

// StatsConfig represents statistics options.
type StatsConfig struct {
	Location string `yaml:"location"` // IANA zone name, empty keeps recorded zones
	TopN     int    `yaml:"top_n" default:"5" validate:"gte=1"`
}

// MetricsConfig represents metrics export.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
// A missing file is allowed when allowMissing is set, yielding defaults.
func Load(path string, allowMissing bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	case allowMissing && errors.Is(err, os.ErrNotExist):
	default:
		return nil, errors.Wrap(err, "failed to read config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.LastFM.APIKey = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if _, err := c.StatsLocation(); err != nil {
		return err
	}

	return nil
}

// StatsLocation resolves stats.location. Returns nil when unset.
func (c *Config) StatsLocation() (*time.Location, error) {
	if c.Stats.Location == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Stats.Location)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid stats.location %q", c.Stats.Location)
	}
	return loc, nil
}
