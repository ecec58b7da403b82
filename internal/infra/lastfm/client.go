// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
	zlog "github.com/rs/zerolog/log"
)

// DefaultBaseURL is the Last.fm API root.
const DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

// ErrNoAPIKey is returned when the client is created without an API key.
var ErrNoAPIKey = errors.New("last.fm API key is required")

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	minCount   int
	httpClient *http.Client

	// Cache for artist tags, keyed by lowercased artist name
	artistTagCache map[string][]Tag
	cacheMu        sync.RWMutex
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	MinCount int // Tags weighted below this are not treated as genres
}

// Tag represents a Last.fm tag.
type Tag struct {
	Name  string
	Count int // Tag weight, 0-100
}

// GetTopTagsResponse represents the response from artist.getTopTags API.
type GetTopTagsResponse struct {
	TopTags struct {
		Tag []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"tag"`
	} `json:"toptags"`
}

// LastFMError represents an error response from Last.fm API.
type LastFMError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        baseURL,
		minCount:       cfg.MinCount,
		httpClient:     &http.Client{Timeout: timeout},
		artistTagCache: make(map[string][]Tag),
	}, nil
}

// GetArtistTopTags retrieves top tags for an artist from Last.fm.
// Reference: https://www.last.fm/api/show/artist.getTopTags
func (c *Client) GetArtistTopTags(ctx context.Context, artistName string, limit int) ([]Tag, error) {
	if strings.TrimSpace(artistName) == "" {
		return nil, errors.New("artist name is required")
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	cacheKey := strings.ToLower(artistName)
	c.cacheMu.RLock()
	if tags, ok := c.artistTagCache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached tags for artist: %s", artistName)
		return truncateTags(tags, limit), nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("method", "artist.getTopTags")
	params.Set("api_key", c.apiKey)
	params.Set("artist", artistName)
	params.Set("format", "json")
	params.Set("autocorrect", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	var apiError LastFMError
	if err := json.Unmarshal(body, &apiError); err == nil && apiError.Error != 0 {
		return nil, errors.Errorf("last.fm API error %d: %s", apiError.Error, apiError.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("last.fm API returned status %d", resp.StatusCode)
	}

	var response GetTopTagsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}

	tags := make([]Tag, 0, len(response.TopTags.Tag))
	for _, t := range response.TopTags.Tag {
		tags = append(tags, Tag{Name: t.Name, Count: t.Count})
	}

	c.cacheMu.Lock()
	c.artistTagCache[cacheKey] = tags
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("cached tags for artist: %s (count: %d)", artistName, len(tags))

	return truncateTags(tags, limit), nil
}

func truncateTags(tags []Tag, limit int) []Tag {
	if len(tags) > limit {
		return tags[:limit]
	}
	return tags
}

// ArtistGenres returns up to limit lowercased tag names weighted at least MinCount.
func (c *Client) ArtistGenres(ctx context.Context, artistName string, limit int) ([]string, error) {
	tags, err := c.GetArtistTopTags(ctx, artistName, 100)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get tags for %s", artistName)
	}

	if limit <= 0 {
		limit = 3
	}
	genres := make([]string, 0, limit)
	seen := make(map[string]struct{})
	for _, t := range tags {
		if len(genres) >= limit {
			break
		}
		if t.Count < c.minCount {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		genres = append(genres, name)
	}
	return genres, nil
}
