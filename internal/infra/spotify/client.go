// Package spotify provides a batch catalog client for the Spotify Web API.
package spotify

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/osa030/replaybox/internal/domain/track"
	"github.com/osa030/replaybox/internal/infra/metrics"
)

// Per-request ceilings of the catalog endpoints.
const (
	MaxTracksPerRequest  = 50
	MaxAlbumsPerRequest  = 20
	MaxArtistsPerRequest = 50
)

var (
	// ErrNoCredentials is returned when client credentials or the refresh token are missing.
	ErrNoCredentials = errors.New("spotify credentials are required")
	// ErrBatchTooLarge is returned when a request exceeds the endpoint ceiling.
	ErrBatchTooLarge = errors.New("spotify batch exceeds request ceiling")
)

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
	BaseURL      string        // Web API base, overridable for tests
	TokenURL     string        // Accounts token endpoint, overridable for tests
	Timeout      time.Duration // Per-request HTTP timeout

	// Circuit breaker around catalog calls.
	BreakerFailures uint32        // Consecutive failures before opening
	BreakerTimeout  time.Duration // Time spent open before probing again
}

// Client fetches tracks, albums and artists in batches.
type Client struct {
	market    string
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	breaker   *gobreaker.CircuitBreaker[any]
}

type options struct {
	transport http.RoundTripper
}

// Option configures a Client or TokenProvider.
type Option func(*options)

// WithTransport replaces the underlying HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

func buildOptions(opts []Option) options {
	o := options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a catalog client. Credentials are not needed here; every call
// carries its own access token.
func New(cfg Config, opts ...Option) *Client {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	openTimeout := cfg.BreakerTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	c := &Client{
		market:    cfg.Market,
		baseURL:   cfg.BaseURL,
		timeout:   cfg.Timeout,
		transport: buildOptions(opts).transport,
	}

	c.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "spotify-catalog",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zlog.Warn().Msgf("circuit breaker %s: %s -> %s", name, from, to)
		},
		// Rate limiting is handled by the caller's backoff and says nothing about service health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			_, limited := AsRateLimit(err)
			return limited
		},
	})
	return c
}

// api returns a Web API client authorized with token.
func (c *Client) api(token *oauth2.Token) *spotify.Client {
	httpClient := &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(token),
			Base:   &rateLimitTransport{base: c.transport},
		},
	}
	var opts []spotify.ClientOption
	if c.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(c.baseURL))
	}
	return spotify.New(httpClient, opts...)
}

func (c *Client) requestOptions() []spotify.RequestOption {
	if c.market == "" {
		return nil
	}
	return []spotify.RequestOption{spotify.Market(c.market)}
}

// call runs fn through the circuit breaker and records the outcome.
func (c *Client) call(kind string, fn func() (any, error)) (any, error) {
	res, err := c.breaker.Execute(fn)
	switch {
	case err == nil:
		metrics.RecordCatalogRequest(kind, metrics.OutcomeOK)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCatalogRequest(kind, metrics.OutcomeRejected)
	default:
		if _, limited := AsRateLimit(err); limited {
			metrics.RecordCatalogRequest(kind, metrics.OutcomeRateLimited)
		} else {
			metrics.RecordCatalogRequest(kind, metrics.OutcomeError)
		}
	}
	return res, err
}

func toIDs(ids []string) []spotify.ID {
	out := make([]spotify.ID, len(ids))
	for i, id := range ids {
		out[i] = spotify.ID(id)
	}
	return out
}

// FetchTracks returns the tracks the catalog knows among ids. Unknown IDs are dropped.
func (c *Client) FetchTracks(ctx context.Context, token *oauth2.Token, ids []string) ([]track.Track, error) {
	if len(ids) > MaxTracksPerRequest {
		return nil, errors.Wrapf(ErrBatchTooLarge, "%d tracks (max %d)", len(ids), MaxTracksPerRequest)
	}
	if len(ids) == 0 {
		return []track.Track{}, nil
	}

	res, err := c.call("tracks", func() (any, error) {
		return c.api(token).GetTracks(ctx, toIDs(ids), c.requestOptions()...)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tracks")
	}

	full, _ := res.([]*spotify.FullTrack)
	tracks := make([]track.Track, 0, len(full))
	for _, t := range full {
		if t == nil || t.ID == "" {
			continue
		}
		tracks = append(tracks, convertTrack(t))
	}
	return tracks, nil
}

// FetchAlbums returns the albums the catalog knows among ids, keyed by album ID.
// Each album carries its complete track list.
func (c *Client) FetchAlbums(ctx context.Context, token *oauth2.Token, ids []string) (map[string]track.Album, error) {
	if len(ids) > MaxAlbumsPerRequest {
		return nil, errors.Wrapf(ErrBatchTooLarge, "%d albums (max %d)", len(ids), MaxAlbumsPerRequest)
	}
	albums := make(map[string]track.Album, len(ids))
	if len(ids) == 0 {
		return albums, nil
	}

	api := c.api(token)
	res, err := c.call("albums", func() (any, error) {
		return api.GetAlbums(ctx, toIDs(ids), c.requestOptions()...)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get albums")
	}

	full, _ := res.([]*spotify.FullAlbum)
	for _, a := range full {
		if a == nil || a.ID == "" {
			continue
		}
		album := convertAlbum(a)
		if err := c.completeTracklist(ctx, api, a, &album); err != nil {
			// A 429 fails the whole batch so the caller's backoff can repeat it.
			if _, limited := AsRateLimit(err); limited {
				return nil, errors.Wrapf(err, "album %s", a.ID)
			}
			zlog.Warn().Err(err).Msgf("album %s: track list truncated at %d tracks", a.ID, len(album.Tracks))
			album.TracksPartial = true
		}
		albums[string(a.ID)] = album
	}
	return albums, nil
}

// completeTracklist follows track pages beyond the first one embedded in the album.
func (c *Client) completeTracklist(ctx context.Context, api *spotify.Client, full *spotify.FullAlbum, album *track.Album) error {
	page := full.Tracks
	for page.Next != "" {
		_, err := c.call("album_tracks", func() (any, error) {
			return nil, api.NextPage(ctx, &page)
		})
		if errors.Is(err, spotify.ErrNoMorePages) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to page album tracks")
		}
		for i := range page.Tracks {
			album.Tracks = append(album.Tracks, convertAlbumTrack(&page.Tracks[i]))
		}
	}
	return nil
}

// FetchArtists returns the artists the catalog knows among ids, keyed by artist ID.
func (c *Client) FetchArtists(ctx context.Context, token *oauth2.Token, ids []string) (map[string]track.Artist, error) {
	if len(ids) > MaxArtistsPerRequest {
		return nil, errors.Wrapf(ErrBatchTooLarge, "%d artists (max %d)", len(ids), MaxArtistsPerRequest)
	}
	artists := make(map[string]track.Artist, len(ids))
	if len(ids) == 0 {
		return artists, nil
	}

	res, err := c.call("artists", func() (any, error) {
		return c.api(token).GetArtists(ctx, toIDs(ids)...)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get artists")
	}

	full, _ := res.([]*spotify.FullArtist)
	for _, a := range full {
		if a == nil || a.ID == "" {
			continue
		}
		artists[string(a.ID)] = convertArtist(a)
	}
	return artists, nil
}
