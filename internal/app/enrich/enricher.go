// Package enrich fills consolidated entities with catalog metadata.
//
// Enrichment is best effort: without a usable token the snapshot is returned
// unchanged, and a failed batch leaves its entities as they were.
package enrich

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/osa030/replaybox/internal/app/rules"
	"github.com/osa030/replaybox/internal/domain/leaderboard"
	"github.com/osa030/replaybox/internal/domain/track"
	"github.com/osa030/replaybox/internal/infra/metrics"
)

// TokenProvider supplies bearer tokens for the catalog.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
	Test(ctx context.Context, token *oauth2.Token) bool
}

// Catalog defines the batch lookups used for enrichment.
type Catalog interface {
	FetchTracks(ctx context.Context, token *oauth2.Token, ids []string) ([]track.Track, error)
	FetchAlbums(ctx context.Context, token *oauth2.Token, ids []string) (map[string]track.Album, error)
	FetchArtists(ctx context.Context, token *oauth2.Token, ids []string) (map[string]track.Artist, error)
}

// GenreSource supplies genres for artists the catalog left without any.
type GenreSource interface {
	ArtistGenres(ctx context.Context, artistName string, limit int) ([]string, error)
}

// Config controls batching, pacing and the rate-limit retry budget.
// Zero values fall back to the documented defaults; zero delays disable pacing.
type Config struct {
	TrackBatchSize  int           // default 50
	AlbumBatchSize  int           // default 20
	ArtistBatchSize int           // default 50
	BatchDelay      time.Duration // minimum spacing between catalog batches
	MaxAttempts     int           // default 5
	BaseBackoff     time.Duration // default 1s
	MaxBackoff      time.Duration // default 60s, also the largest honored Retry-After
	GenreLimit      int           // default 3
	GenreDelay      time.Duration // minimum spacing between genre lookups
}

func (c Config) withDefaults() Config {
	if c.TrackBatchSize <= 0 {
		c.TrackBatchSize = 50
	}
	if c.AlbumBatchSize <= 0 {
		c.AlbumBatchSize = 20
	}
	if c.ArtistBatchSize <= 0 {
		c.ArtistBatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	if c.GenreLimit <= 0 {
		c.GenreLimit = 3
	}
	return c
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer spaces out successive requests. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// PacerFunc returns a Pacer allowing one request per interval.
// A zero interval means no spacing.
type PacerFunc func(interval time.Duration) Pacer

// Enricher enriches a consolidated snapshot.
type Enricher struct {
	tokens     TokenProvider
	catalog    Catalog
	genres     GenreSource
	normalizer *rules.Normalizer
	cfg        Config
	sleep      SleepFunc
	pacer      PacerFunc
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithGenreSource enables the genre fallback for artists.
func WithGenreSource(g GenreSource) Option {
	return func(e *Enricher) {
		e.genres = g
	}
}

// WithSleep replaces the wait used between rate-limited attempts.
func WithSleep(fn SleepFunc) Option {
	return func(e *Enricher) {
		e.sleep = fn
	}
}

// WithPacer replaces the limiter that spaces catalog batches and genre lookups.
func WithPacer(fn PacerFunc) Option {
	return func(e *Enricher) {
		e.pacer = fn
	}
}

// New creates an Enricher. A nil TokenProvider disables enrichment.
func New(tokens TokenProvider, catalog Catalog, n *rules.Normalizer, cfg Config, opts ...Option) *Enricher {
	e := &Enricher{
		tokens:     tokens,
		catalog:    catalog,
		normalizer: n,
		cfg:        cfg.withDefaults(),
		sleep:      sleepContext,
		pacer:      newLimiter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newLimiter(d time.Duration) Pacer {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// run carries the per-invocation state of one Enrich call.
type run struct {
	*Enricher
	token   *oauth2.Token
	limiter Pacer
}

// Enrich returns a copy of current with catalog metadata merged in. prior is the
// previously written snapshot, used to carry images forward.
func (e *Enricher) Enrich(ctx context.Context, current, prior leaderboard.Snapshot) leaderboard.Snapshot {
	token, err := e.validToken(ctx)
	if err != nil {
		zlog.Warn().Err(err).Msg("enrichment disabled")
		return current
	}

	out := current
	out.Songs = append([]leaderboard.Song(nil), current.Songs...)
	out.Albums = append([]leaderboard.Album(nil), current.Albums...)
	out.Artists = append([]leaderboard.Artist(nil), current.Artists...)
	out.AlbumsWithSongs = append([]leaderboard.AlbumWithSongs(nil), current.AlbumsWithSongs...)

	e.carryForward(&out, &prior)

	r := &run{Enricher: e, token: token, limiter: e.pacer(e.cfg.BatchDelay)}
	r.enrichSongs(ctx, out.Songs)
	r.resolveIDs(out.Songs, out.Albums, out.AlbumsWithSongs, out.Artists)
	r.enrichAlbums(ctx, out.Albums, out.AlbumsWithSongs)
	r.enrichArtists(ctx, out.Artists)
	r.fillGenres(ctx, out.Artists, out.Albums, out.AlbumsWithSongs)

	return out
}

func (e *Enricher) validToken(ctx context.Context) (*oauth2.Token, error) {
	if e.tokens == nil || e.catalog == nil {
		return nil, errors.New("no catalog credentials configured")
	}
	token, err := e.tokens.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain access token")
	}
	if !e.tokens.Test(ctx, token) {
		return nil, errors.New("access token rejected")
	}
	return token, nil
}

// carryForward copies images from the prior snapshot onto entities that have none.
func (e *Enricher) carryForward(out, prior *leaderboard.Snapshot) {
	n := e.normalizer
	songKey := func(s leaderboard.Song) string { return n.SongKey(s.Name, s.PrimaryArtist()) }
	albumKey := func(a leaderboard.Album) string { return n.Key(a.Name, a.Artist.Name) }
	artistKey := func(a leaderboard.Artist) string { return n.ArtistKey(a.Name) }

	songs := carry(out.Songs, prior.Songs, songKey,
		func(s leaderboard.Song) string { return s.ID },
		func(s *leaderboard.Song) *[]track.Image { return &s.Images })
	albums := carry(out.Albums, prior.Albums, albumKey,
		func(a leaderboard.Album) string { return a.ID },
		func(a *leaderboard.Album) *[]track.Image { return &a.Images })
	artists := carry(out.Artists, prior.Artists, artistKey,
		func(a leaderboard.Artist) string { return a.ID },
		func(a *leaderboard.Artist) *[]track.Image { return &a.Images })
	withSongs := carry(out.AlbumsWithSongs, prior.AlbumsWithSongs,
		func(a leaderboard.AlbumWithSongs) string { return albumKey(a.Album) },
		func(a leaderboard.AlbumWithSongs) string { return a.ID },
		func(a *leaderboard.AlbumWithSongs) *[]track.Image { return &a.Images })

	metrics.RecordEntities("songs", metrics.StateCarried, songs)
	metrics.RecordEntities("albums", metrics.StateCarried, albums)
	metrics.RecordEntities("artists", metrics.StateCarried, artists)
	metrics.RecordEntities("albums_with_songs", metrics.StateCarried, withSongs)
	if total := songs + albums + artists + withSongs; total > 0 {
		zlog.Info().Msgf("carried forward images for %d entities from the previous snapshot", total)
	}
}

// carry matches items against prior by display key, then by catalog ID, and
// copies images onto items that lack them. It returns the number of items changed.
func carry[T any](items, prior []T, key, id func(T) string, images func(*T) *[]track.Image) int {
	if len(prior) == 0 {
		return 0
	}
	byKey := make(map[string][]track.Image, len(prior))
	byID := make(map[string][]track.Image, len(prior))
	for i := range prior {
		imgs := *images(&prior[i])
		if len(imgs) == 0 {
			continue
		}
		if k := key(prior[i]); k != "" {
			if _, ok := byKey[k]; !ok {
				byKey[k] = imgs
			}
		}
		if v := id(prior[i]); v != "" {
			if _, ok := byID[v]; !ok {
				byID[v] = imgs
			}
		}
	}

	changed := 0
	for i := range items {
		dst := images(&items[i])
		if len(*dst) > 0 {
			continue
		}
		imgs, ok := byKey[key(items[i])]
		if !ok {
			imgs, ok = byID[id(items[i])]
		}
		if ok {
			*dst = append([]track.Image(nil), imgs...)
			changed++
		}
	}
	return changed
}

// batches splits ids into consecutive chunks of at most size.
func batches(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

// fetchAll issues one paced, retried request per batch. Failed batches are
// logged and skipped; the IDs of those batches are returned.
func (r *run) fetchAll(ctx context.Context, kind string, ids []string, size int, fetch func(ctx context.Context, batch []string) error) (failed int) {
	all := batches(ids, size)
	for i, batch := range all {
		if err := r.limiter.Wait(ctx); err != nil {
			zlog.Warn().Err(err).Msgf("%s enrichment stopped before batch %d/%d", kind, i+1, len(all))
			return failed + countRemaining(all[i:])
		}
		err := r.withRetry(ctx, kind, func(ctx context.Context) error {
			return fetch(ctx, batch)
		})
		if err != nil {
			zlog.Error().Err(err).Msgf("%s batch %d/%d skipped (%d ids)", kind, i+1, len(all), len(batch))
			failed += len(batch)
			continue
		}
		zlog.Debug().Msgf("%s batch %d/%d fetched (%d ids)", kind, i+1, len(all), len(batch))
	}
	return failed
}

func countRemaining(rest [][]string) int {
	n := 0
	for _, b := range rest {
		n += len(b)
	}
	return n
}

// dedup returns the non-empty values in first-seen order without repeats.
func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nonEmpty(fetched, current string) string {
	if fetched != "" {
		return fetched
	}
	return current
}
