package enrich

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/replaybox/internal/domain/leaderboard"
	"github.com/osa030/replaybox/internal/domain/track"
	"github.com/osa030/replaybox/internal/infra/metrics"
)

// artistNeeds reports whether an artist is missing any catalog-provided field.
func artistNeeds(a *leaderboard.Artist) bool {
	return len(a.ExternalURLs) == 0 ||
		len(a.Images) == 0 ||
		a.Popularity == 0
}

func (r *run) enrichArtists(ctx context.Context, artists []leaderboard.Artist) {
	var ids []string
	needed := 0
	for i := range artists {
		if artistNeeds(&artists[i]) {
			needed++
			ids = append(ids, artists[i].ID)
		}
	}
	ids = dedup(ids)
	metrics.RecordEntities("artists", metrics.StateNeeded, needed)
	if len(ids) == 0 {
		return
	}

	fetched := make(map[string]track.Artist, len(ids))
	failed := r.fetchAll(ctx, "artists", ids, r.cfg.ArtistBatchSize, func(ctx context.Context, batch []string) error {
		res, err := r.catalog.FetchArtists(ctx, r.token, batch)
		if err != nil {
			return err
		}
		for id, a := range res {
			fetched[id] = a
		}
		return nil
	})

	enriched := 0
	for i := range artists {
		if !artistNeeds(&artists[i]) {
			continue
		}
		if a, ok := fetched[artists[i].ID]; ok {
			artists[i] = mergeArtist(artists[i], a)
			enriched++
		}
	}
	metrics.RecordEntities("artists", metrics.StateEnriched, enriched)
	metrics.RecordEntities("artists", metrics.StateSkipped, failed)
	zlog.Info().Msgf("artists: %d needed enrichment, %d enriched (%d ids in failed batches)", needed, enriched, failed)
}

func mergeArtist(a leaderboard.Artist, f track.Artist) leaderboard.Artist {
	a.ID = nonEmpty(f.ID, a.ID)
	a.Name = nonEmpty(f.Name, a.Name)
	if len(a.Images) == 0 {
		a.Images = f.Images
	}
	if len(f.ExternalURLs) > 0 {
		a.ExternalURLs = f.ExternalURLs
	}
	if len(f.Genres) > 0 {
		a.Genres = f.Genres
	}
	if f.Popularity > 0 {
		a.Popularity = f.Popularity
	}
	if f.Followers > 0 {
		a.Followers = f.Followers
	}
	return a
}

// fillGenres asks the genre source about artists the catalog left without
// genres, then lets albums without genres inherit their artist's.
func (r *run) fillGenres(ctx context.Context, artists []leaderboard.Artist, albums []leaderboard.Album, withSongs []leaderboard.AlbumWithSongs) {
	if r.genres != nil {
		limiter := r.pacer(r.cfg.GenreDelay)
		filled := 0
		for i := range artists {
			if len(artists[i].Genres) > 0 || artists[i].Name == "" || artists[i].Name == track.UnknownArtist {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				break
			}
			genres, err := r.genres.ArtistGenres(ctx, artists[i].Name, r.cfg.GenreLimit)
			if err != nil {
				zlog.Debug().Err(err).Msgf("no genre tags for %s", artists[i].Name)
				continue
			}
			if len(genres) > 0 {
				artists[i].Genres = genres
				filled++
			}
		}
		if filled > 0 {
			zlog.Info().Msgf("genres: filled %d artists from tags", filled)
		}
	}

	byArtist := make(map[string][]string, len(artists))
	for i := range artists {
		if len(artists[i].Genres) > 0 {
			byArtist[r.normalizer.ArtistKey(artists[i].Name)] = artists[i].Genres
		}
	}
	inherit := func(a *leaderboard.Album) {
		if len(a.Genres) == 0 {
			a.Genres = byArtist[r.normalizer.ArtistKey(a.Artist.Name)]
		}
	}
	for i := range albums {
		inherit(&albums[i])
	}
	for i := range withSongs {
		inherit(&withSongs[i].Album)
	}
}
