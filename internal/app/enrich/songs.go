package enrich

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/replaybox/internal/domain/leaderboard"
	"github.com/osa030/replaybox/internal/domain/track"
	"github.com/osa030/replaybox/internal/infra/metrics"
)

// songNeeds reports whether a song is missing any catalog-provided field.
func songNeeds(s *leaderboard.Song) bool {
	return s.PreviewURL == "" ||
		len(s.ExternalURLs) == 0 ||
		len(s.Images) == 0 ||
		s.ReleaseDate == "" ||
		s.Popularity == 0
}

func (r *run) enrichSongs(ctx context.Context, songs []leaderboard.Song) {
	var ids []string
	needed := 0
	for i := range songs {
		if songNeeds(&songs[i]) {
			needed++
			ids = append(ids, songs[i].ID)
		}
	}
	ids = dedup(ids)
	metrics.RecordEntities("songs", metrics.StateNeeded, needed)
	if len(ids) == 0 {
		return
	}

	fetched := make(map[string]track.Track, len(ids))
	failed := r.fetchAll(ctx, "tracks", ids, r.cfg.TrackBatchSize, func(ctx context.Context, batch []string) error {
		tracks, err := r.catalog.FetchTracks(ctx, r.token, batch)
		if err != nil {
			return err
		}
		for _, t := range tracks {
			fetched[t.ID] = t
		}
		return nil
	})

	enriched := 0
	for i := range songs {
		if !songNeeds(&songs[i]) {
			continue
		}
		if t, ok := fetched[songs[i].ID]; ok {
			songs[i] = mergeSong(songs[i], t)
			enriched++
		}
	}
	metrics.RecordEntities("songs", metrics.StateEnriched, enriched)
	metrics.RecordEntities("songs", metrics.StateSkipped, failed)
	zlog.Info().Msgf("songs: %d needed enrichment, %d enriched (%d ids in failed batches)", needed, enriched, failed)
}

// mergeSong overlays catalog fields onto s. Empty catalog values never replace
// existing ones, and existing images are kept.
func mergeSong(s leaderboard.Song, t track.Track) leaderboard.Song {
	s.ID = nonEmpty(t.ID, s.ID)
	s.Name = nonEmpty(t.Name, s.Name)
	if len(t.Artists) > 0 {
		s.Artists = t.Artists
	}
	s.Album = mergeAlbumRef(s.Album, t.Album)
	if len(s.Images) == 0 {
		s.Images = t.Album.Images
	}
	s.PreviewURL = nonEmpty(t.PreviewURL, s.PreviewURL)
	if len(t.ExternalURLs) > 0 {
		s.ExternalURLs = t.ExternalURLs
	}
	s.ReleaseDate = nonEmpty(t.Album.ReleaseDate, s.ReleaseDate)
	if t.Popularity > 0 {
		s.Popularity = t.Popularity
	}
	if t.DurationMs > 0 {
		s.DurationMs = t.DurationMs
	}
	return s
}

func mergeAlbumRef(cur, fetched track.AlbumRef) track.AlbumRef {
	cur.ID = nonEmpty(fetched.ID, cur.ID)
	cur.Name = nonEmpty(fetched.Name, cur.Name)
	if len(fetched.Artists) > 0 {
		cur.Artists = fetched.Artists
	}
	if len(cur.Images) == 0 {
		cur.Images = fetched.Images
	}
	cur.ReleaseDate = nonEmpty(fetched.ReleaseDate, cur.ReleaseDate)
	cur.AlbumType = nonEmpty(fetched.AlbumType, cur.AlbumType)
	if fetched.TotalTracks > 0 {
		cur.TotalTracks = fetched.TotalTracks
	}
	return cur
}
