package enrich

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/replaybox/internal/app/consolidate"
	"github.com/osa030/replaybox/internal/app/rules"
	"github.com/osa030/replaybox/internal/domain/leaderboard"
	"github.com/osa030/replaybox/internal/domain/track"
	"github.com/osa030/replaybox/internal/infra/metrics"
)

// albumNeeds reports whether an album is missing any catalog-provided field.
func albumNeeds(a *leaderboard.Album) bool {
	return len(a.ExternalURLs) == 0 ||
		len(a.Images) == 0 ||
		a.ReleaseDate == "" ||
		a.Popularity == 0
}

func albumWithSongsNeeds(a *leaderboard.AlbumWithSongs) bool {
	return albumNeeds(&a.Album) || !a.TracklistMerged
}

// resolveIDs fills missing album and artist catalog IDs from the song records,
// which carry them after track enrichment.
func (r *run) resolveIDs(songs []leaderboard.Song, albums []leaderboard.Album, withSongs []leaderboard.AlbumWithSongs, artists []leaderboard.Artist) {
	n := r.normalizer
	albumIDs := make(map[string]string)
	artistIDs := make(map[string]string)
	remember := func(refs []track.ArtistRef) {
		for _, a := range refs {
			if a.ID == "" {
				continue
			}
			if _, ok := artistIDs[n.ArtistKey(a.Name)]; !ok {
				artistIDs[n.ArtistKey(a.Name)] = a.ID
			}
		}
	}
	for i := range songs {
		s := &songs[i]
		remember(s.Artists)
		remember(s.Album.Artists)
		if s.Album.ID == "" {
			continue
		}
		artist := s.PrimaryArtist()
		for _, a := range s.Album.Artists {
			if a.Name != "" {
				artist = a.Name
				break
			}
		}
		if key := n.Key(s.Album.Name, artist); albumIDs[key] == "" {
			albumIDs[key] = s.Album.ID
		}
	}

	resolveAlbum := func(a *leaderboard.Album) {
		if a.ID == "" {
			a.ID = albumIDs[n.Key(a.Name, a.Artist.Name)]
		}
		if a.Artist.ID == "" {
			a.Artist.ID = artistIDs[n.ArtistKey(a.Artist.Name)]
		}
	}
	for i := range albums {
		resolveAlbum(&albums[i])
	}
	for i := range withSongs {
		resolveAlbum(&withSongs[i].Album)
	}
	for i := range artists {
		if artists[i].ID == "" {
			artists[i].ID = artistIDs[n.ArtistKey(artists[i].Name)]
		}
	}
}

// enrichAlbums fetches albums for both album collections in one pass.
func (r *run) enrichAlbums(ctx context.Context, albums []leaderboard.Album, withSongs []leaderboard.AlbumWithSongs) {
	var ids []string
	needed := 0
	for i := range albums {
		if albumNeeds(&albums[i]) {
			needed++
			ids = append(ids, albums[i].ID)
		}
	}
	neededWithSongs := 0
	for i := range withSongs {
		if albumWithSongsNeeds(&withSongs[i]) {
			neededWithSongs++
			ids = append(ids, withSongs[i].ID)
		}
	}
	ids = dedup(ids)
	metrics.RecordEntities("albums", metrics.StateNeeded, needed)
	metrics.RecordEntities("albums_with_songs", metrics.StateNeeded, neededWithSongs)
	if len(ids) == 0 {
		return
	}

	fetched := make(map[string]track.Album, len(ids))
	failed := r.fetchAll(ctx, "albums", ids, r.cfg.AlbumBatchSize, func(ctx context.Context, batch []string) error {
		res, err := r.catalog.FetchAlbums(ctx, r.token, batch)
		if err != nil {
			return err
		}
		for id, a := range res {
			fetched[id] = a
		}
		return nil
	})

	enriched := 0
	for i := range albums {
		if !albumNeeds(&albums[i]) {
			continue
		}
		if a, ok := fetched[albums[i].ID]; ok {
			albums[i] = mergeAlbum(r.normalizer, albums[i], a)
			enriched++
		}
	}
	enrichedWithSongs := 0
	for i := range withSongs {
		if !albumWithSongsNeeds(&withSongs[i]) {
			continue
		}
		if a, ok := fetched[withSongs[i].ID]; ok {
			withSongs[i] = mergeAlbumWithSongs(r.normalizer, withSongs[i], a)
			enrichedWithSongs++
		}
	}

	metrics.RecordEntities("albums", metrics.StateEnriched, enriched)
	metrics.RecordEntities("albums_with_songs", metrics.StateEnriched, enrichedWithSongs)
	metrics.RecordEntities("albums", metrics.StateSkipped, failed)
	zlog.Info().Msgf("albums: %d+%d needed enrichment, %d+%d enriched (%d ids in failed batches)",
		needed, neededWithSongs, enriched, enrichedWithSongs, failed)
}

// mergeAlbum overlays catalog fields onto a. A rule-provided canonical name is kept.
func mergeAlbum(n *rules.Normalizer, a leaderboard.Album, f track.Album) leaderboard.Album {
	if _, canonical := n.CanonicalName(a.Name, a.Artist.Name); !canonical {
		a.Name = nonEmpty(f.Name, a.Name)
	}
	a.ID = nonEmpty(f.ID, a.ID)
	for _, artist := range f.Artists {
		if artist.Name != "" {
			a.Artist = artist
			break
		}
	}
	if len(a.Images) == 0 {
		a.Images = f.Images
	}
	if len(f.ExternalURLs) > 0 {
		a.ExternalURLs = f.ExternalURLs
	}
	a.ReleaseDate = nonEmpty(f.ReleaseDate, a.ReleaseDate)
	a.AlbumType = nonEmpty(f.AlbumType, a.AlbumType)
	if len(f.Genres) > 0 {
		a.Genres = f.Genres
	}
	if f.Popularity > 0 {
		a.Popularity = f.Popularity
	}
	if f.TotalTracks > 0 {
		a.TotalTracks = f.TotalTracks
	}
	return a
}

// mergeAlbumWithSongs merges album fields and unions the full track list in with
// zero plays, then recomputes the played/unplayed counts. A partial track list
// is not merged, so the album is fetched again on the next run.
func mergeAlbumWithSongs(n *rules.Normalizer, a leaderboard.AlbumWithSongs, f track.Album) leaderboard.AlbumWithSongs {
	a.Album = mergeAlbum(n, a.Album, f)
	if len(f.Tracks) == 0 || f.TracksPartial {
		return a
	}

	tracklist := make([]leaderboard.AlbumSong, 0, len(f.Tracks))
	for _, t := range f.Tracks {
		tracklist = append(tracklist, leaderboard.AlbumSong{
			ID:          t.ID,
			Name:        t.Name,
			Artists:     t.Artists,
			TrackNumber: t.TrackNumber,
			DurationMs:  t.DurationMs,
		})
	}
	a.Songs = consolidate.MergeSongs(a.Songs, tracklist)
	a.PlayedSongCount, a.UnplayedSongCount = consolidate.CountPlayed(a.Songs)
	a.TracklistMerged = true
	return a
}
