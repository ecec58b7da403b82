package consolidate

import (
	"github.com/osa030/replaybox/internal/app/aggregate"
	"github.com/osa030/replaybox/internal/app/rules"
	"github.com/osa030/replaybox/internal/domain/leaderboard"
	"github.com/osa030/replaybox/internal/domain/track"
)

// SongRecords projects each summary into one unconsolidated song record.
func SongRecords(summaries []aggregate.TrackSummary) []leaderboard.Song {
	songs := make([]leaderboard.Song, 0, len(summaries))
	for i := range summaries {
		s := &summaries[i]
		t := s.Track
		songs = append(songs, leaderboard.Song{
			ID:                s.TrackID,
			Name:              t.Name,
			Artists:           t.Artists,
			Album:             t.Album,
			Images:            t.Album.Images,
			PreviewURL:        t.PreviewURL,
			ExternalURLs:      t.ExternalURLs,
			ReleaseDate:       t.Album.ReleaseDate,
			Popularity:        t.Popularity,
			DurationMs:        t.DurationMs,
			Count:             s.PlayCount,
			TotalDurationMs:   s.TotalListeningMs,
			ConsolidatedCount: s.PlayCount,
			OriginalIDs:       []string{s.TrackID},
		})
	}
	return songs
}

// albumSourceID returns the album's catalog ID, or a synthetic lineage ID for
// sources that did not record one.
func albumSourceID(t *track.Track) string {
	if t.Album.ID != "" {
		return t.Album.ID
	}
	return "album:" + rules.Fold(t.Album.Name) + "|" + rules.Fold(t.PrimaryArtist())
}

func artistSourceID(t *track.Track) string {
	if id := t.PrimaryArtistID(); id != "" {
		return id
	}
	return "artist:" + rules.Fold(t.PrimaryArtist())
}

// albumGroup collects the summaries of one source album.
type albumGroup struct {
	sourceID  string
	first     *aggregate.TrackSummary
	count     int
	totalMs   int64
	images    []track.Image
	artistCnt map[string]int
	artists   []track.ArtistRef // first-seen order of primary artists
	songs     []leaderboard.AlbumSong
}

func groupAlbums(summaries []aggregate.TrackSummary) []*albumGroup {
	groups := make([]*albumGroup, 0)
	index := make(map[string]*albumGroup)

	for i := range summaries {
		s := &summaries[i]
		id := albumSourceID(&s.Track)
		g, ok := index[id]
		if !ok {
			g = &albumGroup{sourceID: id, first: s, artistCnt: make(map[string]int)}
			index[id] = g
			groups = append(groups, g)
		}
		g.count += s.PlayCount
		g.totalMs += s.TotalListeningMs
		if len(g.images) == 0 && len(s.Track.Album.Images) > 0 {
			g.images = s.Track.Album.Images
		}

		primary := track.ArtistRef{ID: s.Track.PrimaryArtistID(), Name: s.Track.PrimaryArtist()}
		key := rules.Fold(primary.Name)
		if g.artistCnt[key] == 0 {
			g.artists = append(g.artists, primary)
		}
		g.artistCnt[key] += s.PlayCount

		g.songs = append(g.songs, leaderboard.AlbumSong{
			ID:               s.TrackID,
			Name:             s.Track.Name,
			Artists:          s.Track.ArtistNames(),
			TrackNumber:      s.Track.TrackNumber,
			DurationMs:       s.Track.DurationMs,
			PlayCount:        s.PlayCount,
			TotalListeningMs: s.TotalListeningMs,
		})
	}
	return groups
}

// artist returns the album's credited artist. Sources without album credits fall
// back to the most played primary artist among the album's tracks.
func (g *albumGroup) artist() track.ArtistRef {
	for _, a := range g.first.Track.Album.Artists {
		if a.Name != "" {
			return a
		}
	}
	best := track.ArtistRef{Name: track.UnknownArtist}
	bestCount := -1
	for _, a := range g.artists {
		if c := g.artistCnt[rules.Fold(a.Name)]; c > bestCount {
			best, bestCount = a, c
		}
	}
	return best
}

func (g *albumGroup) album() leaderboard.Album {
	ref := g.first.Track.Album
	return leaderboard.Album{
		ID:                ref.ID,
		Name:              ref.Name,
		Artist:            g.artist(),
		Images:            g.images,
		ReleaseDate:       ref.ReleaseDate,
		AlbumType:         ref.AlbumType,
		TotalTracks:       ref.TotalTracks,
		Count:             g.count,
		TotalDurationMs:   g.totalMs,
		ConsolidatedCount: g.count,
		OriginalIDs:       []string{g.sourceID},
	}
}

// AlbumRecords pre-aggregates summaries by source album.
func AlbumRecords(summaries []aggregate.TrackSummary) []leaderboard.Album {
	groups := groupAlbums(summaries)
	albums := make([]leaderboard.Album, 0, len(groups))
	for _, g := range groups {
		albums = append(albums, g.album())
	}
	return albums
}

// AlbumWithSongsRecords pre-aggregates summaries by source album, keeping per-song plays.
func AlbumWithSongsRecords(summaries []aggregate.TrackSummary) []leaderboard.AlbumWithSongs {
	groups := groupAlbums(summaries)
	albums := make([]leaderboard.AlbumWithSongs, 0, len(groups))
	for _, g := range groups {
		songs := MergeSongs(nil, g.songs)
		played, unplayed := CountPlayed(songs)
		albums = append(albums, leaderboard.AlbumWithSongs{
			Album:             g.album(),
			Songs:             songs,
			PlayedSongCount:   played,
			UnplayedSongCount: unplayed,
		})
	}
	return albums
}

// ArtistRecords pre-aggregates summaries by primary artist.
func ArtistRecords(summaries []aggregate.TrackSummary) []leaderboard.Artist {
	artists := make([]leaderboard.Artist, 0)
	index := make(map[string]int)
	songs := make(map[string]map[string]struct{})

	for i := range summaries {
		s := &summaries[i]
		id := artistSourceID(&s.Track)
		pos, ok := index[id]
		if !ok {
			pos = len(artists)
			index[id] = pos
			songs[id] = make(map[string]struct{})
			artists = append(artists, leaderboard.Artist{
				ID:          s.Track.PrimaryArtistID(),
				Name:        s.Track.PrimaryArtist(),
				OriginalIDs: []string{id},
			})
		}
		a := &artists[pos]
		a.Count += s.PlayCount
		a.ConsolidatedCount += s.PlayCount
		a.TotalDurationMs += s.TotalListeningMs
		songs[id][s.TrackID] = struct{}{}
		a.UniqueSongs = len(songs[id])
	}
	return artists
}
