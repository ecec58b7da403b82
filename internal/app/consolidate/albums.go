package consolidate

import (
	"sort"

	"github.com/osa030/replaybox/internal/app/rules"
	"github.com/osa030/replaybox/internal/domain/leaderboard"
)

// AlbumKind groups albums by (alias-resolved name, album artist).
func AlbumKind(n *rules.Normalizer) Kind[leaderboard.Album] {
	return Kind[leaderboard.Album]{
		Key: func(a leaderboard.Album) string {
			return n.Key(a.Name, a.Artist.Name)
		},
		Count:     func(a leaderboard.Album) int { return a.Count },
		HasImages: func(a leaderboard.Album) bool { return len(a.Images) > 0 },
		Seed: func(a leaderboard.Album) leaderboard.Album {
			return seedAlbum(n, a)
		},
		Fold: func(acc, in leaderboard.Album, takeDisplay bool) leaderboard.Album {
			return foldAlbum(n, acc, in, takeDisplay)
		},
	}
}

func seedAlbum(n *rules.Normalizer, a leaderboard.Album) leaderboard.Album {
	if base, ok := n.CanonicalName(a.Name, a.Artist.Name); ok {
		a.Name = base
	}
	a.OriginalIDs = seedLineage(a.OriginalIDs, a.ID)
	a.ConsolidatedCount = seedConsolidated(a.ConsolidatedCount, a.Count)
	return a
}

func foldAlbum(n *rules.Normalizer, acc, in leaderboard.Album, takeDisplay bool) leaderboard.Album {
	out := acc
	out.Count = acc.Count + in.Count
	out.TotalDurationMs = acc.TotalDurationMs + in.TotalDurationMs
	out.ConsolidatedCount = acc.ConsolidatedCount + seedConsolidated(in.ConsolidatedCount, in.Count)
	out.OriginalIDs = appendLineage(acc.OriginalIDs, seedLineage(in.OriginalIDs, in.ID))

	if takeDisplay {
		out.Images = preferImages(acc.Images, in.Images)
		if in.Name != "" {
			out.Name = in.Name
			if base, ok := n.CanonicalName(in.Name, in.Artist.Name); ok {
				out.Name = base
			}
		}
	}
	out.ID = pick(takeDisplay, acc.ID, in.ID)
	out.Artist = pick(takeDisplay, acc.Artist, in.Artist)
	out.ExternalURLs = pickMap(takeDisplay, acc.ExternalURLs, in.ExternalURLs)
	out.ReleaseDate = pick(takeDisplay, acc.ReleaseDate, in.ReleaseDate)
	out.AlbumType = pick(takeDisplay, acc.AlbumType, in.AlbumType)
	out.Genres = pickSlice(takeDisplay, acc.Genres, in.Genres)
	out.Popularity = pick(takeDisplay, acc.Popularity, in.Popularity)
	out.TotalTracks = pick(takeDisplay, acc.TotalTracks, in.TotalTracks)
	return out
}

// Albums sorts and consolidates album records.
func Albums(n *rules.Normalizer, records []leaderboard.Album) []leaderboard.Album {
	sorted := append([]leaderboard.Album(nil), records...)
	SortByCount(sorted, func(a leaderboard.Album) int { return a.Count })
	return Run(sorted, AlbumKind(n))
}

// AlbumWithSongsKind groups like AlbumKind and additionally merges song breakdowns.
func AlbumWithSongsKind(n *rules.Normalizer) Kind[leaderboard.AlbumWithSongs] {
	return Kind[leaderboard.AlbumWithSongs]{
		Key: func(a leaderboard.AlbumWithSongs) string {
			return n.Key(a.Name, a.Artist.Name)
		},
		Count:     func(a leaderboard.AlbumWithSongs) int { return a.Count },
		HasImages: func(a leaderboard.AlbumWithSongs) bool { return len(a.Images) > 0 },
		Seed: func(a leaderboard.AlbumWithSongs) leaderboard.AlbumWithSongs {
			a.Album = seedAlbum(n, a.Album)
			a.Songs = MergeSongs(nil, a.Songs)
			a.PlayedSongCount, a.UnplayedSongCount = CountPlayed(a.Songs)
			return a
		},
		Fold: func(acc, in leaderboard.AlbumWithSongs, takeDisplay bool) leaderboard.AlbumWithSongs {
			out := acc
			out.Album = foldAlbum(n, acc.Album, in.Album, takeDisplay)
			out.Songs = MergeSongs(acc.Songs, in.Songs)
			out.PlayedSongCount, out.UnplayedSongCount = CountPlayed(out.Songs)
			out.TracklistMerged = acc.TracklistMerged || in.TracklistMerged
			return out
		},
	}
}

// AlbumsWithSongs sorts and consolidates album breakdown records.
func AlbumsWithSongs(n *rules.Normalizer, records []leaderboard.AlbumWithSongs) []leaderboard.AlbumWithSongs {
	sorted := append([]leaderboard.AlbumWithSongs(nil), records...)
	SortByCount(sorted, func(a leaderboard.AlbumWithSongs) int { return a.Count })
	return Run(sorted, AlbumWithSongsKind(n))
}

// SongMatchKey identifies a song inside an album breakdown.
func SongMatchKey(s leaderboard.AlbumSong) string {
	return rules.Fold(s.Name) + "\x1f" + rules.JoinedArtistsKey(s.Artists)
}

// MergeSongs returns the union of two song lists. Songs with the same match key sum
// their plays; the first occurrence supplies the descriptive fields. The result is
// ordered by descending play count, then track number, then first appearance.
func MergeSongs(acc, incoming []leaderboard.AlbumSong) []leaderboard.AlbumSong {
	out := make([]leaderboard.AlbumSong, 0, len(acc)+len(incoming))
	index := make(map[string]int, len(acc)+len(incoming))

	for _, list := range [][]leaderboard.AlbumSong{acc, incoming} {
		for _, s := range list {
			key := SongMatchKey(s)
			if pos, ok := index[key]; ok {
				merged := out[pos]
				merged.PlayCount += s.PlayCount
				merged.TotalListeningMs += s.TotalListeningMs
				if merged.TrackNumber == 0 {
					merged.TrackNumber = s.TrackNumber
				}
				if merged.DurationMs == 0 {
					merged.DurationMs = s.DurationMs
				}
				if merged.ID == "" {
					merged.ID = s.ID
				}
				out[pos] = merged
				continue
			}
			index[key] = len(out)
			s.Artists = append([]string(nil), s.Artists...)
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PlayCount != out[j].PlayCount {
			return out[i].PlayCount > out[j].PlayCount
		}
		return trackOrder(out[i]) < trackOrder(out[j])
	})
	return out
}

// trackOrder sorts unnumbered songs after numbered ones.
func trackOrder(s leaderboard.AlbumSong) int {
	if s.TrackNumber <= 0 {
		return int(^uint(0) >> 1)
	}
	return s.TrackNumber
}

// CountPlayed derives played/unplayed counts from a song list.
func CountPlayed(songs []leaderboard.AlbumSong) (played, unplayed int) {
	for _, s := range songs {
		if s.PlayCount > 0 {
			played++
		} else {
			unplayed++
		}
	}
	return played, unplayed
}
