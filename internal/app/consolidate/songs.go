package consolidate

import (
	"github.com/osa030/replaybox/internal/app/rules"
	"github.com/osa030/replaybox/internal/domain/leaderboard"
)

// SongKind groups songs by (name, primary artist).
func SongKind(n *rules.Normalizer) Kind[leaderboard.Song] {
	return Kind[leaderboard.Song]{
		Key: func(s leaderboard.Song) string {
			return n.SongKey(s.Name, s.PrimaryArtist())
		},
		Count:     func(s leaderboard.Song) int { return s.Count },
		HasImages: func(s leaderboard.Song) bool { return len(s.Images) > 0 },
		Seed: func(s leaderboard.Song) leaderboard.Song {
			s.OriginalIDs = seedLineage(s.OriginalIDs, s.ID)
			s.ConsolidatedCount = seedConsolidated(s.ConsolidatedCount, s.Count)
			return s
		},
		Fold: foldSong,
	}
}

func foldSong(acc, in leaderboard.Song, takeDisplay bool) leaderboard.Song {
	out := acc
	out.Count = acc.Count + in.Count
	out.TotalDurationMs = acc.TotalDurationMs + in.TotalDurationMs
	out.ConsolidatedCount = acc.ConsolidatedCount + seedConsolidated(in.ConsolidatedCount, in.Count)
	out.OriginalIDs = appendLineage(acc.OriginalIDs, seedLineage(in.OriginalIDs, in.ID))

	if takeDisplay {
		out.Images = preferImages(acc.Images, in.Images)
		if in.Album.ID != "" || in.Album.Name != "" {
			out.Album = in.Album
		}
	}
	out.ID = pick(takeDisplay, acc.ID, in.ID)
	out.Name = pick(takeDisplay, acc.Name, in.Name)
	out.Artists = pickSlice(takeDisplay, acc.Artists, in.Artists)
	out.ExternalURLs = pickMap(takeDisplay, acc.ExternalURLs, in.ExternalURLs)
	out.PreviewURL = pick(takeDisplay, acc.PreviewURL, in.PreviewURL)
	out.ReleaseDate = pick(takeDisplay, acc.ReleaseDate, in.ReleaseDate)
	out.Popularity = pick(takeDisplay, acc.Popularity, in.Popularity)
	out.DurationMs = pick(takeDisplay, acc.DurationMs, in.DurationMs)
	return out
}

// Songs sorts and consolidates song records.
func Songs(n *rules.Normalizer, records []leaderboard.Song) []leaderboard.Song {
	sorted := append([]leaderboard.Song(nil), records...)
	SortByCount(sorted, func(s leaderboard.Song) int { return s.Count })
	return Run(sorted, SongKind(n))
}
