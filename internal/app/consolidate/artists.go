package consolidate

import (
	"github.com/osa030/replaybox/internal/app/rules"
	"github.com/osa030/replaybox/internal/domain/leaderboard"
)

// ArtistKind groups artists by folded name.
func ArtistKind(n *rules.Normalizer) Kind[leaderboard.Artist] {
	return Kind[leaderboard.Artist]{
		Key:       func(a leaderboard.Artist) string { return n.ArtistKey(a.Name) },
		Count:     func(a leaderboard.Artist) int { return a.Count },
		HasImages: func(a leaderboard.Artist) bool { return len(a.Images) > 0 },
		Seed: func(a leaderboard.Artist) leaderboard.Artist {
			a.OriginalIDs = seedLineage(a.OriginalIDs, a.ID)
			a.ConsolidatedCount = seedConsolidated(a.ConsolidatedCount, a.Count)
			return a
		},
		Fold: foldArtist,
	}
}

// foldArtist sums unique songs as well; distinct artist IDs credit distinct track IDs.
func foldArtist(acc, in leaderboard.Artist, takeDisplay bool) leaderboard.Artist {
	out := acc
	out.Count = acc.Count + in.Count
	out.TotalDurationMs = acc.TotalDurationMs + in.TotalDurationMs
	out.ConsolidatedCount = acc.ConsolidatedCount + seedConsolidated(in.ConsolidatedCount, in.Count)
	out.UniqueSongs = acc.UniqueSongs + in.UniqueSongs
	out.OriginalIDs = appendLineage(acc.OriginalIDs, seedLineage(in.OriginalIDs, in.ID))

	if takeDisplay {
		out.Images = preferImages(acc.Images, in.Images)
	}
	out.ID = pick(takeDisplay, acc.ID, in.ID)
	out.Name = pick(takeDisplay, acc.Name, in.Name)
	out.ExternalURLs = pickMap(takeDisplay, acc.ExternalURLs, in.ExternalURLs)
	out.Genres = pickSlice(takeDisplay, acc.Genres, in.Genres)
	out.Popularity = pick(takeDisplay, acc.Popularity, in.Popularity)
	out.Followers = pick(takeDisplay, acc.Followers, in.Followers)
	return out
}

// Artists sorts and consolidates artist records.
func Artists(n *rules.Normalizer, records []leaderboard.Artist) []leaderboard.Artist {
	sorted := append([]leaderboard.Artist(nil), records...)
	SortByCount(sorted, func(a leaderboard.Artist) int { return a.Count })
	return Run(sorted, ArtistKind(n))
}
