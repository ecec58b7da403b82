// Package aggregate folds raw play events into per-track summaries.
package aggregate

import (
	"sort"

	"github.com/osa030/replaybox/internal/domain/history"
	"github.com/osa030/replaybox/internal/domain/track"
)

// TrackSummary holds the play totals of one distinct track ID.
type TrackSummary struct {
	TrackID              string
	Track                track.Track // Descriptive fields from a representative event
	PlayCount            int
	TotalListeningMs     int64
	ContributingEventIDs []string
}

// Name returns the track name.
func (s *TrackSummary) Name() string { return s.Track.Name }

// DurationMs returns the track duration.
func (s *TrackSummary) DurationMs() int64 { return s.Track.DurationMs }

// ArtistName returns the primary artist name.
func (s *TrackSummary) ArtistName() string { return s.Track.PrimaryArtist() }

// AlbumName returns the album name.
func (s *TrackSummary) AlbumName() string { return s.Track.Album.Name }

// AlbumImages returns the album artwork.
func (s *TrackSummary) AlbumImages() []track.Image { return s.Track.Album.Images }

// Aggregate groups events by track ID.
// Output order follows the first appearance of each track ID in events.
func Aggregate(events []history.Event) []TrackSummary {
	summaries := make([]TrackSummary, 0)
	index := make(map[string]int)

	for i := range events {
		e := &events[i]
		pos, ok := index[e.TrackID]
		if !ok {
			pos = len(summaries)
			index[e.TrackID] = pos
			t := e.Track
			if t.ID == "" {
				t.ID = e.TrackID
			}
			summaries = append(summaries, TrackSummary{
				TrackID: e.TrackID,
				Track:   t,
			})
		}

		s := &summaries[pos]
		s.PlayCount++
		s.TotalListeningMs += e.MsPlayed
		if e.ID != "" {
			s.ContributingEventIDs = append(s.ContributingEventIDs, e.ID)
		}
	}

	return summaries
}

// SortByPlayCount orders summaries by play count descending, keeping input order for ties.
func SortByPlayCount(summaries []TrackSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].PlayCount > summaries[j].PlayCount
	})
}

// TotalPlays returns the number of plays across all summaries.
func TotalPlays(summaries []TrackSummary) int {
	total := 0
	for i := range summaries {
		total += summaries[i].PlayCount
	}
	return total
}
