// Package leaderboard provides the consolidated, ranked entities produced by a run.
package leaderboard

import (
	"time"

	"github.com/osa030/replaybox/internal/domain/track"
)

// Song is a consolidated song entry.
type Song struct {
	Rank              int               `json:"rank,omitempty"`
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Artists           []track.ArtistRef `json:"artists"`
	Album             track.AlbumRef    `json:"album"`
	Images            []track.Image     `json:"images"`
	PreviewURL        string            `json:"preview_url,omitempty"`
	ExternalURLs      map[string]string `json:"external_urls,omitempty"`
	ReleaseDate       string            `json:"release_date,omitempty"`
	Popularity        int               `json:"popularity"`
	DurationMs        int64             `json:"duration_ms"`
	Count             int               `json:"count"`
	TotalDurationMs   int64             `json:"total_duration_ms"`
	ConsolidatedCount int               `json:"consolidated_count"`
	OriginalIDs       []string          `json:"original_ids"`
}

// PrimaryArtist returns the first credited artist name.
func (s *Song) PrimaryArtist() string {
	for _, a := range s.Artists {
		if a.Name != "" {
			return a.Name
		}
	}
	return track.UnknownArtist
}

// Album is a consolidated album entry.
type Album struct {
	Rank              int               `json:"rank,omitempty"`
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Artist            track.ArtistRef   `json:"artist"`
	Images            []track.Image     `json:"images"`
	ExternalURLs      map[string]string `json:"external_urls,omitempty"`
	ReleaseDate       string            `json:"release_date,omitempty"`
	AlbumType         string            `json:"album_type,omitempty"`
	Genres            []string          `json:"genres,omitempty"`
	Popularity        int               `json:"popularity"`
	TotalTracks       int               `json:"total_tracks,omitempty"`
	Count             int               `json:"count"`
	TotalDurationMs   int64             `json:"total_duration_ms"`
	ConsolidatedCount int               `json:"consolidated_count"`
	OriginalIDs       []string          `json:"original_ids"`
}

// Artist is a consolidated artist entry.
type Artist struct {
	Rank              int               `json:"rank,omitempty"`
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Images            []track.Image     `json:"images"`
	ExternalURLs      map[string]string `json:"external_urls,omitempty"`
	Genres            []string          `json:"genres,omitempty"`
	Popularity        int               `json:"popularity"`
	Followers         int               `json:"followers,omitempty"`
	UniqueSongs       int               `json:"unique_songs"`
	Count             int               `json:"count"`
	TotalDurationMs   int64             `json:"total_duration_ms"`
	ConsolidatedCount int               `json:"consolidated_count"`
	OriginalIDs       []string          `json:"original_ids"`
}

// AlbumSong is one song inside an AlbumWithSongs breakdown.
type AlbumSong struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Artists          []string `json:"artists"`
	TrackNumber      int      `json:"track_number,omitempty"`
	DurationMs       int64    `json:"duration_ms,omitempty"`
	PlayCount        int      `json:"play_count"`
	TotalListeningMs int64    `json:"total_listening_ms"`
}

// AlbumWithSongs is a consolidated album with its per-song play breakdown.
type AlbumWithSongs struct {
	Album
	Songs             []AlbumSong `json:"songs"`
	PlayedSongCount   int         `json:"played_song_count"`
	UnplayedSongCount int         `json:"unplayed_song_count"`
	TracklistMerged   bool        `json:"tracklist_merged,omitempty"`
}

// YearBucket holds listening totals for one calendar year.
type YearBucket struct {
	Label     string `json:"year"`
	TotalMs   int64  `json:"total_ms"`
	PlayCount int    `json:"play_count"`
}

// HourBucket holds listening totals for one hour of the day.
type HourBucket struct {
	Label     string `json:"hour"`
	Hour      int    `json:"hour_of_day"`
	TotalMs   int64  `json:"total_ms"`
	PlayCount int    `json:"play_count"`
}

// YearSong is a per-year top song.
type YearSong struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Artist    string        `json:"artist"`
	Images    []track.Image `json:"images,omitempty"`
	PlayCount int           `json:"play_count"`
	TotalMs   int64         `json:"total_ms"`
}

// YearArtist is a per-year top artist.
type YearArtist struct {
	Name        string        `json:"name"`
	Images      []track.Image `json:"images,omitempty"`
	PlayCount   int           `json:"play_count"`
	TotalMs     int64         `json:"total_ms"`
	UniqueSongs int           `json:"unique_songs"`
}

// YearTopSongs groups the top songs of a year.
type YearTopSongs struct {
	Year  string     `json:"year"`
	Songs []YearSong `json:"songs"`
}

// YearTopArtists groups the top artists of a year.
type YearTopArtists struct {
	Year    string       `json:"year"`
	Artists []YearArtist `json:"artists"`
}

// Stats is the derived time-bucketed statistics object.
type Stats struct {
	YearlyTotals     []YearBucket     `json:"yearly_totals"`
	YearlyTopSongs   []YearTopSongs   `json:"yearly_top_songs"`
	YearlyTopArtists []YearTopArtists `json:"yearly_top_artists"`
	HourlyTotals     []HourBucket     `json:"hourly_totals"`
	UndatedPlays     int              `json:"undated_plays,omitempty"`
}

// Snapshot is everything one run produces.
type Snapshot struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	Songs           []Song           `json:"songs"`
	Albums          []Album          `json:"albums"`
	Artists         []Artist         `json:"artists"`
	AlbumsWithSongs []AlbumWithSongs `json:"albums_with_songs"`
	Stats           Stats            `json:"stats"`
}

// AssignRanks numbers entries 1..n in their current order.
func AssignRanks[T any](items []T, set func(*T, int)) {
	for i := range items {
		set(&items[i], i+1)
	}
}

// Truncate returns at most n leading items.
func Truncate[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}
