// Package track provides the catalog-shaped Track, Album and Artist entities.
package track

// Image represents a single artwork rendition.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// ArtistRef is the short artist reference embedded in tracks and albums.
type ArtistRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// AlbumRef is the short album reference embedded in tracks.
type AlbumRef struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name"`
	Artists     []ArtistRef `json:"artists,omitempty"`
	Images      []Image     `json:"images,omitempty"`
	ReleaseDate string      `json:"release_date,omitempty"`
	AlbumType   string      `json:"album_type,omitempty"`
	TotalTracks int         `json:"total_tracks,omitempty"`
}

// Track represents a catalog track.
// Contains only descriptive information; play counts live elsewhere.
type Track struct {
	ID           string            // Catalog track ID
	Name         string            // Track name
	DurationMs   int64             // Track duration in milliseconds
	Artists      []ArtistRef       // Credited artists, primary first
	Album        AlbumRef          // Album the track was released on
	PreviewURL   string            // 30 second preview, often empty
	ExternalURLs map[string]string // e.g. {"spotify": "https://open.spotify.com/track/..."}
	Popularity   int               // Popularity score (0-100), 0 means unknown
	Explicit     bool              // Explicit content flag
	TrackNumber  int               // Position on the album
}

// AlbumTrack is one entry of an album track listing.
type AlbumTrack struct {
	ID          string
	Name        string
	Artists     []string
	TrackNumber int
	DurationMs  int64
}

// Album represents a full catalog album.
type Album struct {
	ID           string
	Name         string
	Artists      []ArtistRef
	Images       []Image
	ExternalURLs map[string]string
	ReleaseDate  string
	AlbumType    string
	Genres       []string
	Popularity   int
	TotalTracks  int
	Tracks       []AlbumTrack
	// TracksPartial is set when paging stopped before the last track page.
	TracksPartial bool
}

// Artist represents a full catalog artist.
type Artist struct {
	ID           string
	Name         string
	Images       []Image
	ExternalURLs map[string]string
	Genres       []string
	Popularity   int
	Followers    int
}

// UnknownArtist is the display name used when a record carries no artist.
const UnknownArtist = "Unknown Artist"

// PrimaryArtist returns the first credited artist name, or UnknownArtist.
func (t *Track) PrimaryArtist() string {
	for _, a := range t.Artists {
		if a.Name != "" {
			return a.Name
		}
	}
	return UnknownArtist
}

// PrimaryArtistID returns the ID of the first credited artist.
func (t *Track) PrimaryArtistID() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].ID
}

// ArtistNames returns all credited artist names in order.
func (t *Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// AlbumArtist returns the album's first artist, falling back to the track's primary artist.
func (t *Track) AlbumArtist() ArtistRef {
	for _, a := range t.Album.Artists {
		if a.Name != "" {
			return a
		}
	}
	if len(t.Artists) > 0 && t.Artists[0].Name != "" {
		return t.Artists[0]
	}
	return ArtistRef{Name: UnknownArtist}
}

// MaxHeight returns the tallest image height in the set.
func MaxHeight(images []Image) int {
	maxH := 0
	for _, img := range images {
		if img.Height > maxH {
			maxH = img.Height
		}
	}
	return maxH
}
