package spotify

import (
	"github.com/zmb3/spotify/v2"

	"github.com/osa030/replaybox/internal/domain/track"
)

func convertImages(images []spotify.Image) []track.Image {
	if len(images) == 0 {
		return nil
	}
	out := make([]track.Image, 0, len(images))
	for _, img := range images {
		if img.URL == "" {
			continue
		}
		out = append(out, track.Image{
			URL:    img.URL,
			Height: int(img.Height),
			Width:  int(img.Width),
		})
	}
	return out
}

func convertArtistRefs(artists []spotify.SimpleArtist) []track.ArtistRef {
	out := make([]track.ArtistRef, 0, len(artists))
	for _, a := range artists {
		out = append(out, track.ArtistRef{ID: string(a.ID), Name: a.Name})
	}
	return out
}

func copyURLs(urls map[string]string) map[string]string {
	if len(urls) == 0 {
		return nil
	}
	out := make(map[string]string, len(urls))
	for k, v := range urls {
		out[k] = v
	}
	return out
}

// convertTrack converts a Spotify FullTrack to domain Track.
func convertTrack(t *spotify.FullTrack) track.Track {
	return track.Track{
		ID:         string(t.ID),
		Name:       t.Name,
		DurationMs: int64(t.Duration),
		Artists:    convertArtistRefs(t.Artists),
		Album: track.AlbumRef{
			ID:          string(t.Album.ID),
			Name:        t.Album.Name,
			Artists:     convertArtistRefs(t.Album.Artists),
			Images:      convertImages(t.Album.Images),
			ReleaseDate: t.Album.ReleaseDate,
			AlbumType:   t.Album.AlbumType,
		},
		PreviewURL:   t.PreviewURL,
		ExternalURLs: copyURLs(t.ExternalURLs),
		Popularity:   int(t.Popularity),
		Explicit:     t.Explicit,
		TrackNumber:  int(t.TrackNumber),
	}
}

func convertAlbumTrack(t *spotify.SimpleTrack) track.AlbumTrack {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return track.AlbumTrack{
		ID:          string(t.ID),
		Name:        t.Name,
		Artists:     names,
		TrackNumber: int(t.TrackNumber),
		DurationMs:  int64(t.Duration),
	}
}

// convertAlbum converts a Spotify FullAlbum, including its first page of tracks.
func convertAlbum(a *spotify.FullAlbum) track.Album {
	tracks := make([]track.AlbumTrack, 0, len(a.Tracks.Tracks))
	for i := range a.Tracks.Tracks {
		tracks = append(tracks, convertAlbumTrack(&a.Tracks.Tracks[i]))
	}
	return track.Album{
		ID:           string(a.ID),
		Name:         a.Name,
		Artists:      convertArtistRefs(a.Artists),
		Images:       convertImages(a.Images),
		ExternalURLs: copyURLs(a.ExternalURLs),
		ReleaseDate:  a.ReleaseDate,
		AlbumType:    a.AlbumType,
		Genres:       a.Genres,
		Popularity:   int(a.Popularity),
		TotalTracks:  int(a.Tracks.Total),
		Tracks:       tracks,
	}
}

func convertArtist(a *spotify.FullArtist) track.Artist {
	return track.Artist{
		ID:           string(a.ID),
		Name:         a.Name,
		Images:       convertImages(a.Images),
		ExternalURLs: copyURLs(a.ExternalURLs),
		Genres:       a.Genres,
		Popularity:   int(a.Popularity),
		Followers:    int(a.Followers.Count),
	}
}
