package historyfile

import (
	"reflect"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/replaybox/internal/domain/history"
	"github.com/osa030/replaybox/internal/domain/track"
)

type wireImage struct {
	URL    string `mapstructure:"url"`
	Height int    `mapstructure:"height"`
	Width  int    `mapstructure:"width"`
}

type wireArtist struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type wireAlbum struct {
	ID          string       `mapstructure:"id"`
	Name        string       `mapstructure:"name"`
	Artists     []wireArtist `mapstructure:"artists"`
	Images      []wireImage  `mapstructure:"images"`
	ReleaseDate string       `mapstructure:"releaseDate"`
	AlbumType   string       `mapstructure:"albumType"`
	TotalTracks int          `mapstructure:"totalTracks"`
}

type wirePlay struct {
	PlayedAt time.Time `mapstructure:"playedAt"`
	MsPlayed int64     `mapstructure:"msPlayed"`
}

type wireTrack struct {
	ID           string            `mapstructure:"id"`
	Name         string            `mapstructure:"name"`
	DurationMs   int64             `mapstructure:"durationMs"`
	Artists      []wireArtist      `mapstructure:"artists"`
	Album        wireAlbum         `mapstructure:"album"`
	PreviewURL   string            `mapstructure:"previewUrl"`
	ExternalURLs map[string]string `mapstructure:"externalUrls"`
	Popularity   int               `mapstructure:"popularity"`
	Explicit     bool              `mapstructure:"explicit"`
	TrackNumber  int               `mapstructure:"trackNumber"`

	// listeningEvents shape
	ListeningEvents []wirePlay `mapstructure:"listeningEvents"`

	// totalPlayEvents shape
	TotalPlayEvents int        `mapstructure:"totalPlayEvents"`
	TotalMsPlayed   int64      `mapstructure:"totalMsPlayed"`
	Events          []wirePlay `mapstructure:"events"`
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	artistType = reflect.TypeOf(wireArtist{})
)

// timeHook accepts RFC 3339 strings and epoch milliseconds. Empty strings and
// null decode to the zero time, which marks an undated play.
func timeHook(from, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case nil:
		return time.Time{}, nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid timestamp %q", v)
		}
		return t, nil
	case float64:
		if v <= 0 {
			return time.Time{}, nil
		}
		return time.UnixMilli(int64(v)).UTC(), nil
	}
	return data, nil
}

// artistHook lets older exports list artists as plain names.
func artistHook(from, to reflect.Type, data any) (any, error) {
	if to != artistType || from.Kind() != reflect.String {
		return data, nil
	}
	return wireArtist{Name: data.(string)}, nil
}

func decodeTrack(raw any) (wireTrack, error) {
	var t wireTrack
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(timeHook, artistHook),
		Result:     &t,
	})
	if err != nil {
		return t, errors.Wrap(err, "failed to create decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return t, errors.Wrap(err, "invalid track entry")
	}
	return t, nil
}

func (w wireTrack) toTrack(id string) track.Track {
	if w.ID != "" {
		id = w.ID
	}
	return track.Track{
		ID:         id,
		Name:       w.Name,
		DurationMs: w.DurationMs,
		Artists:    toArtists(w.Artists),
		Album: track.AlbumRef{
			ID:          w.Album.ID,
			Name:        w.Album.Name,
			Artists:     toArtists(w.Album.Artists),
			Images:      toImages(w.Album.Images),
			ReleaseDate: w.Album.ReleaseDate,
			AlbumType:   w.Album.AlbumType,
			TotalTracks: w.Album.TotalTracks,
		},
		PreviewURL:   w.PreviewURL,
		ExternalURLs: w.ExternalURLs,
		Popularity:   w.Popularity,
		Explicit:     w.Explicit,
		TrackNumber:  w.TrackNumber,
	}
}

func toArtists(in []wireArtist) []track.ArtistRef {
	out := make([]track.ArtistRef, 0, len(in))
	for _, a := range in {
		out = append(out, track.ArtistRef{ID: a.ID, Name: a.Name})
	}
	return out
}

func toImages(in []wireImage) []track.Image {
	if len(in) == 0 {
		return nil
	}
	out := make([]track.Image, 0, len(in))
	for _, img := range in {
		out = append(out, track.Image{URL: img.URL, Height: img.Height, Width: img.Width})
	}
	return out
}

// eventBuilder assigns stable IDs, numbering repeats of the same (track, time).
type eventBuilder struct {
	seen   map[string]int
	events []history.Event
}

func newEventBuilder() *eventBuilder {
	return &eventBuilder{seen: make(map[string]int)}
}

func (b *eventBuilder) add(t track.Track, playedAt time.Time, ms int64) {
	key := t.ID + "|" + playedAt.UTC().Format(time.RFC3339Nano)
	occurrence := b.seen[key]
	b.seen[key] = occurrence + 1
	b.events = append(b.events, history.Event{
		ID:       history.NewEventID(t.ID, playedAt, occurrence),
		TrackID:  t.ID,
		PlayedAt: playedAt,
		MsPlayed: ms,
		Track:    t,
	})
}

func decodeListeningEvents(raw any) ([]history.Event, error) {
	entries, _ := raw.([]any)
	b := newEventBuilder()
	for i, entry := range entries {
		w, err := decodeTrack(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "track %d", i)
		}
		if w.ID == "" {
			return nil, errors.Newf("track %d: missing id", i)
		}
		t := w.toTrack(w.ID)
		for _, p := range w.ListeningEvents {
			b.add(t, p.PlayedAt, p.MsPlayed)
		}
	}
	return b.events, nil
}

// decodeTotalPlayEvents emits the dated events of each track, then one undated
// event per play not covered by them. The listening time they leave unaccounted
// for is split evenly across the undated events.
func decodeTotalPlayEvents(raw any) ([]history.Event, error) {
	entries, _ := raw.(map[string]any)
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b := newEventBuilder()
	for _, id := range ids {
		w, err := decodeTrack(entries[id])
		if err != nil {
			return nil, errors.Wrapf(err, "track %s", id)
		}
		t := w.toTrack(id)

		dated := append(w.Events, w.ListeningEvents...)
		var datedMs int64
		for _, p := range dated {
			b.add(t, p.PlayedAt, p.MsPlayed)
			datedMs += p.MsPlayed
		}

		remaining := w.TotalPlayEvents - len(dated)
		if remaining <= 0 {
			continue
		}
		restMs := max(w.TotalMsPlayed-datedMs, 0)
		each, extra := restMs/int64(remaining), restMs%int64(remaining)
		for i := 0; i < remaining; i++ {
			ms := each
			if int64(i) < extra {
				ms++
			}
			b.add(t, time.Time{}, ms)
		}
	}
	return b.events, nil
}
