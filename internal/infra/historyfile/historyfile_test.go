package historyfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`{"tracks":[]}`), 0o644))
}

func TestLatest(t *testing.T) {
	t.Run("greatest name within the preferred pattern", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "listening-history-2024-01-01.json")
		touch(t, dir, "listening-history-2024-03-01.json")
		touch(t, dir, "play-history-2025-01-01.json")

		got, err := Latest(dir, nil)
		require.NoError(t, err)
		assert.Equal(t, "listening-history-2024-03-01.json", filepath.Base(got))
	})

	t.Run("falls back to later patterns", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "play-history-2023.json")
		touch(t, dir, "play-history-2024.json")

		got, err := Latest(dir, nil)
		require.NoError(t, err)
		assert.Equal(t, "play-history-2024.json", filepath.Base(got))
	})

	t.Run("ignores directories", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "listening-history-1.json")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "listening-history-9.json"), 0o755))

		got, err := Latest(dir, nil)
		require.NoError(t, err)
		assert.Equal(t, "listening-history-1.json", filepath.Base(got))
	})

	t.Run("nothing found", func(t *testing.T) {
		_, err := Latest(t.TempDir(), []string{"*.json"})
		assert.True(t, errors.Is(err, ErrNoHistory))
	})
}

const listeningEventsDoc = `{
  "tracks": [
    {
      "id": "t1",
      "name": "Let It Be",
      "durationMs": 243000,
      "artists": [{"id": "a1", "name": "The Beatles"}],
      "album": {
        "id": "al1",
        "name": "Let It Be",
        "releaseDate": "1970-05-08",
        "images": [{"url": "https://i/640", "height": 640, "width": 640}]
      },
      "previewUrl": "https://p/t1",
      "listeningEvents": [
        {"playedAt": "2021-03-01T10:00:00Z", "msPlayed": 243000},
        {"playedAt": "2021-03-01T10:00:00Z", "msPlayed": 1000},
        {"playedAt": 1609459200000, "msPlayed": 5000}
      ]
    },
    {
      "id": "t2",
      "name": "Song 2",
      "artists": ["Blur"],
      "listeningEvents": [{"playedAt": "2020-06-01T23:30:00+09:00", "msPlayed": 120000}]
    }
  ]
}`

func TestDecode_ListeningEvents(t *testing.T) {
	h, err := Decode([]byte(listeningEventsDoc))
	require.NoError(t, err)
	assert.Equal(t, ShapeListeningEvents, h.Shape)
	require.Len(t, h.Events, 4)

	first := h.Events[0]
	assert.Equal(t, "t1", first.TrackID)
	assert.Equal(t, time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC), first.PlayedAt.UTC())
	assert.Equal(t, int64(243000), first.MsPlayed)
	assert.Equal(t, "Let It Be", first.Track.Name)
	assert.Equal(t, "The Beatles", first.Track.PrimaryArtist())
	assert.Equal(t, "al1", first.Track.Album.ID)
	assert.Equal(t, 640, first.Track.Album.Images[0].Height)
	assert.Equal(t, "https://p/t1", first.Track.PreviewURL)

	assert.NotEqual(t, h.Events[0].ID, h.Events[1].ID, "repeated timestamps get distinct IDs")
	assert.Equal(t, time.UnixMilli(1609459200000).UTC(), h.Events[2].PlayedAt)

	assert.Equal(t, "Blur", h.Events[3].Track.PrimaryArtist(), "plain artist names accepted")
	assert.Equal(t, 2020, h.Events[3].PlayedAt.Year())

	again, err := Decode([]byte(listeningEventsDoc))
	require.NoError(t, err)
	for i := range h.Events {
		assert.Equal(t, h.Events[i].ID, again.Events[i].ID, "IDs are stable across decodes")
	}
}

func TestDecode_TotalPlayEvents(t *testing.T) {
	doc := `{
	  "tracks": {
	    "t2": {
	      "name": "Totals Only",
	      "artists": [{"name": "X"}],
	      "totalPlayEvents": 3,
	      "totalMsPlayed": 10
	    },
	    "t1": {
	      "name": "Mixed",
	      "artists": [{"name": "Y"}],
	      "totalPlayEvents": 4,
	      "totalMsPlayed": 10000,
	      "events": [{"playedAt": "2022-01-01T00:00:00Z", "msPlayed": 4000}]
	    }
	  }
	}`

	h, err := Decode([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, ShapeTotalPlayEvents, h.Shape)
	require.Len(t, h.Events, 7)

	// Sorted by track id: t1 first
	assert.Equal(t, "t1", h.Events[0].TrackID)
	assert.True(t, h.Events[0].Dated())
	assert.Equal(t, int64(4000), h.Events[0].MsPlayed)
	for _, e := range h.Events[1:4] {
		assert.Equal(t, "t1", e.TrackID)
		assert.False(t, e.Dated())
		assert.Equal(t, int64(2000), e.MsPlayed)
	}

	var total int64
	for _, e := range h.Events[4:] {
		assert.Equal(t, "t2", e.TrackID)
		assert.Equal(t, "t2", e.Track.ID, "map key supplies the id")
		total += e.MsPlayed
	}
	assert.Equal(t, int64(10), total, "remainder split keeps the total")
	assert.Equal(t, int64(4), h.Events[4].MsPlayed)
	assert.Equal(t, int64(3), h.Events[6].MsPlayed)

	ids := make(map[string]bool)
	for _, e := range h.Events {
		ids[e.ID] = true
	}
	assert.Len(t, ids, 7, "undated events still get distinct IDs")
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		unknown bool
	}{
		{name: "invalid json", doc: `{"tracks": [`},
		{name: "no tracks", doc: `{"items": []}`, unknown: true},
		{name: "tracks scalar", doc: `{"tracks": 3}`, unknown: true},
		{name: "keyed without totals", doc: `{"tracks": {"t1": {"name": "x"}}}`, unknown: true},
		{name: "array with totals", doc: `{"tracks": [{"id": "t1", "totalPlayEvents": 2}]}`, unknown: true},
		{name: "missing id", doc: `{"tracks": [{"name": "x", "listeningEvents": []}]}`},
		{name: "bad timestamp", doc: `{"tracks": [{"id": "t1", "listeningEvents": [{"playedAt": "yesterday"}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.unknown, errors.Is(err, ErrUnknownShape))
		})
	}
}

func TestDecode_EmptyHistory(t *testing.T) {
	h, err := Decode([]byte(`{"tracks": []}`))
	require.NoError(t, err)
	assert.Empty(t, h.Events)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listening-history-1.json")
	require.NoError(t, os.WriteFile(path, []byte(listeningEventsDoc), 0o644))

	h, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, h.Source)
	assert.Len(t, h.Events, 4)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
