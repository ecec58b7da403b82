package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/replaybox/internal/domain/leaderboard"
	"github.com/osa030/replaybox/internal/domain/track"
)

func sample() leaderboard.Snapshot {
	return leaderboard.Snapshot{
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Songs: []leaderboard.Song{{
			Rank: 1, ID: "t1", Name: "Let It Be",
			Artists:     []track.ArtistRef{{ID: "a1", Name: "The Beatles"}},
			Images:      []track.Image{{URL: "https://i/640", Height: 640, Width: 640}},
			Count:       8,
			OriginalIDs: []string{"t1", "t9"},
		}},
		Albums:  []leaderboard.Album{{Rank: 1, Name: "Abbey Road", Count: 5, OriginalIDs: []string{"al1"}}},
		Artists: []leaderboard.Artist{{Rank: 1, Name: "The Beatles", Count: 13, UniqueSongs: 2}},
		AlbumsWithSongs: []leaderboard.AlbumWithSongs{{
			Album:           leaderboard.Album{Rank: 1, Name: "Abbey Road", Count: 5},
			Songs:           []leaderboard.AlbumSong{{ID: "s1", Name: "Something", Artists: []string{"The Beatles"}, PlayCount: 5}},
			PlayedSongCount: 1,
		}},
		Stats: leaderboard.Stats{
			YearlyTotals: []leaderboard.YearBucket{{Label: "2021", TotalMs: 1000, PlayCount: 1}},
		},
	}
}

func TestStore_WriteThenRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	store := New(dir, true)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, sample()))

	for _, name := range []string{SongsFile, AlbumsFile, ArtistsFile, AlbumsWithSongsFile, StatsFile, ManifestFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	leftovers, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files are renamed or removed")

	got, err := store.Read(ctx)
	require.NoError(t, err)
	want := sample()
	assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))
	assert.Equal(t, want.Songs, got.Songs)
	assert.Equal(t, want.Albums, got.Albums)
	assert.Equal(t, want.Artists, got.Artists)
	assert.Equal(t, want.AlbumsWithSongs, got.AlbumsWithSongs)
	assert.Equal(t, want.Stats.YearlyTotals, got.Stats.YearlyTotals)
}

func TestStore_EmptyCollectionsWriteArrays(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, New(dir, false).Write(context.Background(), leaderboard.Snapshot{}))

	data, err := os.ReadFile(filepath.Join(dir, SongsFile))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestStore_ReadMissingDirectory(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "never-written"), false)

	snap, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Songs)
	assert.Empty(t, snap.Albums)
	assert.True(t, snap.GeneratedAt.IsZero())
}

func TestStore_ReadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SongsFile), []byte("{not json"), 0o644))

	_, err := New(dir, false).Read(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), SongsFile)
}
