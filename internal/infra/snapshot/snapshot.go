// Package snapshot persists ranked leaderboards as JSON files and reads them back.
package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/replaybox/internal/domain/leaderboard"
)

// File names inside the output directory.
const (
	SongsFile           = "songs.json"
	AlbumsFile          = "albums.json"
	ArtistsFile         = "artists.json"
	AlbumsWithSongsFile = "albums_with_songs.json"
	StatsFile           = "stats.json"
	ManifestFile        = "manifest.json"
)

// Manifest summarizes one written snapshot.
type Manifest struct {
	GeneratedAt     time.Time `json:"generated_at"`
	Songs           int       `json:"songs"`
	Albums          int       `json:"albums"`
	Artists         int       `json:"artists"`
	AlbumsWithSongs int       `json:"albums_with_songs"`
}

// Store reads and writes snapshots in a directory.
type Store struct {
	dir    string
	indent bool
}

// New creates a Store rooted at dir.
func New(dir string, indent bool) *Store {
	return &Store{dir: dir, indent: indent}
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Write stores every collection. Each file is replaced atomically; the manifest
// is written last.
func (s *Store) Write(ctx context.Context, snap leaderboard.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", s.dir)
	}

	files := []struct {
		name string
		v    any
	}{
		{SongsFile, nonNil(snap.Songs)},
		{AlbumsFile, nonNil(snap.Albums)},
		{ArtistsFile, nonNil(snap.Artists)},
		{AlbumsWithSongsFile, nonNil(snap.AlbumsWithSongs)},
		{StatsFile, snap.Stats},
		{ManifestFile, Manifest{
			GeneratedAt:     snap.GeneratedAt,
			Songs:           len(snap.Songs),
			Albums:          len(snap.Albums),
			Artists:         len(snap.Artists),
			AlbumsWithSongs: len(snap.AlbumsWithSongs),
		}},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "snapshot write cancelled")
		}
		if err := s.writeJSON(f.name, f.v); err != nil {
			return err
		}
	}
	zlog.Info().Msgf("snapshot written to %s (%d songs, %d albums, %d artists, %d album breakdowns)",
		s.dir, len(snap.Songs), len(snap.Albums), len(snap.Artists), len(snap.AlbumsWithSongs))
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Store) writeJSON(name string, v any) error {
	var (
		data []byte
		err  error
	)
	if s.indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", name)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "failed to create temp file for %s", name)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write %s", name)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", name)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return errors.Wrapf(err, "failed to replace %s", name)
	}
	return nil
}

// Read loads the snapshot stored in the directory. Missing files yield empty
// collections, so a first run reads an empty snapshot.
func (s *Store) Read(ctx context.Context) (leaderboard.Snapshot, error) {
	var snap leaderboard.Snapshot
	var manifest Manifest

	targets := []struct {
		name string
		v    any
	}{
		{SongsFile, &snap.Songs},
		{AlbumsFile, &snap.Albums},
		{ArtistsFile, &snap.Artists},
		{AlbumsWithSongsFile, &snap.AlbumsWithSongs},
		{StatsFile, &snap.Stats},
		{ManifestFile, &manifest},
	}
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return leaderboard.Snapshot{}, errors.Wrap(err, "snapshot read cancelled")
		}
		if err := s.readJSON(t.name, t.v); err != nil {
			return leaderboard.Snapshot{}, err
		}
	}
	snap.GeneratedAt = manifest.GeneratedAt
	return snap, nil
}

func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", name)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to decode %s", name)
	}
	return nil
}
