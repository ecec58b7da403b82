// Package historyfile locates and decodes raw listening history exports.
//
// Two legacy shapes are accepted and normalized into one event stream:
//
//	listeningEvents: {"tracks": [{...track, "listeningEvents": [{"playedAt", "msPlayed"}]}]}
//	totalPlayEvents: {"tracks": {"<id>": {...track, "totalPlayEvents", "totalMsPlayed", "events": [...]}}}
package historyfile

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/replaybox/internal/domain/history"
)

// Shape names.
const (
	ShapeListeningEvents = "listeningEvents"
	ShapeTotalPlayEvents = "totalPlayEvents"
)

var (
	// ErrNoHistory is returned when no candidate file exists.
	ErrNoHistory = errors.New("no listening history found")
	// ErrUnknownShape is returned when a document matches neither shape.
	ErrUnknownShape = errors.New("unrecognized listening history shape")
)

// DefaultPatterns lists candidate file patterns in preference order.
var DefaultPatterns = []string{
	"listening-history-*.json",
	"play-history-*.json",
}

// Latest returns the newest candidate in dir. Patterns are tried in order and
// the first one with matches wins; within it the greatest file name is chosen.
func Latest(dir string, patterns []string) (string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", errors.Wrapf(err, "invalid history pattern %q", pattern)
		}
		files := matches[:0]
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
				files = append(files, m)
			}
		}
		if len(files) == 0 {
			continue
		}
		sort.Strings(files)
		latest := files[len(files)-1]
		zlog.Debug().Msgf("history candidates for %s: %d, using %s", pattern, len(files), filepath.Base(latest))
		return latest, nil
	}
	return "", errors.Wrapf(ErrNoHistory, "in %s", dir)
}

// Load reads and decodes a history file.
func Load(path string) (history.History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return history.History{}, errors.Wrapf(err, "failed to read history file %s", path)
	}
	h, err := Decode(data)
	if err != nil {
		return history.History{}, errors.Wrapf(err, "failed to decode history file %s", path)
	}
	h.Source = path
	return h, nil
}

// Decode resolves the document's shape and converts it into events.
func Decode(data []byte) (history.History, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return history.History{}, errors.Wrap(err, "invalid JSON")
	}

	shape, err := detectShape(doc)
	if err != nil {
		return history.History{}, err
	}

	var events []history.Event
	switch shape {
	case ShapeListeningEvents:
		events, err = decodeListeningEvents(doc["tracks"])
	case ShapeTotalPlayEvents:
		events, err = decodeTotalPlayEvents(doc["tracks"])
	}
	if err != nil {
		return history.History{}, errors.Wrapf(err, "failed to decode %s history", shape)
	}
	return history.History{Shape: shape, Events: events}, nil
}

// detectShape inspects the tracks collection. An array is the listeningEvents
// shape; an object keyed by track ID whose entries carry totalPlayEvents is the
// totals shape.
func detectShape(doc map[string]any) (string, error) {
	raw, ok := doc["tracks"]
	if !ok {
		return "", errors.Wrap(ErrUnknownShape, "missing tracks")
	}
	switch tracks := raw.(type) {
	case []any:
		for _, t := range tracks {
			m, ok := t.(map[string]any)
			if !ok {
				return "", errors.Wrap(ErrUnknownShape, "track entries must be objects")
			}
			if _, ok := m["totalPlayEvents"]; ok {
				return "", errors.Wrap(ErrUnknownShape, "totalPlayEvents entries must be keyed by track id")
			}
		}
		return ShapeListeningEvents, nil
	case map[string]any:
		for _, t := range tracks {
			m, ok := t.(map[string]any)
			if !ok {
				return "", errors.Wrap(ErrUnknownShape, "track entries must be objects")
			}
			if _, ok := m["totalPlayEvents"]; !ok {
				return "", errors.Wrap(ErrUnknownShape, "keyed track without totalPlayEvents")
			}
		}
		return ShapeTotalPlayEvents, nil
	default:
		return "", errors.Wrap(ErrUnknownShape, "tracks must be an array or an object")
	}
}
