// Package history provides the raw play event entity.
package history

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/osa030/replaybox/internal/domain/track"
)

// eventNamespace scopes the deterministic event IDs.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://replaybox/play-event"))

// Event represents one real listening occurrence.
// Events are immutable once decoded.
type Event struct {
	ID       string      // Deterministic event ID (see NewEventID)
	TrackID  string      // Catalog track ID
	PlayedAt time.Time   // Zero for undated events synthesized from play totals
	MsPlayed int64       // Milliseconds listened
	Track    track.Track // Descriptive fields as recorded by the source
}

// Dated reports whether the event carries a real timestamp.
func (e *Event) Dated() bool {
	return !e.PlayedAt.IsZero()
}

// NewEventID derives a stable ID for the n-th event of a track at a timestamp.
// The same history always yields the same IDs, which keeps lineage stable across runs.
func NewEventID(trackID string, playedAt time.Time, occurrence int) string {
	name := trackID + "|" + playedAt.UTC().Format(time.RFC3339Nano) + "|" + strconv.Itoa(occurrence)
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

// History is a decoded raw history snapshot.
type History struct {
	Source string  // File the history was read from
	Shape  string  // Schema shape the source used
	Events []Event // Events in source order
}
