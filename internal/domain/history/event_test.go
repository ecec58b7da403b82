package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEventID(t *testing.T) {
	at := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)

	id1 := NewEventID("track1", at, 0)
	id2 := NewEventID("track1", at, 0)
	assert.Equal(t, id1, id2, "same input must yield the same id")

	assert.NotEqual(t, id1, NewEventID("track1", at, 1), "occurrence disambiguates repeated timestamps")
	assert.NotEqual(t, id1, NewEventID("track2", at, 0))

	// Same instant in another zone is the same event.
	tokyo := time.FixedZone("JST", 9*60*60)
	assert.Equal(t, id1, NewEventID("track1", at.In(tokyo), 0))
}

func TestEvent_Dated(t *testing.T) {
	e := Event{TrackID: "t"}
	assert.False(t, e.Dated())
	e.PlayedAt = time.Now()
	assert.True(t, e.Dated())
}
