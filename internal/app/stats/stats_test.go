package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/replaybox/internal/domain/history"
	"github.com/osa030/replaybox/internal/domain/track"
)

func play(trackID, artist string, at time.Time, ms int64, imgHeight int) history.Event {
	return history.Event{
		ID:       fmt.Sprintf("%s-%d", trackID, at.UnixNano()),
		TrackID:  trackID,
		PlayedAt: at,
		MsPlayed: ms,
		Track: track.Track{
			ID:      trackID,
			Name:    "Song " + trackID,
			Artists: []track.ArtistRef{{Name: artist}},
			Album: track.AlbumRef{
				Images: []track.Image{{URL: fmt.Sprintf("img-%s-%d", trackID, imgHeight), Height: imgHeight}},
			},
		},
	}
}

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func TestCompute_TwoYears(t *testing.T) {
	var events []history.Event
	// 2020: seven distinct songs, s1 played three times
	for i := 1; i <= 7; i++ {
		events = append(events, play(fmt.Sprintf("s%d", i), "A", at(2020, 3, i, 10), 1000, 300))
	}
	events = append(events,
		play("s1", "A", at(2020, 4, 1, 11), 1000, 300),
		play("s1", "A", at(2020, 4, 2, 11), 1000, 300),
		play("x", "B", at(2021, 1, 1, 23), 5000, 300),
		play("x", "B", at(2021, 6, 1, 23), 2500, 300),
	)

	out := Compute(events, Options{})

	require.Len(t, out.YearlyTotals, 2)
	assert.Equal(t, "2020", out.YearlyTotals[0].Label)
	assert.Equal(t, int64(9000), out.YearlyTotals[0].TotalMs)
	assert.Equal(t, 9, out.YearlyTotals[0].PlayCount)
	assert.Equal(t, "2021", out.YearlyTotals[1].Label)
	assert.Equal(t, int64(7500), out.YearlyTotals[1].TotalMs)
	assert.Equal(t, 2, out.YearlyTotals[1].PlayCount)

	require.Len(t, out.YearlyTopSongs, 2)
	top2020 := out.YearlyTopSongs[0].Songs
	assert.LessOrEqual(t, len(top2020), 5)
	assert.Len(t, top2020, 5)
	assert.Equal(t, "s1", top2020[0].ID)
	assert.Equal(t, 3, top2020[0].PlayCount)
	for i := 1; i < len(top2020); i++ {
		assert.GreaterOrEqual(t, top2020[i-1].PlayCount, top2020[i].PlayCount)
	}

	top2021 := out.YearlyTopSongs[1].Songs
	require.Len(t, top2021, 1)
	assert.Equal(t, int64(7500), top2021[0].TotalMs)
}

func TestCompute_HourlyBucketsZeroFilled(t *testing.T) {
	out := Compute([]history.Event{
		play("a", "A", at(2021, 1, 1, 0), 100, 0),
		play("b", "A", at(2021, 1, 1, 23), 200, 0),
		play("c", "A", at(2021, 1, 2, 23), 300, 0),
	}, Options{})

	require.Len(t, out.HourlyTotals, 24)
	for hour, b := range out.HourlyTotals {
		assert.Equal(t, hour, b.Hour)
		assert.Equal(t, fmt.Sprintf("%02d:00", hour), b.Label)
	}
	assert.Equal(t, 1, out.HourlyTotals[0].PlayCount)
	assert.Equal(t, int64(500), out.HourlyTotals[23].TotalMs)
	assert.Equal(t, 2, out.HourlyTotals[23].PlayCount)
	assert.Zero(t, out.HourlyTotals[12].PlayCount)
}

func TestCompute_Empty(t *testing.T) {
	out := Compute(nil, Options{})
	assert.Empty(t, out.YearlyTotals)
	assert.Len(t, out.HourlyTotals, 24)
	assert.Zero(t, out.UndatedPlays)
}

func TestCompute_UndatedCountedSeparately(t *testing.T) {
	undated := play("u", "A", time.Time{}, 400, 0)
	out := Compute([]history.Event{undated, undated, play("d", "A", at(2022, 5, 5, 5), 100, 0)}, Options{})

	assert.Equal(t, 2, out.UndatedPlays)
	require.Len(t, out.YearlyTotals, 1)
	assert.Equal(t, 1, out.YearlyTotals[0].PlayCount)
}

func TestCompute_TopArtists(t *testing.T) {
	events := []history.Event{
		play("a1", "Alpha", at(2021, 1, 1, 1), 100, 64),
		play("a2", "alpha", at(2021, 1, 2, 1), 100, 640),
		play("a2", "Alpha", at(2021, 1, 3, 1), 100, 300),
		play("b1", "Beta", at(2021, 1, 4, 1), 100, 64),
		play("b2", "Beta", at(2021, 1, 5, 1), 100, 64),
		play("c1", "Gamma", at(2021, 1, 6, 1), 50, 64),
		play("d1", "Delta", at(2021, 1, 7, 1), 50, 64),
	}

	out := Compute(events, Options{})
	require.Len(t, out.YearlyTopArtists, 1)
	artists := out.YearlyTopArtists[0].Artists
	require.Len(t, artists, 4)

	assert.Equal(t, "Alpha", artists[0].Name, "case variants share one bucket")
	assert.Equal(t, 3, artists[0].PlayCount)
	assert.Equal(t, 2, artists[0].UniqueSongs)
	assert.Equal(t, 640, track.MaxHeight(artists[0].Images), "tallest image set wins")

	assert.Equal(t, "Beta", artists[1].Name)
	// equal plays and ms: name ascending
	assert.Equal(t, "Delta", artists[2].Name)
	assert.Equal(t, "Gamma", artists[3].Name)
}

func TestCompute_TopNOption(t *testing.T) {
	var events []history.Event
	for i := 0; i < 4; i++ {
		events = append(events, play(fmt.Sprintf("s%d", i), fmt.Sprintf("A%d", i), at(2021, 1, 1, i), 10, 0))
	}
	out := Compute(events, Options{TopN: 2})
	assert.Len(t, out.YearlyTopSongs[0].Songs, 2)
	assert.Len(t, out.YearlyTopArtists[0].Artists, 2)
}

func TestCompute_Location(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	// 2020-12-31 20:00 UTC is 2021-01-01 05:00 at UTC+9
	events := []history.Event{play("s", "A", time.Date(2020, 12, 31, 20, 0, 0, 0, time.UTC), 100, 0)}

	utc := Compute(events, Options{})
	assert.Equal(t, "2020", utc.YearlyTotals[0].Label)
	assert.Equal(t, 1, utc.HourlyTotals[20].PlayCount)

	shifted := Compute(events, Options{Location: loc})
	assert.Equal(t, "2021", shifted.YearlyTotals[0].Label)
	assert.Equal(t, 1, shifted.HourlyTotals[5].PlayCount)
}
