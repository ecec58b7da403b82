package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/replaybox/internal/app/rules"
	"github.com/osa030/replaybox/internal/domain/history"
	"github.com/osa030/replaybox/internal/domain/leaderboard"
	"github.com/osa030/replaybox/internal/domain/track"
)

type fakeStore struct {
	prior    leaderboard.Snapshot
	readErr  error
	writeErr error
	written  []leaderboard.Snapshot
}

func (f *fakeStore) Read(ctx context.Context) (leaderboard.Snapshot, error) {
	return f.prior, f.readErr
}

func (f *fakeStore) Write(ctx context.Context, snap leaderboard.Snapshot) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, snap)
	return nil
}

// fakeEnricher records its inputs and stamps every song with an image.
type fakeEnricher struct {
	current []leaderboard.Snapshot
	prior   []leaderboard.Snapshot
}

func (f *fakeEnricher) Enrich(ctx context.Context, current, prior leaderboard.Snapshot) leaderboard.Snapshot {
	f.current = append(f.current, current)
	f.prior = append(f.prior, prior)
	out := current
	out.Songs = append([]leaderboard.Song(nil), current.Songs...)
	for i := range out.Songs {
		out.Songs[i].Images = []track.Image{{URL: "https://i/" + out.Songs[i].ID, Height: 640}}
	}
	return out
}

var fixedNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func play(trackID, name, artist, albumID, album string, at time.Time, ms int64, n int) []history.Event {
	t := track.Track{
		ID:      trackID,
		Name:    name,
		Artists: []track.ArtistRef{{ID: "id-" + artist, Name: artist}},
		Album:   track.AlbumRef{ID: albumID, Name: album},
	}
	events := make([]history.Event, 0, n)
	for i := 0; i < n; i++ {
		playedAt := at.Add(time.Duration(i) * time.Hour)
		events = append(events, history.Event{
			ID:       history.NewEventID(trackID, playedAt, 0),
			TrackID:  trackID,
			PlayedAt: playedAt,
			MsPlayed: ms,
			Track:    t,
		})
	}
	return events
}

func beatlesHistory() history.History {
	base := time.Date(2021, 3, 1, 8, 0, 0, 0, time.UTC)
	var events []history.Event
	events = append(events, play("t1", "Let It Be", "The Beatles", "al1", "Let It Be", base, 1000, 5)...)
	events = append(events, play("t2", "let it be", "the beatles", "al2", "Let It Be (Remastered)", base, 1000, 3)...)
	events = append(events, play("t3", "Help!", "The Beatles", "al3", "Help!", base.AddDate(1, 0, 0), 2000, 2)...)
	events = append(events, play("t4", "Song 2", "Blur", "al4", "Blur", base, 500, 1)...)
	return history.History{Source: "listening-history-1.json", Shape: "listeningEvents", Events: events}
}

func newNormalizer() *rules.Normalizer {
	return rules.NewNormalizer(rules.NewTable([]rules.Rule{{
		Artist:     "The Beatles",
		BaseAlbum:  "Let It Be",
		Variations: []string{"Let It Be (Remastered)"},
	}}))
}

func TestRun_ConsolidatesRanksAndWrites(t *testing.T) {
	store := &fakeStore{}
	p := New(newNormalizer(), store, Config{Limits: DefaultLimits()}, WithClock(func() time.Time { return fixedNow }))

	snap, err := p.Run(context.Background(), beatlesHistory())
	require.NoError(t, err)
	require.Len(t, store.written, 1)
	assert.Equal(t, snap, store.written[0])
	assert.Equal(t, fixedNow, snap.GeneratedAt)

	require.Len(t, snap.Songs, 3)
	top := snap.Songs[0]
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, "Let It Be", top.Name)
	assert.Equal(t, 8, top.Count)
	assert.Equal(t, 8, top.ConsolidatedCount)
	assert.Equal(t, []string{"t1", "t2"}, top.OriginalIDs)
	assert.Equal(t, 2, snap.Songs[1].Rank)
	assert.Equal(t, "Help!", snap.Songs[1].Name)
	assert.Equal(t, 3, snap.Songs[2].Rank)

	require.Len(t, snap.Albums, 3)
	assert.Equal(t, "Let It Be", snap.Albums[0].Name, "alias rule folds the remaster")
	assert.Equal(t, 8, snap.Albums[0].Count)
	assert.Equal(t, []string{"al1", "al2"}, snap.Albums[0].OriginalIDs)

	require.Len(t, snap.Artists, 2)
	assert.Equal(t, 10, snap.Artists[0].Count)
	assert.Equal(t, 1, snap.Artists[1].Count)

	require.NotEmpty(t, snap.AlbumsWithSongs)
	assert.Equal(t, 1, snap.AlbumsWithSongs[0].Rank)

	require.Len(t, snap.Stats.YearlyTotals, 2)
	assert.Equal(t, "2021", snap.Stats.YearlyTotals[0].Label)
	assert.Equal(t, 9, snap.Stats.YearlyTotals[0].PlayCount)
	assert.Len(t, snap.Stats.HourlyTotals, 24)
}

func TestRun_TruncatesBeforeRanking(t *testing.T) {
	store := &fakeStore{}
	limits := Limits{Songs: 1, Albums: 2, Artists: 1, AlbumsWithSongs: 1}
	p := New(newNormalizer(), store, Config{Limits: limits})

	snap, err := p.Run(context.Background(), beatlesHistory())
	require.NoError(t, err)
	require.Len(t, snap.Songs, 1)
	assert.Equal(t, 1, snap.Songs[0].Rank)
	assert.Len(t, snap.Albums, 2)
	assert.Equal(t, 2, snap.Albums[1].Rank)
	assert.Len(t, snap.Artists, 1)
	assert.Len(t, snap.AlbumsWithSongs, 1)
}

func TestRun_EnrichesWithPrior(t *testing.T) {
	prior := leaderboard.Snapshot{Songs: []leaderboard.Song{{ID: "t1", Name: "Let It Be"}}}
	store := &fakeStore{prior: prior}
	enricher := &fakeEnricher{}
	p := New(newNormalizer(), store, Config{Limits: DefaultLimits()}, WithEnricher(enricher), WithPrior(store))

	snap, err := p.Run(context.Background(), beatlesHistory())
	require.NoError(t, err)

	require.Len(t, enricher.prior, 1)
	assert.Equal(t, prior, enricher.prior[0])
	assert.Zero(t, enricher.current[0].Songs[0].Rank, "ranks are assigned after enrichment")
	assert.Equal(t, "https://i/t1", snap.Songs[0].Images[0].URL)
	assert.Equal(t, 1, snap.Songs[0].Rank)
}

func TestRun_UnreadablePriorIsIgnored(t *testing.T) {
	store := &fakeStore{readErr: errors.New("corrupt")}
	enricher := &fakeEnricher{}
	p := New(newNormalizer(), store, Config{}, WithEnricher(enricher), WithPrior(store))

	_, err := p.Run(context.Background(), beatlesHistory())
	require.NoError(t, err)
	require.Len(t, enricher.prior, 1)
	assert.Empty(t, enricher.prior[0].Songs)
}

func TestRun_WriteFailure(t *testing.T) {
	store := &fakeStore{writeErr: errors.New("disk full")}
	p := New(newNormalizer(), store, Config{})

	_, err := p.Run(context.Background(), beatlesHistory())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRun_EmptyHistory(t *testing.T) {
	store := &fakeStore{}
	p := New(newNormalizer(), store, Config{Limits: DefaultLimits()})

	snap, err := p.Run(context.Background(), history.History{})
	require.NoError(t, err)
	assert.Empty(t, snap.Songs)
	assert.Empty(t, snap.Albums)
	assert.Empty(t, snap.Artists)
	assert.Empty(t, snap.Stats.YearlyTotals)
	assert.Len(t, snap.Stats.HourlyTotals, 24)
}

func TestBuild_Idempotent(t *testing.T) {
	p := New(newNormalizer(), nil, Config{Limits: DefaultLimits()}, WithClock(func() time.Time { return fixedNow }))
	events := beatlesHistory().Events

	first := p.Build(context.Background(), events, leaderboard.Snapshot{})
	second := p.Build(context.Background(), events, leaderboard.Snapshot{})
	assert.Equal(t, first, second)
}

func TestBuild_ConservesPlays(t *testing.T) {
	var events []history.Event
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	total := 0
	for i := 0; i < 30; i++ {
		n := i%4 + 1
		total += n
		events = append(events, play(fmt.Sprintf("t%d", i), fmt.Sprintf("Song %d", i%7), fmt.Sprintf("Artist %d", i%3),
			fmt.Sprintf("al%d", i%5), fmt.Sprintf("Album %d", i%5), base, 100, n)...)
	}
	p := New(newNormalizer(), nil, Config{Limits: DefaultLimits()})
	snap := p.Build(context.Background(), events, leaderboard.Snapshot{})

	sum := func(counts ...int) int {
		s := 0
		for _, c := range counts {
			s += c
		}
		return s
	}
	var songCounts, artistCounts []int
	for _, s := range snap.Songs {
		songCounts = append(songCounts, s.ConsolidatedCount)
	}
	for _, a := range snap.Artists {
		artistCounts = append(artistCounts, a.Count)
	}
	assert.Equal(t, total, sum(songCounts...))
	assert.Equal(t, total, sum(artistCounts...))
}
