// Package pipeline runs one consolidation pass: aggregate, consolidate, enrich,
// compute stats and write the ranked snapshot.
package pipeline

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/replaybox/internal/app/aggregate"
	"github.com/osa030/replaybox/internal/app/consolidate"
	"github.com/osa030/replaybox/internal/app/rules"
	"github.com/osa030/replaybox/internal/app/stats"
	"github.com/osa030/replaybox/internal/domain/history"
	"github.com/osa030/replaybox/internal/domain/leaderboard"
	"github.com/osa030/replaybox/internal/infra/metrics"
)

// Stage names used for timing.
const (
	StageAggregate   = "aggregate"
	StageConsolidate = "consolidate"
	StageEnrich      = "enrich"
	StageStats       = "stats"
	StageWrite       = "write"
)

// Enricher merges catalog metadata into a snapshot.
type Enricher interface {
	Enrich(ctx context.Context, current, prior leaderboard.Snapshot) leaderboard.Snapshot
}

// SnapshotReader loads the previously written snapshot.
type SnapshotReader interface {
	Read(ctx context.Context) (leaderboard.Snapshot, error)
}

// SnapshotWriter persists a snapshot.
type SnapshotWriter interface {
	Write(ctx context.Context, snap leaderboard.Snapshot) error
}

// Limits bounds each ranked collection.
type Limits struct {
	Songs           int
	Albums          int
	Artists         int
	AlbumsWithSongs int
}

// DefaultLimits returns the standard leaderboard sizes.
func DefaultLimits() Limits {
	return Limits{Songs: 500, Albums: 500, Artists: 500, AlbumsWithSongs: 100}
}

// Config configures a Pipeline.
type Config struct {
	Limits Limits
	Stats  stats.Options
}

// Pipeline holds the collaborators of a run. The rule table behind the
// normalizer is read-only for the life of the pipeline.
type Pipeline struct {
	normalizer *rules.Normalizer
	enricher   Enricher
	reader     SnapshotReader
	writer     SnapshotWriter
	cfg        Config
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEnricher enables catalog enrichment.
func WithEnricher(e Enricher) Option {
	return func(p *Pipeline) {
		p.enricher = e
	}
}

// WithPrior sets where the previous snapshot is read from.
func WithPrior(r SnapshotReader) Option {
	return func(p *Pipeline) {
		p.reader = r
	}
}

// WithClock replaces the clock used for the generation time.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a Pipeline.
func New(n *rules.Normalizer, writer SnapshotWriter, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		normalizer: n,
		writer:     writer,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run builds the snapshot for h and writes it.
func (p *Pipeline) Run(ctx context.Context, h history.History) (leaderboard.Snapshot, error) {
	zlog.Info().Msgf("processing %d play events from %s (%s)", len(h.Events), h.Source, h.Shape)
	metrics.EventsProcessed.Set(float64(len(h.Events)))

	prior := p.readPrior(ctx)
	snap := p.Build(ctx, h.Events, prior)

	if p.writer == nil {
		return snap, nil
	}
	start := time.Now()
	if err := p.writer.Write(ctx, snap); err != nil {
		return snap, errors.Wrap(err, "failed to write snapshot")
	}
	metrics.ObserveStage(StageWrite, start)

	metrics.EntitiesWritten.WithLabelValues("songs").Set(float64(len(snap.Songs)))
	metrics.EntitiesWritten.WithLabelValues("albums").Set(float64(len(snap.Albums)))
	metrics.EntitiesWritten.WithLabelValues("artists").Set(float64(len(snap.Artists)))
	metrics.EntitiesWritten.WithLabelValues("albums_with_songs").Set(float64(len(snap.AlbumsWithSongs)))
	return snap, nil
}

// readPrior returns the previous snapshot, or an empty one when it is missing
// or unreadable.
func (p *Pipeline) readPrior(ctx context.Context) leaderboard.Snapshot {
	if p.reader == nil {
		return leaderboard.Snapshot{}
	}
	prior, err := p.reader.Read(ctx)
	if err != nil {
		zlog.Warn().Err(err).Msg("previous snapshot unreadable, images will not be carried forward")
		return leaderboard.Snapshot{}
	}
	return prior
}

// Build runs the stages in order over events. Each stage reads the complete
// output of the one before it.
func (p *Pipeline) Build(ctx context.Context, events []history.Event, prior leaderboard.Snapshot) leaderboard.Snapshot {
	start := time.Now()
	summaries := aggregate.Aggregate(events)
	metrics.ObserveStage(StageAggregate, start)
	zlog.Debug().Msgf("aggregated %d events into %d tracks", len(events), len(summaries))

	start = time.Now()
	snap := p.consolidate(summaries)
	metrics.ObserveStage(StageConsolidate, start)
	zlog.Info().Msgf("consolidated %d tracks into %d songs, %d albums, %d artists",
		len(summaries), len(snap.Songs), len(snap.Albums), len(snap.Artists))

	if p.enricher != nil {
		start = time.Now()
		snap = p.enricher.Enrich(ctx, snap, prior)
		metrics.ObserveStage(StageEnrich, start)
	}

	start = time.Now()
	snap.Stats = stats.Compute(events, p.cfg.Stats)
	metrics.ObserveStage(StageStats, start)

	assignRanks(&snap)
	snap.GeneratedAt = p.now().UTC()
	return snap
}

// consolidate merges every collection and truncates it to its limit.
func (p *Pipeline) consolidate(summaries []aggregate.TrackSummary) leaderboard.Snapshot {
	limits := p.cfg.Limits
	return leaderboard.Snapshot{
		Songs: leaderboard.Truncate(
			consolidate.Songs(p.normalizer, consolidate.SongRecords(summaries)), limits.Songs),
		Albums: leaderboard.Truncate(
			consolidate.Albums(p.normalizer, consolidate.AlbumRecords(summaries)), limits.Albums),
		Artists: leaderboard.Truncate(
			consolidate.Artists(p.normalizer, consolidate.ArtistRecords(summaries)), limits.Artists),
		AlbumsWithSongs: leaderboard.Truncate(
			consolidate.AlbumsWithSongs(p.normalizer, consolidate.AlbumWithSongsRecords(summaries)), limits.AlbumsWithSongs),
	}
}

func assignRanks(snap *leaderboard.Snapshot) {
	leaderboard.AssignRanks(snap.Songs, func(s *leaderboard.Song, r int) { s.Rank = r })
	leaderboard.AssignRanks(snap.Albums, func(a *leaderboard.Album, r int) { a.Rank = r })
	leaderboard.AssignRanks(snap.Artists, func(a *leaderboard.Artist, r int) { a.Rank = r })
	leaderboard.AssignRanks(snap.AlbumsWithSongs, func(a *leaderboard.AlbumWithSongs, r int) { a.Rank = r })
}
