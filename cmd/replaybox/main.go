// Package main provides the replaybox pipeline entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/replaybox/internal/app/enrich"
	"github.com/osa030/replaybox/internal/app/pipeline"
	"github.com/osa030/replaybox/internal/app/rules"
	"github.com/osa030/replaybox/internal/app/stats"
	"github.com/osa030/replaybox/internal/domain/history"
	"github.com/osa030/replaybox/internal/infra/config"
	"github.com/osa030/replaybox/internal/infra/historyfile"
	"github.com/osa030/replaybox/internal/infra/lastfm"
	"github.com/osa030/replaybox/internal/infra/logger"
	"github.com/osa030/replaybox/internal/infra/metrics"
	"github.com/osa030/replaybox/internal/infra/snapshot"
	"github.com/osa030/replaybox/internal/infra/spotify"
)

var (
	app        = kingpin.New("replaybox", "Listening history consolidation and enrichment")
	configPath = app.Flag("config", "Path to config file").Default("config/replaybox.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	logJSON    = app.Flag("log-json", "Write JSON log lines to stdout instead of console output").Envar("REPLAYBOX_LOG_JSON").Bool()

	runCmd      = app.Command("run", "Build and write the leaderboard snapshot (default)").Default()
	historyFile = runCmd.Flag("history", "History file to process instead of the newest one").String()
	outputDir   = runCmd.Flag("output", "Output directory override").String()
	noEnrich    = runCmd.Flag("no-enrich", "Skip catalog enrichment").Bool()

	checkRulesCmd = app.Command("check-rules", "Validate the consolidation rule file and list its aliases")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info", JSON: *logJSON}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath, true)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	switch command {
	case checkRulesCmd.FullCommand():
		err = checkRules(cfg)
	default:
		err = run(cfg)
	}
	if err != nil {
		zlog.Error().Msgf("replaybox: %v", err)
		closer.Close()
		os.Exit(1)
	}
}

// run executes one pipeline pass. Using a separate function ensures defer
// statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}

	h, err := loadHistory(cfg)
	if err != nil {
		return err
	}

	table, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		return errors.Wrap(err, "failed to load consolidation rules")
	}
	normalizer := rules.NewNormalizer(table, rules.WithVersionStripping(cfg.Consolidation.StripVersionSuffixes))

	loc, err := cfg.StatsLocation()
	if err != nil {
		return err
	}

	store := snapshot.New(cfg.Output.Dir, !cfg.Output.Compact)
	opts := []pipeline.Option{pipeline.WithPrior(store)}
	if enricher := newEnricher(cfg, normalizer); enricher != nil {
		opts = append(opts, pipeline.WithEnricher(enricher))
	}

	p := pipeline.New(normalizer, store, pipeline.Config{
		Limits: pipeline.Limits{
			Songs:           cfg.Leaderboard.Songs,
			Albums:          cfg.Leaderboard.Albums,
			Artists:         cfg.Leaderboard.Artists,
			AlbumsWithSongs: cfg.Leaderboard.AlbumsWithSongs,
		},
		Stats: stats.Options{Location: loc, TopN: cfg.Stats.TopN},
	}, opts...)

	if _, err := p.Run(ctx, h); err != nil {
		return err
	}

	if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		zlog.Warn().Msgf("Failed to export metrics: %v", err)
	}
	return nil
}

func loadHistory(cfg *config.Config) (history.History, error) {
	var err error
	path := *historyFile
	if path == "" {
		path = cfg.History.File
	}
	if path == "" {
		path, err = historyfile.Latest(cfg.History.Dir, cfg.History.Patterns)
		if err != nil {
			return history.History{}, err
		}
	}
	zlog.Info().Msgf("Reading listening history from %s", path)
	return historyfile.Load(path)
}

// newEnricher returns nil when enrichment is disabled or not configured.
func newEnricher(cfg *config.Config, n *rules.Normalizer) *enrich.Enricher {
	if *noEnrich || cfg.Enrichment.Disabled {
		zlog.Info().Msg("Catalog enrichment disabled")
		return nil
	}

	spotifyConfig := spotify.Config{
		ClientID:        cfg.Spotify.ClientID,
		ClientSecret:    cfg.Spotify.ClientSecret,
		RefreshToken:    cfg.Spotify.RefreshToken,
		Market:          cfg.Spotify.Market,
		BaseURL:         cfg.Spotify.BaseURL,
		TokenURL:        cfg.Spotify.TokenURL,
		Timeout:         cfg.Spotify.Timeout,
		BreakerFailures: cfg.Spotify.BreakerFailures,
		BreakerTimeout:  cfg.Spotify.BreakerTimeout,
	}
	tokens, err := spotify.NewTokenProvider(spotifyConfig)
	if err != nil {
		zlog.Warn().Msgf("Catalog enrichment skipped: %v", err)
		return nil
	}

	var opts []enrich.Option
	if cfg.LastFM.APIKey != "" {
		lfm, err := lastfm.New(lastfm.Config{
			APIKey:   cfg.LastFM.APIKey,
			BaseURL:  cfg.LastFM.BaseURL,
			Timeout:  cfg.LastFM.Timeout,
			MinCount: cfg.LastFM.MinCount,
		})
		if err != nil {
			zlog.Warn().Msgf("Genre fallback disabled: %v", err)
		} else {
			opts = append(opts, enrich.WithGenreSource(lfm))
		}
	}

	return enrich.New(tokens, spotify.New(spotifyConfig), n, enrich.Config{
		TrackBatchSize:  cfg.Enrichment.TrackBatchSize,
		AlbumBatchSize:  cfg.Enrichment.AlbumBatchSize,
		ArtistBatchSize: cfg.Enrichment.ArtistBatchSize,
		BatchDelay:      cfg.Enrichment.BatchInterval(),
		MaxAttempts:     cfg.Enrichment.MaxAttempts,
		BaseBackoff:     cfg.Enrichment.BaseBackoff,
		MaxBackoff:      cfg.Enrichment.MaxBackoff,
		GenreLimit:      cfg.Enrichment.GenreLimit,
		GenreDelay:      cfg.Enrichment.GenreInterval(),
	}, opts...)
}

// checkRules loads the rule file and prints every alias it defines.
func checkRules(cfg *config.Config) error {
	table, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		return err
	}
	if table.Len() == 0 {
		fmt.Printf("No consolidation rules in %s\n", cfg.Rules.Path)
		return nil
	}

	n := rules.NewNormalizer(table)
	fmt.Printf("%d rules in %s:\n", len(table.Rules()), cfg.Rules.Path)
	for _, r := range table.Rules() {
		fmt.Printf("\n  %s / %s\n", r.Artist, r.BaseAlbum)
		for _, v := range r.Variations {
			canonical, _ := n.CanonicalName(v, r.Artist)
			marker := ""
			if canonical != r.BaseAlbum {
				marker = fmt.Sprintf("  (overridden by a later rule: %s)", canonical)
			}
			fmt.Printf("    - %s%s\n", v, marker)
		}
	}
	return nil
}
