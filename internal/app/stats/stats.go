// Package stats builds yearly and hourly listening statistics from raw play events.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/osa030/replaybox/internal/app/rules"
	"github.com/osa030/replaybox/internal/domain/history"
	"github.com/osa030/replaybox/internal/domain/leaderboard"
	"github.com/osa030/replaybox/internal/domain/track"
)

// DefaultTopN is the length of each year's top songs and top artists lists.
const DefaultTopN = 5

// Options configures Compute.
type Options struct {
	// Location reinterprets timestamps. Nil keeps the zone each event was recorded in.
	Location *time.Location
	// TopN bounds the per-year leaderboards. Zero means DefaultTopN.
	TopN int
}

type songAcc struct {
	id      string
	name    string
	artist  string
	images  []track.Image
	plays   int
	totalMs int64
}

type artistAcc struct {
	name    string
	images  []track.Image
	plays   int
	totalMs int64
	songs   map[string]struct{}
}

type yearAcc struct {
	totalMs int64
	plays   int
	songs   map[string]*songAcc
	artists map[string]*artistAcc
}

// Compute folds events into yearly totals, per-year top songs and artists, and
// 24 hourly buckets. Undated events are counted in UndatedPlays only.
func Compute(events []history.Event, opts Options) leaderboard.Stats {
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	years := make(map[string]*yearAcc)
	var hours [24]leaderboard.HourBucket
	undated := 0

	for i := range events {
		e := &events[i]
		if !e.Dated() {
			undated++
			continue
		}
		at := e.PlayedAt
		if opts.Location != nil {
			at = at.In(opts.Location)
		}

		label := fmt.Sprintf("%04d", at.Year())
		y, ok := years[label]
		if !ok {
			y = &yearAcc{
				songs:   make(map[string]*songAcc),
				artists: make(map[string]*artistAcc),
			}
			years[label] = y
		}
		y.totalMs += e.MsPlayed
		y.plays++

		s, ok := y.songs[e.TrackID]
		if !ok {
			s = &songAcc{
				id:     e.TrackID,
				name:   e.Track.Name,
				artist: e.Track.PrimaryArtist(),
				images: e.Track.Album.Images,
			}
			y.songs[e.TrackID] = s
		}
		s.plays++
		s.totalMs += e.MsPlayed

		artistName := e.Track.PrimaryArtist()
		artistKey := rules.Fold(artistName)
		a, ok := y.artists[artistKey]
		if !ok {
			a = &artistAcc{name: artistName, songs: make(map[string]struct{})}
			y.artists[artistKey] = a
		}
		a.plays++
		a.totalMs += e.MsPlayed
		a.songs[e.TrackID] = struct{}{}
		if imgs := e.Track.Album.Images; track.MaxHeight(imgs) > track.MaxHeight(a.images) {
			a.images = imgs
		}

		h := &hours[at.Hour()]
		h.TotalMs += e.MsPlayed
		h.PlayCount++
	}

	labels := make([]string, 0, len(years))
	for label := range years {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := leaderboard.Stats{
		YearlyTotals:     make([]leaderboard.YearBucket, 0, len(labels)),
		YearlyTopSongs:   make([]leaderboard.YearTopSongs, 0, len(labels)),
		YearlyTopArtists: make([]leaderboard.YearTopArtists, 0, len(labels)),
		HourlyTotals:     make([]leaderboard.HourBucket, 0, len(hours)),
		UndatedPlays:     undated,
	}

	for _, label := range labels {
		y := years[label]
		out.YearlyTotals = append(out.YearlyTotals, leaderboard.YearBucket{
			Label:     label,
			TotalMs:   y.totalMs,
			PlayCount: y.plays,
		})
		out.YearlyTopSongs = append(out.YearlyTopSongs, leaderboard.YearTopSongs{
			Year:  label,
			Songs: topSongs(y.songs, topN),
		})
		out.YearlyTopArtists = append(out.YearlyTopArtists, leaderboard.YearTopArtists{
			Year:    label,
			Artists: topArtists(y.artists, topN),
		})
	}

	for hour := range hours {
		b := hours[hour]
		b.Hour = hour
		b.Label = fmt.Sprintf("%02d:00", hour)
		out.HourlyTotals = append(out.HourlyTotals, b)
	}

	return out
}

// ranksBefore orders by plays, then listening time, then name.
func ranksBefore(playsA, playsB int, msA, msB int64, nameA, nameB string) bool {
	if playsA != playsB {
		return playsA > playsB
	}
	if msA != msB {
		return msA > msB
	}
	return nameA < nameB
}

func topSongs(songs map[string]*songAcc, n int) []leaderboard.YearSong {
	list := make([]*songAcc, 0, len(songs))
	for _, s := range songs {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.plays == b.plays && a.totalMs == b.totalMs && a.name == b.name {
			return a.id < b.id
		}
		return ranksBefore(a.plays, b.plays, a.totalMs, b.totalMs, a.name, b.name)
	})
	if len(list) > n {
		list = list[:n]
	}

	out := make([]leaderboard.YearSong, 0, len(list))
	for _, s := range list {
		out = append(out, leaderboard.YearSong{
			ID:        s.id,
			Name:      s.name,
			Artist:    s.artist,
			Images:    s.images,
			PlayCount: s.plays,
			TotalMs:   s.totalMs,
		})
	}
	return out
}

func topArtists(artists map[string]*artistAcc, n int) []leaderboard.YearArtist {
	list := make([]*artistAcc, 0, len(artists))
	for _, a := range artists {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		return ranksBefore(a.plays, b.plays, a.totalMs, b.totalMs, a.name, b.name)
	})
	if len(list) > n {
		list = list[:n]
	}

	out := make([]leaderboard.YearArtist, 0, len(list))
	for _, a := range list {
		out = append(out, leaderboard.YearArtist{
			Name:        a.name,
			Images:      a.images,
			PlayCount:   a.plays,
			TotalMs:     a.totalMs,
			UniqueSongs: len(a.songs),
		})
	}
	return out
}
