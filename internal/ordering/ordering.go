// Package ordering sorts playlist tracks by album release date and summarizes their dates.
package ordering

import (
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/releasedate"
	"github.com/desertthunder/relsort/internal/shared"
)

// TopYearsLimit caps the year histogram.
const TopYearsLimit = 5

type keyed struct {
	track   models.Track
	instant time.Time
}

// OrderAscending returns tracks oldest first. Tracks with equal release instants keep their input order
// and undated tracks come last.
func OrderAscending(tracks []models.Track) (models.OrderedTrackList, error) {
	if len(tracks) == 0 {
		return nil, shared.ErrEmptyPlaylist
	}

	// Each date is resolved once rather than on every comparison.
	items := make([]keyed, len(tracks))
	for i, t := range tracks {
		instant, _ := releasedate.Of(t)
		items[i] = keyed{track: t, instant: instant}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		return a.instant.Compare(b.instant)
	})

	ordered := make(models.OrderedTrackList, len(items))
	for i, it := range items {
		ordered[i] = it.track
	}
	return ordered, nil
}

// OrderDescending returns the exact reverse of [OrderAscending], so undated tracks come first
// and equal dates appear in reverse input order.
func OrderDescending(tracks []models.Track) (models.OrderedTrackList, error) {
	ordered, err := OrderAscending(tracks)
	if err != nil {
		return nil, err
	}
	slices.Reverse(ordered)
	return ordered, nil
}

// Order dispatches on direction.
func Order(tracks []models.Track, direction models.Direction) (models.OrderedTrackList, error) {
	if direction == models.Descending {
		return OrderDescending(tracks)
	}
	return OrderAscending(tracks)
}

// ComputeStatistics summarizes the release dates of tracks.
//
// Undated and malformed dates count toward TotalTracks only. It returns [shared.ErrEmptyPlaylist]
// for no tracks and [shared.ErrNoValidDates] when none of them has a usable date.
func ComputeStatistics(tracks []models.Track) (*models.Statistics, error) {
	if len(tracks) == 0 {
		return nil, shared.ErrEmptyPlaylist
	}

	var dates []time.Time
	for _, t := range tracks {
		if instant, ok := releasedate.Of(t); ok {
			dates = append(dates, instant)
		}
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: %d tracks without a release date", shared.ErrNoValidDates, len(tracks))
	}

	oldest, newest := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(oldest) {
			oldest = d
		}
		if d.After(newest) {
			newest = d
		}
	}

	return &models.Statistics{
		TotalTracks:     len(tracks),
		TracksWithDates: len(dates),
		DateRange: models.DateRange{
			Oldest:    oldest.Format(time.DateOnly),
			Newest:    newest.Format(time.DateOnly),
			SpanYears: newest.Year() - oldest.Year(),
		},
		DecadeDistribution: decades(dates),
		TopYears:           topYears(dates, TopYearsLimit),
	}, nil
}

// decades buckets dates by floor(year/10)*10, ascending.
func decades(dates []time.Time) []models.DecadeCount {
	counts := make(map[int]int)
	for _, d := range dates {
		counts[d.Year()/10*10]++
	}

	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]models.DecadeCount, len(keys))
	for i, k := range keys {
		out[i] = models.DecadeCount{Decade: fmt.Sprintf("%ds", k), Count: counts[k]}
	}
	return out
}

// topYears returns the limit most common years by descending count. Equal counts keep the order
// in which the years were first seen.
func topYears(dates []time.Time, limit int) []models.YearCount {
	var years []models.YearCount
	index := make(map[int]int)
	for _, d := range dates {
		y := d.Year()
		if i, ok := index[y]; ok {
			years[i].Count++
			continue
		}
		index[y] = len(years)
		years = append(years, models.YearCount{Year: y, Count: 1})
	}

	slices.SortStableFunc(years, func(a, b models.YearCount) int {
		return b.Count - a.Count
	})

	if len(years) > limit {
		years = years[:limit]
	}
	return years
}
