package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/shared"
	"golang.org/x/time/rate"
)

// BulkSortOpts contains configuration for sorting several playlists.
type BulkSortOpts struct {
	NumWorkers int     // Concurrent workers (default: 3, max: 10)
	RateLimit  float64 // Sorts started per second (default: 5)
}

// PlaylistSortResult is the outcome for one playlist of a bulk sort.
type PlaylistSortResult struct {
	PlaylistID   string
	PlaylistName string
	Result       *models.SortResult // nil on failure
	Error        error
}

// Partial reports whether the playlist was left partially reordered.
func (r PlaylistSortResult) Partial() bool {
	return shared.IsPartial(r.Error)
}

// BulkSortResult summarizes a bulk sort. Results follow the order of the de-duplicated input.
type BulkSortResult struct {
	TotalPlaylists int
	Succeeded      int
	Failed         int
	Partial        int // Failures that left the playlist partially reordered, counted in Failed too
	Results        []PlaylistSortResult
}

type sortJob struct {
	index      int
	playlistID string
}

// distinct returns ids without blanks and repeats, keeping first occurrences.
func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// BulkSort sorts multiple playlists concurrently with rate limiting and progress tracking.
//
// Each distinct playlist is sorted by exactly one worker, so no two reconciliations ever target the
// same playlist. Individual failures are reported per playlist and do not stop the others.
func (e *SortEngine) BulkSort(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	ids []string,
	direction models.Direction,
	opts BulkSortOpts,
) (*BulkSortResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	ids = distinct(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one playlist ID", shared.ErrMissingArgument)
	}
	if !direction.Valid() {
		return nil, fmt.Errorf("%w: unknown sort direction %q", shared.ErrInvalidArgument, direction)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	result := &BulkSortResult{
		TotalPlaylists: len(ids),
		Results:        make([]PlaylistSortResult, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan sortJob, len(ids))
	results := make(chan indexedResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.sortWorker(ctx, &wg, jobs, results, direction)
	}

	e.sendProgress(prog, bulkStartUpdate(len(ids)))
	go func() {
		defer close(jobs)
		for i, playlistID := range ids {
			if err := limiter.Wait(ctx); err != nil {
				for j := i; j < len(ids); j++ {
					results <- indexedResult{j, PlaylistSortResult{PlaylistID: ids[j], PlaylistName: ids[j], Error: ctx.Err()}}
				}
				return
			}
			jobs <- sortJob{index: i, playlistID: playlistID}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results[res.index] = res.result

		if res.result.Error == nil {
			result.Succeeded++
			e.sendProgress(prog, bulkCompletedUpdate(completed, len(ids), res.result))
			continue
		}

		result.Failed++
		if res.result.Partial() {
			result.Partial++
		}
		e.sendProgress(prog, bulkFailedUpdate(completed, len(ids), res.result))
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

type indexedResult struct {
	index  int
	result PlaylistSortResult
}

// sortWorker sorts playlists from the jobs channel until it is closed.
func (e *SortEngine) sortWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan sortJob,
	results chan<- indexedResult,
	direction models.Direction,
) {
	defer wg.Done()

	for job := range jobs {
		res := PlaylistSortResult{PlaylistID: job.playlistID, PlaylistName: job.playlistID}

		if err := ctx.Err(); err != nil {
			res.Error = err
			results <- indexedResult{job.index, res}
			continue
		}

		sorted, err := e.Sort(ctx, nil, job.playlistID, direction)
		res.Result, res.Error = sorted, err
		if sorted != nil {
			res.PlaylistName = sorted.PlaylistName
		}
		if errors.Is(err, context.Canceled) {
			e.logger.Warn("sort cancelled", "playlist", job.playlistID)
		}
		results <- indexedResult{job.index, res}
	}
}
