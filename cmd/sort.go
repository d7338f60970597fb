package main

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/relsort/internal/formatter"
	"github.com/desertthunder/relsort/internal/services"
	"github.com/desertthunder/relsort/internal/shared"
	"github.com/desertthunder/relsort/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sort orders one playlist by release date, writes it back and prints the result.
func (r *Runner) Sort(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	if playlistID == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	direction, err := r.direction(cmd.Bool("desc"))
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	batchSize, err := batchSizeFlag(cmd)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := r.logProgress(progress)
	result, err := r.engineFor(batchSize).Sort(ctx, progress, playlistID, direction)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	data, err := formatter.SortResult(result, format)
	if err != nil {
		return err
	}
	return formatter.Write(r.output, cmd.String("output"), data)
}

// batchSizeFlag reads --batch-size. Zero means the flag was not given.
func batchSizeFlag(cmd *cli.Command) (int, error) {
	if !cmd.IsSet("batch-size") {
		return 0, nil
	}
	n := cmd.Int("batch-size")
	if n < 1 || n > services.MaxItemsPerRequest {
		return 0, fmt.Errorf("%w: --batch-size must be between 1 and %d, got %d",
			shared.ErrInvalidArgument, services.MaxItemsPerRequest, n)
	}
	return n, nil
}

// bulkEntry is one playlist of a bulk sort as printed by "sort many --json".
type bulkEntry struct {
	PlaylistID   string `json:"playlistId"`
	PlaylistName string `json:"playlistName,omitempty"`
	Status       string `json:"status"`
	Tracks       int    `json:"tracksProcessed,omitempty"`
	Error        string `json:"error,omitempty"`
}

func newBulkEntry(res tasks.PlaylistSortResult) bulkEntry {
	entry := bulkEntry{PlaylistID: res.PlaylistID, PlaylistName: res.PlaylistName, Status: "done"}
	switch {
	case res.Partial():
		entry.Status = "partial"
	case res.Error != nil:
		entry.Status = "failed"
	}
	if res.Error != nil {
		entry.Error = res.Error.Error()
	}
	if res.Result != nil {
		entry.Tracks = res.Result.TracksProcessed
	}
	return entry
}

// SortMany sorts every playlist given by --id or as an argument, several at a time.
func (r *Runner) SortMany(ctx context.Context, cmd *cli.Command) error {
	ids := slices.Concat(cmd.StringSlice("id"), cmd.Args().Slice())
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one playlist ID is required", shared.ErrMissingArgument)
	}

	direction, err := r.direction(cmd.Bool("desc"))
	if err != nil {
		return err
	}

	opts := tasks.BulkSortOpts{
		NumWorkers: cmp.Or(cmd.Int("workers"), r.config.Sort.Workers),
		RateLimit:  cmd.Float("rate-limit"),
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := r.logProgress(progress)
	result, err := r.engine.BulkSort(ctx, progress, ids, direction, opts)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	entries := make([]bulkEntry, len(result.Results))
	for i, res := range result.Results {
		entries[i] = newBulkEntry(res)
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(entries, true); err != nil {
			return err
		}
	} else {
		r.writePlainHeader(fmt.Sprintf("Sorted %d of %d playlists (%s)", result.Succeeded, result.TotalPlaylists, direction.Label()))
		for i, entry := range entries {
			name := cmp.Or(entry.PlaylistName, entry.PlaylistID)
			switch entry.Status {
			case "done":
				r.writePlain("✓ %s (%d tracks)\n", name, entry.Tracks)
			case "partial":
				r.writePlain("⚠ %s: %s\n", name, describeError(result.Results[i].Error))
			default:
				r.writePlain("✗ %s: %s\n", name, describeError(result.Results[i].Error))
			}
		}
	}

	if result.Failed > 0 {
		return fmt.Errorf("%d of %d playlists failed (%d partially reordered)", result.Failed, result.TotalPlaylists, result.Partial)
	}
	return nil
}

// Stats prints release date statistics for a playlist.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	if playlistID == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	format := formatter.JSON
	if !cmd.Bool("json") {
		var err error
		if format, err = formatter.ParseFormat(cmd.String("format")); err != nil {
			return err
		}
	}

	stats, err := r.engine.Statistics(ctx, playlistID)
	if err != nil {
		return err
	}

	data, err := formatter.Statistics(stats, format)
	if err != nil {
		return err
	}
	return formatter.Write(r.output, "", data)
}

// History lists recorded sort runs.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if r.history == nil {
		return fmt.Errorf("%w: run history is disabled (sort.record_history) or the database could not be opened", shared.ErrServiceUnavailable)
	}

	format := formatter.JSON
	if !cmd.Bool("json") {
		var err error
		if format, err = formatter.ParseFormat(cmd.String("format")); err != nil {
			return err
		}
	}

	criteria := map[string]any{}
	if id := cmd.String("playlist"); id != "" {
		criteria["playlist_id"] = id
	}
	if limit := cmd.Int("limit"); limit > 0 {
		criteria["limit"] = limit
	}

	runs, err := r.history.List(criteria)
	if err != nil {
		return err
	}

	data, err := formatter.History(runs, format)
	if err != nil {
		return err
	}
	return formatter.Write(r.output, "", data)
}
