package tasks

import (
	"fmt"

	"github.com/desertthunder/relsort/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Phase is a state of a sort. A single sort moves forward through
// Fetching, Ordering, Reconciling, Summarizing and Done, and may end in Failed from any of them.
type Phase int

const (
	Pending Phase = iota
	Fetching
	Ordering
	Reconciling
	Summarizing
	Done
	Failed
	BulkSorting
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Fetching:
		return "fetching"
	case Ordering:
		return "ordering"
	case Reconciling:
		return "reconciling"
	case Summarizing:
		return "summarizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case BulkSorting:
		return "bulk_sorting"
	default:
		return ""
	}
}

// Terminal reports whether no further transition may follow p.
func (p Phase) Terminal() bool {
	return p == Done || p == Failed
}

func fetchingUpdate(playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fetching,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s from Spotify...", playlistID),
	}
}

func fetchedUpdate(pl *models.Playlist, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fetching,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", pl.Name, count),
		Data:    pl,
	}
}

func orderingUpdate(direction models.Direction, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Ordering,
		Step:    0,
		Total:   count,
		Message: fmt.Sprintf("Ordering %d tracks %s...", count, direction.Label()),
	}
}

func reconcilingUpdate(applied, total int) ProgressUpdate {
	msg := "Writing new order to Spotify..."
	if applied > 0 {
		msg = fmt.Sprintf("[%d/%d] Batch written", applied, total)
	}
	return ProgressUpdate{
		Phase:   Reconciling,
		Step:    applied,
		Total:   total,
		Message: msg,
	}
}

func summarizingUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   Summarizing,
		Step:    1,
		Total:   1,
		Message: "Summarizing result...",
	}
}

func doneUpdate(result *models.SortResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Sorted %s (%d tracks)", result.PlaylistName, result.TracksProcessed),
		Data:    result,
	}
}

func failedUpdate(from Phase, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Message: fmt.Sprintf("Failed while %s: %v", from, err),
		Data:    err,
	}
}

func bulkStartUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BulkSorting,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Sorting %d playlists...", total),
	}
}

func bulkCompletedUpdate(step, total int, res PlaylistSortResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BulkSorting,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, res.PlaylistName, res.Result.TracksProcessed),
		Data:    res,
	}
}

func bulkFailedUpdate(step, total int, res PlaylistSortResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BulkSorting,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.PlaylistName, res.Error),
		Data:    res,
	}
}
