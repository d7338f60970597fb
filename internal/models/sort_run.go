package models

import (
	"fmt"
	"time"
)

// RunStatus is the outcome of a recorded sort.
type RunStatus string

const (
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
	RunPartial RunStatus = "partial" // Some batches were written before the failure
)

// SortRun is a persisted record of one sort attempt against a playlist.
type SortRun struct {
	id              string
	sequence        int
	playlistID      string
	playlistName    string
	direction       Direction
	status          RunStatus
	tracksProcessed int
	batchesApplied  int
	batchesTotal    int
	oldestRelease   string
	newestRelease   string
	errMessage      string
	startedAt       time.Time
	finishedAt      time.Time
	createdAt       time.Time
	updatedAt       time.Time
	deletedAt       *time.Time
}

// NewSortRun creates a run for playlistID started at startedAt. The status defaults to [RunDone].
func NewSortRun(sequence int, playlistID string, direction Direction, startedAt time.Time) *SortRun {
	now := time.Now()
	return &SortRun{
		sequence:   sequence,
		playlistID: playlistID,
		direction:  direction,
		status:     RunDone,
		startedAt:  startedAt,
		finishedAt: startedAt,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (r *SortRun) ID() string { return r.id }
func (r *SortRun) Sequence() int { return r.sequence }
func (r *SortRun) PlaylistID() string { return r.playlistID }
func (r *SortRun) PlaylistName() string { return r.playlistName }
func (r *SortRun) Direction() Direction { return r.direction }
func (r *SortRun) Status() RunStatus { return r.status }
func (r *SortRun) TracksProcessed() int { return r.tracksProcessed }
func (r *SortRun) BatchesApplied() int { return r.batchesApplied }
func (r *SortRun) BatchesTotal() int { return r.batchesTotal }
func (r *SortRun) OldestRelease() string { return r.oldestRelease }
func (r *SortRun) NewestRelease() string { return r.newestRelease }
func (r *SortRun) Error() string { return r.errMessage }
func (r *SortRun) StartedAt() time.Time { return r.startedAt }
func (r *SortRun) FinishedAt() time.Time { return r.finishedAt }
func (r *SortRun) CreatedAt() time.Time { return r.createdAt }
func (r *SortRun) UpdatedAt() time.Time { return r.updatedAt }
func (r *SortRun) DeletedAt() *time.Time { return r.deletedAt }

// Duration is the wall time between start and finish.
func (r *SortRun) Duration() time.Duration { return r.finishedAt.Sub(r.startedAt) }

func (r *SortRun) SetID(id string) { r.id = id }
func (r *SortRun) SetSequence(seq int) { r.sequence = seq }
func (r *SortRun) SetPlaylistName(name string) { r.playlistName = name }
func (r *SortRun) SetCreatedAt(t time.Time) { r.createdAt = t }
func (r *SortRun) SetUpdatedAt(t time.Time) { r.updatedAt = t }
func (r *SortRun) SetDeletedAt(t *time.Time) { r.deletedAt = t }
func (r *SortRun) SetReleaseRange(oldest, newest string) {
	r.oldestRelease, r.newestRelease = oldest, newest
}

// Complete records the outcome of the run.
//
// A nil err is [RunDone]; otherwise the run is [RunPartial] when any batch was applied and [RunFailed] when none was.
func (r *SortRun) Complete(tracks, applied, total int, err error, finishedAt time.Time) {
	r.tracksProcessed = tracks
	r.batchesApplied = applied
	r.batchesTotal = total
	r.finishedAt = finishedAt
	r.updatedAt = finishedAt

	switch {
	case err == nil:
		r.status = RunDone
		r.errMessage = ""
	case applied > 0:
		r.status = RunPartial
		r.errMessage = err.Error()
	default:
		r.status = RunFailed
		r.errMessage = err.Error()
	}
}

// Restore sets the outcome fields read back from storage.
func (r *SortRun) Restore(status RunStatus, tracks, applied, total int, errMessage string, finishedAt time.Time) {
	r.status = status
	r.tracksProcessed = tracks
	r.batchesApplied = applied
	r.batchesTotal = total
	r.errMessage = errMessage
	r.finishedAt = finishedAt
}

// Validate checks the run before it is persisted.
func (r *SortRun) Validate() error {
	if r.playlistID == "" {
		return fmt.Errorf("playlist ID is required")
	}
	if r.direction != Ascending && r.direction != Descending {
		return fmt.Errorf("invalid direction: %q", r.direction)
	}
	switch r.status {
	case RunDone, RunFailed, RunPartial:
	default:
		return fmt.Errorf("invalid status: %q", r.status)
	}
	if r.batchesApplied < 0 || (r.batchesTotal > 0 && r.batchesApplied > r.batchesTotal) {
		return fmt.Errorf("batches applied (%d) out of range for %d batches", r.batchesApplied, r.batchesTotal)
	}
	if r.startedAt.IsZero() {
		return fmt.Errorf("start time is required")
	}
	return nil
}
