package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/shared"
)

const sortRunColumns = `id, sequence, playlist_id, playlist_name, direction, status, tracks_processed,
	batches_applied, batches_total, oldest_release, newest_release, error, started_at, finished_at,
	created_at, updated_at, deleted_at`

// SortRunRepository implements models.Repository[*models.SortRun] for sort history.
type SortRunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.SortRun] = (*SortRunRepository)(nil)

// NewSortRunRepository creates a new SortRunRepository with the given database connection
func NewSortRunRepository(db *sql.DB) *SortRunRepository {
	return &SortRunRepository{db: db}
}

// Create inserts a run with a generated ID and sequence
func (r *SortRunRepository) Create(run *models.SortRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	sequence, err := withSequence(r.db, "sort_runs", func(tx *sql.Tx, sequence int) error {
		_, err := tx.Exec(`
			INSERT INTO sort_runs (id, sequence, playlist_id, playlist_name, direction, status, tracks_processed,
				batches_applied, batches_total, oldest_release, newest_release, error, started_at, finished_at,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id,
			sequence,
			run.PlaylistID(),
			run.PlaylistName(),
			string(run.Direction()),
			string(run.Status()),
			run.TracksProcessed(),
			run.BatchesApplied(),
			run.BatchesTotal(),
			nullString(run.OldestRelease()),
			nullString(run.NewestRelease()),
			nullString(run.Error()),
			run.StartedAt(),
			run.FinishedAt(),
			run.CreatedAt(),
			run.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert sort run: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *SortRunRepository) Get(id string) (*models.SortRun, error) {
	query := `SELECT ` + sortRunColumns + ` FROM sort_runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanSortRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// Delete soft-deletes a run by ID
func (r *SortRunRepository) Delete(id string) error {
	query := `
		UPDATE sort_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete sort run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}

	return nil
}

// List retrieves runs matching criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "playlist_id" (string), "status" (string or [models.RunStatus]) and "limit" (int).
func (r *SortRunRepository) List(criteria map[string]any) ([]*models.SortRun, error) {
	query := `SELECT ` + sortRunColumns + ` FROM sort_runs WHERE deleted_at IS NULL`
	args := []any{}

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.RunStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sort runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SortRun
	for rows.Next() {
		run, err := scanSortRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// rowScanner is satisfied by [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSortRun(row rowScanner) (*models.SortRun, error) {
	var (
		id              string
		sequence        int
		playlistID      string
		playlistName    string
		direction       string
		status          string
		tracksProcessed int
		batchesApplied  int
		batchesTotal    int
		oldestRelease   sql.NullString
		newestRelease   sql.NullString
		errMessage      sql.NullString
		startedAt       time.Time
		finishedAt      time.Time
		createdAt       time.Time
		updatedAt       time.Time
		deletedAt       sql.NullTime
	)

	err := row.Scan(&id, &sequence, &playlistID, &playlistName, &direction, &status, &tracksProcessed,
		&batchesApplied, &batchesTotal, &oldestRelease, &newestRelease, &errMessage, &startedAt, &finishedAt,
		&createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sort run: %w", err)
	}

	run := models.NewSortRun(sequence, playlistID, models.Direction(direction), startedAt)
	run.SetID(id)
	run.SetPlaylistName(playlistName)
	run.SetReleaseRange(oldestRelease.String, newestRelease.String)
	run.Restore(models.RunStatus(status), tracksProcessed, batchesApplied, batchesTotal, errMessage.String, finishedAt)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
