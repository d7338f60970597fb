package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func newRun(playlistID string, err error, applied, total int) *models.SortRun {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	run := models.NewSortRun(0, playlistID, models.Ascending, start)
	run.SetPlaylistName("Name " + playlistID)
	run.SetReleaseRange("1990", "2020")
	run.Complete(10, applied, total, err, start.Add(3*time.Second))
	return run
}

func TestSortRunRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSortRunRepository(db)
		run := newRun("pl1", nil, 1, 1)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create sort run: %v", err)
		}

		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSortRunRepository(db)
		run := newRun("pl1", &shared.PartialReconciliationError{Applied: 2, Total: 3, Err: shared.ErrForbidden}, 2, 3)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create sort run: %v", err)
		}

		retrieved, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get sort run: %v", err)
		}

		if retrieved.PlaylistID() != "pl1" || retrieved.PlaylistName() != "Name pl1" {
			t.Errorf("unexpected playlist %s %s", retrieved.PlaylistID(), retrieved.PlaylistName())
		}
		if retrieved.Status() != models.RunPartial {
			t.Errorf("expected status partial, got %s", retrieved.Status())
		}
		if retrieved.BatchesApplied() != 2 || retrieved.BatchesTotal() != 3 || retrieved.TracksProcessed() != 10 {
			t.Errorf("unexpected counts %d/%d tracks=%d", retrieved.BatchesApplied(), retrieved.BatchesTotal(), retrieved.TracksProcessed())
		}
		if retrieved.Error() != run.Error() || retrieved.Error() == "" {
			t.Errorf("expected error %q, got %q", run.Error(), retrieved.Error())
		}
		if retrieved.OldestRelease() != "1990" || retrieved.NewestRelease() != "2020" {
			t.Errorf("unexpected release range %s - %s", retrieved.OldestRelease(), retrieved.NewestRelease())
		}
		if retrieved.Duration() != 3*time.Second {
			t.Errorf("expected duration 3s, got %v", retrieved.Duration())
		}
	})

	t.Run("Get Not Found", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewSortRunRepository(db).Get("missing"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Create Invalid", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		run := models.NewSortRun(0, "", models.Ascending, time.Now())
		if err := NewSortRunRepository(db).Create(run); err == nil {
			t.Error("expected validation error for empty playlist ID")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSortRunRepository(db)
		run := newRun("pl1", nil, 1, 1)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create sort run: %v", err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete sort run: %v", err)
		}

		if _, err := repo.Get(run.ID()); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("deleted run should not be found, got %v", err)
		}
		if err := repo.Delete(run.ID()); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound deleting twice, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSortRunRepository(db)
		fixtures := []*models.SortRun{
			newRun("a", nil, 1, 1),
			newRun("b", errors.New("boom"), 0, 1),
			newRun("a", nil, 1, 1),
			newRun("c", nil, 1, 1),
		}
		for _, run := range fixtures {
			if err := repo.Create(run); err != nil {
				t.Fatalf("failed to create sort run: %v", err)
			}
		}
		if err := repo.Delete(fixtures[3].ID()); err != nil {
			t.Fatalf("failed to delete sort run: %v", err)
		}

		tests := []struct {
			name     string
			criteria map[string]any
			wantSeqs []int
		}{
			{"all newest first", map[string]any{}, []int{3, 2, 1}},
			{"nil criteria", nil, []int{3, 2, 1}},
			{"by playlist", map[string]any{"playlist_id": "a"}, []int{3, 1}},
			{"by status string", map[string]any{"status": "failed"}, []int{2}},
			{"by status", map[string]any{"status": models.RunDone}, []int{3, 1}},
			{"limit", map[string]any{"limit": 1}, []int{3}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				runs, err := repo.List(tt.criteria)
				if err != nil {
					t.Fatalf("failed to list sort runs: %v", err)
				}

				got := make([]int, len(runs))
				for i, run := range runs {
					got[i] = run.Sequence()
				}
				if fmt.Sprint(got) != fmt.Sprint(tt.wantSeqs) {
					t.Errorf("sequences = %v, want %v", got, tt.wantSeqs)
				}
			})
		}
	})
}

func TestWithSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	noop := func(*sql.Tx, int) error { return nil }

	t.Run("Increments", func(t *testing.T) {
		for want := 1; want <= 3; want++ {
			seq, err := withSequence(db, "sort_runs", noop)
			if err != nil {
				t.Fatalf("withSequence() error = %v", err)
			}
			if seq != want {
				t.Errorf("expected sequence %d, got %d", want, seq)
			}
		}
	})

	t.Run("Failed Insert Rolls Back", func(t *testing.T) {
		boom := errors.New("boom")
		if _, err := withSequence(db, "sort_runs", func(*sql.Tx, int) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected insert error, got %v", err)
		}

		seq, err := withSequence(db, "sort_runs", noop)
		if err != nil {
			t.Fatalf("withSequence() error = %v", err)
		}
		if seq != 4 {
			t.Errorf("expected sequence 4 after rollback, got %d", seq)
		}
	})

	t.Run("Missing Table", func(t *testing.T) {
		if _, err := withSequence(db, "missing", noop); err == nil {
			t.Error("expected error for table without a sequence")
		}
	})
}
