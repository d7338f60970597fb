package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/shared"
	tu "github.com/desertthunder/relsort/internal/testing"
)

func quiet() Option { return WithLogger(log.New(io.Discard)) }

// manyTracks builds n tracks released one year apart, newest first.
func manyTracks(prefix string, n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = tu.Track(fmt.Sprintf("%s%03d", prefix, i), fmt.Sprintf("%d", 2020-i), models.PrecisionYear)
	}
	return tracks
}

// phases drains progress and returns the distinct phases in arrival order.
func phases(progress chan ProgressUpdate) []Phase {
	close(progress)
	var out []Phase
	for u := range progress {
		if len(out) == 0 || out[len(out)-1] != u.Phase {
			out = append(out, u.Phase)
		}
	}
	return out
}

// expiringCatalog reports an expired token on the first n reads.
type expiringCatalog struct {
	*tu.FakeCatalog
	mu      sync.Mutex
	expired int
}

func (c *expiringCatalog) PlaylistMeta(ctx context.Context, playlistID string) (*models.Playlist, error) {
	c.mu.Lock()
	if c.expired > 0 {
		c.expired--
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: 401", shared.ErrTokenExpired)
	}
	c.mu.Unlock()
	return c.FakeCatalog.PlaylistMeta(ctx, playlistID)
}

func TestSort(t *testing.T) {
	ctx := context.Background()

	t.Run("example playlist ascending", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{
			"pl": {
				tu.Track("a", "2020", models.PrecisionYear),
				tu.Track("b", "1999-03", models.PrecisionMonth),
				tu.Track("c", "", ""),
			},
		})
		runs := &tu.RecordingRuns{}
		progress := make(chan ProgressUpdate, 64)

		result, err := NewSortEngine(catalog, nil, quiet(), WithRunRecorder(runs)).Sort(ctx, progress, "pl", models.Ascending)
		if err != nil {
			t.Fatalf("Sort() error = %v", err)
		}

		if got, want := catalog.Contents("pl"), []string{"spotify:track:b", "spotify:track:a", "spotify:track:c"}; !slices.Equal(got, want) {
			t.Errorf("remote order = %v, want %v", got, want)
		}

		var dates []string
		for _, tr := range result.Tracks {
			dates = append(dates, tr.ReleaseDate)
		}
		if want := []string{"March 1999", "2020", "Unknown"}; !slices.Equal(dates, want) {
			t.Errorf("dates = %v, want %v", dates, want)
		}

		if result.PlaylistName != "Playlist pl" || result.TracksProcessed != 3 || result.BatchesApplied != 1 {
			t.Errorf("unexpected result %+v", result)
		}
		if result.Oldest.Name != "Track b" || result.Newest.Name != "Track c" {
			t.Errorf("oldest=%s newest=%s", result.Oldest.Name, result.Newest.Name)
		}

		if got, want := phases(progress), []Phase{Fetching, Ordering, Reconciling, Summarizing, Done}; !slices.Equal(got, want) {
			t.Errorf("phases = %v, want %v", got, want)
		}

		if len(runs.Runs) != 1 {
			t.Fatalf("expected 1 recorded run, got %d", len(runs.Runs))
		}
		run := runs.Runs[0]
		if run.Status() != models.RunDone || run.TracksProcessed() != 3 || run.PlaylistName() != "Playlist pl" {
			t.Errorf("unexpected run status=%s tracks=%d name=%s", run.Status(), run.TracksProcessed(), run.PlaylistName())
		}
		if run.OldestRelease() != "March 1999" || run.NewestRelease() != "Unknown" {
			t.Errorf("unexpected release range %s - %s", run.OldestRelease(), run.NewestRelease())
		}
	})

	t.Run("descending swaps oldest and newest", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{
			"pl": {
				tu.Track("a", "2020", models.PrecisionYear),
				tu.Track("b", "1999-03", models.PrecisionMonth),
				tu.Track("d", "2005-06-01", models.PrecisionDay),
			},
		})

		runs := &tu.RecordingRuns{}
		result, err := NewSortEngine(catalog, nil, quiet(), WithRunRecorder(runs)).Sort(ctx, nil, "pl", models.Descending)
		if err != nil {
			t.Fatalf("Sort() error = %v", err)
		}

		if got, want := catalog.Contents("pl"), []string{"spotify:track:a", "spotify:track:d", "spotify:track:b"}; !slices.Equal(got, want) {
			t.Errorf("remote order = %v, want %v", got, want)
		}
		if result.Oldest.Name != "Track a" || result.Newest.Name != "Track b" {
			t.Errorf("oldest=%s newest=%s, want the ends of the descending order", result.Oldest.Name, result.Newest.Name)
		}
		if result.Oldest.ReleaseDate != "2020" || result.Newest.ReleaseDate != "March 1999" || result.Direction != models.Descending {
			t.Errorf("unexpected result %+v", result)
		}

		oldest, newest := result.Chronological()
		if oldest.Name != "Track b" || newest.Name != "Track a" {
			t.Errorf("chronological oldest=%s newest=%s", oldest.Name, newest.Name)
		}
		if run := runs.Runs[0]; run.OldestRelease() != "March 1999" || run.NewestRelease() != "2020" {
			t.Errorf("recorded range %s - %s", run.OldestRelease(), run.NewestRelease())
		}
	})

	t.Run("batches large playlists", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": manyTracks("t", 250)})

		result, err := NewSortEngine(catalog, nil, quiet()).Sort(ctx, nil, "pl", models.Ascending)
		if err != nil {
			t.Fatalf("Sort() error = %v", err)
		}

		var sizes []int
		var ops []string
		for _, c := range catalog.Calls {
			ops = append(ops, c.Op)
			sizes = append(sizes, len(c.IDs))
		}
		if !slices.Equal(ops, []string{"replace", "append", "append"}) || !slices.Equal(sizes, []int{100, 100, 50}) {
			t.Errorf("calls = %v %v", ops, sizes)
		}
		if result.BatchesApplied != 3 {
			t.Errorf("BatchesApplied = %d", result.BatchesApplied)
		}
		if got := catalog.Contents("pl"); got[0] != "spotify:track:t249" || got[249] != "spotify:track:t000" {
			t.Errorf("unexpected remote ends %s ... %s", got[0], got[249])
		}
	})

	t.Run("custom batch size", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": manyTracks("t", 5)})

		result, err := NewSortEngine(catalog, nil, quiet(), WithBatchSize(2)).Sort(ctx, nil, "pl", models.Ascending)
		if err != nil {
			t.Fatalf("Sort() error = %v", err)
		}
		if catalog.Writes() != 3 || result.BatchesApplied != 3 {
			t.Errorf("writes=%d applied=%d, want 3", catalog.Writes(), result.BatchesApplied)
		}
	})

	t.Run("empty playlist makes no writes", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": {}})
		catalog.SetContents("pl", []string{"spotify:track:keep"})
		runs := &tu.RecordingRuns{}
		progress := make(chan ProgressUpdate, 64)

		_, err := NewSortEngine(catalog, nil, quiet(), WithRunRecorder(runs)).Sort(ctx, progress, "pl", models.Ascending)
		if !errors.Is(err, shared.ErrEmptyPlaylist) {
			t.Fatalf("expected ErrEmptyPlaylist, got %v", err)
		}
		if catalog.Writes() != 0 {
			t.Errorf("expected no writes, got %d", catalog.Writes())
		}
		if got := catalog.Contents("pl"); !slices.Equal(got, []string{"spotify:track:keep"}) {
			t.Errorf("remote changed: %v", got)
		}
		if got, want := phases(progress), []Phase{Fetching, Failed}; !slices.Equal(got, want) {
			t.Errorf("phases = %v, want %v", got, want)
		}
		if runs.Runs[0].Status() != models.RunFailed {
			t.Errorf("run status = %s, want failed", runs.Runs[0].Status())
		}
	})

	t.Run("fetch failure", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": manyTracks("t", 3)})
		catalog.TracksErr = fmt.Errorf("%w: 503", shared.ErrUpstreamUnavailable)

		_, err := NewSortEngine(catalog, nil, quiet()).Sort(ctx, nil, "pl", models.Ascending)
		if !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
		}
		if catalog.Writes() != 0 {
			t.Errorf("expected no writes, got %d", catalog.Writes())
		}
	})

	t.Run("partial write-back is reported", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": manyTracks("t", 250)})
		catalog.Failures = map[int]error{2: fmt.Errorf("%w: 502", shared.ErrUpstreamUnavailable)}
		runs := &tu.RecordingRuns{}
		progress := make(chan ProgressUpdate, 64)

		result, err := NewSortEngine(catalog, nil, quiet(), WithRunRecorder(runs)).Sort(ctx, progress, "pl", models.Ascending)
		if result != nil {
			t.Error("expected no result on failure")
		}

		var pe *shared.PartialReconciliationError
		if !errors.As(err, &pe) || pe.Applied != 2 || pe.Total != 3 {
			t.Fatalf("expected partial 2 of 3, got %v", err)
		}
		if got, want := phases(progress), []Phase{Fetching, Ordering, Reconciling, Failed}; !slices.Equal(got, want) {
			t.Errorf("phases = %v, want %v", got, want)
		}

		run := runs.Runs[0]
		if run.Status() != models.RunPartial || run.BatchesApplied() != 2 || run.BatchesTotal() != 3 || run.Error() == "" {
			t.Errorf("unexpected run status=%s applied=%d/%d err=%q", run.Status(), run.BatchesApplied(), run.BatchesTotal(), run.Error())
		}
	})

	t.Run("expired token on read is refreshed once", func(t *testing.T) {
		catalog := &expiringCatalog{
			FakeCatalog: tu.NewFakeCatalog(map[string][]models.Track{"pl": manyTracks("t", 3)}),
			expired:     1,
		}
		creds := &tu.FakeCredentials{Valid: true}

		if _, err := NewSortEngine(catalog, creds, quiet()).Sort(ctx, nil, "pl", models.Ascending); err != nil {
			t.Fatalf("Sort() error = %v", err)
		}
		if creds.Refreshes != 1 {
			t.Errorf("refreshes = %d, want 1", creds.Refreshes)
		}
	})

	t.Run("expired credential is refreshed before fetching", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": manyTracks("t", 3)})
		creds := &tu.FakeCredentials{Valid: false}

		if _, err := NewSortEngine(catalog, creds, quiet()).Sort(ctx, nil, "pl", models.Ascending); err != nil {
			t.Fatalf("Sort() error = %v", err)
		}
		if creds.Refreshes != 1 {
			t.Errorf("refreshes = %d, want 1", creds.Refreshes)
		}
	})

	t.Run("failed refresh before fetching", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": manyTracks("t", 3)})
		creds := &tu.FakeCredentials{Valid: false, RefreshErr: shared.ErrNoRefreshToken}

		_, err := NewSortEngine(catalog, creds, quiet()).Sort(ctx, nil, "pl", models.Ascending)
		if !errors.Is(err, shared.ErrTokenExpired) || !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Fatalf("expected expired token error, got %v", err)
		}
		if catalog.TrackReads() != 0 {
			t.Error("tracks should not be read without a valid credential")
		}
	})

	t.Run("recording failure does not fail the sort", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": manyTracks("t", 3)})
		runs := &tu.RecordingRuns{Err: errors.New("database is locked")}

		if _, err := NewSortEngine(catalog, nil, quiet(), WithRunRecorder(runs)).Sort(ctx, nil, "pl", models.Ascending); err != nil {
			t.Fatalf("Sort() error = %v", err)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": manyTracks("t", 3)})
		engine := NewSortEngine(catalog, nil, quiet())

		if _, err := engine.Sort(ctx, nil, "", models.Ascending); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := engine.Sort(ctx, nil, "pl", models.Direction("sideways")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := NewSortEngine(nil, nil, quiet()).Sort(ctx, nil, "pl", models.Ascending); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if _, err := NewSortEngine(catalog, nil, quiet(), WithBatchSize(0)).Sort(ctx, nil, "pl", models.Ascending); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for batch size 0, got %v", err)
		}
		if catalog.Writes() != 0 {
			t.Errorf("expected no writes, got %d", catalog.Writes())
		}
	})

	t.Run("full progress channel does not block", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": manyTracks("t", 250)})
		progress := make(chan ProgressUpdate)

		if _, err := NewSortEngine(catalog, nil, quiet()).Sort(ctx, progress, "pl", models.Ascending); err != nil {
			t.Fatalf("Sort() error = %v", err)
		}
	})
}

func TestSortState(t *testing.T) {
	e := NewSortEngine(nil, nil, quiet())

	t.Run("moves forward only", func(t *testing.T) {
		s := e.newState(nil)
		for _, p := range []Phase{Fetching, Ordering, Reconciling} {
			if err := s.enter(p, ProgressUpdate{}); err != nil {
				t.Fatalf("enter(%s) error = %v", p, err)
			}
		}
		if err := s.enter(Ordering, ProgressUpdate{}); !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition re-entering ordering, got %v", err)
		}
		if err := s.enter(Reconciling, ProgressUpdate{}); !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition re-entering reconciling, got %v", err)
		}
	})

	t.Run("failed is terminal", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 8)
		s := e.newState(progress)
		_ = s.enter(Fetching, ProgressUpdate{Phase: Fetching})

		cause := errors.New("boom")
		if err := s.fail(cause); err != cause {
			t.Errorf("fail() = %v, want cause", err)
		}
		if err := s.enter(Ordering, ProgressUpdate{}); !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition after failure, got %v", err)
		}
		_ = s.fail(cause)

		if got, want := phases(progress), []Phase{Fetching, Failed}; !slices.Equal(got, want) {
			t.Errorf("phases = %v, want %v", got, want)
		}
	})

	t.Run("failed is not entered directly", func(t *testing.T) {
		s := e.newState(nil)
		if err := s.enter(Failed, ProgressUpdate{}); !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("phase names", func(t *testing.T) {
		names := map[Phase]string{Fetching: "fetching", Reconciling: "reconciling", Done: "done", Failed: "failed"}
		for p, want := range names {
			if p.String() != want {
				t.Errorf("%d.String() = %s, want %s", p, p.String(), want)
			}
		}
		if !Done.Terminal() || !Failed.Terminal() || Summarizing.Terminal() {
			t.Error("unexpected Terminal()")
		}
	})
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()

	t.Run("summarizes without writing", func(t *testing.T) {
		var tracks []models.Track
		for i, year := range []int{1990, 1995, 2001, 2020} {
			tracks = append(tracks, tu.Track(fmt.Sprintf("t%d", i), fmt.Sprintf("%d", year), models.PrecisionYear))
		}
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": tracks})

		stats, err := NewSortEngine(catalog, nil, quiet()).Statistics(ctx, "pl")
		if err != nil {
			t.Fatalf("Statistics() error = %v", err)
		}
		if stats.PlaylistName != "Playlist pl" || stats.TotalTracks != 4 || stats.DateRange.SpanYears != 30 {
			t.Errorf("unexpected stats %+v", stats)
		}
		if catalog.Writes() != 0 {
			t.Errorf("expected no writes, got %d", catalog.Writes())
		}
	})

	t.Run("empty playlist", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": nil})
		if _, err := NewSortEngine(catalog, nil, quiet()).Statistics(ctx, "pl"); !errors.Is(err, shared.ErrEmptyPlaylist) {
			t.Errorf("expected ErrEmptyPlaylist, got %v", err)
		}
	})

	t.Run("no valid dates", func(t *testing.T) {
		catalog := tu.NewFakeCatalog(map[string][]models.Track{"pl": {tu.Track("a", "", "")}})
		if _, err := NewSortEngine(catalog, nil, quiet()).Statistics(ctx, "pl"); !errors.Is(err, shared.ErrNoValidDates) {
			t.Errorf("expected ErrNoValidDates, got %v", err)
		}
	})
}
