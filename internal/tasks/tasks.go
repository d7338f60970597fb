package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/ordering"
	"github.com/desertthunder/relsort/internal/reconcile"
	"github.com/desertthunder/relsort/internal/releasedate"
	"github.com/desertthunder/relsort/internal/shared"
)

// CatalogSource reads playlists and rewrites their order.
type CatalogSource interface {
	reconcile.Collection

	// PlaylistMeta returns playlist metadata without tracks.
	PlaylistMeta(ctx context.Context, playlistID string) (*models.Playlist, error)
	// PlaylistTracks returns every track of the playlist in catalog order.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)
}

// RunRecorder persists the outcome of each sort (repositories.SortRunRepository).
type RunRecorder interface {
	Create(run *models.SortRun) error
}

// Sorter defines the sort operations exposed to the CLI and UI.
type Sorter interface {
	// Sort orders the playlist by release date and writes the new order back.
	Sort(ctx context.Context, progress chan<- ProgressUpdate, playlistID string, direction models.Direction) (*models.SortResult, error)

	// Statistics summarizes the release dates of a playlist without modifying it.
	Statistics(ctx context.Context, playlistID string) (*models.Statistics, error)
}

// SortEngine implements [Sorter].
type SortEngine struct {
	catalog     CatalogSource
	credentials reconcile.CredentialProvider
	runs        RunRecorder
	batchSize   int
	logger      *log.Logger
}

// Option configures a [SortEngine].
type Option func(*SortEngine)

// WithBatchSize sets the reconciliation batch size. Defaults to [reconcile.DefaultBatchSize].
func WithBatchSize(n int) Option { return func(e *SortEngine) { e.batchSize = n } }

// WithRunRecorder records every sort attempt to r.
func WithRunRecorder(r RunRecorder) Option { return func(e *SortEngine) { e.runs = r } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(e *SortEngine) { e.logger = l } }

// NewSortEngine creates a SortEngine. credentials may be nil when the catalog needs no refresh.
func NewSortEngine(catalog CatalogSource, credentials reconcile.CredentialProvider, opts ...Option) *SortEngine {
	e := &SortEngine{
		catalog:     catalog,
		credentials: credentials,
		batchSize:   reconcile.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = shared.NewLogger(nil)
	}
	return e
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *SortEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// sortState tracks the phase of a single sort.
type sortState struct {
	phase    Phase
	progress chan<- ProgressUpdate
	engine   *SortEngine
}

func (e *SortEngine) newState(progress chan<- ProgressUpdate) *sortState {
	return &sortState{phase: Pending, progress: progress, engine: e}
}

// enter moves to next and emits update. Only forward moves between non-terminal phases are allowed.
func (s *sortState) enter(next Phase, update ProgressUpdate) error {
	if s.phase.Terminal() || next <= s.phase || next > Done {
		return fmt.Errorf("%w: %s to %s", shared.ErrInvalidTransition, s.phase, next)
	}
	s.phase = next
	s.engine.sendProgress(s.progress, update)
	return nil
}

// fail moves to Failed and returns err.
func (s *sortState) fail(err error) error {
	if s.phase.Terminal() {
		return err
	}
	from := s.phase
	s.phase = Failed
	s.engine.sendProgress(s.progress, failedUpdate(from, err))
	return err
}

// ensureCredentials refreshes an already expired credential before the first request.
func (e *SortEngine) ensureCredentials(ctx context.Context) error {
	if e.credentials == nil || e.credentials.IsValid() {
		return nil
	}
	if err := e.credentials.Refresh(ctx); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrTokenExpired, err)
	}
	return nil
}

func (e *SortEngine) fetch(ctx context.Context, playlistID string) (*models.Playlist, []models.Track, error) {
	if err := e.ensureCredentials(ctx); err != nil {
		return nil, nil, err
	}

	var meta *models.Playlist
	err := reconcile.RetryExpired(ctx, e.credentials, func() (err error) {
		meta, err = e.catalog.PlaylistMeta(ctx, playlistID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var tracks []models.Track
	err = reconcile.RetryExpired(ctx, e.credentials, func() (err error) {
		tracks, err = e.catalog.PlaylistTracks(ctx, playlistID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return meta, tracks, nil
}

// Sort runs Fetching, Ordering, Reconciling and Summarizing in turn.
//
// An empty playlist fails before any write. A write-back failure after the first batch is returned as a
// [*shared.PartialReconciliationError]; the playlist then holds a prefix of the new order.
func (e *SortEngine) Sort(ctx context.Context, progress chan<- ProgressUpdate, playlistID string, direction models.Direction) (*models.SortResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist ID", shared.ErrMissingArgument)
	}
	if !direction.Valid() {
		return nil, fmt.Errorf("%w: unknown sort direction %q", shared.ErrInvalidArgument, direction)
	}

	logger := shared.WithLogger(e.logger, "playlist", playlistID, "direction", direction)
	run := models.NewSortRun(0, playlistID, direction, time.Now())
	state := e.newState(progress)

	var out outcome
	result, err := e.sort(ctx, state, run, &out, playlistID, direction)
	run.Complete(out.tracks, out.applied, out.total, err, time.Now())
	e.record(logger, run)

	if err != nil {
		logger.Error("sort failed", "status", run.Status(), "applied", out.applied, "total", out.total, "error", err)
		return nil, state.fail(err)
	}

	logger.Info("sort complete", "tracks", out.tracks, "batches", out.applied, "duration", run.Duration())
	return result, nil
}

// outcome counts what a sort got through, for the run record.
type outcome struct {
	tracks  int
	applied int
	total   int
}

func (e *SortEngine) sort(ctx context.Context, state *sortState, run *models.SortRun, out *outcome, playlistID string, direction models.Direction) (*models.SortResult, error) {
	if err := state.enter(Fetching, fetchingUpdate(playlistID)); err != nil {
		return nil, err
	}

	meta, tracks, err := e.fetch(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	run.SetPlaylistName(meta.Name)
	out.tracks = len(tracks)
	e.sendProgress(state.progress, fetchedUpdate(meta, len(tracks)))

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrEmptyPlaylist, meta.Name)
	}

	if err := state.enter(Ordering, orderingUpdate(direction, len(tracks))); err != nil {
		return nil, err
	}
	ordered, err := ordering.Order(tracks, direction)
	if err != nil {
		return nil, err
	}

	target := ordered.URIs()
	plan, err := reconcile.Plan(target, e.batchSize)
	if err != nil {
		return nil, err
	}

	out.total = len(plan)
	if err := state.enter(Reconciling, reconcilingUpdate(0, len(plan))); err != nil {
		return nil, err
	}
	r := reconcile.New(e.catalog, e.credentials,
		reconcile.WithBatchSize(e.batchSize),
		reconcile.WithLogger(e.logger),
		reconcile.WithProgress(func(p reconcile.Progress) {
			e.sendProgress(state.progress, reconcilingUpdate(p.Applied, p.Total))
		}),
	)
	applied, err := r.Reconcile(ctx, playlistID, target)
	out.applied = applied
	if err != nil {
		return nil, err
	}

	if err := state.enter(Summarizing, summarizingUpdate()); err != nil {
		return nil, err
	}
	result := summarize(meta, direction, ordered, applied)
	if oldest, newest := result.Chronological(); oldest != nil && newest != nil {
		run.SetReleaseRange(oldest.ReleaseDate, newest.ReleaseDate)
	}

	if err := state.enter(Done, doneUpdate(result)); err != nil {
		return nil, err
	}
	return result, nil
}

// summarize builds the result. Oldest and Newest are the first and last entries of ordered, so a
// descending sort reports them swapped relative to an ascending one.
func summarize(meta *models.Playlist, direction models.Direction, ordered models.OrderedTrackList, applied int) *models.SortResult {
	result := &models.SortResult{
		PlaylistID:      meta.ID,
		PlaylistName:    meta.Name,
		Direction:       direction,
		TracksProcessed: len(ordered),
		Tracks:          make([]models.TrackSummary, len(ordered)),
		BatchesApplied:  applied,
	}
	for i, t := range ordered {
		result.Tracks[i] = summary(t)
	}

	if len(ordered) > 0 {
		first, last := summary(ordered[0]), summary(ordered[len(ordered)-1])
		result.Oldest, result.Newest = &first, &last
	}
	return result
}

func summary(t models.Track) models.TrackSummary {
	return models.TrackSummary{
		Name:        t.Name,
		Artists:     t.Artists,
		ReleaseDate: releasedate.FormatTrack(t),
		Album:       t.Album.Name,
	}
}

// record persists run. Failures are logged and never change the sort outcome.
func (e *SortEngine) record(logger *log.Logger, run *models.SortRun) {
	if e.runs == nil {
		return
	}
	if err := e.runs.Create(run); err != nil {
		logger.Warn("failed to record sort run", "error", err)
	}
}

// Statistics fetches the playlist and summarizes its release dates. Nothing is written.
func (e *SortEngine) Statistics(ctx context.Context, playlistID string) (*models.Statistics, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist ID", shared.ErrMissingArgument)
	}

	meta, tracks, err := e.fetch(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	stats, err := ordering.ComputeStatistics(tracks)
	if err != nil {
		if errors.Is(err, shared.ErrEmptyPlaylist) {
			return nil, fmt.Errorf("%w: %s", err, meta.Name)
		}
		return nil, err
	}
	stats.PlaylistID = meta.ID
	stats.PlaylistName = meta.Name
	return stats, nil
}
