// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/relsort/internal/models"
)

// Call is one write issued against a [RecordingCollection].
type Call struct {
	Op           string // "replace" or "append"
	CollectionID string
	IDs          []string
	Err          error // Error returned to the caller, nil when the call succeeded
}

// RecordingCollection is an in-memory ordered collection that records every write.
//
// Failures maps a zero-based call index to the error that call returns. A failing call is recorded
// but leaves the contents untouched.
type RecordingCollection struct {
	mu       sync.Mutex
	Calls    []Call
	Failures map[int]error
	contents map[string][]string
}

func (r *RecordingCollection) ReplaceAll(ctx context.Context, collectionID string, ids []string) error {
	return r.record("replace", collectionID, ids)
}

func (r *RecordingCollection) Append(ctx context.Context, collectionID string, ids []string) error {
	return r.record("append", collectionID, ids)
}

func (r *RecordingCollection) record(op, collectionID string, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.Failures[len(r.Calls)]
	r.Calls = append(r.Calls, Call{Op: op, CollectionID: collectionID, IDs: slices.Clone(ids), Err: err})
	if err != nil {
		return err
	}

	if r.contents == nil {
		r.contents = make(map[string][]string)
	}
	switch op {
	case "replace":
		r.contents[collectionID] = slices.Clone(ids)
	case "append":
		if _, ok := r.contents[collectionID]; !ok {
			return fmt.Errorf("append to %s before replace", collectionID)
		}
		r.contents[collectionID] = append(r.contents[collectionID], ids...)
	}
	return nil
}

// Contents returns the current items of collectionID.
func (r *RecordingCollection) Contents(collectionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.contents[collectionID])
}

// Writes returns the number of write calls issued, failed ones included.
func (r *RecordingCollection) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// SetContents seeds collectionID with ids.
func (r *RecordingCollection) SetContents(collectionID string, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.contents == nil {
		r.contents = make(map[string][]string)
	}
	r.contents[collectionID] = slices.Clone(ids)
}

// FakeCredentials is a credential provider that counts refreshes.
type FakeCredentials struct {
	mu                 sync.Mutex
	Valid              bool
	Refreshes          int
	RefreshErr         error
	RejectAfterRefresh bool // The refreshed credential still reports invalid
}

func (f *FakeCredentials) IsValid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Valid
}

func (f *FakeCredentials) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Refreshes++
	if f.RefreshErr != nil {
		return f.RefreshErr
	}
	f.Valid = !f.RejectAfterRefresh
	return nil
}

// FakeCatalog serves playlists from memory and records writes through its embedded [RecordingCollection].
type FakeCatalog struct {
	RecordingCollection
	Playlists map[string]models.Playlist
	Tracks    map[string][]models.Track
	MetaErr   error
	TracksErr error

	mu         sync.Mutex
	trackReads int
}

// NewFakeCatalog creates a catalog holding one playlist per entry of tracks, named after its ID.
func NewFakeCatalog(tracks map[string][]models.Track) *FakeCatalog {
	c := &FakeCatalog{Playlists: make(map[string]models.Playlist), Tracks: tracks}
	for id, list := range tracks {
		c.Playlists[id] = models.Playlist{ID: id, Name: "Playlist " + id, TrackCount: len(list)}
		uris := make([]string, len(list))
		for i, t := range list {
			uris[i] = t.URI()
		}
		c.SetContents(id, uris)
	}
	return c
}

func (c *FakeCatalog) PlaylistMeta(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if c.MetaErr != nil {
		return nil, c.MetaErr
	}
	p, ok := c.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("playlist %s not found", playlistID)
	}
	return &p, nil
}

func (c *FakeCatalog) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	c.mu.Lock()
	c.trackReads++
	c.mu.Unlock()

	if c.TracksErr != nil {
		return nil, c.TracksErr
	}
	return slices.Clone(c.Tracks[playlistID]), nil
}

// GetPlaylists returns every playlist ordered by ID.
func (c *FakeCatalog) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if c.MetaErr != nil {
		return nil, c.MetaErr
	}
	playlists := make([]models.Playlist, 0, len(c.Playlists))
	for _, p := range c.Playlists {
		playlists = append(playlists, p)
	}
	slices.SortFunc(playlists, func(a, b models.Playlist) int { return strings.Compare(a.ID, b.ID) })
	return playlists, nil
}

// TrackReads returns how many times PlaylistTracks was called.
func (c *FakeCatalog) TrackReads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trackReads
}

// RecordingRuns stores created sort runs in memory.
type RecordingRuns struct {
	mu   sync.Mutex
	Runs []*models.SortRun
	Err  error
}

func (r *RecordingRuns) Create(run *models.SortRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	run.SetID(fmt.Sprintf("run-%d", len(r.Runs)+1))
	r.Runs = append(r.Runs, run)
	return nil
}

// List returns the recorded runs newest first. Criteria are ignored.
func (r *RecordingRuns) List(criteria map[string]any) ([]*models.SortRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	runs := slices.Clone(r.Runs)
	slices.Reverse(runs)
	return runs, nil
}

// Track builds a track whose name, artist and album derive from id.
func Track(id, date string, precision models.Precision) models.Track {
	return models.Track{
		ID:      id,
		Name:    "Track " + id,
		Artists: []string{"Artist " + id},
		Album:   models.Album{Name: "Album " + id, ReleaseDate: date, Precision: precision},
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
