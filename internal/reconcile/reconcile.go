// Package reconcile rewrites a remote ordered collection to match a target order using only
// bounded replace and append calls.
//
// [Plan] is a pure function from target order and batch size to the calls to issue.
// [Reconciler] applies a plan strictly in order, refreshing credentials once when a call reports
// an expired token.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/relsort/internal/shared"
)

// DefaultBatchSize is the most items the catalog accepts in one replace or append request.
const DefaultBatchSize = 100

// Op is the kind of batch call.
type Op string

const (
	OpReplace Op = "replace"
	OpAppend  Op = "append"
)

// Batch is one call in a reconciliation plan.
type Batch struct {
	Op  Op
	IDs []string
}

// Collection is a remote ordered collection that can only be rewritten in batches.
type Collection interface {
	// ReplaceAll replaces the whole collection with ids.
	ReplaceAll(ctx context.Context, collectionID string, ids []string) error
	// Append adds ids to the end of the collection.
	Append(ctx context.Context, collectionID string, ids []string) error
}

// CredentialProvider is the access credential used by the collection.
type CredentialProvider interface {
	IsValid() bool
	// Refresh discards the current credential and obtains a new one.
	Refresh(ctx context.Context) error
}

// Plan splits target into consecutive chunks of batchSize. The first chunk replaces the collection and
// every later chunk is appended. An empty target yields a single empty replace. batchSize must be
// between 1 and [DefaultBatchSize].
func Plan(target []string, batchSize int) ([]Batch, error) {
	if batchSize < 1 || batchSize > DefaultBatchSize {
		return nil, fmt.Errorf("%w: batch size must be between 1 and %d, got %d",
			shared.ErrInvalidArgument, DefaultBatchSize, batchSize)
	}

	if len(target) == 0 {
		return []Batch{{Op: OpReplace, IDs: []string{}}}, nil
	}

	batches := make([]Batch, 0, (len(target)+batchSize-1)/batchSize)
	for start := 0; start < len(target); start += batchSize {
		end := min(start+batchSize, len(target))
		op := OpAppend
		if start == 0 {
			op = OpReplace
		}
		batches = append(batches, Batch{Op: op, IDs: target[start:end:end]})
	}
	return batches, nil
}

// Progress is reported after each applied batch.
type Progress struct {
	Applied int
	Total   int
}

// Reconciler applies plans against a [Collection].
type Reconciler struct {
	collection  Collection
	credentials CredentialProvider
	batchSize   int
	logger      *log.Logger
	onBatch     func(Progress)
}

// Option configures a [Reconciler].
type Option func(*Reconciler)

// WithBatchSize overrides [DefaultBatchSize].
func WithBatchSize(n int) Option { return func(r *Reconciler) { r.batchSize = n } }

// WithLogger sets the logger used for batch and refresh events.
func WithLogger(l *log.Logger) Option { return func(r *Reconciler) { r.logger = l } }

// WithProgress registers fn to be called after every applied batch.
func WithProgress(fn func(Progress)) Option { return func(r *Reconciler) { r.onBatch = fn } }

// New creates a Reconciler. credentials may be nil, in which case expired-token errors are not retried.
func New(collection Collection, credentials CredentialProvider, opts ...Option) *Reconciler {
	r := &Reconciler{
		collection:  collection,
		credentials: credentials,
		batchSize:   DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	return r
}

// BatchSize reports the configured batch size.
func (r *Reconciler) BatchSize() int { return r.batchSize }

// Reconcile makes the collection equal to target and returns how many batches were applied.
//
// Batches are issued one at a time in plan order. A batch failing with [shared.ErrTokenExpired] triggers
// one credential refresh and one retry of that batch; a second expiry is returned as is. Any other
// failure stops immediately. When at least one batch was already applied the error is a
// [*shared.PartialReconciliationError].
func (r *Reconciler) Reconcile(ctx context.Context, collectionID string, target []string) (int, error) {
	plan, err := Plan(target, r.batchSize)
	if err != nil {
		return 0, err
	}

	logger := shared.WithLogger(r.logger, "collection", collectionID)
	for i, b := range plan {
		if err := ctx.Err(); err != nil {
			return i, r.fail(i, len(plan), err)
		}

		if err := r.applyWithRefresh(ctx, collectionID, b); err != nil {
			logger.Error("batch failed", "batch", i+1, "of", len(plan), "op", b.Op, "error", err)
			return i, r.fail(i, len(plan), err)
		}

		logger.Debug("batch applied", "batch", i+1, "of", len(plan), "op", b.Op, "items", len(b.IDs))
		if r.onBatch != nil {
			r.onBatch(Progress{Applied: i + 1, Total: len(plan)})
		}
	}
	return len(plan), nil
}

func (r *Reconciler) fail(applied, total int, err error) error {
	if applied == 0 {
		return err
	}
	return &shared.PartialReconciliationError{Applied: applied, Total: total, Err: err}
}

func (r *Reconciler) applyWithRefresh(ctx context.Context, collectionID string, b Batch) error {
	return RetryExpired(ctx, r.credentials, func() error { return r.apply(ctx, collectionID, b) })
}

// RetryExpired runs fn and, when it fails with [shared.ErrTokenExpired], refreshes credentials once and
// runs fn again. A refreshed credential that is still invalid is reported as expired without calling fn.
// With nil credentials the first error is returned as is.
func RetryExpired(ctx context.Context, credentials CredentialProvider, fn func() error) error {
	err := fn()
	if !errors.Is(err, shared.ErrTokenExpired) || credentials == nil {
		return err
	}

	if rerr := credentials.Refresh(ctx); rerr != nil {
		return fmt.Errorf("%w (%w): %w", shared.ErrTokenExpired, shared.ErrRefreshFailed, rerr)
	}
	if !credentials.IsValid() {
		return fmt.Errorf("%w: refreshed credential rejected", shared.ErrTokenExpired)
	}

	return fn()
}

func (r *Reconciler) apply(ctx context.Context, collectionID string, b Batch) error {
	switch b.Op {
	case OpReplace:
		return r.collection.ReplaceAll(ctx, collectionID, b.IDs)
	case OpAppend:
		return r.collection.Append(ctx, collectionID, b.IDs)
	default:
		return fmt.Errorf("%w: unknown batch op %q", shared.ErrInvalidArgument, b.Op)
	}
}
