package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/relsort/internal/shared"
	tu "github.com/desertthunder/relsort/internal/testing"
)

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("spotify:track:%d", i)
	}
	return ids
}

func quiet() Option { return WithLogger(log.New(io.Discard)) }

func TestPlan(t *testing.T) {
	tc := []struct {
		name      string
		n         int
		batchSize int
		wantOps   []Op
		wantSizes []int
	}{
		{"250 ids in batches of 100", 250, 100, []Op{OpReplace, OpAppend, OpAppend}, []int{100, 100, 50}},
		{"empty target", 0, 100, []Op{OpReplace}, []int{0}},
		{"exact multiple", 200, 100, []Op{OpReplace, OpAppend}, []int{100, 100}},
		{"smaller than batch", 7, 100, []Op{OpReplace}, []int{7}},
		{"batch of one", 3, 1, []Op{OpReplace, OpAppend, OpAppend}, []int{1, 1, 1}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			target := makeIDs(tt.n)
			plan, err := Plan(target, tt.batchSize)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}

			var ops []Op
			var sizes []int
			var joined []string
			for _, b := range plan {
				ops = append(ops, b.Op)
				sizes = append(sizes, len(b.IDs))
				joined = append(joined, b.IDs...)
			}

			if !slices.Equal(ops, tt.wantOps) {
				t.Errorf("ops = %v, want %v", ops, tt.wantOps)
			}
			if !slices.Equal(sizes, tt.wantSizes) {
				t.Errorf("sizes = %v, want %v", sizes, tt.wantSizes)
			}
			if !slices.Equal(joined, target) && !(len(joined) == 0 && len(target) == 0) {
				t.Error("concatenated batches do not equal the target order")
			}
		})
	}

	t.Run("rejects batch size outside the request limit", func(t *testing.T) {
		for _, size := range []int{0, -1, DefaultBatchSize + 1, 250} {
			if _, err := Plan(makeIDs(3), size); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("Plan(size=%d) expected ErrInvalidArgument, got %v", size, err)
			}
		}
	})

	t.Run("appending to a batch does not touch the target", func(t *testing.T) {
		target := makeIDs(3)
		plan, _ := Plan(target, 2)
		plan[0].IDs = append(plan[0].IDs, "extra")
		if target[2] != "spotify:track:2" {
			t.Error("target was modified through a batch")
		}
	})
}

func TestReconciler(t *testing.T) {
	ctx := context.Background()

	t.Run("issues replace then appends in order", func(t *testing.T) {
		coll := &tu.RecordingCollection{}
		target := makeIDs(250)

		applied, err := New(coll, nil, quiet()).Reconcile(ctx, "pl", target)
		if err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}
		if applied != 3 {
			t.Errorf("applied = %d, want 3", applied)
		}

		if len(coll.Calls) != 3 {
			t.Fatalf("expected 3 calls, got %d", len(coll.Calls))
		}
		want := []struct {
			op   string
			size int
		}{{"replace", 100}, {"append", 100}, {"append", 50}}
		for i, w := range want {
			if coll.Calls[i].Op != w.op || len(coll.Calls[i].IDs) != w.size {
				t.Errorf("call %d = %s(%d), want %s(%d)", i, coll.Calls[i].Op, len(coll.Calls[i].IDs), w.op, w.size)
			}
		}

		if !slices.Equal(coll.Contents("pl"), target) {
			t.Error("remote contents do not match target")
		}
	})

	t.Run("empty target clears collection", func(t *testing.T) {
		coll := &tu.RecordingCollection{}
		coll.SetContents("pl", []string{"a", "b"})

		if _, err := New(coll, nil, quiet()).Reconcile(ctx, "pl", nil); err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}

		if len(coll.Calls) != 1 || coll.Calls[0].Op != "replace" || len(coll.Calls[0].IDs) != 0 {
			t.Fatalf("expected a single empty replace, got %+v", coll.Calls)
		}
		if len(coll.Contents("pl")) != 0 {
			t.Error("collection should be empty")
		}
	})

	t.Run("custom batch size and progress", func(t *testing.T) {
		coll := &tu.RecordingCollection{}
		var progress []Progress

		r := New(coll, nil, quiet(), WithBatchSize(2), WithProgress(func(p Progress) { progress = append(progress, p) }))
		if r.BatchSize() != 2 {
			t.Errorf("BatchSize() = %d", r.BatchSize())
		}

		if _, err := r.Reconcile(ctx, "pl", makeIDs(5)); err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}

		want := []Progress{{1, 3}, {2, 3}, {3, 3}}
		if !slices.Equal(progress, want) {
			t.Errorf("progress = %v, want %v", progress, want)
		}
	})

	t.Run("invalid batch size issues no calls", func(t *testing.T) {
		coll := &tu.RecordingCollection{}
		if _, err := New(coll, nil, quiet(), WithBatchSize(0)).Reconcile(ctx, "pl", makeIDs(3)); err == nil {
			t.Error("expected error for batch size 0")
		}
		if coll.Writes() != 0 {
			t.Errorf("expected no writes, got %d", coll.Writes())
		}
	})

	t.Run("refreshes once on expired token and retries the same batch", func(t *testing.T) {
		coll := &tu.RecordingCollection{Failures: map[int]error{1: fmt.Errorf("%w: 401", shared.ErrTokenExpired)}}
		creds := &tu.FakeCredentials{Valid: true}

		applied, err := New(coll, creds, quiet()).Reconcile(ctx, "pl", makeIDs(250))
		if err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}
		if applied != 3 {
			t.Errorf("applied = %d, want 3", applied)
		}
		if creds.Refreshes != 1 {
			t.Errorf("refreshes = %d, want 1", creds.Refreshes)
		}

		ops := make([]string, len(coll.Calls))
		for i, c := range coll.Calls {
			ops[i] = c.Op
		}
		if want := []string{"replace", "append", "append", "append"}; !slices.Equal(ops, want) {
			t.Errorf("ops = %v, want %v", ops, want)
		}
		if !slices.Equal(coll.Calls[1].IDs, coll.Calls[2].IDs) {
			t.Error("retry should resend the same batch")
		}
		if !slices.Equal(coll.Contents("pl"), makeIDs(250)) {
			t.Error("remote contents do not match target")
		}
	})

	t.Run("second expiry is surfaced", func(t *testing.T) {
		expired := fmt.Errorf("%w: 401", shared.ErrTokenExpired)
		coll := &tu.RecordingCollection{Failures: map[int]error{0: expired, 1: expired}}
		creds := &tu.FakeCredentials{Valid: true}

		applied, err := New(coll, creds, quiet()).Reconcile(ctx, "pl", makeIDs(10))
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
		if shared.IsPartial(err) {
			t.Error("failure on the first batch is not partial")
		}
		if applied != 0 || creds.Refreshes != 1 || coll.Writes() != 2 {
			t.Errorf("applied=%d refreshes=%d writes=%d", applied, creds.Refreshes, coll.Writes())
		}
	})

	t.Run("refreshed credential rejected immediately", func(t *testing.T) {
		coll := &tu.RecordingCollection{Failures: map[int]error{0: shared.ErrTokenExpired}}
		creds := &tu.FakeCredentials{Valid: true, RejectAfterRefresh: true}

		_, err := New(coll, creds, quiet()).Reconcile(ctx, "pl", makeIDs(3))
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
		if creds.Refreshes != 1 || coll.Writes() != 1 {
			t.Errorf("refreshes=%d writes=%d, want 1 and 1", creds.Refreshes, coll.Writes())
		}
	})

	t.Run("refresh failure", func(t *testing.T) {
		coll := &tu.RecordingCollection{Failures: map[int]error{0: shared.ErrTokenExpired}}
		creds := &tu.FakeCredentials{Valid: true, RefreshErr: errors.New("invalid_grant")}

		_, err := New(coll, creds, quiet()).Reconcile(ctx, "pl", makeIDs(3))
		if !errors.Is(err, shared.ErrRefreshFailed) || !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected refresh failure wrapping ErrTokenExpired, got %v", err)
		}
	})

	t.Run("expired without credentials is not retried", func(t *testing.T) {
		coll := &tu.RecordingCollection{Failures: map[int]error{0: shared.ErrTokenExpired}}

		if _, err := New(coll, nil, quiet()).Reconcile(ctx, "pl", makeIDs(3)); !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
		if coll.Writes() != 1 {
			t.Errorf("writes = %d, want 1", coll.Writes())
		}
	})

	t.Run("failure after first batch is partial", func(t *testing.T) {
		cause := fmt.Errorf("%w: 503", shared.ErrUpstreamUnavailable)
		coll := &tu.RecordingCollection{Failures: map[int]error{2: cause}}
		creds := &tu.FakeCredentials{Valid: true}

		applied, err := New(coll, creds, quiet()).Reconcile(ctx, "pl", makeIDs(350))
		if !errors.Is(err, shared.ErrPartialReconciliation) || !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Fatalf("expected partial upstream failure, got %v", err)
		}

		var pe *shared.PartialReconciliationError
		if !errors.As(err, &pe) {
			t.Fatalf("expected PartialReconciliationError, got %T", err)
		}
		if pe.Applied != 2 || pe.Total != 4 || applied != 2 {
			t.Errorf("applied=%d pe=%+v, want 2 of 4", applied, pe)
		}
		if creds.Refreshes != 0 {
			t.Error("non-auth failures must not refresh")
		}
		if coll.Writes() != 3 {
			t.Errorf("no batch should be issued after the failure, got %d writes", coll.Writes())
		}
		if got := coll.Contents("pl"); !slices.Equal(got, makeIDs(200)) {
			t.Errorf("remote should hold the applied prefix, got %d items", len(got))
		}
	})

	t.Run("failure on first batch is a clean failure", func(t *testing.T) {
		coll := &tu.RecordingCollection{Failures: map[int]error{0: shared.ErrForbidden}}

		_, err := New(coll, nil, quiet()).Reconcile(ctx, "pl", makeIDs(150))
		if !errors.Is(err, shared.ErrForbidden) || shared.IsPartial(err) {
			t.Fatalf("expected clean ErrForbidden, got %v", err)
		}
	})

	t.Run("cancelled context stops before the next batch", func(t *testing.T) {
		coll := &tu.RecordingCollection{}
		cctx, cancel := context.WithCancel(ctx)

		r := New(coll, nil, quiet(), WithBatchSize(1), WithProgress(func(p Progress) {
			if p.Applied == 1 {
				cancel()
			}
		}))

		_, err := r.Reconcile(cctx, "pl", makeIDs(3))
		if !errors.Is(err, context.Canceled) || !shared.IsPartial(err) {
			t.Fatalf("expected partial cancellation, got %v", err)
		}
		if coll.Writes() != 1 {
			t.Errorf("writes = %d, want 1", coll.Writes())
		}
	})
}

func TestRetryExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("success skips refresh", func(t *testing.T) {
		creds := &tu.FakeCredentials{Valid: true}
		calls := 0
		if err := RetryExpired(ctx, creds, func() error { calls++; return nil }); err != nil {
			t.Fatalf("RetryExpired() error = %v", err)
		}
		if calls != 1 || creds.Refreshes != 0 {
			t.Errorf("calls=%d refreshes=%d", calls, creds.Refreshes)
		}
	})

	t.Run("expired then ok", func(t *testing.T) {
		creds := &tu.FakeCredentials{Valid: false}
		calls := 0
		err := RetryExpired(ctx, creds, func() error {
			calls++
			if calls == 1 {
				return shared.ErrTokenExpired
			}
			return nil
		})
		if err != nil || calls != 2 || creds.Refreshes != 1 {
			t.Errorf("err=%v calls=%d refreshes=%d", err, calls, creds.Refreshes)
		}
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		creds := &tu.FakeCredentials{Valid: true}
		calls := 0
		err := RetryExpired(ctx, creds, func() error { calls++; return shared.ErrForbidden })
		if !errors.Is(err, shared.ErrForbidden) || calls != 1 || creds.Refreshes != 0 {
			t.Errorf("err=%v calls=%d refreshes=%d", err, calls, creds.Refreshes)
		}
	})
}
