package connector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fathomdata/batchsource/internal/batch"
	"github.com/fathomdata/batchsource/internal/match"
	"github.com/fathomdata/batchsource/internal/storage"
)

// flakyLister fails listing after a number of successful pages.
type flakyLister struct {
	inner    storage.Lister
	failFrom int
	calls    int
}

func (f *flakyLister) Name() string { return "flaky" }

func (f *flakyLister) List(ctx context.Context, req storage.ListRequest) (*storage.ListResult, error) {
	f.calls++
	if f.calls > f.failFrom {
		return nil, fmt.Errorf("%w: connection reset", storage.ErrStorageUnavailable)
	}
	return f.inner.List(ctx, req)
}

// slowLister delays every page until the context expires or the delay
// elapses.
type slowLister struct {
	inner storage.Lister
	delay time.Duration
}

func (s *slowLister) Name() string { return "slow" }

func (s *slowLister) List(ctx context.Context, req storage.ListRequest) (*storage.ListResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
	}
	return s.inner.List(ctx, req)
}

func monthSpec(t *testing.T, recursive bool) batch.Spec {
	t.Helper()
	ex, err := batch.RegexExtractor(`\d{4}/(?P<month>\d{2})/[^/]+\.csv`)
	require.NoError(t, err)
	return batch.Spec{
		Bucket:    "data",
		Delimiter: "/",
		Recursive: recursive,
		Filter:    match.SuffixFilter(".csv"),
		Extractor: ex,
	}
}

func TestDiscover_RecursiveCSVScenario(t *testing.T) {
	lister := storage.NewMemoryLister(map[string][]string{
		"data": {"2023/01/a.csv", "2023/02/b.csv", "readme.txt"},
	})
	c := New(lister)

	got, err := c.Discover(context.Background(), monthSpec(t, true), []batch.SortKey{{Field: "month"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "2023/01/a.csv", got[0].ID)
	require.Equal(t, "2023/02/b.csv", got[1].ID)
}

func TestDiscover_FlatScenarioYieldsNothing(t *testing.T) {
	lister := storage.NewMemoryLister(map[string][]string{
		"data": {"2023/01/a.csv", "2023/02/b.csv", "readme.txt"},
	})
	c := New(lister)

	got, err := c.Discover(context.Background(), monthSpec(t, false), nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDiscover_EmptyBucket(t *testing.T) {
	lister := storage.NewMemoryLister(map[string][]string{"data": {}})
	c := New(lister)

	got, err := c.Discover(context.Background(), monthSpec(t, true), []batch.SortKey{{Field: "month"}})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDiscover_UnknownSortField(t *testing.T) {
	lister := storage.NewMemoryLister(map[string][]string{
		"data": {"2023/01/a.csv"},
	})
	c := New(lister)

	_, err := c.Discover(context.Background(), monthSpec(t, true), []batch.SortKey{{Field: "region"}})
	require.ErrorIs(t, err, batch.ErrUnknownSortField)
	require.Contains(t, err.Error(), "sorter")
}

func TestDiscover_InvalidBucket(t *testing.T) {
	lister := storage.NewMemoryLister(map[string][]string{"data": {}})
	c := New(lister)

	spec := monthSpec(t, true)
	spec.Bucket = "does-not-exist"

	_, err := c.Discover(context.Background(), spec, nil)
	require.ErrorIs(t, err, storage.ErrInvalidSpec)
	require.Contains(t, err.Error(), "lister memory")
}

func TestDiscover_ListingFailureAborts(t *testing.T) {
	inner := storage.NewMemoryLister(map[string][]string{
		"data": {"a.csv", "b.csv", "c.csv", "d.csv"},
	})
	lister := &flakyLister{inner: inner, failFrom: 1}
	c := New(lister)

	spec := monthSpec(t, true)
	spec.MaxKeys = 2 // forces a second page, which fails

	got, err := c.Discover(context.Background(), spec, nil)
	require.ErrorIs(t, err, storage.ErrStorageUnavailable)
	require.Nil(t, got, "no partial results on failure")
}

func TestDiscover_Deterministic(t *testing.T) {
	lister := storage.NewMemoryLister(map[string][]string{
		"data": {"2023/03/c.csv", "2023/01/a.csv", "2023/02/b.csv"},
	})
	c := New(lister)
	order := []batch.SortKey{{Field: "month", Descending: true}}

	first, err := c.Discover(context.Background(), monthSpec(t, true), order)
	require.NoError(t, err)
	second, err := c.Discover(context.Background(), monthSpec(t, true), order)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestDiscover_FanOutMatchesSerial(t *testing.T) {
	keys := []string{
		"2023/01/a.csv", "2023/01/b.csv",
		"2023/02/c.csv", "2023/03/d.csv",
		"2023/04/e.csv", "2023/05/f.csv",
		"top.csv",
	}
	lister := storage.NewMemoryLister(map[string][]string{"data": keys})
	order := []batch.SortKey{{Field: "month"}}

	spec := monthSpec(t, true)
	spec.MaxKeys = 2

	serial, err := New(lister).Discover(context.Background(), spec, order)
	require.NoError(t, err)

	parallel, err := New(lister, WithParallelism(4)).Discover(context.Background(), spec, order)
	require.NoError(t, err)

	require.Equal(t, serial, parallel)
	require.Len(t, parallel, len(keys))
}

func TestDiscover_TimeoutBoundsWholeCall(t *testing.T) {
	inner := storage.NewMemoryLister(map[string][]string{
		"data": {"a.csv", "b.csv"},
	})
	lister := &slowLister{inner: inner, delay: 500 * time.Millisecond}
	c := New(lister, WithTimeout(20*time.Millisecond))

	got, err := c.Discover(context.Background(), monthSpec(t, true), nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Nil(t, got, "no partial results on timeout")
}

func TestDiscover_Cancellation(t *testing.T) {
	lister := storage.NewMemoryLister(map[string][]string{
		"data": {"a.csv", "b.csv"},
	})
	c := New(lister)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Discover(ctx, monthSpec(t, true), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDiscover_MetadataAttached(t *testing.T) {
	lister := storage.NewMemoryLister(map[string][]string{
		"data": {"2023/01/a.csv", "2023/02/b.csv"},
	})
	c := New(lister)

	spec := monthSpec(t, true)
	spec.Metadata = map[string]any{"owner": "analytics", "priority": 2}

	got, err := c.Discover(context.Background(), spec, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, b := range got {
		require.Equal(t, "analytics", b.Metadata["owner"])
		require.Equal(t, 2, b.Metadata["priority"])
	}
}

func TestDiscover_MissingPartitionSortsLast(t *testing.T) {
	lister := storage.NewMemoryLister(map[string][]string{
		"data": {"2023/01/a.csv", "2023/02/b.csv", "unpartitioned.csv"},
	})
	c := New(lister)

	for _, descending := range []bool{false, true} {
		got, err := c.Discover(context.Background(), monthSpec(t, true),
			[]batch.SortKey{{Field: "month", Descending: descending}})
		require.NoError(t, err)
		require.Len(t, got, 3)
		require.Equal(t, "unpartitioned.csv", got[2].ID,
			"descending=%v: batch without the sort field must come last", descending)
	}
}
