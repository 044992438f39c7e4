package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchRecorder struct {
	mu      sync.Mutex
	batches [][]int
}

func (r *fetchRecorder) fetch(_ context.Context, keys []int) ([]string, []error) {
	r.mu.Lock()
	r.batches = append(r.batches, append([]int(nil), keys...))
	r.mu.Unlock()

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("v%d", k)
	}
	return out, nil
}

func (r *fetchRecorder) calls() [][]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]int(nil), r.batches...)
}

func newRecordingLoader(wait time.Duration) (*Loader[int, string], *fetchRecorder) {
	rec := &fetchRecorder{}
	return New(Config[int, string]{Name: "test", Fetch: rec.fetch, Wait: wait}), rec
}

func TestThunksCoalesceUntilForced(t *testing.T) {
	l, rec := newRecordingLoader(-1)
	ctx := context.Background()

	thunks := []func() (string, error){
		l.LoadThunk(ctx, 3),
		l.LoadThunk(ctx, 1),
		l.LoadThunk(ctx, 2),
	}
	assert.Empty(t, rec.calls(), "nothing is fetched before a thunk is forced")

	for i, want := range []string{"v3", "v1", "v2"} {
		got, err := thunks[i]()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, [][]int{{3, 1, 2}}, rec.calls())
}

func TestDuplicateKeysAreFetchedOnce(t *testing.T) {
	l, rec := newRecordingLoader(-1)
	ctx := context.Background()

	a := l.LoadThunk(ctx, 7)
	b := l.LoadThunk(ctx, 7)
	c := l.LoadThunk(ctx, 8)

	va, _ := a()
	vb, _ := b()
	vc, _ := c()
	assert.Equal(t, "v7", va)
	assert.Equal(t, "v7", vb)
	assert.Equal(t, "v8", vc)
	assert.Equal(t, [][]int{{7, 8}}, rec.calls())

	hits, misses := l.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
}

func TestResolvedKeysAreMemoized(t *testing.T) {
	l, rec := newRecordingLoader(-1)
	ctx := context.Background()

	_, err := l.Load(ctx, 1)
	require.NoError(t, err)
	v, err := l.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Len(t, rec.calls(), 1)
}

func TestKeysAfterDispatchStartNewBatch(t *testing.T) {
	l, rec := newRecordingLoader(-1)
	ctx := context.Background()

	first := l.LoadThunk(ctx, 1)
	_, err := first()
	require.NoError(t, err)

	second := l.LoadThunk(ctx, 2)
	third := l.LoadThunk(ctx, 3)
	_, _ = second()
	_, _ = third()

	assert.Equal(t, [][]int{{1}, {2, 3}}, rec.calls())
}

func TestTimerDispatchesOpenBatch(t *testing.T) {
	l, rec := newRecordingLoader(5 * time.Millisecond)
	ctx := context.Background()

	l.LoadThunk(ctx, 1)
	l.LoadThunk(ctx, 2)

	require.Eventually(t, func() bool {
		return len(rec.calls()) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, []int{1, 2}, rec.calls()[0])
}

func TestFlushDispatchesOpenBatch(t *testing.T) {
	l, rec := newRecordingLoader(-1)
	ctx := context.Background()

	thunk := l.LoadThunk(ctx, 4)
	l.Flush()
	assert.Equal(t, [][]int{{4}}, rec.calls())

	v, err := thunk()
	require.NoError(t, err)
	assert.Equal(t, "v4", v)

	l.Flush()
	assert.Len(t, rec.calls(), 1, "flush without queued keys is a no-op")
}

func TestMaxBatchSplitsBatches(t *testing.T) {
	rec := &fetchRecorder{}
	l := New(Config[int, string]{Fetch: rec.fetch, Wait: -1, MaxBatch: 2})

	values, errs := l.LoadMany(context.Background(), []int{1, 2, 3, 4, 5})
	assert.Nil(t, errs)
	assert.Equal(t, []string{"v1", "v2", "v3", "v4", "v5"}, values)

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, rec.calls())
}

func TestSealedBatchesDispatchInFormationOrder(t *testing.T) {
	rec := &fetchRecorder{}
	l := New(Config[int, string]{Fetch: rec.fetch, MaxBatch: 2})
	ctx := context.Background()

	l.LoadThunk(ctx, 1)
	l.LoadThunk(ctx, 2)
	l.LoadThunk(ctx, 3)
	last := l.LoadThunk(ctx, 4)
	assert.Empty(t, rec.calls(), "a full batch waits for the end of the turn")

	v, err := last()
	require.NoError(t, err)
	assert.Equal(t, "v4", v)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}}, rec.calls())
}

func TestZeroWaitHasNoTimer(t *testing.T) {
	l, rec := newRecordingLoader(0)
	ctx := context.Background()

	thunk := l.LoadThunk(ctx, 1)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.calls(), "nothing dispatches before the turn ends")

	l.LoadThunk(ctx, 2)
	_, err := thunk()
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 2}}, rec.calls())
}

func TestLoadManyPreservesOrderAndDuplicates(t *testing.T) {
	l, rec := newRecordingLoader(-1)

	values, errs := l.LoadMany(context.Background(), []int{5, 1, 5, 3})
	assert.Nil(t, errs)
	assert.Equal(t, []string{"v5", "v1", "v5", "v3"}, values)
	assert.Equal(t, [][]int{{5, 1, 3}}, rec.calls())
}

func TestBatchErrorFailsEveryKey(t *testing.T) {
	boom := errors.New("server has gone away")
	calls := 0
	l := New(Config[int, string]{
		Wait: -1,
		Fetch: func(_ context.Context, keys []int) ([]string, []error) {
			calls++
			if calls == 1 {
				return nil, []error{boom}
			}
			return make([]string, len(keys)), nil
		},
	})
	ctx := context.Background()

	values, errs := l.LoadMany(ctx, []int{1, 2, 3})
	require.Len(t, errs, 3)
	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
	assert.Len(t, values, 3)

	_, err := l.Load(ctx, 2)
	require.NoError(t, err, "a failed batch is not memoized")
	assert.Equal(t, 2, calls)
}

func TestPerKeyErrors(t *testing.T) {
	missing := errors.New("missing")
	l := New(Config[int, string]{
		Wait: -1,
		Fetch: func(_ context.Context, keys []int) ([]string, []error) {
			values := make([]string, len(keys))
			errs := make([]error, len(keys))
			for i, k := range keys {
				if k%2 == 0 {
					errs[i] = missing
				} else {
					values[i] = "odd"
				}
			}
			return values, errs
		},
	})

	values, errs := l.LoadMany(context.Background(), []int{1, 2, 3})
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], missing)
	assert.NoError(t, errs[2])
	assert.Equal(t, []string{"odd", "", "odd"}, values)
}

func TestShortFetchResultFailsBatch(t *testing.T) {
	l := New(Config[int, string]{
		Name: "short",
		Wait: -1,
		Fetch: func(_ context.Context, keys []int) ([]string, []error) {
			return []string{"only one"}, nil
		},
	})

	_, errs := l.LoadMany(context.Background(), []int{1, 2})
	require.Len(t, errs, 2)
	assert.EqualError(t, errs[0], "loader short: fetch returned 1 values for 2 keys")
}

func TestFetchPanicBecomesError(t *testing.T) {
	l := New(Config[int, string]{
		Name: "panicky",
		Wait: -1,
		Fetch: func(context.Context, []int) ([]string, []error) {
			panic("bad row")
		},
	})

	_, err := l.Load(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad row")
}

func TestPrimeAndClear(t *testing.T) {
	l, rec := newRecordingLoader(-1)
	ctx := context.Background()

	assert.True(t, l.Prime(1, "primed"))
	assert.False(t, l.Prime(1, "again"))

	v, err := l.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "primed", v)
	assert.Empty(t, rec.calls())

	l.Clear(1)
	v, err = l.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Len(t, rec.calls(), 1)
}

func TestClearKeepsPendingKeys(t *testing.T) {
	l, rec := newRecordingLoader(-1)
	ctx := context.Background()

	first := l.LoadThunk(ctx, 9)
	l.Clear(9)
	second := l.LoadThunk(ctx, 9)

	v1, err := first()
	require.NoError(t, err)
	v2, err := second()
	require.NoError(t, err)
	assert.Equal(t, "v9", v1)
	assert.Equal(t, "v9", v2)
	assert.Equal(t, [][]int{{9}}, rec.calls())
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	l, rec := newRecordingLoader(20 * time.Millisecond)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			thunk := l.LoadThunk(ctx, i%5)
			results[i], _ = thunk()
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("v%d", i%5), r)
	}
	total := 0
	for _, c := range rec.calls() {
		total += len(c)
	}
	assert.Equal(t, 5, total, "each distinct key is fetched exactly once")
}

type recordingObserver struct {
	mu      sync.Mutex
	hits    int
	misses  int
	batches []int
}

func (o *recordingObserver) ObserveLoad(_ context.Context, _ string, hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func (o *recordingObserver) ObserveBatch(_ context.Context, _ string, size int, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches = append(o.batches, size)
}

func TestObserverSeesLoadsAndBatches(t *testing.T) {
	rec := &fetchRecorder{}
	obs := &recordingObserver{}
	l := New(Config[int, string]{Name: "observed", Fetch: rec.fetch, Wait: -1, Observer: obs})

	_, _ = l.LoadMany(context.Background(), []int{1, 2, 1})

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 2, obs.misses)
	assert.Equal(t, []int{2}, obs.batches)
}
