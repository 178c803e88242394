package downloader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clipvault/pkg/asset"
	"clipvault/pkg/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFetcher records calls and tracks peak concurrency
type mockFetcher struct {
	delay   time.Duration
	err     error
	skipped map[string]bool

	calls   int32
	active  int32
	maxSeen int32
}

func (m *mockFetcher) Fetch(ctx context.Context, job asset.Job) (asset.Result, error) {
	atomic.AddInt32(&m.calls, 1)
	n := atomic.AddInt32(&m.active, 1)
	defer atomic.AddInt32(&m.active, -1)
	for {
		seen := atomic.LoadInt32(&m.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&m.maxSeen, seen, n) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return asset.Result{}, ctx.Err()
		}
	}
	if m.err != nil {
		return asset.Result{}, m.err
	}
	return asset.Result{MediaPath: "/tmp/" + job.ID + ".mp4", Skipped: m.skipped[job.ID]}, nil
}

func collect(pool *WorkerPool) (func() []DownloadResult, *sync.WaitGroup) {
	var results []DownloadResult
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := range pool.Results() {
			results = append(results, r)
		}
	}()
	return func() []DownloadResult { return results }, &wg
}

func jobs(n int) []asset.Job {
	out := make([]asset.Job, n)
	for i := range out {
		out[i] = asset.Job{ID: fmt.Sprintf("s_%02d", i), AuthorID: "alice", URL: fmt.Sprintf("https://cdn.example.test/%d.mp4", i)}
	}
	return out
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	fetcher := &mockFetcher{delay: 5 * time.Millisecond, skipped: map[string]bool{"s_03": true}}
	pool := NewWorkerPool(context.Background(), 3, fetcher, ratelimit.Unlimited{}, nil)
	pool.Start()
	results, wg := collect(pool)

	for _, job := range jobs(10) {
		require.NoError(t, pool.Submit(job))
	}
	pool.Stop()
	wg.Wait()

	got := results()
	require.Len(t, got, 10)
	skipped := 0
	for _, r := range got {
		assert.True(t, r.Success)
		assert.NoError(t, r.Error)
		if r.Result.Skipped {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped)
	assert.Equal(t, int32(10), atomic.LoadInt32(&fetcher.calls))
}

func TestWorkerPoolWithErrors(t *testing.T) {
	fetcher := &mockFetcher{err: fmt.Errorf("cdn unavailable")}
	pool := NewWorkerPool(context.Background(), 2, fetcher, nil, nil)
	pool.Start()
	results, wg := collect(pool)

	for _, job := range jobs(5) {
		require.NoError(t, pool.Submit(job))
	}
	pool.Stop()
	wg.Wait()

	got := results()
	require.Len(t, got, 5)
	for _, r := range got {
		assert.False(t, r.Success)
		require.Error(t, r.Error)
		assert.Contains(t, r.Error.Error(), "cdn unavailable")
		assert.Contains(t, r.Error.Error(), r.Job.ID)
	}
}

func TestWorkerPoolDefaultsToSequential(t *testing.T) {
	fetcher := &mockFetcher{delay: 10 * time.Millisecond}
	pool := NewWorkerPool(context.Background(), 0, fetcher, nil, nil)
	assert.Equal(t, 1, pool.GetActiveWorkers())

	pool.Start()
	_, wg := collect(pool)
	for _, job := range jobs(4) {
		require.NoError(t, pool.Submit(job))
	}
	pool.Stop()
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.maxSeen))
}

func TestWorkerPoolConcurrencyBound(t *testing.T) {
	fetcher := &mockFetcher{delay: 30 * time.Millisecond}
	pool := NewWorkerPool(context.Background(), 3, fetcher, nil, nil)
	pool.Start()
	_, wg := collect(pool)

	for _, job := range jobs(12) {
		require.NoError(t, pool.Submit(job))
	}
	pool.Stop()
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&fetcher.maxSeen), int32(3))
	assert.Greater(t, atomic.LoadInt32(&fetcher.maxSeen), int32(1))
}

func TestWorkerPoolRateLimited(t *testing.T) {
	fetcher := &mockFetcher{}
	limiter := ratelimit.NewTokenBucket(20*time.Millisecond, 1)
	pool := NewWorkerPool(context.Background(), 4, fetcher, limiter, nil)
	pool.Start()
	_, wg := collect(pool)

	start := time.Now()
	for _, job := range jobs(4) {
		require.NoError(t, pool.Submit(job))
	}
	pool.Stop()
	wg.Wait()

	// one token up front, then one every 20ms
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWorkerPoolCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &mockFetcher{delay: time.Second}
	pool := NewWorkerPool(ctx, 1, fetcher, nil, nil)
	pool.Start()
	results, wg := collect(pool)

	for _, job := range jobs(2) {
		require.NoError(t, pool.Submit(job))
	}
	time.AfterFunc(20*time.Millisecond, cancel)

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancellation")
	}
	wg.Wait()

	got := results()
	require.Len(t, got, 2)
	for _, r := range got {
		assert.False(t, r.Success)
		assert.ErrorIs(t, r.Error, context.Canceled)
	}
}
