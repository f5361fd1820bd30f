package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoader_FetchRunsOnceAcrossConcurrentLoads(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int32
	release := make(chan struct{})
	loader := NewLoader(func(ctx context.Context) error {
		fetches.Add(1)
		<-release
		return nil
	})

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = loader.Load(context.Background())
		}(i)
	}

	close(release)
	wg.Wait()

	if got := fetches.Load(); got != 1 {
		t.Fatalf("expected a single fetch, got %d", got)
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, err)
		}
	}
	if !loader.Loaded() {
		t.Fatalf("expected loader to report loaded")
	}
}

func TestLoader_FailedFetchIsRetriedOnNextLoad(t *testing.T) {
	t.Parallel()

	boom := errors.New("script blocked")
	var fetches atomic.Int32
	loader := NewLoader(func(ctx context.Context) error {
		if fetches.Add(1) == 1 {
			return boom
		}
		return nil
	})

	if err := loader.Load(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if loader.Loaded() {
		t.Fatalf("a failed fetch must not mark the runtime loaded")
	}

	// A retried checkout loads again instead of replaying the old failure.
	if err := loader.Load(context.Background()); err != nil {
		t.Fatalf("retry after failed fetch: %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Fatalf("expected a fresh fetch per attempt, got %d", got)
	}

	// Success is cached; later loads do not fetch again.
	if err := loader.Load(context.Background()); err != nil {
		t.Fatalf("load after success: %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Fatalf("a successful fetch must be cached, got %d fetches", got)
	}
}

func TestLoader_CallerContextCancelsWaitNotFetch(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	loader := NewLoader(func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := loader.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The fetch keeps running; a later caller still gets the result.
	close(release)
	done := make(chan error, 1)
	go func() { done <- loader.Load(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error after fetch resolved: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("load never resolved after the fetch finished")
	}
}

func TestLoader_NilFetchResolvesImmediately(t *testing.T) {
	t.Parallel()

	loader := NewLoader(nil)
	if err := loader.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
