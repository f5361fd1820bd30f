package gateway

import (
	"context"
	"sync"
)

// Loader initializes the widget runtime for the process lifetime. Concurrent
// Load calls share a single in-flight fetch; a successful fetch is cached
// forever, while a failed fetch is discarded so the next Load starts a fresh
// one and a buyer retry re-attempts the runtime load.
type Loader struct {
	fetch func(ctx context.Context) error

	mu      sync.Mutex
	ready   bool
	current *fetchAttempt
}

// fetchAttempt is one fetch run. err is written before done closes, so a
// waiter that saw done close reads it safely.
type fetchAttempt struct {
	done chan struct{}
	err  error
}

// NewLoader constructs a Loader around the given fetch function. A nil fetch
// resolves immediately, for environments where the runtime is pre-injected.
func NewLoader(fetch func(ctx context.Context) error) *Loader {
	if fetch == nil {
		fetch = func(context.Context) error { return nil }
	}
	return &Loader{fetch: fetch}
}

// Load resolves when the runtime is ready. The first caller triggers the
// fetch; everyone else waits on the same resolution. A caller whose context
// ends returns early, but the fetch itself keeps running for the next caller.
func (l *Loader) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.ready {
		l.mu.Unlock()
		return nil
	}
	attempt := l.current
	if attempt == nil {
		attempt = &fetchAttempt{done: make(chan struct{})}
		l.current = attempt
		go l.run(attempt)
	}
	l.mu.Unlock()

	select {
	case <-attempt.done:
		return attempt.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loader) run(a *fetchAttempt) {
	a.err = l.fetch(context.Background())
	l.mu.Lock()
	if a.err == nil {
		l.ready = true
	}
	l.current = nil
	l.mu.Unlock()
	close(a.done)
}

// Loaded reports whether the runtime is ready.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}
