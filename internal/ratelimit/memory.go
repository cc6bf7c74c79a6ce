package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired windows are dropped.
const DefaultSweepInterval = 10 * time.Minute

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps windows in process memory. State is lost on restart and
// not shared between processes.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	sweep   time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a MemoryLimiter.
type Option func(*MemoryLimiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *MemoryLimiter) { l.now = now }
}

// WithSweepInterval changes the expired-window sweep period. Zero disables the sweeper.
func WithSweepInterval(d time.Duration) Option {
	return func(l *MemoryLimiter) { l.sweep = d }
}

// NewMemoryLimiter creates a limiter and starts its background sweeper.
// Call Close to stop it.
func NewMemoryLimiter(opts ...Option) *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
		sweep:   DefaultSweepInterval,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.sweep > 0 {
		go l.sweepLoop()
	} else {
		close(l.done)
	}
	return l
}

// Check records an attempt and reports whether it is within the policy.
func (l *MemoryLimiter) Check(_ context.Context, identifier string, p Policy) (Decision, error) {
	k := key(identifier, p)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[k]
	if !ok || now.After(w.resetAt) {
		l.windows[k] = &window{count: 1, resetAt: now.Add(p.Window)}
		return Decision{Allowed: true}, nil
	}

	if w.count >= p.MaxRequests {
		return Decision{Allowed: false, RetryAfter: w.resetAt.Sub(now)}, nil
	}

	w.count++
	return Decision{Allowed: true}, nil
}

// Sweep removes every expired window and returns how many were dropped.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Close stops the sweeper. It is safe to call more than once.
func (l *MemoryLimiter) Close() error {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
	return nil
}

func (l *MemoryLimiter) sweepLoop() {
	defer close(l.done)
	ticker := time.NewTicker(l.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
