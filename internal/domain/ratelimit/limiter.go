package ratelimit

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// defaultStoreTimeout bounds every shared-store call. A store that cannot
// answer in time is treated the same as a failed store.
const defaultStoreTimeout = 2 * time.Second

// lockStripes is the number of admission locks. Striping bounds lock
// state regardless of identifier cardinality.
const lockStripes = 64

// Limiter is a sliding-window rate limiter. It prefers a shared primary
// store and falls back to a local store on the first backend error; the
// fallback is one-way for the process lifetime. This trades cross-process
// consistency for availability.
type Limiter struct {
	cfg          Config
	primary      WindowStore // nil when no shared backend is configured
	fallback     WindowStore
	fellBack     atomic.Bool
	storeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	// admission serializes check-and-record per identifier so concurrent
	// callers cannot all observe the pre-record count and over-admit.
	admission [lockStripes]sync.Mutex
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithStoreTimeout overrides the shared-store call timeout.
func WithStoreTimeout(d time.Duration) LimiterOption {
	return func(l *Limiter) { l.storeTimeout = d }
}

// WithClock overrides the limiter's time source. For tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a sliding-window limiter. primary may be nil, in
// which case the fallback store is used from the start.
func NewLimiter(cfg Config, primary, fallback WindowStore, logger *slog.Logger, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		cfg:          cfg,
		primary:      primary,
		fallback:     fallback,
		storeTimeout: defaultStoreTimeout,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	if primary == nil {
		l.fellBack.Store(true)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// UsingFallback reports whether the limiter has switched to local storage.
func (l *Limiter) UsingFallback() bool {
	return l.fellBack.Load()
}

// IsAllowed checks and records one event for the identifier. Events older
// than the window are pruned first; when the surviving count has reached
// the limit the event is denied without being recorded.
//
// A store failure on the already-active fallback denies the request:
// the limiter biases toward stricter limiting.
func (l *Limiter) IsAllowed(ctx context.Context, identifier string) bool {
	key := FormatKey(identifier)
	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	// The count is only meaningful if no other caller records between
	// the count and the add. Hold the identifier's admission lock across
	// the whole sequence.
	mu := l.admissionLock(key)
	mu.Lock()
	defer mu.Unlock()

	count, ok := l.countAfterPrune(ctx, key, cutoff)
	if !ok {
		return false
	}
	if count >= l.cfg.Limit {
		return false
	}

	if err := l.withStore(ctx, func(ctx context.Context, s WindowStore) error {
		return s.Add(ctx, key, now, l.cfg.Window)
	}); err != nil {
		return false
	}
	return true
}

// Remaining returns how many events the identifier may still emit inside
// the current window. Store failures report zero remaining.
func (l *Limiter) Remaining(ctx context.Context, identifier string) int {
	key := FormatKey(identifier)
	cutoff := l.now().Add(-l.cfg.Window)

	count, ok := l.countAfterPrune(ctx, key, cutoff)
	if !ok {
		return 0
	}
	remaining := l.cfg.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// ResetTime returns when the identifier's window frees a slot: the oldest
// surviving timestamp plus the window, or "now" when no entries survive.
func (l *Limiter) ResetTime(ctx context.Context, identifier string) time.Time {
	key := FormatKey(identifier)
	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	if err := l.withStore(ctx, func(ctx context.Context, s WindowStore) error {
		return s.Prune(ctx, key, cutoff)
	}); err != nil {
		return now
	}

	var oldest time.Time
	var found bool
	err := l.withStore(ctx, func(ctx context.Context, s WindowStore) error {
		var err error
		oldest, found, err = s.Oldest(ctx, key)
		return err
	})
	if err != nil || !found {
		return now
	}
	return oldest.Add(l.cfg.Window)
}

// admissionLock returns the stripe lock for the key.
func (l *Limiter) admissionLock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.admission[h.Sum32()%lockStripes]
}

// countAfterPrune prunes the key and returns the surviving count.
// The second return is false when even the fallback store failed.
func (l *Limiter) countAfterPrune(ctx context.Context, key string, cutoff time.Time) (int, bool) {
	if err := l.withStore(ctx, func(ctx context.Context, s WindowStore) error {
		return s.Prune(ctx, key, cutoff)
	}); err != nil {
		return 0, false
	}

	var count int
	err := l.withStore(ctx, func(ctx context.Context, s WindowStore) error {
		var err error
		count, err = s.Count(ctx, key)
		return err
	})
	if err != nil {
		return 0, false
	}
	return count, true
}

// withStore runs op against the active store. A primary failure (any
// error, including timeout) permanently switches to the fallback and
// retries the operation there once.
func (l *Limiter) withStore(ctx context.Context, op func(context.Context, WindowStore) error) error {
	if !l.fellBack.Load() {
		opCtx, cancel := context.WithTimeout(ctx, l.storeTimeout)
		err := op(opCtx, l.primary)
		cancel()
		if err == nil {
			return nil
		}
		if l.fellBack.CompareAndSwap(false, true) {
			l.logger.Warn("rate limit backend failed, switching to in-memory fallback for the process lifetime",
				"error", err)
		}
	}
	return op(ctx, l.fallback)
}
