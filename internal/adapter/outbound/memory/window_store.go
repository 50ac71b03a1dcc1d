// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Grant-Gate/grantgate/internal/domain/ratelimit"
)

// WindowStore implements ratelimit.WindowStore with per-key sorted
// timestamp slices. Thread-safe. It is the local fallback behind the
// shared backend, and the default store in development.
// Includes background cleanup to prevent unbounded memory growth.
type WindowStore struct {
	mu              sync.Mutex
	windows         map[string][]time.Time
	touched         map[string]time.Time
	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
	maxTTL          time.Duration
}

// NewWindowStore creates an in-memory window store with default cleanup
// settings (5 minute interval, 1 hour max key age).
func NewWindowStore() *WindowStore {
	return NewWindowStoreWithConfig(5*time.Minute, time.Hour)
}

// NewWindowStoreWithConfig creates an in-memory window store with custom
// cleanup settings.
func NewWindowStoreWithConfig(cleanupInterval, maxTTL time.Duration) *WindowStore {
	return &WindowStore{
		windows:         make(map[string][]time.Time),
		touched:         make(map[string]time.Time),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
		maxTTL:          maxTTL,
	}
}

// Prune removes timestamps at or before the cutoff.
func (s *WindowStore) Prune(_ context.Context, key string, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.windows[key]
	// Entries are appended in order; find the first survivor.
	idx := 0
	for idx < len(entries) && !entries[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return nil
	}
	if idx == len(entries) {
		delete(s.windows, key)
		return nil
	}
	s.windows[key] = append([]time.Time(nil), entries[idx:]...)
	return nil
}

// Count returns the number of surviving timestamps for the key.
func (s *WindowStore) Count(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows[key]), nil
}

// Add records an event timestamp. The ttl parameter is tracked as a
// last-touch marker consumed by the background cleanup.
func (s *WindowStore) Add(_ context.Context, key string, at time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.windows[key] = append(s.windows[key], at)
	s.touched[key] = time.Now().UTC()
	return nil
}

// Oldest returns the earliest surviving timestamp for the key.
func (s *WindowStore) Oldest(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.windows[key]
	if len(entries) == 0 {
		return time.Time{}, false, nil
	}
	return entries[0], true, nil
}

// StartCleanup starts the background cleanup goroutine. It periodically
// removes keys untouched for longer than maxTTL and stops when ctx is
// cancelled or Stop is called.
func (s *WindowStore) StartCleanup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

// cleanup removes idle keys. Called only by the cleanup goroutine.
func (s *WindowStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-s.maxTTL)
	cleaned := 0

	for key, last := range s.touched {
		if last.Before(cutoff) {
			delete(s.windows, key)
			delete(s.touched, key)
			cleaned++
		}
	}

	if cleaned > 0 {
		slog.Debug("window store cleanup completed",
			"cleaned_keys", cleaned,
			"remaining_keys", len(s.windows))
	}
}

// Stop gracefully stops the cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (s *WindowStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// Size returns the current number of tracked keys. Useful for testing
// and monitoring memory usage.
func (s *WindowStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Compile-time interface verification.
var _ ratelimit.WindowStore = (*WindowStore)(nil)
