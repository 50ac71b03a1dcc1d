package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Grant-Gate/grantgate/internal/domain/credential"
)

// DefaultCleanupInterval is how often the janitor sweeps expired
// credentials when no interval is configured.
const DefaultCleanupInterval = time.Minute

// Janitor periodically revokes expired credentials. Expiry cleanup is
// deliberately out-of-band: no request path triggers it.
type Janitor struct {
	vendor   *credential.Vendor
	interval time.Duration
	logger   *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewJanitor creates a janitor sweeping at the given interval.
// A non-positive interval falls back to DefaultCleanupInterval.
func NewJanitor(vendor *credential.Vendor, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &Janitor{
		vendor:   vendor,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the sweep goroutine. It stops when ctx is cancelled or
// Stop is called.
func (j *Janitor) Start(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-j.stopChan:
				return
			case <-ticker.C:
				j.sweep()
			}
		}
	}()
}

// sweep revokes everything expired right now.
func (j *Janitor) sweep() {
	if revoked := j.vendor.CleanupExpired(time.Time{}); revoked > 0 {
		j.logger.Info("expired credentials revoked", "count", revoked)
	}
}

// Stop gracefully stops the sweep goroutine and waits for it to exit.
// Safe to call multiple times.
func (j *Janitor) Stop() {
	j.once.Do(func() {
		close(j.stopChan)
	})
	j.wg.Wait()
}
