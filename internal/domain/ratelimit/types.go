// Package ratelimit provides sliding-window rate limiting with a shared
// backend and a one-way local fallback.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Config defines the sliding-window parameters.
type Config struct {
	// Limit is the maximum number of admitted events per identifier
	// inside any trailing Window.
	Limit int

	// Window is the trailing time window.
	Window time.Duration
}

// WindowStore persists per-identifier event timestamps inside a trailing
// window. The operation set maps directly onto Redis sorted sets
// (prune-by-score, cardinality, add-scored-member with TTL,
// range-with-scores), allowing shared and in-memory implementations.
//
// Implementations must be safe for concurrent use.
type WindowStore interface {
	// Prune removes timestamps at or before the cutoff.
	Prune(ctx context.Context, key string, cutoff time.Time) error

	// Count returns the number of surviving timestamps.
	Count(ctx context.Context, key string) (int, error)

	// Add records an event timestamp and refreshes the key's TTL.
	Add(ctx context.Context, key string, at time.Time, ttl time.Duration) error

	// Oldest returns the earliest surviving timestamp.
	// The second return is false when the key holds no entries.
	Oldest(ctx context.Context, key string) (time.Time, bool, error)
}

// keyPrefix namespaces all rate limit keys in shared stores.
const keyPrefix = "ratelimit"

// FormatKey returns the namespaced store key for an identifier.
func FormatKey(identifier string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, identifier)
}
