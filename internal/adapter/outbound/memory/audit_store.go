package memory

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/Grant-Gate/grantgate/internal/domain/audit"
)

const defaultRecentCap = 1000

// AuditStore implements audit.Store writing JSONL to stdout or a file,
// while keeping a bounded in-memory ring buffer for recent-record queries.
type AuditStore struct {
	mu      sync.Mutex
	encoder *json.Encoder
	writer  io.Writer
	// recent is a bounded ring buffer of the most recent records.
	recent []audit.AccessRecord
	cap    int
}

// resolveCapacity returns the first positive capacity value, or defaultRecentCap.
func resolveCapacity(capacity ...int) int {
	if len(capacity) > 0 && capacity[0] > 0 {
		return capacity[0]
	}
	return defaultRecentCap
}

// NewAuditStore creates an audit store writing to stdout.
// An optional capacity parameter sets the ring buffer size (default 1000).
func NewAuditStore(capacity ...int) *AuditStore {
	return NewAuditStoreWithWriter(os.Stdout, capacity...)
}

// NewAuditStoreWithWriter creates an audit store writing to the given writer.
func NewAuditStoreWithWriter(w io.Writer, capacity ...int) *AuditStore {
	c := resolveCapacity(capacity...)
	return &AuditStore{
		encoder: json.NewEncoder(w),
		writer:  w,
		recent:  make([]audit.AccessRecord, 0, c),
		cap:     c,
	}
}

// Append writes records as JSON lines and retains them in the ring buffer.
func (s *AuditStore) Append(_ context.Context, records ...audit.AccessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if err := s.encoder.Encode(r); err != nil {
			return err
		}
		if len(s.recent) >= s.cap {
			// Shift left, drop oldest.
			copy(s.recent, s.recent[1:])
			s.recent[len(s.recent)-1] = r
		} else {
			s.recent = append(s.recent, r)
		}
	}
	return nil
}

// Recent returns up to n of the most recent records, newest first.
func (s *AuditStore) Recent(_ context.Context, n int) ([]audit.AccessRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.recent)
	if n > total {
		n = total
	}
	if n <= 0 {
		return nil, nil
	}
	result := make([]audit.AccessRecord, n)
	for i := 0; i < n; i++ {
		result[i] = s.recent[total-1-i]
	}
	return result, nil
}

// Close releases the underlying file when the writer is one.
func (s *AuditStore) Close() error {
	if f, ok := s.writer.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Close()
	}
	return nil
}

// Compile-time interface verification.
var _ audit.Store = (*AuditStore)(nil)
