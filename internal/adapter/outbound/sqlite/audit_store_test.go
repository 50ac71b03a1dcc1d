package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Grant-Gate/grantgate/internal/domain/audit"
)

func testStore(t *testing.T) *AuditStore {
	t.Helper()
	store, err := NewAuditStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewAuditStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	records := []audit.AccessRecord{
		{
			Timestamp:    base,
			AgentID:      "agent-1",
			ToolID:       "tool-a",
			Decision:     audit.DecisionAllow,
			Reason:       "No policies defined",
			Scopes:       []string{"read", "write"},
			CredentialID: "cred-1",
		},
		{
			Timestamp: base.Add(time.Minute),
			AgentID:   "agent-2",
			ToolID:    "tool-b",
			Decision:  audit.DecisionDeny,
			Reason:    "No applicable policy found",
		},
		{
			Timestamp: base.Add(2 * time.Minute),
			Decision:  audit.DecisionRateLimited,
		},
	}

	if err := store.Append(ctx, records...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d records, want 2", len(recent))
	}
	if recent[0].Decision != audit.DecisionRateLimited {
		t.Errorf("recent[0] = %s, want newest first", recent[0].Decision)
	}
	if recent[1].AgentID != "agent-2" {
		t.Errorf("recent[1].AgentID = %s, want agent-2", recent[1].AgentID)
	}
}

func TestRoundTripPreservesFields(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	record := audit.AccessRecord{
		Timestamp:    time.Date(2026, 2, 1, 9, 30, 15, 123456789, time.UTC),
		AgentID:      "agent-9",
		ToolID:       "vector-db",
		Decision:     audit.DecisionAllow,
		Reason:       "Access granted by policy Readers",
		Scopes:       []string{"read"},
		CredentialID: "cred-42",
	}
	if err := store.Append(ctx, record); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recent, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("got %d records, want 1", len(recent))
	}

	got := recent[0]
	if !got.Timestamp.Equal(record.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, record.Timestamp)
	}
	if got.Reason != record.Reason || got.CredentialID != record.CredentialID {
		t.Errorf("got %+v, want %+v", got, record)
	}
	if len(got.Scopes) != 1 || got.Scopes[0] != "read" {
		t.Errorf("scopes = %v, want [read]", got.Scopes)
	}
}

func TestRecentOnEmptyStore(t *testing.T) {
	store := testStore(t)

	recent, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("got %d records, want 0", len(recent))
	}
}
