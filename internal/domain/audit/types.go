// Package audit contains domain types for access-decision audit records.
package audit

import (
	"context"
	"time"
)

// Decision constants for audit records.
const (
	// DecisionAllow indicates access was granted.
	DecisionAllow = "allow"
	// DecisionDeny indicates access was denied.
	DecisionDeny = "deny"
	// DecisionRateLimited indicates the request never reached evaluation.
	DecisionRateLimited = "rate_limited"
)

// AccessRecord is one audited access request outcome.
type AccessRecord struct {
	// Timestamp is when the decision was made (UTC).
	Timestamp time.Time `json:"timestamp"`
	// AgentID identifies the requesting agent (empty when the request
	// was rejected before authentication).
	AgentID string `json:"agent_id,omitempty"`
	// ToolID identifies the requested tool.
	ToolID string `json:"tool_id,omitempty"`
	// Decision is allow, deny, or rate_limited.
	Decision string `json:"decision"`
	// Reason is the decision reason from the stable vocabulary.
	Reason string `json:"reason,omitempty"`
	// Scopes are the granted scopes (allow only).
	Scopes []string `json:"scopes,omitempty"`
	// CredentialID is the issued credential (allow only).
	CredentialID string `json:"credential_id,omitempty"`
}

// Store persists access records. The trust core calls it from the request
// pipeline; implementations decide durability (stdout, file, SQLite).
type Store interface {
	// Append stores access records.
	Append(ctx context.Context, records ...AccessRecord) error

	// Recent returns up to n of the most recent records, newest first.
	Recent(ctx context.Context, n int) ([]AccessRecord, error)

	// Close releases resources.
	Close() error
}
