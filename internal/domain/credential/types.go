// Package credential issues, validates, and revokes signed, scoped,
// time-bounded credentials for agent tool access.
package credential

import (
	"time"
)

// Default issuance parameters applied when the caller passes zero values.
const (
	// DefaultTTL is the credential lifetime when none was requested.
	DefaultTTL = 15 * time.Minute
)

// DefaultScopes are granted when no scopes were requested.
func DefaultScopes() []string {
	return []string{"read"}
}

// Credential binds an agent to a tool for a bounded time with a scoped,
// signed token. The token is self-describing: subject, audience, expiry
// and scopes can be checked without a storage round-trip, as defense in
// depth alongside the server-side credential map.
type Credential struct {
	// ID is the server-side identifier for this credential.
	ID string
	// AgentID is the agent the credential was issued to.
	AgentID string
	// ToolID is the tool the credential grants access to.
	ToolID string
	// Token is the signed compact token handed to the caller.
	Token string
	// Scopes are the capability strings this credential carries.
	Scopes []string
	// IssuedAt is when the credential was issued (UTC).
	IssuedAt time.Time
	// ExpiresAt is when the credential expires (UTC). Always after IssuedAt.
	ExpiresAt time.Time
}

// IsExpired returns true if the credential has expired at the given time.
func (c *Credential) IsExpired(at time.Time) bool {
	return at.After(c.ExpiresAt)
}
