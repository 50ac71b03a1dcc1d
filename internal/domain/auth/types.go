// Package auth contains the domain types and logic for agent authentication.
package auth

import (
	"time"
)

// Role represents an agent role for authorization purposes.
type Role string

const (
	// RoleAdmin bypasses policy evaluation entirely.
	RoleAdmin Role = "admin"
	// RoleUser has policy-governed access.
	RoleUser Role = "user"
	// RoleReadOnly is restricted to read scopes by convention.
	RoleReadOnly Role = "readonly"
)

// Agent represents an automated principal that calls registered tools.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string
	// Name is the display name for this agent.
	Name string
	// Roles are the roles assigned to this agent.
	Roles []Role
}

// HasRole returns true if the agent has the specified role.
func (a *Agent) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole returns true if the agent has any of the specified roles.
func (a *Agent) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if a.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin returns true if the agent carries the admin role.
func (a *Agent) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// APIKey represents an API key used by a caller to authenticate as an agent.
type APIKey struct {
	// Key is the hashed key value (SHA-256 hex or Argon2id PHC format).
	Key string
	// AgentID maps this key to an Agent.
	AgentID string
	// Name is a human-readable label for this key.
	Name string
	// CreatedAt is when the key was created (UTC).
	CreatedAt time.Time
	// ExpiresAt is when the key expires (nil = never expires).
	ExpiresAt *time.Time
	// Revoked indicates if the key has been revoked.
	Revoked bool
}

// IsExpired returns true if the API key has expired.
// A key with nil ExpiresAt never expires.
func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().UTC().After(*k.ExpiresAt)
}
