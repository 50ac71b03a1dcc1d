package auth

import (
	"context"
	"errors"
)

// Sentinel errors for agent store operations.
var (
	// ErrAgentNotFound is returned when an agent is not found.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrKeyNotFound is returned when an API key is not found.
	ErrKeyNotFound = errors.New("api key not found")
)

// AgentStore provides credential and agent lookup for authentication.
// This interface is defined in the domain to avoid circular imports.
// Implementations: in-memory (dev), database-backed (prod).
type AgentStore interface {
	// GetAPIKey retrieves an API key by its hash.
	// Returns ErrKeyNotFound if the key doesn't exist.
	GetAPIKey(ctx context.Context, keyHash string) (*APIKey, error)

	// GetAgent retrieves an agent by ID.
	// Returns ErrAgentNotFound if the agent doesn't exist.
	GetAgent(ctx context.Context, id string) (*Agent, error)

	// ListAPIKeys returns all stored API keys for iteration-based
	// verification (Argon2id hashes cannot be looked up directly).
	ListAPIKeys(ctx context.Context) ([]*APIKey, error)
}
