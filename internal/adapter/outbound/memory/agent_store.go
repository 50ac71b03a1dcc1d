package memory

import (
	"context"
	"sync"

	"github.com/Grant-Gate/grantgate/internal/domain/auth"
)

// AgentStore implements auth.AgentStore with in-memory maps.
// Thread-safe for concurrent access. Seeded at startup from config.
type AgentStore struct {
	mu     sync.RWMutex
	keys   map[string]*auth.APIKey // keyHash -> APIKey
	agents map[string]*auth.Agent  // ID -> Agent
}

// NewAgentStore creates a new in-memory agent store.
func NewAgentStore() *AgentStore {
	return &AgentStore{
		keys:   make(map[string]*auth.APIKey),
		agents: make(map[string]*auth.Agent),
	}
}

// GetAPIKey retrieves an API key by its hash.
// Returns auth.ErrKeyNotFound if the key doesn't exist.
func (s *AgentStore) GetAPIKey(_ context.Context, keyHash string) (*auth.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[keyHash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}

	keyCopy := *key
	return &keyCopy, nil
}

// GetAgent retrieves an agent by ID.
// Returns auth.ErrAgentNotFound if the agent doesn't exist.
func (s *AgentStore) GetAgent(_ context.Context, id string) (*auth.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[id]
	if !ok {
		return nil, auth.ErrAgentNotFound
	}
	return copyAgent(agent), nil
}

// ListAPIKeys returns all stored API keys for iteration-based verification.
func (s *AgentStore) ListAPIKeys(_ context.Context) ([]*auth.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*auth.APIKey, 0, len(s.keys))
	for _, key := range s.keys {
		keyCopy := *key
		result = append(result, &keyCopy)
	}
	return result, nil
}

// AddKey adds an API key (for seeding/testing).
func (s *AgentStore) AddKey(key *auth.APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyCopy := *key
	s.keys[key.Key] = &keyCopy
}

// AddAgent adds an agent (for seeding/testing).
func (s *AgentStore) AddAgent(agent *auth.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = copyAgent(agent)
}

// copyAgent creates a deep copy of an agent.
func copyAgent(a *auth.Agent) *auth.Agent {
	agentCopy := *a
	agentCopy.Roles = make([]auth.Role, len(a.Roles))
	copy(agentCopy.Roles, a.Roles)
	return &agentCopy
}

// Compile-time interface verification.
var _ auth.AgentStore = (*AgentStore)(nil)
