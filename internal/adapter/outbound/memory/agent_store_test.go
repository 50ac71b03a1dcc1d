package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/Grant-Gate/grantgate/internal/domain/auth"
)

func TestAgentStoreGetAPIKey(t *testing.T) {
	store := NewAgentStore()
	store.AddKey(&auth.APIKey{Key: "hash-1", AgentID: "agent-1", Name: "ci"})

	key, err := store.GetAPIKey(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key.AgentID != "agent-1" || key.Name != "ci" {
		t.Errorf("key = %+v, want agent-1/ci", key)
	}

	if _, err := store.GetAPIKey(context.Background(), "missing"); !errors.Is(err, auth.ErrKeyNotFound) {
		t.Errorf("error = %v, want ErrKeyNotFound", err)
	}
}

func TestAgentStoreGetAgent(t *testing.T) {
	store := NewAgentStore()
	store.AddAgent(&auth.Agent{ID: "agent-1", Name: "worker", Roles: []auth.Role{auth.RoleUser}})

	agent, err := store.GetAgent(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if agent.Name != "worker" {
		t.Errorf("agent name = %q, want worker", agent.Name)
	}

	// Mutating the returned copy must not affect the stored agent.
	agent.Roles[0] = auth.RoleAdmin
	again, err := store.GetAgent(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if again.Roles[0] != auth.RoleUser {
		t.Error("stored agent was mutated through a returned copy")
	}

	if _, err := store.GetAgent(context.Background(), "ghost"); !errors.Is(err, auth.ErrAgentNotFound) {
		t.Errorf("error = %v, want ErrAgentNotFound", err)
	}
}

func TestAgentStoreListAPIKeys(t *testing.T) {
	store := NewAgentStore()
	store.AddKey(&auth.APIKey{Key: "hash-1", AgentID: "agent-1"})
	store.AddKey(&auth.APIKey{Key: "hash-2", AgentID: "agent-2"})

	keys, err := store.ListAPIKeys(context.Background())
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("listed %d keys, want 2", len(keys))
	}
}
