package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// mockAgentStore is a test double keyed the way the real stores are.
type mockAgentStore struct {
	keys   map[string]*APIKey
	agents map[string]*Agent
}

func newMockAgentStore() *mockAgentStore {
	return &mockAgentStore{
		keys:   make(map[string]*APIKey),
		agents: make(map[string]*Agent),
	}
}

func (m *mockAgentStore) GetAPIKey(_ context.Context, keyHash string) (*APIKey, error) {
	key, ok := m.keys[keyHash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

func (m *mockAgentStore) GetAgent(_ context.Context, id string) (*Agent, error) {
	agent, ok := m.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return agent, nil
}

func (m *mockAgentStore) ListAPIKeys(_ context.Context) ([]*APIKey, error) {
	result := make([]*APIKey, 0, len(m.keys))
	for _, key := range m.keys {
		result = append(result, key)
	}
	return result, nil
}

func TestAuthenticateSHA256(t *testing.T) {
	store := newMockAgentStore()
	store.agents["agent-1"] = &Agent{ID: "agent-1", Name: "worker", Roles: []Role{RoleUser}}
	store.keys[HashKey("valid-key")] = &APIKey{Key: HashKey("valid-key"), AgentID: "agent-1"}

	svc := NewAPIKeyService(store)

	agent, err := svc.Authenticate(context.Background(), "valid-key")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if agent.ID != "agent-1" {
		t.Errorf("agent ID = %s, want agent-1", agent.ID)
	}

	if _, err := svc.Authenticate(context.Background(), "wrong-key"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("error = %v, want ErrInvalidKey", err)
	}
}

func TestAuthenticateArgon2id(t *testing.T) {
	hash, err := HashKeyArgon2id("argon-key")
	if err != nil {
		t.Fatalf("HashKeyArgon2id: %v", err)
	}

	store := newMockAgentStore()
	store.agents["agent-1"] = &Agent{ID: "agent-1", Roles: []Role{RoleUser}}
	store.keys[hash] = &APIKey{Key: hash, AgentID: "agent-1"}

	svc := NewAPIKeyService(store)

	agent, err := svc.Authenticate(context.Background(), "argon-key")
	if err != nil {
		t.Fatalf("Authenticate via argon2id iteration: %v", err)
	}
	if agent.ID != "agent-1" {
		t.Errorf("agent ID = %s, want agent-1", agent.ID)
	}
}

func TestAuthenticateRejectsRevokedAndExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name string
		key  *APIKey
	}{
		{
			name: "revoked",
			key:  &APIKey{Key: HashKey("k"), AgentID: "agent-1", Revoked: true},
		},
		{
			name: "expired",
			key:  &APIKey{Key: HashKey("k"), AgentID: "agent-1", ExpiresAt: &past},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockAgentStore()
			store.agents["agent-1"] = &Agent{ID: "agent-1"}
			store.keys[tt.key.Key] = tt.key

			svc := NewAPIKeyService(store)
			if _, err := svc.Authenticate(context.Background(), "k"); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("error = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestAuthenticateUnknownAgent(t *testing.T) {
	store := newMockAgentStore()
	store.keys[HashKey("k")] = &APIKey{Key: HashKey("k"), AgentID: "ghost"}

	svc := NewAPIKeyService(store)
	if _, err := svc.Authenticate(context.Background(), "k"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("error = %v, want ErrAgentNotFound", err)
	}
}

func TestDetectHashType(t *testing.T) {
	tests := []struct {
		name string
		hash string
		want string
	}{
		{"argon2id PHC", "$argon2id$v=19$m=48128,t=1,p=1$c2FsdA$aGFzaA", "argon2id"},
		{"prefixed sha256", "sha256:" + HashKey("x"), "sha256"},
		{"bare sha256 hex", HashKey("x"), "sha256"},
		{"too short", "abc123", "unknown"},
		{"right length, not hex", strings.Repeat("z", 64), "unknown"},
		{"empty", "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectHashType(tt.hash); got != tt.want {
				t.Errorf("DetectHashType(%q) = %q, want %q", tt.hash, got, tt.want)
			}
		})
	}
}

func TestVerifyKey(t *testing.T) {
	argonHash, err := HashKeyArgon2id("secret")
	if err != nil {
		t.Fatalf("HashKeyArgon2id: %v", err)
	}

	tests := []struct {
		name    string
		raw     string
		stored  string
		want    bool
		wantErr error
	}{
		{"sha256 match", "secret", HashKey("secret"), true, nil},
		{"sha256 prefixed match", "secret", "sha256:" + HashKey("secret"), true, nil},
		{"sha256 mismatch", "other", HashKey("secret"), false, nil},
		{"argon2id match", "secret", argonHash, true, nil},
		{"argon2id mismatch", "other", argonHash, false, nil},
		{"unknown format", "secret", "not-a-hash", false, ErrUnknownHashType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyKey(tt.raw, tt.stored)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("VerifyKey: %v", err)
			}
			if got != tt.want {
				t.Errorf("match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyKeyMalformedArgon2idDoesNotPanic(t *testing.T) {
	// t=0 rounds makes the underlying library panic; VerifyKey must
	// convert that to an error.
	malformed := "$argon2id$v=19$m=65536,t=0,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA"
	match, err := VerifyKey("secret", malformed)
	if match {
		t.Error("malformed hash must not match")
	}
	if err == nil {
		t.Error("expected an error for malformed argon2id parameters")
	}
}
