package credential

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Grant-Gate/grantgate/internal/domain/auth"
	"github.com/Grant-Gate/grantgate/internal/domain/tool"
)

// ErrInvalidCredential is returned when a token does not resolve to a
// live, matching, unexpired credential. All validation failures look
// identical to the caller.
var ErrInvalidCredential = errors.New("invalid credential")

// Vendor issues, validates, and revokes credentials and tracks their usage.
//
// All three maps mutate together under one mutex so the token index stays
// a bijection onto live credentials.
type Vendor struct {
	mu          sync.Mutex
	signer      TokenSigner
	credentials map[string]*Credential // ID -> Credential
	tokenIndex  map[string]string      // Token -> ID
	usage       map[string][]time.Time // ID -> validation timestamps
	logger      *slog.Logger
}

// NewVendor creates a credential vendor backed by the given signer.
func NewVendor(signer TokenSigner, logger *slog.Logger) *Vendor {
	return &Vendor{
		signer:      signer,
		credentials: make(map[string]*Credential),
		tokenIndex:  make(map[string]string),
		usage:       make(map[string][]time.Time),
		logger:      logger,
	}
}

// Generate issues a new signed credential binding the agent to the tool.
// A non-positive ttl defaults to 15 minutes; empty scopes default to
// ["read"]. Fails only if the signer does.
func (v *Vendor) Generate(agent *auth.Agent, t *tool.Tool, ttl time.Duration, scopes []string) (*Credential, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}

	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(ttl)

	token, err := v.signer.Sign(TokenClaims{
		Subject:   agent.ID,
		Audience:  t.ID,
		ID:        uuid.NewString(),
		Scopes:    scopes,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue credential: %w", err)
	}

	cred := &Credential{
		ID:        uuid.NewString(),
		AgentID:   agent.ID,
		ToolID:    t.ID,
		Token:     token,
		Scopes:    append([]string(nil), scopes...),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}

	v.mu.Lock()
	v.credentials[cred.ID] = cred
	v.tokenIndex[cred.Token] = cred.ID
	v.usage[cred.ID] = nil
	v.mu.Unlock()

	v.logger.Debug("credential issued",
		"credential_id", cred.ID,
		"agent_id", agent.ID,
		"tool_id", t.ID,
		"expires_at", expiresAt)

	return copyCredential(cred), nil
}

// Validate resolves a token to its live credential. The zero time means
// "now". On success the validation time is appended to the credential's
// usage history. An expired credential is eagerly revoked on detection.
// Every failure mode returns ErrInvalidCredential.
func (v *Vendor) Validate(token string, at time.Time) (*Credential, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	id, ok := v.tokenIndex[token]
	if !ok {
		return nil, ErrInvalidCredential
	}

	cred, ok := v.credentials[id]
	if !ok {
		return nil, ErrInvalidCredential
	}

	claims, err := v.signer.Verify(token)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	if claims.Subject != cred.AgentID || claims.Audience != cred.ToolID {
		return nil, ErrInvalidCredential
	}

	if cred.IsExpired(at) {
		v.revokeLocked(id)
		v.logger.Debug("expired credential purged on validation", "credential_id", id)
		return nil, ErrInvalidCredential
	}

	v.usage[id] = append(v.usage[id], at)
	return copyCredential(cred), nil
}

// Revoke removes a credential, its token mapping, and its usage history.
// Idempotent: returns false if the credential was already absent.
func (v *Vendor) Revoke(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.credentials[id]; !ok {
		return false
	}
	v.revokeLocked(id)
	return true
}

// revokeLocked removes all three map entries. Must be called with the
// mutex held.
func (v *Vendor) revokeLocked(id string) {
	if cred, ok := v.credentials[id]; ok {
		delete(v.tokenIndex, cred.Token)
	}
	delete(v.credentials, id)
	delete(v.usage, id)
}

// CleanupExpired revokes every credential expired at the given time
// (zero means "now") and returns the number revoked. Intended for
// periodic out-of-band scheduling; no request path calls it implicitly.
func (v *Vendor) CleanupExpired(at time.Time) int {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var expired []string
	for id, cred := range v.credentials {
		if cred.ExpiresAt.Before(at) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		v.revokeLocked(id)
	}

	if len(expired) > 0 {
		v.logger.Debug("expired credentials cleaned up", "count", len(expired))
	}
	return len(expired)
}

// Usage returns the recorded validation timestamps for a credential,
// empty if unknown.
func (v *Vendor) Usage(id string) []time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]time.Time{}, v.usage[id]...)
}

// AgentCredentials returns a snapshot of the agent's currently non-expired
// credentials at the given time (zero means "now"). It never mutates state
// or triggers cleanup.
func (v *Vendor) AgentCredentials(agentID string, at time.Time) []Credential {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var result []Credential
	for _, cred := range v.credentials {
		if cred.AgentID == agentID && !cred.IsExpired(at) {
			result = append(result, *copyCredential(cred))
		}
	}
	return result
}

// Size returns the number of live credentials. Useful for monitoring.
func (v *Vendor) Size() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.credentials)
}

// copyCredential returns a copy so callers can never mutate vendor state.
func copyCredential(c *Credential) *Credential {
	credCopy := *c
	credCopy.Scopes = append([]string(nil), c.Scopes...)
	return &credCopy
}
