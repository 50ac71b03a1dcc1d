package authz

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Grant-Gate/grantgate/internal/domain/auth"
	"github.com/Grant-Gate/grantgate/internal/domain/tool"
)

// ErrPolicyNotFound is returned when a policy ID is not registered.
var ErrPolicyNotFound = errors.New("policy not found")

// Service evaluates tool access requests against registered policies.
//
// The evaluation cascade is: admin override, then no-policy default grant,
// then first applicable policy in descending priority order, then deny.
// All state is guarded by a single RWMutex; reads return deep copies so
// callers can never mutate registered policies.
type Service struct {
	mu         sync.RWMutex
	policies   map[string]*Policy // ID -> Policy
	accessLog  []LogEntry
	conditions ConditionEvaluator // optional, nil disables rule conditions
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithConditionEvaluator installs an evaluator for rule Condition
// expressions. Without one, policies carrying a condition never apply.
func WithConditionEvaluator(ev ConditionEvaluator) Option {
	return func(s *Service) { s.conditions = ev }
}

// NewService creates a new authorization service.
func NewService(logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		policies: make(map[string]*Policy),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateAccess decides whether the agent may access the tool.
//
// Admins are always granted the tool's full scope set for 60 minutes,
// overriding all policies. A tool with no attached policies grants its
// allowed scopes for 30 minutes. Otherwise the tool's policies are
// evaluated in descending priority order and the first applicable policy
// decides. When no policy applies, access is denied.
func (s *Service) EvaluateAccess(agent *auth.Agent, t *tool.Tool, evalCtx *EvalContext) Decision {
	if agent.IsAdmin() {
		return Decision{
			Granted:         true,
			Reason:          ReasonAdminAccess,
			Scopes:          copyStrings(t.AllowedScopes),
			DurationMinutes: adminDurationMinutes,
		}
	}

	attached := s.attachedPolicies(t)
	if len(attached) == 0 {
		return Decision{
			Granted:         true,
			Reason:          ReasonNoPolicies,
			Scopes:          copyStrings(t.AllowedScopes),
			DurationMinutes: policyDurationMinutes,
		}
	}

	for _, p := range attached {
		if s.policyApplies(p, agent, t) {
			return s.evaluatePolicyRules(p, t, evalCtx)
		}
	}

	return Decision{Granted: false, Reason: ReasonNoApplicablePolicy}
}

// CheckAccess evaluates access and additionally requires every requested
// scope to be covered by the decision's granted scopes.
func (s *Service) CheckAccess(agent *auth.Agent, t *tool.Tool, requestedScopes []string) Decision {
	decision := s.EvaluateAccess(agent, t, nil)
	if !decision.Granted {
		return decision
	}

	granted := make(map[string]struct{}, len(decision.Scopes))
	for _, sc := range decision.Scopes {
		granted[sc] = struct{}{}
	}
	for _, sc := range requestedScopes {
		if _, ok := granted[sc]; !ok {
			return Decision{Granted: false, Reason: ReasonScopesNotAllowed}
		}
	}
	return decision
}

// attachedPolicies resolves the tool's policy references against the
// registry and orders them by descending priority. The sort is stable, so
// equal priorities keep attachment order. Unresolvable references are
// skipped rather than treated as errors.
func (s *Service) attachedPolicies(t *tool.Tool) []*Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Policy, 0, len(t.PolicyIDs))
	for _, id := range t.PolicyIDs {
		if p, ok := s.policies[id]; ok {
			result = append(result, copyPolicy(p))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority > result[j].Priority
	})
	return result
}

// policyApplies reports whether the policy's matching clauses hold for the
// agent/tool pair. Absent clauses match anything.
func (s *Service) policyApplies(p *Policy, agent *auth.Agent, t *tool.Tool) bool {
	if len(p.Rules.Roles) > 0 && !agent.HasAnyRole(p.Rules.Roles...) {
		return false
	}

	if len(p.Rules.ToolIDs) > 0 && !containsString(p.Rules.ToolIDs, t.ID) {
		return false
	}

	if len(p.Rules.Tags) > 0 && !anyTagMatches(p.Rules.Tags, t) {
		return false
	}

	if p.Rules.Condition != "" {
		if s.conditions == nil {
			return false
		}
		ok, err := s.conditions.EvaluateCondition(p.Rules.Condition, ConditionInput{
			Agent: *agent,
			Tool:  *t,
		})
		if err != nil {
			// Malformed conditions never panic or deny globally; the
			// policy simply does not apply.
			s.logger.Warn("policy condition failed to evaluate",
				"policy_id", p.ID,
				"error", err)
			return false
		}
		return ok
	}

	return true
}

// evaluatePolicyRules produces the decision for an applicable policy:
// a base grant, then restriction checks that fail closed when violated.
func (s *Service) evaluatePolicyRules(p *Policy, t *tool.Tool, evalCtx *EvalContext) Decision {
	scopes := p.Rules.AllowedScopes
	if len(scopes) == 0 {
		scopes = t.AllowedScopes
	}

	decision := Decision{
		Granted:         true,
		Reason:          fmt.Sprintf("Access granted by policy %s", p.Name),
		Scopes:          copyStrings(scopes),
		DurationMinutes: policyDurationMinutes,
	}

	now := evalCtx.evalTime()

	if tr := p.Rules.TimeRestrictions; tr != nil {
		if !timeAllowed(tr, now) {
			return Decision{Granted: false, Reason: ReasonTimeRestricted}
		}
	}

	if rl := p.Rules.ResourceLimits; rl != nil && rl.MaxCallsPerMinute > 0 {
		var history []time.Time
		if evalCtx != nil {
			history = evalCtx.CallHistory
		}
		if countRecent(history, now) >= rl.MaxCallsPerMinute {
			return Decision{Granted: false, Reason: ReasonResourceLimited}
		}
		// MaxCostPerDay is declared but not enforced.
	}

	return decision
}

// timeAllowed checks the evaluation time against day and hour restrictions.
// Day indices use Monday = 0 through Sunday = 6.
func timeAllowed(tr *TimeRestrictions, now time.Time) bool {
	if len(tr.AllowedDays) > 0 {
		day := (int(now.Weekday()) + 6) % 7 // time.Weekday has Sunday = 0
		if !containsInt(tr.AllowedDays, day) {
			return false
		}
	}

	if len(tr.AllowedHours) > 0 {
		hour := now.Hour()
		inRange := false
		for _, r := range tr.AllowedHours {
			if r.Contains(hour) {
				inRange = true
				break
			}
		}
		if !inRange {
			return false
		}
	}

	return true
}

// countRecent counts call history timestamps within the trailing 60 seconds.
func countRecent(history []time.Time, now time.Time) int {
	cutoff := now.Add(-60 * time.Second)
	count := 0
	for _, ts := range history {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// AddPolicy registers a policy. A missing ID is assigned; a missing
// CreatedAt is stamped. Re-adding an existing ID replaces the policy.
func (s *Service) AddPolicy(p Policy) Policy {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.policies[p.ID] = copyPolicy(&p)
	s.mu.Unlock()

	s.logger.Debug("policy registered", "policy_id", p.ID, "name", p.Name, "priority", p.Priority)
	return p
}

// RemovePolicy unregisters a policy by ID. Returns false if the policy
// was already absent.
func (s *Service) RemovePolicy(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[id]; !ok {
		return false
	}
	delete(s.policies, id)
	return true
}

// GetPolicy returns a copy of the policy with the given ID.
// Returns ErrPolicyNotFound if it doesn't exist.
func (s *Service) GetPolicy(id string) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	return copyPolicy(p), nil
}

// ListPolicies returns copies of all registered policies sorted by
// descending priority.
func (s *Service) ListPolicies() []Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Policy, 0, len(s.policies))
	for _, p := range s.policies {
		result = append(result, *copyPolicy(p))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority > result[j].Priority
	})
	return result
}

// RecordDecision appends an access-decision record. This core only records
// entries when explicitly asked; EvaluateAccess itself never writes logs.
func (s *Service) RecordDecision(agentID, toolID string, decision Decision) {
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		AgentID:   agentID,
		ToolID:    toolID,
		Decision:  decision,
	}

	s.mu.Lock()
	s.accessLog = append(s.accessLog, entry)
	s.mu.Unlock()
}

// AccessLogs returns the recorded decisions in insertion order.
func (s *Service) AccessLogs() []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LogEntry{}, s.accessLog...)
}

// copyPolicy creates a deep copy of a policy.
func copyPolicy(p *Policy) *Policy {
	policyCopy := &Policy{
		ID:        p.ID,
		Name:      p.Name,
		Priority:  p.Priority,
		CreatedAt: p.CreatedAt,
		Rules: Rules{
			Roles:         append([]auth.Role(nil), p.Rules.Roles...),
			AllowedScopes: copyStrings(p.Rules.AllowedScopes),
			ToolIDs:       copyStrings(p.Rules.ToolIDs),
			Tags:          copyStrings(p.Rules.Tags),
			Condition:     p.Rules.Condition,
		},
	}
	if p.Rules.TimeRestrictions != nil {
		tr := TimeRestrictions{
			AllowedDays:  append([]int(nil), p.Rules.TimeRestrictions.AllowedDays...),
			AllowedHours: append([]HourRange(nil), p.Rules.TimeRestrictions.AllowedHours...),
		}
		policyCopy.Rules.TimeRestrictions = &tr
	}
	if p.Rules.ResourceLimits != nil {
		rl := *p.Rules.ResourceLimits
		policyCopy.Rules.ResourceLimits = &rl
	}
	return policyCopy
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsInt(haystack []int, needle int) bool {
	for _, n := range haystack {
		if n == needle {
			return true
		}
	}
	return false
}

func anyTagMatches(tags []string, t *tool.Tool) bool {
	for _, tag := range tags {
		if t.HasTag(tag) {
			return true
		}
	}
	return false
}
