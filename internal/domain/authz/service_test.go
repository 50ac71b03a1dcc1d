package authz

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/Grant-Gate/grantgate/internal/domain/auth"
	"github.com/Grant-Gate/grantgate/internal/domain/tool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testTool(policyIDs ...string) *tool.Tool {
	return &tool.Tool{
		ID:            "search-index",
		Name:          "Search Index",
		AllowedScopes: []string{"read", "write", "execute"},
		Tags:          []string{"search", "data"},
		PolicyIDs:     policyIDs,
	}
}

func userAgent() *auth.Agent {
	return &auth.Agent{ID: "agent-1", Name: "worker", Roles: []auth.Role{auth.RoleUser}}
}

func adminAgent() *auth.Agent {
	return &auth.Agent{ID: "agent-root", Name: "root", Roles: []auth.Role{auth.RoleAdmin}}
}

func TestEvaluateAccessAdminOverride(t *testing.T) {
	svc := NewService(testLogger())

	// A restrictive policy is attached but must be ignored for admins.
	svc.AddPolicy(Policy{
		ID:    "deny-everyone",
		Name:  "Deny Everyone",
		Rules: Rules{Roles: []auth.Role{"nobody"}},
	})

	decision := svc.EvaluateAccess(adminAgent(), testTool("deny-everyone"), nil)

	if !decision.Granted {
		t.Fatal("expected admin access to be granted")
	}
	if decision.Reason != ReasonAdminAccess {
		t.Errorf("reason = %q, want %q", decision.Reason, ReasonAdminAccess)
	}
	if decision.DurationMinutes != 60 {
		t.Errorf("duration = %d, want 60", decision.DurationMinutes)
	}
	if len(decision.Scopes) != 3 {
		t.Errorf("scopes = %v, want the tool's full scope set", decision.Scopes)
	}
}

func TestEvaluateAccessNoPolicies(t *testing.T) {
	svc := NewService(testLogger())
	tl := testTool()

	decision := svc.EvaluateAccess(userAgent(), tl, nil)

	if !decision.Granted {
		t.Fatal("expected access to be granted for a tool with no policies")
	}
	if decision.Reason != ReasonNoPolicies {
		t.Errorf("reason = %q, want %q", decision.Reason, ReasonNoPolicies)
	}
	if decision.DurationMinutes != 30 {
		t.Errorf("duration = %d, want 30", decision.DurationMinutes)
	}
	if got, want := len(decision.Scopes), len(tl.AllowedScopes); got != want {
		t.Errorf("scopes = %v, want tool.AllowedScopes", decision.Scopes)
	}
}

func TestPolicyApplies(t *testing.T) {
	tests := []struct {
		name    string
		rules   Rules
		granted bool
		reason  string
	}{
		{
			name:    "matching role",
			rules:   Rules{Roles: []auth.Role{auth.RoleUser}},
			granted: true,
			reason:  "Access granted by policy P",
		},
		{
			name:    "role mismatch",
			rules:   Rules{Roles: []auth.Role{"operator"}},
			granted: false,
			reason:  ReasonNoApplicablePolicy,
		},
		{
			name:    "absent roles is wildcard",
			rules:   Rules{},
			granted: true,
			reason:  "Access granted by policy P",
		},
		{
			name:    "tool id listed",
			rules:   Rules{ToolIDs: []string{"search-index", "other"}},
			granted: true,
			reason:  "Access granted by policy P",
		},
		{
			name:    "tool id not listed",
			rules:   Rules{ToolIDs: []string{"other"}},
			granted: false,
			reason:  ReasonNoApplicablePolicy,
		},
		{
			name:    "tag intersection",
			rules:   Rules{Tags: []string{"data", "unrelated"}},
			granted: true,
			reason:  "Access granted by policy P",
		},
		{
			name:    "no tag intersection",
			rules:   Rules{Tags: []string{"unrelated"}},
			granted: false,
			reason:  ReasonNoApplicablePolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(testLogger())
			svc.AddPolicy(Policy{ID: "p1", Name: "P", Rules: tt.rules})

			decision := svc.EvaluateAccess(userAgent(), testTool("p1"), nil)

			if decision.Granted != tt.granted {
				t.Errorf("granted = %v, want %v", decision.Granted, tt.granted)
			}
			if decision.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", decision.Reason, tt.reason)
			}
		})
	}
}

func TestEvaluateAccessPriorityOrder(t *testing.T) {
	svc := NewService(testLogger())

	// Both policies apply; the higher priority one must decide even
	// though it was attached second.
	svc.AddPolicy(Policy{ID: "low", Name: "Low", Priority: 1})
	svc.AddPolicy(Policy{
		ID:       "high",
		Name:     "High",
		Priority: 10,
		Rules:    Rules{AllowedScopes: []string{"read"}},
	})

	decision := svc.EvaluateAccess(userAgent(), testTool("low", "high"), nil)

	if !decision.Granted {
		t.Fatal("expected access to be granted")
	}
	if decision.Reason != "Access granted by policy High" {
		t.Errorf("reason = %q, want the high priority policy to win", decision.Reason)
	}
	if len(decision.Scopes) != 1 || decision.Scopes[0] != "read" {
		t.Errorf("scopes = %v, want [read]", decision.Scopes)
	}
}

func TestTimeRestrictions(t *testing.T) {
	// Weekday policy: Monday through Friday, 09:00-17:00.
	weekdayRules := Rules{
		Roles:         []auth.Role{auth.RoleUser},
		AllowedScopes: []string{"read", "write"},
		TimeRestrictions: &TimeRestrictions{
			AllowedDays:  []int{0, 1, 2, 3, 4},
			AllowedHours: []HourRange{{Start: 9, End: 17}},
		},
	}

	tests := []struct {
		name    string
		at      time.Time
		granted bool
	}{
		{
			name:    "monday mid-morning",
			at:      time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), // Monday
			granted: true,
		},
		{
			name:    "saturday mid-morning",
			at:      time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC), // Saturday
			granted: false,
		},
		{
			name:    "monday before hours",
			at:      time.Date(2026, 1, 5, 3, 0, 0, 0, time.UTC),
			granted: false,
		},
		{
			name:    "end hour is exclusive",
			at:      time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC),
			granted: false,
		},
		{
			name:    "start hour is inclusive",
			at:      time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
			granted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(testLogger())
			svc.AddPolicy(Policy{ID: "hours", Name: "Business Hours", Rules: weekdayRules})

			decision := svc.EvaluateAccess(userAgent(), testTool("hours"), &EvalContext{CurrentTime: tt.at})

			if decision.Granted != tt.granted {
				t.Fatalf("granted = %v, want %v", decision.Granted, tt.granted)
			}
			if !tt.granted && decision.Reason != ReasonTimeRestricted {
				t.Errorf("reason = %q, want %q", decision.Reason, ReasonTimeRestricted)
			}
		})
	}
}

func TestResourceLimits(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	history := func(n int) []time.Time {
		out := make([]time.Time, n)
		for i := range out {
			out[i] = now.Add(-time.Duration(i+1) * time.Second)
		}
		return out
	}

	tests := []struct {
		name    string
		history []time.Time
		granted bool
	}{
		{name: "under the limit", history: history(3), granted: true},
		{name: "over the limit", history: history(6), granted: false},
		{name: "at the limit", history: history(5), granted: false},
		{
			name: "old calls do not count",
			history: []time.Time{
				now.Add(-2 * time.Minute),
				now.Add(-3 * time.Minute),
				now.Add(-4 * time.Minute),
				now.Add(-5 * time.Minute),
				now.Add(-6 * time.Minute),
				now.Add(-7 * time.Minute),
			},
			granted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(testLogger())
			svc.AddPolicy(Policy{
				ID:   "throttled",
				Name: "Throttled",
				Rules: Rules{
					ResourceLimits: &ResourceLimits{MaxCallsPerMinute: 5},
				},
			})

			decision := svc.EvaluateAccess(userAgent(), testTool("throttled"), &EvalContext{
				CurrentTime: now,
				CallHistory: tt.history,
			})

			if decision.Granted != tt.granted {
				t.Fatalf("granted = %v, want %v", decision.Granted, tt.granted)
			}
			if !tt.granted && decision.Reason != ReasonResourceLimited {
				t.Errorf("reason = %q, want %q", decision.Reason, ReasonResourceLimited)
			}
		})
	}
}

func TestCheckAccessScopeSubset(t *testing.T) {
	svc := NewService(testLogger())
	svc.AddPolicy(Policy{
		ID:    "readers",
		Name:  "Readers",
		Rules: Rules{AllowedScopes: []string{"read"}},
	})
	tl := testTool("readers")

	granted := svc.CheckAccess(userAgent(), tl, []string{"read"})
	if !granted.Granted {
		t.Fatalf("expected requested subset to be granted, got %q", granted.Reason)
	}

	denied := svc.CheckAccess(userAgent(), tl, []string{"read", "write"})
	if denied.Granted {
		t.Fatal("expected requested superset to be denied")
	}
	if denied.Reason != ReasonScopesNotAllowed {
		t.Errorf("reason = %q, want %q", denied.Reason, ReasonScopesNotAllowed)
	}
}

func TestPolicyRegistry(t *testing.T) {
	svc := NewService(testLogger())

	added := svc.AddPolicy(Policy{Name: "Anonymous"})
	if added.ID == "" {
		t.Fatal("expected AddPolicy to assign an ID")
	}
	if added.CreatedAt.IsZero() {
		t.Error("expected AddPolicy to stamp CreatedAt")
	}

	got, err := svc.GetPolicy(added.ID)
	if err != nil {
		t.Fatalf("GetPolicy: %v", err)
	}
	if got.Name != "Anonymous" {
		t.Errorf("name = %q, want Anonymous", got.Name)
	}

	// Mutating the returned copy must not touch the registry.
	got.Name = "Mutated"
	again, _ := svc.GetPolicy(added.ID)
	if again.Name != "Anonymous" {
		t.Error("GetPolicy returned a shared reference, want a copy")
	}

	if _, err := svc.GetPolicy("missing"); !errors.Is(err, ErrPolicyNotFound) {
		t.Errorf("GetPolicy(missing) error = %v, want ErrPolicyNotFound", err)
	}

	svc.AddPolicy(Policy{ID: "second", Name: "Second", Priority: 5})
	list := svc.ListPolicies()
	if len(list) != 2 {
		t.Fatalf("ListPolicies returned %d policies, want 2", len(list))
	}
	if list[0].ID != "second" {
		t.Errorf("ListPolicies[0] = %s, want highest priority first", list[0].ID)
	}

	if !svc.RemovePolicy(added.ID) {
		t.Error("RemovePolicy returned false for an existing policy")
	}
	if svc.RemovePolicy(added.ID) {
		t.Error("RemovePolicy returned true for an absent policy")
	}
}

func TestAccessLogs(t *testing.T) {
	svc := NewService(testLogger())
	tl := testTool()

	// Evaluation alone never writes the log.
	_ = svc.EvaluateAccess(userAgent(), tl, nil)
	if len(svc.AccessLogs()) != 0 {
		t.Fatal("EvaluateAccess must not append to the access log")
	}

	first := svc.EvaluateAccess(userAgent(), tl, nil)
	svc.RecordDecision("agent-1", tl.ID, first)
	svc.RecordDecision("agent-2", tl.ID, Decision{Granted: false, Reason: ReasonNoApplicablePolicy})

	logs := svc.AccessLogs()
	if len(logs) != 2 {
		t.Fatalf("got %d log entries, want 2", len(logs))
	}
	if logs[0].AgentID != "agent-1" || logs[1].AgentID != "agent-2" {
		t.Error("access logs not in insertion order")
	}
}

// stubConditionEvaluator returns a fixed verdict for every expression.
type stubConditionEvaluator struct {
	verdict bool
	err     error
}

func (s *stubConditionEvaluator) EvaluateCondition(string, ConditionInput) (bool, error) {
	return s.verdict, s.err
}

func TestConditionEvaluation(t *testing.T) {
	conditioned := Policy{
		ID:    "cond",
		Name:  "Conditioned",
		Rules: Rules{Condition: `"data" in tool_tags`},
	}

	tests := []struct {
		name      string
		evaluator ConditionEvaluator
		granted   bool
	}{
		{name: "condition holds", evaluator: &stubConditionEvaluator{verdict: true}, granted: true},
		{name: "condition fails", evaluator: &stubConditionEvaluator{verdict: false}, granted: false},
		{
			name:      "condition errors",
			evaluator: &stubConditionEvaluator{err: errors.New("compile failed")},
			granted:   false,
		},
		{name: "no evaluator installed", evaluator: nil, granted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.evaluator != nil {
				opts = append(opts, WithConditionEvaluator(tt.evaluator))
			}
			svc := NewService(testLogger(), opts...)
			svc.AddPolicy(conditioned)

			decision := svc.EvaluateAccess(userAgent(), testTool("cond"), nil)
			if decision.Granted != tt.granted {
				t.Errorf("granted = %v, want %v", decision.Granted, tt.granted)
			}
		})
	}
}

func TestUnresolvablePolicyReferencesAreSkipped(t *testing.T) {
	svc := NewService(testLogger())
	svc.AddPolicy(Policy{ID: "real", Name: "Real"})

	// A dangling reference must not panic or deny; the resolvable policy
	// still decides.
	decision := svc.EvaluateAccess(userAgent(), testTool("ghost", "real"), nil)
	if !decision.Granted {
		t.Fatalf("expected grant via the resolvable policy, got %q", decision.Reason)
	}
}
