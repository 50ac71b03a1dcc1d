// Package authz contains the policy-based authorization engine that decides
// whether an agent may access a tool.
package authz

import (
	"time"

	"github.com/Grant-Gate/grantgate/internal/domain/auth"
	"github.com/Grant-Gate/grantgate/internal/domain/tool"
)

// Stable decision reason vocabulary. Audit tooling matches on these strings;
// do not reword them.
const (
	ReasonAdminAccess        = "Admin access granted"
	ReasonNoPolicies         = "No policies defined"
	ReasonNoApplicablePolicy = "No applicable policy found"
	ReasonTimeRestricted     = "Access denied due to time restrictions"
	ReasonResourceLimited    = "Access denied due to resource limits"
	ReasonScopesNotAllowed   = "Requested scopes not allowed"
)

// Credential durations granted by the evaluation cascade, in minutes.
const (
	adminDurationMinutes  = 60
	policyDurationMinutes = 30
)

// Decision is the outcome of an access evaluation.
type Decision struct {
	// Granted is true if the agent may access the tool.
	Granted bool
	// Reason explains why the decision was made. Reasons come from the
	// stable vocabulary above plus "Access granted by policy {name}".
	Reason string
	// Scopes are the capability strings granted with this decision.
	Scopes []string
	// DurationMinutes is how long an issued credential should live.
	DurationMinutes int
}

// HourRange is a half-open [Start, End) range of hours in a day.
type HourRange struct {
	// Start is the inclusive start hour (0-23).
	Start int
	// End is the exclusive end hour (1-24).
	End int
}

// Contains returns true if the given hour falls inside the range.
func (r HourRange) Contains(hour int) bool {
	return hour >= r.Start && hour < r.End
}

// TimeRestrictions limits when a policy grants access.
type TimeRestrictions struct {
	// AllowedDays are day-of-week indices with Monday = 0 through
	// Sunday = 6. Empty means any day.
	AllowedDays []int
	// AllowedHours are the permitted hour ranges. The evaluation time's
	// hour must fall inside at least one range. Empty means any hour.
	AllowedHours []HourRange
}

// ResourceLimits throttles how often a policy grants access.
type ResourceLimits struct {
	// MaxCallsPerMinute denies access when the caller's recent call
	// history holds this many calls (or more) in the trailing 60 seconds.
	// Zero means no limit.
	MaxCallsPerMinute int
	// MaxCostPerDay is declared but not yet enforced.
	MaxCostPerDay float64
}

// Rules are the matching and restriction clauses of a policy. Absent
// (zero-value) clauses mean "no restriction"; restriction checks fail
// closed when violated and fail open when absent.
type Rules struct {
	// Roles match agents holding any of these roles. Empty matches any agent.
	Roles []auth.Role
	// AllowedScopes are granted instead of the tool's full scope set.
	// Empty falls back to the tool's allowed scopes.
	AllowedScopes []string
	// ToolIDs restricts the policy to specific tools. Empty matches any tool.
	ToolIDs []string
	// Tags restricts the policy to tools carrying any of these tags.
	// Empty matches any tool.
	Tags []string
	// Condition is an optional CEL expression over the agent and tool
	// attributes. A policy with a condition that fails to compile or
	// evaluate does not apply.
	Condition string
	// TimeRestrictions limit when access is granted.
	TimeRestrictions *TimeRestrictions
	// ResourceLimits throttle how often access is granted.
	ResourceLimits *ResourceLimits
}

// Policy is a named rule set governing agent access to tools.
type Policy struct {
	// ID is the unique identifier for this policy.
	ID string
	// Name is the human-readable name, quoted in grant reasons.
	Name string
	// Priority orders evaluation: higher priority policies are
	// considered first.
	Priority int
	// Rules are the matching and restriction clauses.
	Rules Rules
	// CreatedAt is when the policy was registered (UTC).
	CreatedAt time.Time
}

// EvalContext carries optional per-request evaluation inputs.
// Unknown inputs from callers are ignored, not rejected.
type EvalContext struct {
	// CurrentTime overrides the evaluation time (UTC now when zero).
	// Used for deterministic tests.
	CurrentTime time.Time
	// CallHistory holds the caller's recent call timestamps, consulted
	// by resource limit checks.
	CallHistory []time.Time
}

// evalTime returns the effective evaluation time.
func (c *EvalContext) evalTime() time.Time {
	if c != nil && !c.CurrentTime.IsZero() {
		return c.CurrentTime
	}
	return time.Now().UTC()
}

// ConditionInput is the attribute set a rule condition is evaluated against.
type ConditionInput struct {
	Agent auth.Agent
	Tool  tool.Tool
}

// ConditionEvaluator evaluates rule condition expressions.
// The CEL-backed implementation lives in the outbound adapters.
type ConditionEvaluator interface {
	// EvaluateCondition returns whether the expression holds for the
	// given input. An error means the expression is malformed or could
	// not be evaluated.
	EvaluateCondition(expression string, input ConditionInput) (bool, error)
}

// LogEntry is one appended access-decision record.
type LogEntry struct {
	// Timestamp is when the decision was recorded (UTC).
	Timestamp time.Time
	// AgentID identifies the requesting agent.
	AgentID string
	// ToolID identifies the requested tool.
	ToolID string
	// Decision is the recorded outcome.
	Decision Decision
}
