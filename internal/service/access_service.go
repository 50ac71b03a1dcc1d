package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Grant-Gate/grantgate/internal/domain/audit"
	"github.com/Grant-Gate/grantgate/internal/domain/auth"
	"github.com/Grant-Gate/grantgate/internal/domain/authz"
	"github.com/Grant-Gate/grantgate/internal/domain/credential"
	"github.com/Grant-Gate/grantgate/internal/domain/ratelimit"
	"github.com/Grant-Gate/grantgate/internal/domain/tool"
)

// Sentinel errors for the access pipeline.
var (
	// ErrRateLimited is returned when the caller exhausted its window.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrUnauthenticated is returned when the caller could not be
	// resolved to an agent.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// AccessRequest is one temporary-access request from a caller.
type AccessRequest struct {
	// APIKey is the caller's raw API key. When set, the agent is
	// resolved through the authentication collaborator.
	APIKey string
	// AgentID identifies a pre-authenticated agent. Used only when
	// APIKey is empty (trusted in-process callers and tests).
	AgentID string
	// ToolID is the tool access is requested for.
	ToolID string
	// Scopes are the requested scopes. Empty requests the decision's
	// granted scopes without a subset check.
	Scopes []string
}

// AccessResult is the pipeline outcome handed back to the caller.
type AccessResult struct {
	// Decision is the authorization outcome.
	Decision authz.Decision
	// Credential is the issued credential when the decision granted
	// access, nil otherwise.
	Credential *credential.Credential
}

// AccessService composes the trust core into the canonical pipeline:
// rate-limit gate, authentication, authorization, credential issuance,
// audit. Each step is an atomic single-entry operation; an aborted
// request never rolls back a recorded rate-limit event.
type AccessService struct {
	limiter   *ratelimit.Limiter
	authn     *auth.APIKeyService
	agents    auth.AgentStore
	directory tool.Directory
	authz     *authz.Service
	vendor    *credential.Vendor
	audits    audit.Store
	metrics   *Metrics
	tracer    trace.Tracer
	logger    *slog.Logger

	// defaultTTL applies when a granted decision carries no duration.
	defaultTTL time.Duration
}

// AccessOption customizes an AccessService.
type AccessOption func(*AccessService)

// WithDefaultTTL sets the credential lifetime used when a granted
// decision carries no duration of its own.
func WithDefaultTTL(d time.Duration) AccessOption {
	return func(s *AccessService) {
		s.defaultTTL = d
	}
}

// NewAccessService wires the pipeline. limiter may be nil (no rate
// limiting); metrics may be nil (not recorded); audits may be nil (not
// persisted).
func NewAccessService(
	limiter *ratelimit.Limiter,
	authn *auth.APIKeyService,
	agents auth.AgentStore,
	directory tool.Directory,
	authzSvc *authz.Service,
	vendor *credential.Vendor,
	audits audit.Store,
	metrics *Metrics,
	logger *slog.Logger,
	opts ...AccessOption,
) *AccessService {
	s := &AccessService{
		limiter:   limiter,
		authn:     authn,
		agents:    agents,
		directory: directory,
		authz:     authzSvc,
		vendor:    vendor,
		audits:    audits,
		metrics:   metrics,
		tracer:    otel.Tracer("grantgate/access"),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestAccess runs one request through the pipeline. A denied decision
// is a normal result, not an error; errors cover rate limiting,
// authentication failure, unknown tools, and issuance failure.
func (s *AccessService) RequestAccess(ctx context.Context, req AccessRequest) (*AccessResult, error) {
	ctx, span := s.tracer.Start(ctx, "access.request",
		trace.WithAttributes(attribute.String("tool.id", req.ToolID)))
	defer span.End()

	identifier := req.AgentID
	if req.APIKey != "" {
		// Never use raw keys as limiter identifiers.
		identifier = auth.HashKey(req.APIKey)
	}

	if s.limiter != nil && !s.limiter.IsAllowed(ctx, identifier) {
		s.recordRateLimited(ctx, req.ToolID)
		return nil, ErrRateLimited
	}

	agent, err := s.resolveAgent(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("agent.id", agent.ID))

	t, err := s.directory.GetTool(ctx, req.ToolID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tool %s: %w", req.ToolID, err)
	}

	var decision authz.Decision
	if len(req.Scopes) > 0 {
		decision = s.authz.CheckAccess(agent, t, req.Scopes)
	} else {
		decision = s.authz.EvaluateAccess(agent, t, nil)
	}
	s.authz.RecordDecision(agent.ID, t.ID, decision)

	result := &AccessResult{Decision: decision}

	if decision.Granted {
		ttl := time.Duration(decision.DurationMinutes) * time.Minute
		if ttl <= 0 {
			ttl = s.defaultTTL
		}
		cred, err := s.vendor.Generate(agent, t, ttl, decision.Scopes)
		if err != nil {
			return nil, err
		}
		result.Credential = cred
	}

	s.observe(ctx, agent.ID, t.ID, result)
	return result, nil
}

// resolveAgent authenticates the caller or loads the named agent.
func (s *AccessService) resolveAgent(ctx context.Context, req AccessRequest) (*auth.Agent, error) {
	if req.APIKey != "" {
		agent, err := s.authn.Authenticate(ctx, req.APIKey)
		if err != nil {
			return nil, ErrUnauthenticated
		}
		return agent, nil
	}
	if req.AgentID == "" {
		return nil, ErrUnauthenticated
	}
	agent, err := s.agents.GetAgent(ctx, req.AgentID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return agent, nil
}

// observe records metrics and appends the audit record.
func (s *AccessService) observe(ctx context.Context, agentID, toolID string, result *AccessResult) {
	record := audit.AccessRecord{
		Timestamp: time.Now().UTC(),
		AgentID:   agentID,
		ToolID:    toolID,
		Decision:  audit.DecisionDeny,
		Reason:    result.Decision.Reason,
	}
	if result.Decision.Granted {
		record.Decision = audit.DecisionAllow
		record.Scopes = result.Decision.Scopes
		if result.Credential != nil {
			record.CredentialID = result.Credential.ID
		}
	}

	if s.metrics != nil {
		s.metrics.DecisionsTotal.WithLabelValues(record.Decision).Inc()
		if result.Credential != nil {
			s.metrics.CredentialsIssued.Inc()
		}
		s.metrics.LiveCredentials.Set(float64(s.vendor.Size()))
		s.updateFallbackGauge()
	}

	s.append(ctx, record)
}

// recordRateLimited audits and counts a request rejected at the gate.
func (s *AccessService) recordRateLimited(ctx context.Context, toolID string) {
	if s.metrics != nil {
		s.metrics.RateLimitDenials.Inc()
		s.updateFallbackGauge()
	}
	s.append(ctx, audit.AccessRecord{
		Timestamp: time.Now().UTC(),
		ToolID:    toolID,
		Decision:  audit.DecisionRateLimited,
	})
}

// append writes an audit record. Audit failures never fail the request;
// they are counted and logged.
func (s *AccessService) append(ctx context.Context, record audit.AccessRecord) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Append(ctx, record); err != nil {
		if s.metrics != nil {
			s.metrics.AuditDropsTotal.Inc()
		}
		s.logger.Warn("failed to append audit record", "error", err)
	}
}

func (s *AccessService) updateFallbackGauge() {
	if s.limiter == nil {
		return
	}
	if s.limiter.UsingFallback() {
		s.metrics.LimiterFallback.Set(1)
	} else {
		s.metrics.LimiterFallback.Set(0)
	}
}
