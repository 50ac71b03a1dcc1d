// Package cel provides a CEL-based evaluator for policy rule conditions.
package cel

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/Grant-Gate/grantgate/internal/domain/authz"
)

// maxExpressionLength is the maximum allowed length for condition expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit to prevent cost-exhaustion DoS.
const maxCostBudget = 100_000

// Evaluator compiles and evaluates CEL condition expressions against agent
// and tool attributes. Compiled programs are cached per expression.
type Evaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewEvaluator creates a CEL evaluator with the condition environment.
// Conditions may reference agent_id, agent_roles, tool_id, tool_tags,
// and tool_scopes.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("agent_id", cel.StringType),
		cel.Variable("agent_roles", cel.ListType(cel.StringType)),
		cel.Variable("tool_id", cel.StringType),
		cel.Variable("tool_tags", cel.ListType(cel.StringType)),
		cel.Variable("tool_scopes", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create condition environment: %w", err)
	}
	return &Evaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// EvaluateCondition implements authz.ConditionEvaluator.
func (e *Evaluator) EvaluateCondition(expression string, input authz.ConditionInput) (bool, error) {
	prg, err := e.program(expression)
	if err != nil {
		return false, err
	}

	roles := make([]string, len(input.Agent.Roles))
	for i, r := range input.Agent.Roles {
		roles[i] = string(r)
	}

	out, _, err := prg.Eval(map[string]any{
		"agent_id":    input.Agent.ID,
		"agent_roles": roles,
		"tool_id":     input.Tool.ID,
		"tool_tags":   input.Tool.Tags,
		"tool_scopes": input.Tool.AllowedScopes,
	})
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	verdict, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", out.Value())
	}
	return verdict, nil
}

// program returns the cached compiled program for the expression,
// compiling it on first use.
func (e *Evaluator) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	prg, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[expression] = prg
	e.mu.Unlock()
	return prg, nil
}

// compile parses and type-checks an expression, returning a compiled program.
func (e *Evaluator) compile(expression string) (cel.Program, error) {
	if expression == "" {
		return nil, errors.New("expression is empty")
	}
	if len(expression) > maxExpressionLength {
		return nil, fmt.Errorf("expression too long: %d characters (max %d)", len(expression), maxExpressionLength)
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

// Compile-time interface verification.
var _ authz.ConditionEvaluator = (*Evaluator)(nil)
