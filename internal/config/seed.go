package config

import (
	"strings"

	"github.com/Grant-Gate/grantgate/internal/domain/auth"
	"github.com/Grant-Gate/grantgate/internal/domain/authz"
	"github.com/Grant-Gate/grantgate/internal/domain/tool"
)

// This file converts validated config entries into domain objects for
// seeding the in-memory stores at startup.

// BuildAgents converts configured agents into domain agents.
func (c *GateConfig) BuildAgents() []*auth.Agent {
	agents := make([]*auth.Agent, 0, len(c.Auth.Agents))
	for _, a := range c.Auth.Agents {
		roles := make([]auth.Role, 0, len(a.Roles))
		for _, r := range a.Roles {
			roles = append(roles, auth.Role(r))
		}
		agents = append(agents, &auth.Agent{
			ID:    a.ID,
			Name:  a.Name,
			Roles: roles,
		})
	}
	return agents
}

// BuildAPIKeys converts configured API keys into domain keys.
// The "sha256:" prefix is stripped so stores can key by bare hex.
func (c *GateConfig) BuildAPIKeys() []*auth.APIKey {
	keys := make([]*auth.APIKey, 0, len(c.Auth.APIKeys))
	for _, k := range c.Auth.APIKeys {
		hash := k.KeyHash
		if auth.DetectHashType(hash) == "sha256" {
			hash = strings.TrimPrefix(hash, "sha256:")
		}
		keys = append(keys, &auth.APIKey{
			Key:     hash,
			AgentID: k.AgentID,
			Name:    "seeded",
		})
	}
	return keys
}

// BuildTools converts configured tools into domain tools.
func (c *GateConfig) BuildTools() []*tool.Tool {
	tools := make([]*tool.Tool, 0, len(c.Tools))
	for _, t := range c.Tools {
		tools = append(tools, &tool.Tool{
			ID:            t.ID,
			Name:          t.Name,
			AllowedScopes: append([]string(nil), t.Scopes...),
			Tags:          append([]string(nil), t.Tags...),
			PolicyIDs:     append([]string(nil), t.Policies...),
		})
	}
	return tools
}

// BuildPolicies converts configured policies into domain policies.
func (c *GateConfig) BuildPolicies() []authz.Policy {
	policies := make([]authz.Policy, 0, len(c.Policies))
	for _, p := range c.Policies {
		roles := make([]auth.Role, 0, len(p.Roles))
		for _, r := range p.Roles {
			roles = append(roles, auth.Role(r))
		}

		rules := authz.Rules{
			Roles:         roles,
			AllowedScopes: append([]string(nil), p.Scopes...),
			ToolIDs:       append([]string(nil), p.Tools...),
			Tags:          append([]string(nil), p.Tags...),
			Condition:     p.Condition,
		}

		if p.Time != nil {
			tr := &authz.TimeRestrictions{
				AllowedDays: append([]int(nil), p.Time.Days...),
			}
			for _, hr := range p.Time.Hours {
				tr.AllowedHours = append(tr.AllowedHours, authz.HourRange{
					Start: hr.Start,
					End:   hr.End,
				})
			}
			rules.TimeRestrictions = tr
		}

		if p.Limits != nil {
			rules.ResourceLimits = &authz.ResourceLimits{
				MaxCallsPerMinute: p.Limits.MaxCallsPerMinute,
				MaxCostPerDay:     p.Limits.MaxCostPerDay,
			}
		}

		policies = append(policies, authz.Policy{
			ID:       p.ID,
			Name:     p.Name,
			Priority: p.Priority,
			Rules:    rules,
		})
	}
	return policies
}
