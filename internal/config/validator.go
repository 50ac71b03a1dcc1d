package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Grant-Gate/grantgate/internal/domain/auth"
)

// RegisterCustomValidators registers Grant Gate-specific validation rules.
// Must be called before validating GateConfig.
func RegisterCustomValidators(v *validator.Validate) error {
	// audit_output: "stdout", "file://<abs-path>", or "sqlite://<abs-path>"
	if err := v.RegisterValidation("audit_output", validateAuditOutput); err != nil {
		return fmt.Errorf("failed to register audit_output validator: %w", err)
	}
	return nil
}

// validateAuditOutput validates the audit output field.
// Valid values: "stdout", "file://<absolute-path>", "sqlite://<absolute-path>"
func validateAuditOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()

	if output == "stdout" {
		return true
	}

	for _, scheme := range []string{"file://", "sqlite://"} {
		if strings.HasPrefix(output, scheme) {
			path := strings.TrimPrefix(output, scheme)
			return path != "" && filepath.IsAbs(path)
		}
	}

	return false
}

// Validate validates the GateConfig using struct tags and custom cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *GateConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateSigningSecret(); err != nil {
		return err
	}
	if err := c.validateAgentReferences(); err != nil {
		return err
	}
	if err := c.validatePolicyReferences(); err != nil {
		return err
	}
	if err := c.validateKeyHashes(); err != nil {
		return err
	}
	if err := c.validateHourRanges(); err != nil {
		return err
	}

	return nil
}

// validateSigningSecret requires a secret outside dev mode. An empty
// secret would make every issued token forgeable.
func (c *GateConfig) validateSigningSecret() error {
	if c.Signing.Secret == "" {
		return errors.New("signing.secret is required (or enable dev_mode)")
	}
	return nil
}

// validateAgentReferences ensures all API key agent_id values reference known agents.
func (c *GateConfig) validateAgentReferences() error {
	knownAgents := make(map[string]struct{}, len(c.Auth.Agents))
	for _, agent := range c.Auth.Agents {
		knownAgents[agent.ID] = struct{}{}
	}

	for i, apiKey := range c.Auth.APIKeys {
		if _, exists := knownAgents[apiKey.AgentID]; !exists {
			return fmt.Errorf("auth.api_keys[%d]: references unknown agent_id: %s", i, apiKey.AgentID)
		}
	}

	return nil
}

// validatePolicyReferences ensures tool policy attachments reference known policies.
func (c *GateConfig) validatePolicyReferences() error {
	knownPolicies := make(map[string]struct{}, len(c.Policies))
	for _, policy := range c.Policies {
		knownPolicies[policy.ID] = struct{}{}
	}

	for i, tool := range c.Tools {
		for _, policyID := range tool.Policies {
			if _, exists := knownPolicies[policyID]; !exists {
				return fmt.Errorf("tools[%d] (%s): references unknown policy: %s", i, tool.ID, policyID)
			}
		}
	}

	return nil
}

// validateKeyHashes ensures stored key hashes are in a recognized format.
func (c *GateConfig) validateKeyHashes() error {
	for i, apiKey := range c.Auth.APIKeys {
		if auth.DetectHashType(apiKey.KeyHash) == "unknown" {
			return fmt.Errorf("auth.api_keys[%d]: key_hash must be sha256 hex or argon2id PHC format", i)
		}
	}
	return nil
}

// validateHourRanges ensures each policy hour range is a valid half-open interval.
func (c *GateConfig) validateHourRanges() error {
	for i, policy := range c.Policies {
		if policy.Time == nil {
			continue
		}
		for j, hr := range policy.Time.Hours {
			if hr.Start >= hr.End {
				return fmt.Errorf("policies[%d] (%s): hours[%d]: start (%d) must be before end (%d)",
					i, policy.ID, j, hr.Start, hr.End)
			}
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "audit_output":
		return fmt.Sprintf("%s must be 'stdout', 'file://<absolute-path>', or 'sqlite://<absolute-path>'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
