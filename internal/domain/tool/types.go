// Package tool contains domain types for the registered tool directory.
package tool

import "context"

// Tool represents a registered capability that agents may request access to.
type Tool struct {
	// ID is the unique identifier for this tool.
	ID string
	// Name is the human-readable name for this tool.
	Name string
	// AllowedScopes is the full set of scopes this tool supports
	// (e.g., "read", "write", "execute").
	AllowedScopes []string
	// Tags are free-form labels used for policy matching (e.g., "filesystem").
	Tags []string
	// PolicyIDs references the policies attached to this tool, in
	// attachment order.
	PolicyIDs []string
}

// HasScope returns true if the tool supports the given scope.
func (t *Tool) HasScope(scope string) bool {
	for _, s := range t.AllowedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasTag returns true if the tool carries the given tag.
func (t *Tool) HasTag(tag string) bool {
	for _, tg := range t.Tags {
		if tg == tag {
			return true
		}
	}
	return false
}

// Directory provides read-only access to the tool registry.
// This core never mutates the directory; tool management is an
// external concern.
// Implementations: in-memory (dev/test), database-backed (prod).
type Directory interface {
	// GetTool retrieves a tool by ID.
	// Returns ErrToolNotFound if the tool doesn't exist.
	GetTool(ctx context.Context, id string) (*Tool, error)

	// ListTools returns all registered tools.
	ListTools(ctx context.Context) ([]Tool, error)
}
