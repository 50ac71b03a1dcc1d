package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/Grant-Gate/grantgate/internal/domain/tool"
)

// ErrToolNotFound is returned when a tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// Directory implements tool.Directory with an in-memory map.
// Thread-safe for concurrent access. Seeded at startup from config;
// the trust core treats it as read-only.
type Directory struct {
	mu    sync.RWMutex
	tools map[string]*tool.Tool // ID -> Tool
}

// NewDirectory creates a new in-memory tool directory.
func NewDirectory() *Directory {
	return &Directory{tools: make(map[string]*tool.Tool)}
}

// AddTool registers a tool (for seeding/testing).
func (d *Directory) AddTool(t *tool.Tool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tools[t.ID] = copyTool(t)
}

// GetTool retrieves a tool by ID.
// Returns ErrToolNotFound if the tool doesn't exist.
func (d *Directory) GetTool(_ context.Context, id string) (*tool.Tool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tools[id]
	if !ok {
		return nil, ErrToolNotFound
	}
	return copyTool(t), nil
}

// ListTools returns all registered tools.
func (d *Directory) ListTools(_ context.Context) ([]tool.Tool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]tool.Tool, 0, len(d.tools))
	for _, t := range d.tools {
		result = append(result, *copyTool(t))
	}
	return result, nil
}

// copyTool creates a deep copy of a tool.
func copyTool(t *tool.Tool) *tool.Tool {
	toolCopy := &tool.Tool{
		ID:            t.ID,
		Name:          t.Name,
		AllowedScopes: append([]string(nil), t.AllowedScopes...),
		Tags:          append([]string(nil), t.Tags...),
		PolicyIDs:     append([]string(nil), t.PolicyIDs...),
	}
	return toolCopy
}

// Compile-time interface verification.
var _ tool.Directory = (*Directory)(nil)
