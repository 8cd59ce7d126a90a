// Package tools provides tool management and registration.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - The workspace tool set is closed: built once, looked up by name

package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// UnknownToolError is returned for calls naming a tool that is not
// registered.
type UnknownToolError struct {
	Name      string
	Available []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// Registry manages the available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a new tool to the registry.
// Returns error if a tool with the same name already exists.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Metadata().Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool '%s' already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Lookup returns a tool by name or an *UnknownToolError.
func (r *Registry) Lookup(name string) (Tool, error) {
	if tool, ok := r.Get(name); ok {
		return tool, nil
	}
	return nil, &UnknownToolError{Name: name, Available: r.Names()}
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns metadata for all registered tools, sorted by name.
func (r *Registry) List() []ToolMetadata {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata := make([]ToolMetadata, 0, len(names))
	for _, name := range names {
		metadata = append(metadata, r.tools[name].Metadata())
	}
	return metadata
}

// Description returns a one-line-per-tool summary for prompts and help text.
func (r *Registry) Description() string {
	var lines []string
	for _, meta := range r.List() {
		lines = append(lines, "- "+meta.String())
	}
	return strings.Join(lines, "\n")
}

// ForWorkspace builds the closed set of file and context tools.
func ForWorkspace(ws *Workspace) (*Registry, error) {
	registry := NewRegistry()

	tools := []Tool{
		NewReadFileTool(ws),
		NewSearchCodeTool(ws),
		NewListDirectoryTool(ws),
		NewCreateFileTool(ws),
		NewEditFileTool(ws),
		NewListContextTool(ws),
		NewRefreshContextTool(ws),
	}

	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register workspace tools: %w", err)
		}
	}

	return registry, nil
}
