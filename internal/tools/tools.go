package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/erg0nix/ctxmeter/internal/core"
)

var ErrToolNotFound = errors.New("tool not found")

// Tool is a host-callable function. Execute reports progress through emit and returns the text
// handed back to the model.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any, emit core.Emitter) (string, error)
}

type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any, emit core.Emitter) (string, error)
	Definitions() []Definition
}

type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (registry *Registry) Add(tool Tool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.tools[tool.Name()] = tool
}

func (registry *Registry) Get(name string) (Tool, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	tool, ok := registry.tools[name]
	return tool, ok
}

func (registry *Registry) Execute(ctx context.Context, name string, args map[string]any, emit core.Emitter) (string, error) {
	tool, ok := registry.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if emit == nil {
		emit = core.DiscardEmitter
	}
	if args == nil {
		args = map[string]any{}
	}

	return tool.Execute(ctx, args, emit)
}

// Definitions lists every tool sorted by name.
func (registry *Registry) Definitions() []Definition {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	definitions := make([]Definition, 0, len(registry.tools))

	for _, tool := range registry.tools {
		definitions = append(definitions, Definition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}

	sort.Slice(definitions, func(i, j int) bool { return definitions[i].Name < definitions[j].Name })

	return definitions
}

func StringArg(key string, args map[string]any) (string, bool) {
	value, ok := args[key]
	if !ok {
		return "", false
	}

	stringValue, ok := value.(string)
	return stringValue, ok
}

// IntArg accepts JSON numbers and numeric strings.
func IntArg(key string, args map[string]any) (int, bool) {
	switch value := args[key].(type) {
	case int:
		return value, true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		return n, err == nil
	default:
		return 0, false
	}
}

// RequireString returns a non-blank string argument or an error naming it.
func RequireString(key string, args map[string]any) (string, error) {
	value, ok := StringArg(key, args)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return value, nil
}

// Object builds a JSON schema object from property schemas.
func Object(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func Property(kind, description string) map[string]any {
	return map[string]any{"type": kind, "description": description}
}
