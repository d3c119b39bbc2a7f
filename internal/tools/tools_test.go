package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/erg0nix/ctxmeter/internal/core"
)

type stubTool struct {
	name string
}

func (s stubTool) Name() string        { return s.name }
func (s stubTool) Description() string { return "stub " + s.name }
func (s stubTool) Parameters() map[string]any {
	return Object(map[string]any{"x": Property("string", "x")}, "x")
}

func (s stubTool) Execute(ctx context.Context, args map[string]any, emit core.Emitter) (string, error) {
	if err := emit(ctx, core.MessageEvent(s.name)); err != nil {
		return "", err
	}
	value, _ := StringArg("x", args)
	return s.name + ":" + value, nil
}

func TestRegistryExecute(t *testing.T) {
	registry := NewRegistry()
	registry.Add(stubTool{name: "b"})
	registry.Add(stubTool{name: "a"})

	out, err := registry.Execute(context.Background(), "a", map[string]any{"x": "1"}, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "a:1" {
		t.Errorf("out = %q, want a:1", out)
	}

	if _, err := registry.Execute(context.Background(), "c", nil, nil); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("error = %v, want ErrToolNotFound", err)
	}
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	registry := NewRegistry()
	registry.Add(stubTool{name: "zeta"})
	registry.Add(stubTool{name: "alpha"})

	defs := registry.Definitions()
	if len(defs) != 2 || defs[0].Name != "alpha" || defs[1].Name != "zeta" {
		t.Errorf("definitions = %+v", defs)
	}
	if defs[0].Parameters["required"].([]string)[0] != "x" {
		t.Errorf("parameters = %+v", defs[0].Parameters)
	}
}

func TestIntArg(t *testing.T) {
	args := map[string]any{"f": 3.0, "s": " 7 ", "bad": "x", "i": 2}

	tests := []struct {
		key  string
		want int
		ok   bool
	}{
		{"f", 3, true},
		{"s", 7, true},
		{"i", 2, true},
		{"bad", 0, false},
		{"missing", 0, false},
	}

	for _, tt := range tests {
		got, ok := IntArg(tt.key, args)
		if got != tt.want || ok != tt.ok {
			t.Errorf("IntArg(%q) = %d, %v; want %d, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRequireString(t *testing.T) {
	if _, err := RequireString("k", map[string]any{"k": "  "}); err == nil {
		t.Error("expected error for blank value")
	}
	if v, err := RequireString("k", map[string]any{"k": "v"}); err != nil || v != "v" {
		t.Errorf("RequireString = %q, %v", v, err)
	}
}
