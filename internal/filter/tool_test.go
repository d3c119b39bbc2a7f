package filter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/erg0nix/ctxmeter/internal/core"
	"github.com/erg0nix/ctxmeter/internal/usage"
)

func TestUsageToolReportsUsage(t *testing.T) {
	tool := &UsageTool{Filter: newTestFilter(t, lengthCounter{}, nil)}
	recorder := &core.Recorder{}

	args := map[string]any{
		"model": "anything",
		"messages": []any{
			map[string]any{"role": "user", "content": "hello"},
			map[string]any{"role": "assistant", "content": []any{map[string]any{"type": "text", "text": "hi there"}}},
		},
	}

	out, err := tool.Execute(context.Background(), args, recorder.Emit)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var result struct {
		Total     int    `json:"total"`
		Limit     int    `json:"limit"`
		Output    int    `json:"output_tokens"`
		Severity  string `json:"severity"`
		Status    string `json:"status"`
		Remaining int    `json:"remaining"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}

	if result.Total != 14 || result.Limit != 100 || result.Output != 8 || result.Remaining != 86 {
		t.Errorf("result = %+v", result)
	}
	if result.Severity != "NORMAL" {
		t.Errorf("severity = %q, want NORMAL", result.Severity)
	}
	if len(recorder.Events) != 1 {
		t.Errorf("events = %d, want 1", len(recorder.Events))
	}
}

func TestUsageToolAcceptsJSONString(t *testing.T) {
	tool := &UsageTool{Filter: newTestFilter(t, lengthCounter{}, nil)}

	out, err := tool.Execute(context.Background(), map[string]any{
		"messages": `[{"role":"user","content":"abcd"}]`,
	}, core.DiscardEmitter)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var result map[string]any
	json.Unmarshal([]byte(out), &result)
	if result["total"] != float64(4) {
		t.Errorf("total = %v, want 4", result["total"])
	}
}

func TestUsageToolRejectsEmptyConversation(t *testing.T) {
	tool := &UsageTool{Filter: newTestFilter(t, lengthCounter{}, nil)}

	_, err := tool.Execute(context.Background(), map[string]any{"messages": []any{}}, core.DiscardEmitter)
	if !errors.Is(err, usage.ErrNoMessages) {
		t.Errorf("error = %v, want ErrNoMessages", err)
	}

	if _, err := tool.Execute(context.Background(), map[string]any{}, core.DiscardEmitter); err == nil {
		t.Error("expected error for missing messages")
	}
}
