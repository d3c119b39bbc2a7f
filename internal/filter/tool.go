package filter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erg0nix/ctxmeter/internal/core"
	"github.com/erg0nix/ctxmeter/internal/tools"
	"github.com/erg0nix/ctxmeter/internal/usage"
)

// UsageTool lets a model or an MCP client ask how full a conversation is.
type UsageTool struct {
	Filter *Filter
}

func (tool *UsageTool) Name() string { return "context_usage" }
func (tool *UsageTool) Description() string {
	return "Estimate how much of a model's context window a conversation uses. Returns token totals, the model's capacity and a one-line status."
}
func (tool *UsageTool) Parameters() map[string]any {
	return tools.Object(map[string]any{
		"messages": map[string]any{
			"type":        "array",
			"description": "Chat messages, each with a role and content (a string or a list of typed parts)",
			"items":       map[string]any{"type": "object"},
		},
		"model": tools.Property("string", "Model identifier used to look up the context capacity"),
	}, "messages")
}

type usageResult struct {
	usage.Report
	Status    string `json:"status"`
	Remaining int    `json:"remaining"`
}

func decodeMessages(raw any) ([]core.Message, error) {
	if text, ok := raw.(string); ok {
		raw = json.RawMessage(text)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var messages []core.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("messages must be a list of {role, content}: %w", err)
	}
	return messages, nil
}

func (tool *UsageTool) Execute(ctx context.Context, args map[string]any, emit core.Emitter) (string, error) {
	raw, ok := args["messages"]
	if !ok {
		return "", errors.New(`missing required argument "messages"`)
	}

	messages, err := decodeMessages(raw)
	if err != nil {
		return "", err
	}

	modelID, _ := tools.StringArg("model", args)

	report, status, err := tool.Filter.Evaluate(ctx, messages, modelID)
	if err != nil {
		return "", err
	}

	if tool.Filter.Config().ShowStatus {
		_ = emit(ctx, core.StatusEvent(status, true))
	}

	data, err := json.Marshal(usageResult{Report: report, Status: status, Remaining: report.Remaining()})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
