// Package usage measures how much of a model's context window a conversation fills and renders
// it as a one-line status.
package usage

import (
	"context"
	"errors"

	"github.com/erg0nix/ctxmeter/internal/core"
)

var ErrNoMessages = errors.New("usage: conversation has no messages")

type Severity int

const (
	SeverityNormal Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "NORMAL"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Thresholds are percentages of the context window. Critical is expected to be >= Warn; when it is
// not, Critical shadows Warn.
type Thresholds struct {
	Warn     float64
	Critical float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Warn: 75.0, Critical: 90.0}
}

// Classify picks the highest severity whose threshold percentage reaches.
func (t Thresholds) Classify(percentage float64) Severity {
	switch {
	case percentage >= t.Critical:
		return SeverityCritical
	case percentage >= t.Warn:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// Report is the outcome of one evaluation. Percentage may exceed 100 for conversations that no
// longer fit.
type Report struct {
	Model      string   `json:"model"`
	Total      int      `json:"total"`
	Limit      int      `json:"limit"`
	Percentage float64  `json:"percentage"`
	Severity   Severity `json:"severity"`
	Input      int      `json:"input_tokens"`
	Output     int      `json:"output_tokens"`
	Messages   int      `json:"messages"`
}

// Remaining is the number of tokens left, negative when over the limit.
func (r Report) Remaining() int {
	return r.Limit - r.Total
}

type Counter interface {
	Count(text string) int
}

type CapacityResolver interface {
	Resolve(ctx context.Context, modelID string) int
}

type Evaluator struct {
	Counter    Counter
	Capacity   CapacityResolver
	Thresholds Thresholds
}

// Evaluate counts the conversation once as a whole and once for the last assistant reply, then
// compares the total against the model's capacity.
func (e *Evaluator) Evaluate(ctx context.Context, messages []core.Message, modelID string) (Report, error) {
	if len(messages) == 0 {
		return Report{}, ErrNoMessages
	}

	snapshot := NewSnapshot(messages)

	total := e.Counter.Count(snapshot.FullText())
	output := 0
	if snapshot.AssistantTail != "" {
		output = e.Counter.Count(snapshot.AssistantTail)
	}

	limit := e.Capacity.Resolve(ctx, modelID)

	percentage := 0.0
	if limit > 0 {
		percentage = 100.0 * float64(total) / float64(limit)
	}

	return Report{
		Model:      modelID,
		Total:      total,
		Limit:      limit,
		Percentage: percentage,
		Severity:   e.Thresholds.Classify(percentage),
		Input:      total - output,
		Output:     output,
		Messages:   len(messages),
	}, nil
}
