package usage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/erg0nix/ctxmeter/internal/core"
)

type mapCounter map[string]int

func (m mapCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if n, ok := m[text]; ok {
		return n
	}
	return len(text)
}

type fixedCapacity int

func (f fixedCapacity) Resolve(context.Context, string) int {
	return int(f)
}

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{
		0:       "0",
		512:     "512",
		999:     "999",
		1000:    "1.0K",
		16385:   "16.4K",
		128000:  "128.0K",
		999999:  "1000.0K",
		1048576: "1.0M",
		2097152: "2.1M",
	}

	for input, want := range tests {
		if got := FormatNumber(input); got != want {
			t.Errorf("FormatNumber(%d) = %q, want %q", input, got, want)
		}
	}
}

func TestBuildBar(t *testing.T) {
	tests := []struct {
		filled int
		total  int
		want   string
	}{
		{filled: 3, total: 5, want: "[⬢⬢⬢⬡⬡]"},
		{filled: 0, total: 5, want: "[⬡⬡⬡⬡⬡]"},
		{filled: 5, total: 5, want: "[⬢⬢⬢⬢⬢]"},
		{filled: 9, total: 5, want: "[⬢⬢⬢⬢⬢]"},
		{filled: -2, total: 3, want: "[⬡⬡⬡]"},
	}

	for _, tt := range tests {
		if got := BuildBar(tt.filled, tt.total); got != tt.want {
			t.Errorf("BuildBar(%d, %d) = %q, want %q", tt.filled, tt.total, got, tt.want)
		}
	}
}

func TestBarClampsOverLimit(t *testing.T) {
	formatter := Formatter{ShowBar: true, BarLength: 5}

	bar := formatter.Bar(Report{Percentage: 250})
	if bar != "[⬢⬢⬢⬢⬢]" {
		t.Errorf("Bar = %q, want a full five-glyph bar", bar)
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	thresholds := DefaultThresholds()

	percentages := []float64{0, 74.9, 75.0, 89.9, 90.0, 150.0}
	want := []Severity{SeverityNormal, SeverityNormal, SeverityWarning, SeverityWarning, SeverityCritical, SeverityCritical}

	for i, pct := range percentages {
		if got := thresholds.Classify(pct); got != want[i] {
			t.Errorf("Classify(%v) = %v, want %v", pct, got, want[i])
		}
	}
}

func TestSnapshotExtractsText(t *testing.T) {
	messages := []core.Message{
		{Role: core.RoleSystem, Content: core.TextContent("sys")},
		{Role: core.RoleAssistant, Content: core.TextContent("first answer")},
		{Role: core.RoleUser, Content: core.PartsContent(
			core.ContentPart{Type: "text", Text: "look"},
			core.ContentPart{Type: "image_url", ImageURL: map[string]any{"url": "data:"}},
			core.ContentPart{Type: "text", Text: "here"},
		)},
		{Role: core.RoleAssistant, Content: core.TextContent("second answer")},
		{Role: core.RoleUser, Content: core.TextContent("thanks")},
	}

	snapshot := NewSnapshot(messages)

	if got := snapshot.FullText(); got != "sys\nfirst answer\nlook\nhere\nsecond answer\nthanks" {
		t.Errorf("FullText = %q", got)
	}
	if snapshot.AssistantTail != "second answer" {
		t.Errorf("AssistantTail = %q, want last assistant message", snapshot.AssistantTail)
	}
}

func TestEvaluateEndToEnd(t *testing.T) {
	messages := []core.Message{
		{Role: core.RoleUser, Content: core.TextContent("hello")},
		{Role: core.RoleAssistant, Content: core.TextContent("hi there")},
	}

	evaluator := &Evaluator{
		Counter:    mapCounter{"hello\nhi there": 80, "hi there": 30},
		Capacity:   fixedCapacity(100),
		Thresholds: Thresholds{Warn: 75, Critical: 90},
	}

	report, err := evaluator.Evaluate(context.Background(), messages, "model")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if report.Total != 80 || report.Output != 30 || report.Input != 50 {
		t.Errorf("report = %+v, want total 80, output 30, input 50", report)
	}
	if report.Percentage != 80.0 {
		t.Errorf("Percentage = %v, want 80", report.Percentage)
	}
	if report.Severity != SeverityWarning {
		t.Errorf("Severity = %v, want WARNING", report.Severity)
	}

	status := Formatter{ShowBar: true, BarLength: 5}.Format(report)
	want := "WARN: | Tokens: 80/100 (80.0%) | [⬢⬢⬢⬢⬡] | 50/30"
	if status != want {
		t.Errorf("status = %q, want %q", status, want)
	}
}

func TestEvaluateWithoutAssistant(t *testing.T) {
	evaluator := &Evaluator{Counter: mapCounter{}, Capacity: fixedCapacity(1000), Thresholds: DefaultThresholds()}

	report, err := evaluator.Evaluate(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: core.TextContent("abcd")},
	}, "")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if report.Output != 0 || report.Input != report.Total {
		t.Errorf("report = %+v, want all tokens counted as input", report)
	}
}

func TestEvaluateZeroLimit(t *testing.T) {
	evaluator := &Evaluator{Counter: mapCounter{}, Capacity: fixedCapacity(0), Thresholds: DefaultThresholds()}

	report, err := evaluator.Evaluate(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: core.TextContent("abcd")},
	}, "x")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if report.Percentage != 0 {
		t.Errorf("Percentage = %v, want 0 for a zero limit", report.Percentage)
	}
}

func TestEvaluateNoMessages(t *testing.T) {
	evaluator := &Evaluator{Counter: mapCounter{}, Capacity: fixedCapacity(10)}

	if _, err := evaluator.Evaluate(context.Background(), nil, "x"); !errors.Is(err, ErrNoMessages) {
		t.Errorf("error = %v, want ErrNoMessages", err)
	}
}

func TestFormatOmitsEmptySegments(t *testing.T) {
	report := Report{Total: 512, Limit: 128000, Percentage: 0.4, Severity: SeverityNormal, Input: 500, Output: 12}

	got := Formatter{ShowBar: false, BarLength: 5}.Format(report)
	want := "Tokens: 512/128.0K (0.4%) | 500/12"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}

	report.Severity = SeverityCritical
	got = Formatter{ShowBar: true, BarLength: 3}.Format(report)
	if !strings.HasPrefix(got, "CRIT: | Tokens: ") || !strings.Contains(got, "| [⬡⬡⬡] |") {
		t.Errorf("Format = %q", got)
	}
}
