package usage

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	glyphFilled = "⬢"
	glyphEmpty  = "⬡"
)

// FormatNumber renders counts compactly: 512, 16.4K, 1.0M.
func FormatNumber(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return strconv.Itoa(n)
	}
}

// BuildBar renders a bracketed bar of total glyphs with filled of them solid. filled is clamped
// to [0, total].
func BuildBar(filled, total int) string {
	if total < 0 {
		total = 0
	}
	filled = max(0, min(filled, total))

	return "[" + strings.Repeat(glyphFilled, filled) + strings.Repeat(glyphEmpty, total-filled) + "]"
}

// FilledFor converts a percentage into solid glyphs for a bar of barLength.
func FilledFor(percentage float64, barLength int) int {
	return int(math.Floor(float64(barLength) * percentage / 100))
}

func severityPrefix(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return "CRIT:"
	case SeverityWarning:
		return "WARN:"
	default:
		return ""
	}
}

type Formatter struct {
	ShowBar   bool
	BarLength int
}

// Bar returns the progress bar for report, or "" when bars are disabled.
func (f Formatter) Bar(report Report) string {
	if !f.ShowBar || f.BarLength <= 0 {
		return ""
	}
	return BuildBar(FilledFor(report.Percentage, f.BarLength), f.BarLength)
}

// Format renders "PREFIX | Tokens: T/L (P%) | BAR | IN/OUT", dropping empty segments.
func (f Formatter) Format(report Report) string {
	segments := []string{
		severityPrefix(report.Severity),
		fmt.Sprintf("Tokens: %s/%s (%.1f%%)", FormatNumber(report.Total), FormatNumber(report.Limit), report.Percentage),
		f.Bar(report),
		FormatNumber(report.Input) + "/" + FormatNumber(report.Output),
	}

	parts := segments[:0]
	for _, segment := range segments {
		if segment != "" {
			parts = append(parts, segment)
		}
	}

	return strings.Join(parts, " | ")
}
