package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/erg0nix/ctxmeter/internal/conversation"
	"github.com/erg0nix/ctxmeter/internal/usage"
)

func newCountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count FILE",
		Short: "Count the context usage of a saved conversation (.json, .jsonc, .jsonl, .yaml)",
		Args:  cobra.ExactArgs(1),
		RunE:  runCountCmd,
	}

	cmd.Flags().String("model", "", "model id (overrides the model named in the file)")
	cmd.Flags().BoolP("verbose", "v", false, "print a token breakdown")
	cmd.Flags().Bool("json", false, "print the report as JSON")

	return cmd
}

func runCountCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	modelFlag, _ := cmd.Flags().GetString("model")
	verbose, _ := cmd.Flags().GetBool("verbose")
	asJSON, _ := cmd.Flags().GetBool("json")

	conv, err := conversation.Load(args[0])
	if err != nil {
		return err
	}

	modelID := conv.Model
	if modelFlag != "" {
		modelID = modelFlag
	}

	services := a.services()
	report, status, err := services.Filter.Evaluate(cmd.Context(), conv.Messages, modelID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			usage.Report
			Status    string `json:"status"`
			Remaining int    `json:"remaining"`
		}{report, status, report.Remaining()})
	}

	fmt.Fprintln(out, severityStyle(report.Severity).Render(status))

	if verbose {
		printBreakdown(out, report)
	}
	return nil
}

func printBreakdown(out io.Writer, report usage.Report) {
	model := report.Model
	if model == "" {
		model = "(unspecified)"
	}

	t := newTable("FIELD", "VALUE")
	t.Row("model", model)
	t.Row("context window", humanize.Comma(int64(report.Limit)))
	t.Row("total tokens", humanize.Comma(int64(report.Total)))
	t.Row("input tokens", humanize.Comma(int64(report.Input)))
	t.Row("output tokens", humanize.Comma(int64(report.Output)))
	t.Row("remaining", humanize.Comma(int64(report.Remaining())))
	t.Row("messages", humanize.Comma(int64(report.Messages)))
	t.Row("usage", fmt.Sprintf("%.1f%%", report.Percentage))
	t.Row("severity", severityStyle(report.Severity).Render(report.Severity.String()))

	fmt.Fprintln(out, t.Render())
}
