package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/erg0nix/ctxmeter/internal/core"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderMarkdown converts a tool message to HTML.
func renderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// eventPrinter prints status lines to errOut and tool messages to out.
type eventPrinter struct {
	out    io.Writer
	errOut io.Writer
	html   bool
}

func (p eventPrinter) emit(_ context.Context, event core.Event) error {
	switch data := event.Data.(type) {
	case core.StatusData:
		style := styleDim
		if strings.HasPrefix(data.Description, "❌") {
			style = styleError
		}
		fmt.Fprintln(p.errOut, style.Render(data.Description))
	case core.MessageData:
		if !p.html {
			fmt.Fprint(p.out, data.Content)
			return nil
		}
		html, err := renderMarkdown(data.Content)
		if err != nil {
			return err
		}
		fmt.Fprint(p.out, html)
	case core.CitationData:
		for _, meta := range data.Metadata {
			fmt.Fprintln(p.errOut, styleDim.Render("source: "+data.Source.Name+" "+meta.Source))
		}
	}
	return nil
}

type jiraCommand struct {
	use   string
	short string
	args  []string
	// optional is the number of trailing positional arguments that may be omitted.
	optional int
	tool     string
	flags    func(cmd *cobra.Command)
	build    func(cmd *cobra.Command, args []string) map[string]any
}

func newJiraCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jira",
		Short: "Run the Jira tools from the command line",
	}

	cmd.PersistentFlags().Bool("html", false, "render messages as HTML")
	cmd.PersistentFlags().Bool("json", false, "print the tool result instead of its messages")

	commands := []jiraCommand{
		{
			use: "search QUERY", short: "Search issues with JQL or free text", args: []string{"query"}, tool: "search_issues",
			flags: func(c *cobra.Command) { c.Flags().Int("max", 10, "maximum results") },
			build: func(c *cobra.Command, args []string) map[string]any {
				limit, _ := c.Flags().GetInt("max")
				return map[string]any{"query": args[0], "max_results": limit}
			},
		},
		{use: "get ISSUE", short: "Show an issue with its comments", args: []string{"issue_id"}, tool: "get_issue"},
		{
			use: "create", short: "Create an issue", tool: "create_issue",
			flags: func(c *cobra.Command) {
				c.Flags().String("project", "", "project key")
				c.Flags().String("summary", "", "issue summary")
				c.Flags().String("description", "", "issue description")
				c.Flags().String("type", "", "issue type (default Task)")
				c.Flags().String("priority", "", "priority")
			},
			build: func(c *cobra.Command, _ []string) map[string]any {
				args := map[string]any{}
				for flag, key := range map[string]string{
					"project": "project_key", "summary": "summary", "description": "description",
					"type": "issue_type", "priority": "priority",
				} {
					if value, _ := c.Flags().GetString(flag); value != "" {
						args[key] = value
					}
				}
				return args
			},
		},
		{use: "comment ISSUE TEXT", short: "Comment on an issue", args: []string{"issue_id", "comment"}, tool: "add_comment"},
		{use: "assign ISSUE USER", short: "Assign an issue (use Unassigned to clear)", args: []string{"issue_id", "assignee"}, tool: "assign_issue"},
		{
			use: "transition ISSUE STATUS", short: "Move an issue to a new status", args: []string{"issue_id", "status"}, tool: "update_status",
			flags: func(c *cobra.Command) { c.Flags().String("id", "", "transition id to use instead of the status name") },
			build: func(c *cobra.Command, args []string) map[string]any {
				out := map[string]any{"issue_id": args[0], "status": args[1]}
				if id, _ := c.Flags().GetString("id"); id != "" {
					out["transition_id"] = id
				}
				return out
			},
		},
		{use: "transitions ISSUE", short: "List the transitions available for an issue", args: []string{"issue_id"}, tool: "list_transitions"},
		{use: "projects", short: "List projects", tool: "list_projects"},
		{
			use: "metadata [PROJECT]", short: "List issue types and priorities", optional: 1, tool: "get_issue_metadata",
			build: func(_ *cobra.Command, args []string) map[string]any {
				if len(args) == 0 {
					return map[string]any{}
				}
				return map[string]any{"project_key": args[0]}
			},
		},
	}

	for _, spec := range commands {
		cmd.AddCommand(spec.command())
	}

	return cmd
}

func (j jiraCommand) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   j.use,
		Short: j.short,
		Args:  cobra.RangeArgs(len(j.args), len(j.args)+j.optional),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			toolArgs := j.arguments(cmd, args)
			html, _ := cmd.Flags().GetBool("html")
			asJSON, _ := cmd.Flags().GetBool("json")

			printer := eventPrinter{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), html: html}
			emit := printer.emit
			if asJSON {
				emit = core.DiscardEmitter
			}

			result, err := a.services().Tools.Execute(cmd.Context(), j.tool, toolArgs, emit)
			if err != nil {
				return err
			}

			if asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), result)
			}
			return nil
		},
	}

	if j.flags != nil {
		j.flags(cmd)
	}
	return cmd
}

func (j jiraCommand) arguments(cmd *cobra.Command, args []string) map[string]any {
	if j.build != nil {
		return j.build(cmd, args)
	}

	out := make(map[string]any, len(args))
	for i, name := range j.args {
		out[name] = args[i]
	}
	return out
}
