package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erg0nix/ctxmeter/internal/config"
	"github.com/erg0nix/ctxmeter/internal/core"
	"github.com/erg0nix/ctxmeter/internal/tools"
)

// reporter emits tool progress to the host. Emission is best effort.
type reporter struct {
	ctx  context.Context
	emit core.Emitter
}

func (r reporter) status(description string, done, failed bool) {
	icon, state := "🔎", "in_progress"
	switch {
	case failed:
		icon, state = "❌", "complete"
	case done:
		icon, state = "✅", "complete"
	}

	_ = r.emit(r.ctx, core.Event{
		Type: core.EventStatus,
		Data: core.StatusData{Description: icon + " " + description, Status: state, Done: done},
	})
}

func (r reporter) message(content string) {
	_ = r.emit(r.ctx, core.MessageEvent(content))
}

func (r reporter) citation(name, url, document string) {
	_ = r.emit(r.ctx, core.CitationEvent(name, url, document, true))
}

const notConfiguredText = "Jira credentials not configured. Please provide your username, API key, and base URL."

func (r reporter) fail(prefix string, err error) error {
	text := err.Error()
	if errors.Is(err, ErrNotConfigured) {
		text = notConfiguredText
	}

	r.status(fmt.Sprintf("%s: %s", prefix, text), true, true)
	return err
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Tools exposes the Jira client as host tools. Credentials are read on every call so a config
// reload takes effect without re-registering.
type Tools struct {
	config func() config.JiraConfig
}

func NewTools(cfg func() config.JiraConfig) *Tools {
	return &Tools{config: cfg}
}

func (t *Tools) client() (*Client, error) {
	return NewClient(t.config())
}

// Register adds every Jira tool to registry.
func (t *Tools) Register(registry *tools.Registry) {
	registry.Add(&GetIssueTool{t})
	registry.Add(&SearchIssuesTool{t})
	registry.Add(&CreateIssueTool{t})
	registry.Add(&AddCommentTool{t})
	registry.Add(&AssignIssueTool{t})
	registry.Add(&UpdateStatusTool{t})
	registry.Add(&ListTransitionsTool{t})
	registry.Add(&ListProjectsTool{t})
	registry.Add(&IssueMetadataTool{t})
}

var issueIDProperty = tools.Property("string", "The ID of the issue (e.g., PROJECT-123)")

type GetIssueTool struct{ tools *Tools }

func (tool *GetIssueTool) Name() string { return "get_issue" }
func (tool *GetIssueTool) Description() string {
	return "Get detailed information about a Jira issue by its ID, including description and comments."
}
func (tool *GetIssueTool) Parameters() map[string]any {
	return tools.Object(map[string]any{"issue_id": issueIDProperty}, "issue_id")
}

func (tool *GetIssueTool) Execute(ctx context.Context, args map[string]any, emit core.Emitter) (string, error) {
	r := reporter{ctx, emit}

	key, err := tools.RequireString("issue_id", args)
	if err != nil {
		return "", r.fail("Failed to get issue", err)
	}
	failPrefix := "Failed to get issue " + key

	r.status("Retrieving Jira issue "+key, false, false)

	client, err := tool.tools.client()
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	issue, err := client.GetIssue(ctx, key, "")
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	r.message(IssueCard(issue))
	r.citation("Description of "+issue.Key, issue.Link, issue.Description)

	comments, err := client.Comments(ctx, key)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}
	if len(comments) > 0 {
		r.message(CommentList(key, comments))
	}

	r.status("Successfully retrieved Jira issue "+key, true, false)
	return toJSON(issue)
}

type SearchIssuesTool struct{ tools *Tools }

func (tool *SearchIssuesTool) Name() string { return "search_issues" }
func (tool *SearchIssuesTool) Description() string {
	return `Search for Jira issues using JQL or free text (e.g., "project = DEMO AND status = Open", or "login bug").`
}
func (tool *SearchIssuesTool) Parameters() map[string]any {
	return tools.Object(map[string]any{
		"query":       tools.Property("string", "JQL query string or free text search"),
		"max_results": tools.Property("integer", "Maximum number of results to return (default: 10)"),
	}, "query")
}

func (tool *SearchIssuesTool) Execute(ctx context.Context, args map[string]any, emit core.Emitter) (string, error) {
	r := reporter{ctx, emit}
	const failPrefix = "Failed to search issues"

	query, err := tools.RequireString("query", args)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	maxResults, ok := tools.IntArg("max_results", args)
	if !ok || maxResults <= 0 {
		maxResults = 10
	}

	r.status("Searching Jira for: "+query, false, false)

	client, err := tool.tools.client()
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	result, err := client.Search(ctx, query, maxResults)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	if len(result.Issues) == 0 {
		r.status("No issues found matching: "+query, true, false)
		return toJSON(map[string]any{"message": "No issues found", "total": 0})
	}

	r.message(SearchTable(result))
	r.status(fmt.Sprintf("Found %d issues matching your query", result.Total), true, false)

	return toJSON(result)
}

type CreateIssueTool struct{ tools *Tools }

func (tool *CreateIssueTool) Name() string        { return "create_issue" }
func (tool *CreateIssueTool) Description() string { return "Create a new Jira issue." }
func (tool *CreateIssueTool) Parameters() map[string]any {
	return tools.Object(map[string]any{
		"project_key": tools.Property("string", "The project key (e.g., DEMO)"),
		"summary":     tools.Property("string", "The issue summary/title"),
		"description": tools.Property("string", "The issue description"),
		"issue_type":  tools.Property("string", "The type of issue (e.g., Bug, Task, Story; default: Task)"),
		"priority":    tools.Property("string", "The priority level (e.g., High, Medium, Low)"),
	}, "project_key", "summary", "description")
}

func (tool *CreateIssueTool) Execute(ctx context.Context, args map[string]any, emit core.Emitter) (string, error) {
	r := reporter{ctx, emit}
	const failPrefix = "Failed to create issue"

	issue := NewIssue{}
	var err error
	if issue.ProjectKey, err = tools.RequireString("project_key", args); err != nil {
		return "", r.fail(failPrefix, err)
	}
	if issue.Summary, err = tools.RequireString("summary", args); err != nil {
		return "", r.fail(failPrefix, err)
	}
	issue.Description, _ = tools.StringArg("description", args)
	issue.IssueType, _ = tools.StringArg("issue_type", args)
	issue.Priority, _ = tools.StringArg("priority", args)
	if issue.IssueType == "" {
		issue.IssueType = "Task"
	}

	r.status(fmt.Sprintf("Creating new %s in project %s", issue.IssueType, issue.ProjectKey), false, false)

	client, err := tool.tools.client()
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	created, err := client.CreateIssue(ctx, issue)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	message := createdMessage(created, issue)
	r.message(message)
	r.status("Successfully created issue "+created.Key, true, false)

	return message, nil
}

type AddCommentTool struct{ tools *Tools }

func (tool *AddCommentTool) Name() string        { return "add_comment" }
func (tool *AddCommentTool) Description() string { return "Add a comment to an existing Jira issue." }
func (tool *AddCommentTool) Parameters() map[string]any {
	return tools.Object(map[string]any{
		"issue_id": issueIDProperty,
		"comment":  tools.Property("string", "The comment text to add"),
	}, "issue_id", "comment")
}

func (tool *AddCommentTool) Execute(ctx context.Context, args map[string]any, emit core.Emitter) (string, error) {
	r := reporter{ctx, emit}
	const failPrefix = "Failed to add comment"

	key, err := tools.RequireString("issue_id", args)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}
	text, err := tools.RequireString("comment", args)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	r.status("Adding comment to "+key, false, false)

	client, err := tool.tools.client()
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	added, err := client.AddComment(ctx, key, text)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	r.message(commentAddedMessage(key, added))
	r.status("Comment added to "+key, true, false)

	return toJSON(added)
}

type AssignIssueTool struct{ tools *Tools }

func (tool *AssignIssueTool) Name() string        { return "assign_issue" }
func (tool *AssignIssueTool) Description() string { return "Assign a Jira issue to a user." }
func (tool *AssignIssueTool) Parameters() map[string]any {
	return tools.Object(map[string]any{
		"issue_id": issueIDProperty,
		"assignee": tools.Property("string", `Username of the assignee (use "Unassigned" to unassign)`),
	}, "issue_id", "assignee")
}

func (tool *AssignIssueTool) Execute(ctx context.Context, args map[string]any, emit core.Emitter) (string, error) {
	r := reporter{ctx, emit}
	const failPrefix = "Failed to assign issue"

	key, err := tools.RequireString("issue_id", args)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}
	assignee, _ := tools.StringArg("assignee", args)

	r.status(fmt.Sprintf("Assigning %s to %s", key, orDefault(assignee, "Unassigned")), false, false)

	client, err := tool.tools.client()
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	assignment, err := client.AssignIssue(ctx, key, assignee)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	r.message(assignedMessage(assignment))
	r.status("Successfully assigned "+key, true, false)

	return toJSON(assignment)
}

type UpdateStatusTool struct{ tools *Tools }

func (tool *UpdateStatusTool) Name() string { return "update_status" }
func (tool *UpdateStatusTool) Description() string {
	return `Update the status of a Jira issue by transition name (e.g., "In Progress", "Done") or transition ID.`
}
func (tool *UpdateStatusTool) Parameters() map[string]any {
	return tools.Object(map[string]any{
		"issue_id":      issueIDProperty,
		"status":        tools.Property("string", "The new status or transition name"),
		"transition_id": tools.Property("string", "Transition ID, used instead of status when given"),
	}, "issue_id")
}

func (tool *UpdateStatusTool) Execute(ctx context.Context, args map[string]any, emit core.Emitter) (string, error) {
	r := reporter{ctx, emit}
	const failPrefix = "Failed to update status"

	key, err := tools.RequireString("issue_id", args)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}
	status, _ := tools.StringArg("status", args)
	transitionID, _ := tools.StringArg("transition_id", args)

	target := status
	if transitionID != "" {
		target = "transition " + transitionID
	}
	r.status(fmt.Sprintf("Updating %s status to '%s'", key, target), false, false)

	client, err := tool.tools.client()
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	r.status("Checking available transitions for "+key, false, false)

	change, err := client.TransitionIssue(ctx, key, transitionID, status)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	r.message(statusChangedMessage(change))
	r.status(fmt.Sprintf("Successfully updated %s status", key), true, false)

	return toJSON(change)
}

type ListTransitionsTool struct{ tools *Tools }

func (tool *ListTransitionsTool) Name() string { return "list_transitions" }
func (tool *ListTransitionsTool) Description() string {
	return "List the status transitions currently available for a Jira issue."
}
func (tool *ListTransitionsTool) Parameters() map[string]any {
	return tools.Object(map[string]any{"issue_id": issueIDProperty}, "issue_id")
}

func (tool *ListTransitionsTool) Execute(ctx context.Context, args map[string]any, emit core.Emitter) (string, error) {
	r := reporter{ctx, emit}
	const failPrefix = "Failed to list transitions"

	key, err := tools.RequireString("issue_id", args)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	r.status("Retrieving transitions for "+key, false, false)

	client, err := tool.tools.client()
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	transitions, err := client.Transitions(ctx, key)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	rows := make([][]string, len(transitions))
	for i, t := range transitions {
		rows[i] = []string{t.ID, t.Name, t.ToStatus}
	}
	r.message(Table("Available Transitions for "+key, []string{"ID", "Name", "To Status"}, rows))
	r.status(fmt.Sprintf("Retrieved %d transitions", len(transitions)), true, false)

	return toJSON(transitions)
}

type ListProjectsTool struct{ tools *Tools }

func (tool *ListProjectsTool) Name() string        { return "list_projects" }
func (tool *ListProjectsTool) Description() string { return "List available Jira projects." }
func (tool *ListProjectsTool) Parameters() map[string]any {
	return tools.Object(map[string]any{})
}

func (tool *ListProjectsTool) Execute(ctx context.Context, _ map[string]any, emit core.Emitter) (string, error) {
	r := reporter{ctx, emit}
	const failPrefix = "Failed to list projects"

	r.status("Retrieving Jira projects", false, false)

	client, err := tool.tools.client()
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	projects, err := client.Projects(ctx)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	rows := make([][]string, len(projects))
	for i, p := range projects {
		rows[i] = []string{p.Key, p.Name, p.ID}
	}
	r.message(Table(fmt.Sprintf("Available Jira Projects (%d)", len(projects)), []string{"Key", "Name", "ID"}, rows))
	r.status(fmt.Sprintf("Retrieved %d projects", len(projects)), true, false)

	return toJSON(projects)
}

type IssueMetadataTool struct{ tools *Tools }

func (tool *IssueMetadataTool) Name() string { return "get_issue_metadata" }
func (tool *IssueMetadataTool) Description() string {
	return "Get metadata for issue creation (issue types, priorities)."
}
func (tool *IssueMetadataTool) Parameters() map[string]any {
	return tools.Object(map[string]any{
		"project_key": tools.Property("string", "Optional project key to get specific issue types"),
	})
}

func (tool *IssueMetadataTool) Execute(ctx context.Context, args map[string]any, emit core.Emitter) (string, error) {
	r := reporter{ctx, emit}
	const failPrefix = "Failed to get metadata"

	projectKey, _ := tools.StringArg("project_key", args)

	r.status("Retrieving Jira metadata", false, false)

	client, err := tool.tools.client()
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	issueTypes, err := client.IssueTypes(ctx, projectKey)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	priorities, err := client.Priorities(ctx)
	if err != nil {
		return "", r.fail(failPrefix, err)
	}

	typesTitle := "Available Issue Types"
	if projectKey != "" {
		typesTitle += " for " + projectKey
	}
	r.message(OptionTable(typesTitle, issueTypes))
	r.message(OptionTable("Available Priorities", priorities))
	r.status("Successfully retrieved metadata", true, false)

	return toJSON(map[string]any{"issue_types": issueTypes, "priorities": priorities})
}
