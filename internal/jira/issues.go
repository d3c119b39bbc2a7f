package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const defaultIssueFields = "summary,description,status,assignee,reporter,created,updated,priority,issuetype,project"

const noDescription = "<p><em>No description provided</em></p>"

type named struct {
	Name string `json:"name"`
}

type person struct {
	DisplayName string `json:"displayName"`
}

type issueFields struct {
	Summary   string  `json:"summary"`
	Status    *named  `json:"status"`
	IssueType *named  `json:"issuetype"`
	Project   *named  `json:"project"`
	Priority  *named  `json:"priority"`
	Created   string  `json:"created"`
	Updated   string  `json:"updated"`
	Reporter  *person `json:"reporter"`
	Assignee  *person `json:"assignee"`
}

func nameOr(n *named, fallback string) string {
	if n == nil || n.Name == "" {
		return fallback
	}
	return n.Name
}

func displayNameOr(p *person, fallback string) string {
	if p == nil || p.DisplayName == "" {
		return fallback
	}
	return p.DisplayName
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

type Issue struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	Project     string `json:"project"`
	Priority    string `json:"priority"`
	Created     string `json:"created"`
	Updated     string `json:"updated"`
	Reporter    string `json:"reporter"`
	Assignee    string `json:"assignee"`
	Link        string `json:"link"`
	Description string `json:"description"`
}

// GetIssue fetches one issue with its rendered description. An empty fields uses the full
// default set.
func (c *Client) GetIssue(ctx context.Context, key, fields string) (Issue, error) {
	if fields == "" {
		fields = defaultIssueFields
	}

	var result struct {
		Fields         issueFields `json:"fields"`
		RenderedFields struct {
			Description string `json:"description"`
		} `json:"renderedFields"`
	}

	query := url.Values{"fields": {fields}, "expand": {"renderedFields,names"}}
	if err := c.get(ctx, "issue/"+key, query, &result); err != nil {
		return Issue{}, err
	}

	f := result.Fields
	return Issue{
		Key:         key,
		Title:       f.Summary,
		Status:      nameOr(f.Status, ""),
		Type:        nameOr(f.IssueType, ""),
		Project:     nameOr(f.Project, ""),
		Priority:    nameOr(f.Priority, "Not set"),
		Created:     orDefault(f.Created, "Unknown"),
		Updated:     orDefault(f.Updated, "Unknown"),
		Reporter:    displayNameOr(f.Reporter, c.username),
		Assignee:    displayNameOr(f.Assignee, "Unassigned"),
		Link:        c.BrowseURL(key),
		Description: orDefault(result.RenderedFields.Description, noDescription),
	}, nil
}

var jqlMarkers = []string{"=", "~", ">", "<", " AND ", " OR ", " ORDER BY "}

// BuildJQL passes JQL through and turns free text into an OR of text searches per word.
func BuildJQL(query string) string {
	for _, marker := range jqlMarkers {
		if strings.Contains(query, marker) {
			return query
		}
	}

	terms := strings.Fields(query)
	if len(terms) == 0 {
		return fmt.Sprintf(`text ~ "%s"`, query)
	}

	clauses := make([]string, len(terms))
	for i, term := range terms {
		clauses[i] = fmt.Sprintf(`text ~ "%s"`, term)
	}
	return strings.Join(clauses, " OR ")
}

type IssueSummary struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Updated  string `json:"updated"`
	Link     string `json:"link"`
}

type SearchResult struct {
	Issues    []IssueSummary `json:"issues"`
	Total     int            `json:"total"`
	Displayed int            `json:"displayed"`
}

func (c *Client) Search(ctx context.Context, query string, maxResults int) (SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	var raw struct {
		Issues []struct {
			Key    string      `json:"key"`
			Fields issueFields `json:"fields"`
		} `json:"issues"`
		Total int `json:"total"`
	}

	params := url.Values{
		"jql":        {BuildJQL(query)},
		"maxResults": {strconv.Itoa(maxResults)},
		"fields":     {"summary,status,issuetype,priority,updated"},
	}
	if err := c.get(ctx, "search", params, &raw); err != nil {
		return SearchResult{}, err
	}

	result := SearchResult{Issues: make([]IssueSummary, 0, len(raw.Issues)), Total: raw.Total}
	for _, item := range raw.Issues {
		result.Issues = append(result.Issues, IssueSummary{
			Key:      item.Key,
			Summary:  item.Fields.Summary,
			Status:   nameOr(item.Fields.Status, ""),
			Type:     nameOr(item.Fields.IssueType, ""),
			Priority: nameOr(item.Fields.Priority, "Not set"),
			Updated:  orDefault(item.Fields.Updated, "Unknown"),
			Link:     c.BrowseURL(item.Key),
		})
	}
	result.Displayed = len(result.Issues)

	return result, nil
}

type NewIssue struct {
	ProjectKey  string
	Summary     string
	Description string
	IssueType   string
	Priority    string
}

type CreatedIssue struct {
	Key  string `json:"key"`
	ID   string `json:"id"`
	Link string `json:"link"`
}

// CreateIssue files an issue. IssueType defaults to Task.
func (c *Client) CreateIssue(ctx context.Context, issue NewIssue) (CreatedIssue, error) {
	if issue.IssueType == "" {
		issue.IssueType = "Task"
	}

	fields := map[string]any{
		"project":     map[string]any{"key": issue.ProjectKey},
		"summary":     issue.Summary,
		"description": issue.Description,
		"issuetype":   map[string]any{"name": issue.IssueType},
	}
	if issue.Priority != "" {
		fields["priority"] = map[string]any{"name": issue.Priority}
	}

	var result struct {
		Key string `json:"key"`
		ID  string `json:"id"`
	}
	if err := c.post(ctx, "issue", map[string]any{"fields": fields}, &result); err != nil {
		return CreatedIssue{}, err
	}

	return CreatedIssue{Key: result.Key, ID: result.ID, Link: c.BrowseURL(result.Key)}, nil
}

type Assignment struct {
	IssueKey string `json:"issue_key"`
	Assignee string `json:"assignee"`
	Link     string `json:"link"`
}

func isUnassign(assignee string) bool {
	switch strings.ToLower(strings.TrimSpace(assignee)) {
	case "", "unassigned", "none":
		return true
	default:
		return false
	}
}

// AssignIssue sets the assignee; "unassigned", "none" or "" clears it.
func (c *Client) AssignIssue(ctx context.Context, key, assignee string) (Assignment, error) {
	payload := map[string]any{"assignee": nil}
	if !isUnassign(assignee) {
		payload["assignee"] = map[string]any{"name": assignee}
	}

	if err := c.put(ctx, "issue/"+key+"/assignee", payload, nil); err != nil {
		return Assignment{}, err
	}

	return Assignment{IssueKey: key, Assignee: orDefault(assignee, "Unassigned"), Link: c.BrowseURL(key)}, nil
}
