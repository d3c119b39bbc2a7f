package jira

import (
	"fmt"
	"strings"
)

// Table renders a markdown table under a level-3 heading. Pipes in cells are escaped.
func Table(title string, headers []string, rows [][]string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### %s\n\n|%s|\n|", title, strings.Join(headers, "|"))
	b.WriteString(strings.Repeat("---|", len(headers)))
	b.WriteString("\n")

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.ReplaceAll(cell, "|", "\\|")
		}
		b.WriteString("|" + strings.Join(cells, "|") + "|\n")
	}

	b.WriteString("\n")
	return b.String()
}

func IssueCard(issue Issue) string {
	return fmt.Sprintf(`
### 🎫 %s: %s

**Status:** %s
**Type:** %s
**Priority:** %s
**Project:** %s

**Created:** %s
**Updated:** %s
**Reporter:** %s
**Assignee:** %s

**Link:** [%s](%s)
`,
		issue.Key, issue.Title,
		issue.Status, issue.Type, issue.Priority, issue.Project,
		issue.Created, issue.Updated, issue.Reporter, issue.Assignee,
		issue.Key, issue.Link,
	)
}

func CommentList(key string, comments []Comment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### 💬 Comments on %s (%d)\n\n", key, len(comments))
	for i, comment := range comments {
		fmt.Fprintf(&b, "**%d. %s** - %s\n%s\n\n", i+1, comment.Author, comment.Created, comment.Text)
	}

	return b.String()
}

func SearchTable(result SearchResult) string {
	rows := make([][]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		rows = append(rows, []string{
			fmt.Sprintf("[%s](%s)", issue.Key, issue.Link),
			issue.Summary,
			issue.Status,
			issue.Type,
			issue.Priority,
			issue.Updated,
		})
	}

	title := fmt.Sprintf("Found %d issues (showing %d)", result.Total, result.Displayed)
	return Table(title, []string{"Key", "Summary", "Status", "Type", "Priority", "Updated"}, rows)
}

func OptionTable(title string, options []Option) string {
	rows := make([][]string, len(options))
	for i, option := range options {
		rows[i] = []string{option.ID, option.Name}
	}
	return Table(title, []string{"ID", "Name"}, rows)
}

func createdMessage(created CreatedIssue, issue NewIssue) string {
	return fmt.Sprintf(`
### ✅ Issue Created Successfully

**Key:** [%s](%s)
**Summary:** %s
**Type:** %s
**Project:** %s
`, created.Key, created.Link, issue.Summary, issue.IssueType, issue.ProjectKey)
}

func commentAddedMessage(key string, added AddedComment) string {
	return fmt.Sprintf(`
### 💬 Comment Added

Successfully added a comment to [%s](%s).
**Added at:** %s
`, key, added.IssueLink, added.Created)
}

func assignedMessage(assignment Assignment) string {
	return fmt.Sprintf(`
### 👤 Issue Assignment Updated

Issue [%s](%s) has been assigned to **%s**.
`, assignment.IssueKey, assignment.Link, assignment.Assignee)
}

func statusChangedMessage(change StatusChange) string {
	return fmt.Sprintf(`
### 🔄 Issue Status Updated

Issue [%s](%s) status has been changed to **%s**.
`, change.IssueKey, change.Link, change.NewStatus)
}
