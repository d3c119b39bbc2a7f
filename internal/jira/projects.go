package jira

import "context"

type Project struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	ID   string `json:"id"`
}

func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, "project", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Option is an id/name pair such as an issue type or a priority.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IssueTypes lists issue types for projectKey, or all issue types when it is empty.
func (c *Client) IssueTypes(ctx context.Context, projectKey string) ([]Option, error) {
	if projectKey == "" {
		var types []Option
		if err := c.get(ctx, "issuetype", nil, &types); err != nil {
			return nil, err
		}
		return types, nil
	}

	var project struct {
		IssueTypes []Option `json:"issueTypes"`
	}
	if err := c.get(ctx, "project/"+projectKey, nil, &project); err != nil {
		return nil, err
	}
	return project.IssueTypes, nil
}

func (c *Client) Priorities(ctx context.Context) ([]Option, error) {
	var priorities []Option
	if err := c.get(ctx, "priority", nil, &priorities); err != nil {
		return nil, err
	}
	return priorities, nil
}
