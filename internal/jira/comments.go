package jira

import (
	"context"
	"strings"
)

// adfNode is the subset of the Atlassian Document Format comments use.
type adfNode struct {
	Type    string    `json:"type"`
	Version int       `json:"version,omitempty"`
	Text    string    `json:"text,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

func paragraphDoc(text string) adfNode {
	return adfNode{
		Type:    "doc",
		Version: 1,
		Content: []adfNode{{
			Type:    "paragraph",
			Content: []adfNode{{Type: "text", Text: text}},
		}},
	}
}

// flattenText concatenates the text of each block's inline children, the two levels comment
// bodies use.
func flattenText(doc *adfNode) string {
	if doc == nil {
		return ""
	}

	var b strings.Builder
	for _, block := range doc.Content {
		for _, inline := range block.Content {
			b.WriteString(inline.Text)
		}
	}
	return b.String()
}

type AddedComment struct {
	ID        string `json:"id"`
	Created   string `json:"created"`
	IssueLink string `json:"issue_link"`
}

func (c *Client) AddComment(ctx context.Context, key, text string) (AddedComment, error) {
	var result struct {
		ID      string `json:"id"`
		Created string `json:"created"`
	}

	if err := c.post(ctx, "issue/"+key+"/comment", map[string]any{"body": paragraphDoc(text)}, &result); err != nil {
		return AddedComment{}, err
	}

	return AddedComment{ID: result.ID, Created: result.Created, IssueLink: c.BrowseURL(key)}, nil
}

type Comment struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Created string `json:"created"`
	Updated string `json:"updated"`
	Text    string `json:"text"`
}

func (c *Client) Comments(ctx context.Context, key string) ([]Comment, error) {
	var result struct {
		Comments []struct {
			ID      string   `json:"id"`
			Author  *person  `json:"author"`
			Created string   `json:"created"`
			Updated string   `json:"updated"`
			Body    *adfNode `json:"body"`
		} `json:"comments"`
	}

	if err := c.get(ctx, "issue/"+key+"/comment", nil, &result); err != nil {
		return nil, err
	}

	comments := make([]Comment, 0, len(result.Comments))
	for _, raw := range result.Comments {
		comments = append(comments, Comment{
			ID:      raw.ID,
			Author:  displayNameOr(raw.Author, "Unknown"),
			Created: orDefault(raw.Created, "Unknown"),
			Updated: orDefault(raw.Updated, "Unknown"),
			Text:    flattenText(raw.Body),
		})
	}
	return comments, nil
}
