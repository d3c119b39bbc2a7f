package jira

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNoTransition = errors.New("either transition id or transition name must be provided")

type Transition struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ToStatus string `json:"to_status"`
}

func (c *Client) Transitions(ctx context.Context, key string) ([]Transition, error) {
	var result struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			To   *named `json:"to"`
		} `json:"transitions"`
	}

	if err := c.get(ctx, "issue/"+key+"/transitions", nil, &result); err != nil {
		return nil, err
	}

	transitions := make([]Transition, 0, len(result.Transitions))
	for _, t := range result.Transitions {
		transitions = append(transitions, Transition{ID: t.ID, Name: t.Name, ToStatus: nameOr(t.To, "")})
	}
	return transitions, nil
}

// findTransition matches by id when one is given, otherwise by case-insensitive name.
func findTransition(transitions []Transition, id, name string) (Transition, bool) {
	for _, t := range transitions {
		if id != "" && t.ID == id {
			return t, true
		}
		if id == "" && strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Transition{}, false
}

type StatusChange struct {
	IssueKey  string `json:"issue_key"`
	NewStatus string `json:"new_status"`
	Link      string `json:"link"`
}

// TransitionIssue moves key through the transition identified by id or name and reports the
// status Jira shows afterwards.
func (c *Client) TransitionIssue(ctx context.Context, key, id, name string) (StatusChange, error) {
	if id == "" && name == "" {
		return StatusChange{}, ErrNoTransition
	}

	transitions, err := c.Transitions(ctx, key)
	if err != nil {
		return StatusChange{}, err
	}

	transition, ok := findTransition(transitions, id, name)
	if !ok {
		available := make([]string, len(transitions))
		for i, t := range transitions {
			available[i] = fmt.Sprintf("%s (ID: %s)", t.Name, t.ID)
		}
		return StatusChange{}, &APIError{Message: "Transition not found. Available transitions: " + strings.Join(available, ", ")}
	}

	payload := map[string]any{"transition": map[string]any{"id": transition.ID}}
	if err := c.post(ctx, "issue/"+key+"/transitions", payload, nil); err != nil {
		return StatusChange{}, err
	}

	updated, err := c.GetIssue(ctx, key, "status")
	if err != nil {
		return StatusChange{}, err
	}

	return StatusChange{IssueKey: key, NewStatus: updated.Status, Link: c.BrowseURL(key)}, nil
}
