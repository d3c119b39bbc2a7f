// Package jira is a small Jira REST client and the host tools built on it.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erg0nix/ctxmeter/internal/config"
)

const apiVersion = "latest"

var ErrNotConfigured = errors.New("jira: credentials not configured")

// APIError is a non-2xx answer from Jira, with the message shown to users.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

func newAPIError(statusCode int, body []byte, operation string) *APIError {
	message := fmt.Sprintf("Jira API error (%d): %s", statusCode, string(body))

	switch statusCode {
	case http.StatusUnauthorized:
		message = "Authentication failed. Please check your username and API key."
	case http.StatusForbidden:
		message = "You don't have permission to perform this operation."
	case http.StatusNotFound:
		message = fmt.Sprintf("Resource not found while attempting to %s.", operation)
	}

	return &APIError{StatusCode: statusCode, Message: message}
}

type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewClient builds a client from cfg, or returns ErrNotConfigured when credentials are missing.
func NewClient(cfg config.JiraConfig) (*Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// BrowseURL links to an issue in the Jira UI.
func (c *Client) BrowseURL(key string) string {
	return c.baseURL + "/browse/" + key
}

func (c *Client) endpointURL(endpoint string, query url.Values) string {
	u := fmt.Sprintf("%s/rest/api/%s/%s", c.baseURL, apiVersion, endpoint)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, payload any, operation string, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("jira: encode %s: %w", operation, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpointURL(endpoint, query), body)
	if err != nil {
		return fmt.Errorf("jira: build request: %w", err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jira: %s: %w", operation, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("jira: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, data, operation)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("jira: decode %s: %w", operation, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, query, nil, "get "+endpoint, out)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, nil, payload, "post to "+endpoint, out)
}

func (c *Client) put(ctx context.Context, endpoint string, payload any, out any) error {
	return c.do(ctx, http.MethodPut, endpoint, nil, payload, "update "+endpoint, out)
}
