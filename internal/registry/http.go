package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/erg0nix/ctxmeter/internal/core"
)

// HTTPConfig points at an OpenAI-compatible server (llama-server, vLLM, Open WebUI).
type HTTPConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// HTTP reads context sizes from the server's model listing.
type HTTP struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &HTTP{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// contextSizePaths lists where the servers we know about put the context window, most specific
// first.
var contextSizePaths = [][]string{
	{"context_length"},
	{"max_model_len"},
	{"meta", "n_ctx_train"},
	{"params", "num_ctx"},
	{"info", "params", "num_ctx"},
}

func (h *HTTP) Lookup(ctx context.Context, id string) (Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+"/v1/models", nil)
	if err != nil {
		return Model{}, fmt.Errorf("registry: build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Model{}, fmt.Errorf("registry: list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Model{}, fmt.Errorf("registry: list models: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Model{}, fmt.Errorf("registry: decode models: %w", err)
	}

	for _, entry := range payload.Data {
		entryID, _ := entry["id"].(string)
		if entryID != id {
			continue
		}

		for _, path := range contextSizePaths {
			if size, ok := core.PositiveIntAt(entry, path...); ok {
				return Model{ID: id, ContextSize: size}, nil
			}
		}

		return Model{ID: id}, ErrNoContextSize
	}

	return Model{}, ErrNotFound
}

// IsHealthy reports whether the endpoint answers its model listing.
func (h *HTTP) IsHealthy(ctx context.Context) bool {
	_, err := h.Lookup(ctx, "")
	return err == nil || errors.Is(err, ErrNotFound)
}
