package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erg0nix/ctxmeter/internal/config"
)

// run executes the root command with a config file in a temp dir.
func run(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.toml")
	cfg.LogLevel = "error"
	if err := config.Write(configPath, cfg); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func writeConversation(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClientAddrFromBind(t *testing.T) {
	tests := map[string]string{
		":50061":         "127.0.0.1:50061",
		"0.0.0.0:50061":  "127.0.0.1:50061",
		"[::]:50061":     "127.0.0.1:50061",
		"10.0.0.2:50061": "10.0.0.2:50061",
	}

	for bind, want := range tests {
		if got := clientAddrFromBind(bind); got != want {
			t.Errorf("clientAddrFromBind(%q) = %q, want %q", bind, got, want)
		}
	}
}

func TestCountJSONUsesFileModelAndOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.Counter.CustomModels = "tiny-model 1000000"

	path := writeConversation(t, "chat.jsonc", `{
		// saved from the host
		"model": "tiny-model",
		"messages": [
			{"role": "user", "content": "How big is the context window?"},
			{"role": "assistant", "content": "It depends on the model."},
		],
	}`)

	out, err := run(t, cfg, "count", "--json", path)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}

	var report struct {
		Model    string `json:"model"`
		Limit    int    `json:"limit"`
		Messages int    `json:"messages"`
		Severity string `json:"severity"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}

	if report.Model != "tiny-model" || report.Limit != 1000000 || report.Messages != 2 {
		t.Errorf("report = %+v", report)
	}
	if report.Severity != "NORMAL" {
		t.Errorf("severity = %q, want NORMAL", report.Severity)
	}
	if !strings.Contains(report.Status, "/1.0M") {
		t.Errorf("status %q lacks the formatted limit", report.Status)
	}
}

func TestCountModelFlagOverridesFile(t *testing.T) {
	cfg := config.Default()
	cfg.Counter.CustomModels = "flag-model 2048"

	path := writeConversation(t, "chat.jsonl", `{"role":"user","content":"hi"}`+"\n")

	out, err := run(t, cfg, "count", "--verbose", "--model", "flag-model", path)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}

	if !strings.Contains(out, "/2.0K") {
		t.Errorf("output %q lacks the model's limit", out)
	}
	if !strings.Contains(out, "context window") || !strings.Contains(out, "2,048") {
		t.Errorf("verbose output %q lacks the breakdown", out)
	}
}

func TestCountEmptyConversationFails(t *testing.T) {
	path := writeConversation(t, "chat.json", `[]`)

	if _, err := run(t, config.Default(), "count", path); err == nil {
		t.Error("expected an error for an empty conversation")
	}
}

func TestModelsResolvesIDs(t *testing.T) {
	cfg := config.Default()
	cfg.Counter.CustomModels = "house-model 12345"

	out, err := run(t, cfg, "models", "house-model", "claude-3-5-sonnet", "unknown-model")
	if err != nil {
		t.Fatalf("models failed: %v", err)
	}

	for _, want := range []string{"12,345", "128,000", "4,096"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestModelsListsFilteredTable(t *testing.T) {
	cfg := config.Default()
	cfg.Counter.CustomModels = "zz-house-model 777"

	out, err := run(t, cfg, "models", "--filter", "zz-house")
	if err != nil {
		t.Fatalf("models failed: %v", err)
	}

	if !strings.Contains(out, "zz-house-model") || !strings.Contains(out, "1 models") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--config", path, "init"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if _, err := config.Load(path); err != nil {
		t.Fatalf("written config does not load: %v", err)
	}

	cmd = NewRootCommand()
	cmd.SetArgs([]string{"--config", path, "init"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %v, want already exists", err)
	}
}

func TestJiraProjectsRendersHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/latest/project" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `[{"key": "DEMO", "name": "Demo", "id": "1"}]`)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Jira = config.JiraConfig{BaseURL: server.URL, Username: "u", Password: "p"}

	out, err := run(t, cfg, "jira", "projects", "--html")
	if err != nil {
		t.Fatalf("jira projects failed: %v", err)
	}

	if !strings.Contains(out, "<table>") || !strings.Contains(out, "DEMO") {
		t.Errorf("expected an HTML table, got:\n%s", out)
	}
}

func TestRenderMarkdown(t *testing.T) {
	html, err := renderMarkdown("### Title\n\n|A|B|\n|---|---|\n|x\\|y|z|\n")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(html, "<h3>Title</h3>") || !strings.Contains(html, "<td>x|y</td>") {
		t.Errorf("unexpected html:\n%s", html)
	}
}
