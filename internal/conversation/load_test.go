package conversation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erg0nix/ctxmeter/internal/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		content   string
		wantModel string
		wantLast  string
	}{
		{
			name:     "json list",
			file:     "chat.json",
			content:  `[{"role":"user","content":"hello"},{"role":"assistant","content":"hi"}]`,
			wantLast: "hi",
		},
		{
			name: "jsonc body",
			file: "chat.jsonc",
			content: `{
				// exported from the host
				"model": "llama3:8b",
				"messages": [
					{"role": "user", "content": "hello"},
					{"role": "assistant", "content": [{"type": "text", "text": "hi"}]},
				],
			}`,
			wantModel: "llama3:8b",
			wantLast:  "hi",
		},
		{
			name:     "jsonl",
			file:     "chat.jsonl",
			content:  "{\"role\":\"user\",\"content\":\"hello\"}\n\n{\"role\":\"assistant\",\"content\":\"hi\"}\n",
			wantLast: "hi",
		},
		{
			name:      "yaml body",
			file:      "chat.yaml",
			content:   "model: gpt-4o\nmessages:\n  - role: user\n    content: hello\n  - role: assistant\n    content:\n      - type: text\n        text: hi\n",
			wantModel: "gpt-4o",
			wantLast:  "hi",
		},
		{
			name:     "yml list",
			file:     "chat.yml",
			content:  "- role: user\n  content: hello\n- role: assistant\n  content: hi\n",
			wantLast: "hi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			if conv.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", conv.Model, tt.wantModel)
			}
			if len(conv.Messages) != 2 {
				t.Fatalf("messages = %d, want 2", len(conv.Messages))
			}
			if conv.Messages[0].Role != core.RoleUser {
				t.Errorf("first role = %q, want user", conv.Messages[0].Role)
			}
			if got := conv.Messages[1].Content.PlainText(); got != tt.wantLast {
				t.Errorf("last content = %q, want %q", got, tt.wantLast)
			}
		})
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	_, err := Load(writeFile(t, "chat.txt", "hello"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDecodeJSONLReportsLine(t *testing.T) {
	_, err := Load(writeFile(t, "chat.jsonl", "{\"role\":\"user\",\"content\":\"ok\"}\nnot json\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "line 2"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not mention %q", err, want)
	}
}

func TestDecodeJSONEmpty(t *testing.T) {
	conv, err := DecodeJSON([]byte("  // nothing here\n"))
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if len(conv.Messages) != 0 {
		t.Errorf("messages = %d, want 0", len(conv.Messages))
	}
}
