package core

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestContentUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantText  string
		multipart bool
	}{
		{name: "plain string", input: `"hello"`, wantText: "hello"},
		{name: "null", input: `null`, wantText: ""},
		{
			name:      "text parts joined",
			input:     `[{"type":"text","text":"a"},{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":"b"}]`,
			wantText:  "a\nb",
			multipart: true,
		},
		{name: "only image", input: `[{"type":"image_url","image_url":{"url":"x"}}]`, wantText: "", multipart: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var content Content
			if err := json.Unmarshal([]byte(tt.input), &content); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if got := content.PlainText(); got != tt.wantText {
				t.Errorf("PlainText() = %q, want %q", got, tt.wantText)
			}
			if content.IsMultipart() != tt.multipart {
				t.Errorf("IsMultipart() = %v, want %v", content.IsMultipart(), tt.multipart)
			}
		})
	}
}

func TestContentUnmarshalJSONRejectsObjects(t *testing.T) {
	var content Content
	if err := json.Unmarshal([]byte(`{"text":"x"}`), &content); err == nil {
		t.Fatal("expected error for object content")
	}
}

func TestContentRoundTripKeepsShape(t *testing.T) {
	msg := Message{Role: RoleUser, Content: PartsContent(ContentPart{Type: "text", Text: "hi"})}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	want := `{"role":"user","content":[{"type":"text","text":"hi"}]}`
	if string(data) != want {
		t.Errorf("marshal = %s, want %s", data, want)
	}
}

func TestContentUnmarshalYAML(t *testing.T) {
	input := `
- role: user
  content: hello
- role: assistant
  content:
    - type: text
      text: first
    - type: image_url
    - type: text
      text: second
`
	var messages []Message
	if err := yaml.Unmarshal([]byte(input), &messages); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content.PlainText() != "hello" {
		t.Errorf("message 0 = %q, want hello", messages[0].Content.PlainText())
	}
	if messages[1].Content.PlainText() != "first\nsecond" {
		t.Errorf("message 1 = %q, want first\\nsecond", messages[1].Content.PlainText())
	}
}

func TestUserSettingsDefaultEnabled(t *testing.T) {
	var user *User
	if !user.Settings().IsEnabled() {
		t.Error("nil user should be enabled")
	}

	disabled := false
	user = &User{Valves: &UserSettings{Enabled: &disabled}}
	if user.Settings().IsEnabled() {
		t.Error("explicitly disabled user should be disabled")
	}
}

func TestPositiveIntAt(t *testing.T) {
	payload := map[string]any{
		"meta":   map[string]any{"n_ctx_train": float64(32768)},
		"zero":   float64(0),
		"string": "128",
	}

	if got, ok := PositiveIntAt(payload, "meta", "n_ctx_train"); !ok || got != 32768 {
		t.Errorf("nested = %d,%v, want 32768,true", got, ok)
	}
	if _, ok := PositiveIntAt(payload, "zero"); ok {
		t.Error("zero should not be positive")
	}
	if _, ok := PositiveIntAt(payload, "string"); ok {
		t.Error("strings are not accepted as sizes")
	}
	if _, ok := PositiveIntAt(payload, "meta", "missing"); ok {
		t.Error("missing key should not resolve")
	}
}
