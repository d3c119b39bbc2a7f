package core

import (
	"encoding/json"
	"errors"
	"strings"

	"gopkg.in/yaml.v3"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPart is one typed element of a multi-part message (text, image_url, ...).
type ContentPart struct {
	Type     string         `json:"type" yaml:"type"`
	Text     string         `json:"text,omitempty" yaml:"text,omitempty"`
	ImageURL map[string]any `json:"image_url,omitempty" yaml:"image_url,omitempty"`
}

// Content holds a message body that arrives either as plain text or as a list of typed parts.
type Content struct {
	Text  string
	Parts []ContentPart
}

// TextContent builds plain-text content.
func TextContent(text string) Content {
	return Content{Text: text}
}

// PartsContent builds multi-part content.
func PartsContent(parts ...ContentPart) Content {
	return Content{Parts: parts}
}

// IsMultipart reports whether the content was supplied as typed parts.
func (c Content) IsMultipart() bool {
	return c.Parts != nil
}

// PlainText returns the text that counts toward the context: the plain string, or the text parts
// joined by newlines in order. Non-text parts contribute nothing.
func (c Content) PlainText() string {
	if !c.IsMultipart() {
		return c.Text
	}

	texts := make([]string, 0, len(c.Parts))
	for _, part := range c.Parts {
		if part.Type == "text" {
			texts = append(texts, part.Text)
		}
	}

	return strings.Join(texts, "\n")
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsMultipart() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))

	switch {
	case trimmed == "" || trimmed == "null":
		*c = Content{}
		return nil
	case strings.HasPrefix(trimmed, "["):
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*c = Content{Parts: parts}
		return nil
	case strings.HasPrefix(trimmed, "\""):
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = Content{Text: text}
		return nil
	default:
		return errors.New("content must be a string or a list of parts")
	}
}

func (c *Content) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*c = Content{Text: node.Value}
		return nil
	case yaml.SequenceNode:
		var parts []ContentPart
		if err := node.Decode(&parts); err != nil {
			return err
		}
		*c = Content{Parts: parts}
		return nil
	default:
		return errors.New("content must be a string or a list of parts")
	}
}

type Message struct {
	Role    Role    `json:"role" yaml:"role"`
	Content Content `json:"content" yaml:"content"`
}

// Body is the part of a host chat request the plugin reads. Hosts send more fields; transports
// keep the raw request so those survive untouched.
type Body struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
}

// ModelDescriptor identifies the model a request was answered by.
type ModelDescriptor struct {
	ID   string     `json:"id"`
	Name string     `json:"name,omitempty"`
	Info *ModelInfo `json:"info,omitempty"`
}

// ModelInfo is the live configuration a host may attach to a descriptor.
type ModelInfo struct {
	Params struct {
		NumCtx int `json:"num_ctx,omitempty"`
	} `json:"params"`
}

// ContextSize is the context window the host configured for the model, or 0.
func (m *ModelDescriptor) ContextSize() int {
	if m == nil || m.Info == nil {
		return 0
	}
	return m.Info.Params.NumCtx
}

// UserSettings are the per-user switches a host forwards with each request.
type UserSettings struct {
	Enabled *bool `json:"enabled,omitempty"`
}

// IsEnabled treats a missing flag as enabled.
func (s *UserSettings) IsEnabled() bool {
	if s == nil || s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// User is the host's description of the requesting user.
type User struct {
	ID     string        `json:"id,omitempty"`
	Name   string        `json:"name,omitempty"`
	Valves *UserSettings `json:"valves,omitempty"`
}

// Settings returns the user's plugin settings, nil-safe.
func (u *User) Settings() *UserSettings {
	if u == nil {
		return nil
	}
	return u.Valves
}
