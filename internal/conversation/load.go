// Package conversation reads chat transcripts from disk for offline counting.
package conversation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/erg0nix/ctxmeter/internal/core"
)

var ErrUnsupportedFormat = errors.New("conversation: unsupported file extension")

// Conversation is a transcript plus the model it was held with, when the file names one.
type Conversation struct {
	Model    string
	Messages []core.Message
}

// Load picks a decoder by extension: .json and .jsonc (comments and trailing commas allowed),
// .jsonl with one message per line, and .yaml or .yml.
func Load(path string) (Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Conversation{}, err
	}

	var conv Conversation
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".jsonc":
		conv, err = DecodeJSON(data)
	case ".jsonl":
		conv, err = DecodeJSONL(bytes.NewReader(data))
	case ".yaml", ".yml":
		conv, err = DecodeYAML(data)
	default:
		return Conversation{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("conversation: %s: %w", path, err)
	}

	return conv, nil
}

// DecodeJSON accepts either a bare message list or a request body with messages and model.
func DecodeJSON(data []byte) (Conversation, error) {
	data = bytes.TrimSpace(jsonc.ToJSON(data))
	if len(data) == 0 {
		return Conversation{}, nil
	}

	if data[0] == '[' {
		var messages []core.Message
		if err := json.Unmarshal(data, &messages); err != nil {
			return Conversation{}, err
		}
		return Conversation{Messages: messages}, nil
	}

	var body core.Body
	if err := json.Unmarshal(data, &body); err != nil {
		return Conversation{}, err
	}
	return Conversation{Model: body.Model, Messages: body.Messages}, nil
}

func DecodeJSONL(r io.Reader) (Conversation, error) {
	var conv Conversation
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg core.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return Conversation{}, fmt.Errorf("line %d: %w", lineNo, err)
		}

		conv.Messages = append(conv.Messages, msg)
	}

	return conv, scanner.Err()
}

func DecodeYAML(data []byte) (Conversation, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return Conversation{}, err
	}
	if len(node.Content) == 0 {
		return Conversation{}, nil
	}

	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var messages []core.Message
		if err := root.Decode(&messages); err != nil {
			return Conversation{}, err
		}
		return Conversation{Messages: messages}, nil
	}

	var body core.Body
	if err := root.Decode(&body); err != nil {
		return Conversation{}, err
	}
	return Conversation{Model: body.Model, Messages: body.Messages}, nil
}
