// Package capacity maps model identifiers to the size of their context window.
package capacity

import (
	"encoding/hex"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// builtinContexts holds the context sizes of well-known hosted models.
var builtinContexts = map[string]int{
	"gpt-4o":                     128000,
	"gpt-4-turbo":                128000,
	"gpt-4-turbo-preview":        128000,
	"gpt-4-vision-preview":       128000,
	"gpt-4":                      8192,
	"gpt-4-32k":                  32768,
	"gpt-3.5-turbo":              16385,
	"gpt-3.5-turbo-16k":          16385,
	"claude-3-opus-20240229":     200000,
	"claude-3-sonnet-20240229":   200000,
	"claude-3-haiku-20240307":    200000,
	"claude-2.1":                 200000,
	"claude-2.0":                 100000,
	"claude-instant-1.2":         100000,
	"gemini-1.5-pro-latest":      1048576,
	"gemini-1.5-flash-latest":    1048576,
	"gemini-pro":                 30720,
	"gemini-pro-vision":          12288,
	"llama3-70b-8192":            8192,
	"llama3-8b-8192":             8192,
	"llama2-70b-4096":            4096,
	"mistral-large-latest":       32768,
	"mistral-medium-latest":      32768,
	"mistral-small-latest":       32768,
	"mistral-7b-instruct-v0.2":   32768,
	"mixtral-8x7b-instruct-v0.1": 32768,
}

var providerPrefixes = []string{
	"openai/",
	"anthropic/",
	"google/",
	"meta-llama/",
	"mistralai/",
	"ollama/",
}

// Builtin returns a copy of the built-in table.
func Builtin() map[string]int {
	return maps.Clone(builtinContexts)
}

// Normalize lower-cases and trims id and strips one known provider prefix.
func Normalize(id string) string {
	name := strings.ToLower(strings.TrimSpace(id))

	for _, prefix := range providerPrefixes {
		if strings.HasPrefix(name, prefix) {
			return name[len(prefix):]
		}
	}

	return name
}

// ParseOverrides reads "<name> <size>" lines. Lines without a positive decimal size are skipped;
// a later line for the same name wins.
func ParseOverrides(text string) map[string]int {
	overrides := make(map[string]int)

	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !isDigits(fields[1]) {
			continue
		}

		size, err := strconv.Atoi(fields[1])
		if err != nil || size <= 0 {
			continue
		}

		overrides[fields[0]] = size
	}

	return overrides
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Digest is the content hash used to detect override text changes.
func Digest(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Table is an immutable snapshot of the built-in contexts merged with operator overrides.
type Table struct {
	contexts map[string]int
	digest   string
}

// NewTable builds a snapshot from the built-in table and the given override text.
func NewTable(overrideText string) *Table {
	contexts := Builtin()
	maps.Copy(contexts, ParseOverrides(overrideText))

	return &Table{contexts: contexts, digest: Digest(overrideText)}
}

// Digest identifies the override text the table was built from.
func (t *Table) Digest() string {
	return t.digest
}

// Lookup returns the size for the exact name.
func (t *Table) Lookup(name string) (int, bool) {
	size, ok := t.contexts[name]
	return size, ok
}

// Entry is one row of the table.
type Entry struct {
	Name string
	Size int
}

// Entries lists the table sorted by name.
func (t *Table) Entries() []Entry {
	names := slices.Sorted(maps.Keys(t.contexts))

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Size: t.contexts[name]})
	}
	return entries
}
