// Package tokenizer counts tokens with a shared BPE encoding and degrades to a character
// estimate when the encoding is unavailable.
package tokenizer

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoding = "cl100k_base"

// retryLoadAfter spaces out attempts to load an encoding that failed, since loading may download
// the BPE ranks.
const retryLoadAfter = time.Minute

type encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

type loadFunc func(encoding string) (encoder, error)

func loadTiktoken(encoding string) (encoder, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding %s: %w", encoding, err)
	}
	return enc, nil
}

type loadState struct {
	enc      encoder
	err      error
	loadedAt time.Time
}

// Tiktoken lazily loads one encoding on first use and shares it across goroutines. Two first
// callers may both load; the later store wins and the other instance is dropped.
type Tiktoken struct {
	encoding string
	load     loadFunc
	logger   *slog.Logger
	state    atomic.Pointer[loadState]
}

func NewTiktoken(encoding string, logger *slog.Logger) *Tiktoken {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Tiktoken{encoding: encoding, load: loadTiktoken, logger: logger}
}

func (t *Tiktoken) encoder() (encoder, error) {
	if state := t.state.Load(); state != nil {
		if state.err == nil || time.Since(state.loadedAt) < retryLoadAfter {
			return state.enc, state.err
		}
	}

	enc, err := t.load(t.encoding)
	t.state.Store(&loadState{enc: enc, err: err, loadedAt: time.Now()})

	return enc, err
}

// Count returns the number of tokens in text. It never fails: without a working encoder the
// result is Estimate(text).
func (t *Tiktoken) Count(text string) (count int) {
	if text == "" {
		return 0
	}

	enc, err := t.encoder()
	if err != nil {
		t.logger.Error("tokenization failed, using estimate", "encoding", t.encoding, "error", err)
		return Estimate(text)
	}

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("tokenization failed, using estimate", "encoding", t.encoding, "panic", r)
			count = Estimate(text)
		}
	}()

	return len(enc.Encode(text, nil, nil))
}

// Estimate approximates a token count as one token per four characters.
func Estimate(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// Estimator counts with Estimate only.
type Estimator struct{}

func (Estimator) Count(text string) int {
	return Estimate(text)
}
