package tokenizer

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

type wordEncoder struct{}

func (wordEncoder) Encode(text string, _ []string, _ []string) []int {
	return make([]int, len(strings.Fields(text)))
}

type panickingEncoder struct{}

func (panickingEncoder) Encode(string, []string, []string) []int {
	panic("invalid byte sequence")
}

func newTestTiktoken(load loadFunc) *Tiktoken {
	tk := NewTiktoken("", nil)
	tk.load = load
	return tk
}

func TestCountEmptySkipsEncoder(t *testing.T) {
	loads := 0
	tk := newTestTiktoken(func(string) (encoder, error) {
		loads++
		return wordEncoder{}, nil
	})

	if got := tk.Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
	if loads != 0 {
		t.Errorf("encoder loaded %d times for empty input", loads)
	}
}

func TestCountLoadsOnce(t *testing.T) {
	loads := 0
	tk := newTestTiktoken(func(encoding string) (encoder, error) {
		loads++
		if encoding != DefaultEncoding {
			t.Errorf("encoding = %q, want %q", encoding, DefaultEncoding)
		}
		return wordEncoder{}, nil
	})

	if got := tk.Count("hello there world"); got != 3 {
		t.Errorf("Count = %d, want 3", got)
	}
	if got := tk.Count("again"); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}
}

func TestCountFallsBackWhenEncoderPanics(t *testing.T) {
	tk := newTestTiktoken(func(string) (encoder, error) { return panickingEncoder{}, nil })

	text := "this text breaks the encoder"
	if got := tk.Count(text); got != len(text)/4 {
		t.Errorf("Count = %d, want %d", got, len(text)/4)
	}
}

func TestCountFallsBackWhenLoadFails(t *testing.T) {
	loads := 0
	tk := newTestTiktoken(func(string) (encoder, error) {
		loads++
		return nil, errors.New("no network")
	})

	text := "0123456789abcdef"
	if got := tk.Count(text); got != 4 {
		t.Errorf("Count = %d, want 4", got)
	}
	tk.Count(text)
	if loads != 1 {
		t.Errorf("loads = %d, want failed load to be remembered", loads)
	}
}

func TestCountConcurrentFirstUse(t *testing.T) {
	tk := newTestTiktoken(func(string) (encoder, error) { return wordEncoder{}, nil })

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := tk.Count("a b"); got != 2 {
				t.Errorf("Count = %d, want 2", got)
			}
		}()
	}
	wg.Wait()
}

func TestEstimateCountsCharacters(t *testing.T) {
	if got := Estimate("héllo wörld!"); got != 3 {
		t.Errorf("Estimate = %d, want 3", got)
	}
	if got := (Estimator{}).Count("abcdefgh"); got != 2 {
		t.Errorf("Estimator.Count = %d, want 2", got)
	}
}
