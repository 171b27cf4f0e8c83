package chunker

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultMaxTokens is the hard per-input limit of the embedding model.
	DefaultMaxTokens = 8192
	// hardSplitWindow is the character window used when a single sentence is
	// still over budget.
	hardSplitWindow = 3000
)

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a BPE encoding, special tokens allowed.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding (cl100k_base when empty).
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, []string{"all"}, nil))
}

// WordCounter approximates tokens as whitespace-separated words.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// DefaultCounter returns a cl100k_base counter, or the word counter when the
// encoding cannot be loaded (it is fetched and cached on first use).
func DefaultCounter(logger *slog.Logger) TokenCounter {
	c, err := NewTiktokenCounter("cl100k_base")
	if err != nil {
		logger.Warn("tokenizer unavailable, counting words instead", slog.String("error", err.Error()))
		return WordCounter{}
	}
	return c
}

// Budgeter keeps every chunk at or below a token limit.
type Budgeter struct {
	counter   TokenCounter
	maxTokens int
	window    int
}

func NewBudgeter(counter TokenCounter, maxTokens int) *Budgeter {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Budgeter{counter: counter, maxTokens: maxTokens, window: hardSplitWindow}
}

func (b *Budgeter) MaxTokens() int { return b.maxTokens }

func (b *Budgeter) Count(text string) int { return b.counter.Count(text) }

// Split trims each section, drops empty ones, and splits the rest so no output
// chunk exceeds the limit. Over-budget sections are split on sentence ends and
// greedily re-joined with single spaces; anything still over is hard-split on
// a character window.
func (b *Budgeter) Split(sections []string) []string {
	var out []string
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if b.counter.Count(section) <= b.maxTokens {
			out = append(out, section)
			continue
		}

		for _, chunk := range b.packSentences(splitSentences(section)) {
			if b.counter.Count(chunk) <= b.maxTokens {
				out = append(out, chunk)
				continue
			}
			out = append(out, b.hardSplit(chunk, b.window)...)
		}
	}
	return out
}

func (b *Budgeter) packSentences(parts []string) []string {
	var (
		chunks  []string
		current string
	)
	for _, part := range parts {
		candidate := part
		if current != "" {
			candidate = current + " " + part
		}
		if b.counter.Count(candidate) <= b.maxTokens {
			current = candidate
			continue
		}
		if current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
		}
		current = part
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// hardSplit cuts text into windows of at most window runes, ending each window
// at its last whitespace when there is one. A window that still counts over the
// limit is split again with half the width.
func (b *Budgeter) hardSplit(text string, window int) []string {
	var out []string
	for _, piece := range windows(text, window) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if window > 1 && b.counter.Count(piece) > b.maxTokens {
			out = append(out, b.hardSplit(piece, window/2)...)
			continue
		}
		out = append(out, piece)
	}
	return out
}

func windows(text string, window int) []string {
	var out []string
	for text != "" {
		if utf8.RuneCountInString(text) <= window {
			out = append(out, text)
			break
		}
		end := runeOffset(text, window)
		cut := end
		if ws := lastSpace(text[:end]); ws > 0 {
			cut = ws
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	return out
}

// runeOffset returns the byte offset of the n-th rune.
func runeOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}

func lastSpace(s string) int {
	return strings.LastIndexFunc(s, unicode.IsSpace)
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// splitSentences splits after '.', '!' or '?' followed by whitespace, keeping
// the punctuation and dropping the whitespace run.
func splitSentences(text string) []string {
	var (
		parts []string
		start int
	)
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		parts = append(parts, text[start:loc[0]+1])
		start = loc[1]
	}
	return append(parts, text[start:])
}
