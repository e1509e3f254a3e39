package splitter

import (
	"fmt"
	"regexp"
	"strings"

	"ragkit/internal/models"
)

// Piece is a chunk candidate produced by a Splitter. Start and End are
// offsets into the input in the strategy's unit (characters or tokens)
// and refer to the untrimmed window.
type Piece struct {
	Content string
	Start   int
	End     int
}

// Splitter cuts raw document text into overlapping chunk candidates.
// Implementations are pure functions of their input.
type Splitter interface {
	Split(text string) ([]Piece, error)
}

// Option configures the splitter factory.
type Option func(*options)

type options struct {
	tokenizer Tokenizer
}

// WithTokenizer injects the tokenizer used by the token strategy.
func WithTokenizer(t Tokenizer) Option {
	return func(o *options) { o.tokenizer = t }
}

// New builds a splitter for the named strategy. Known strategies are
// "character", "token" and "sentence".
func New(strategy string, chunkSize, chunkOverlap int, opts ...Option) (Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrConfiguration, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, chunk size)", models.ErrConfiguration, chunkOverlap)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	switch strategy {
	case "character":
		return &characterSplitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
	case "token":
		tok := o.tokenizer
		if tok == nil {
			var err error
			tok, err = NewTiktokenTokenizer("")
			if err != nil {
				return nil, err
			}
		}
		return &tokenSplitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap, tokenizer: tok}, nil
	case "sentence":
		return &sentenceSplitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
	default:
		return nil, fmt.Errorf("%w: unknown splitter strategy %q", models.ErrConfiguration, strategy)
	}
}

// characterSplitter slides a fixed window over runes. The next window
// starts at end-overlap, so consecutive chunks share exactly
// chunkOverlap characters except at the final boundary.
type characterSplitter struct {
	chunkSize    int
	chunkOverlap int
}

func (s *characterSplitter) Split(text string) ([]Piece, error) {
	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return nil, nil
	}

	var pieces []Piece
	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			pieces = append(pieces, Piece{Content: content, Start: start, End: end})
		}
		if end == len(runes) {
			break
		}
		start = end - s.chunkOverlap
	}
	return pieces, nil
}

// tokenSplitter applies the same sliding window over model tokens, so
// chunk sizes respect downstream context limits. Offsets are token
// offsets, not character offsets.
type tokenSplitter struct {
	chunkSize    int
	chunkOverlap int
	tokenizer    Tokenizer
}

func (s *tokenSplitter) Split(text string) ([]Piece, error) {
	if len(strings.TrimSpace(text)) == 0 {
		return nil, nil
	}
	tokens := s.tokenizer.Encode(text)

	var pieces []Piece
	start := 0
	for start < len(tokens) {
		end := start + s.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		content := strings.TrimSpace(s.tokenizer.Decode(tokens[start:end]))
		if content != "" {
			pieces = append(pieces, Piece{Content: content, Start: start, End: end})
		}
		if end == len(tokens) {
			break
		}
		start = end - s.chunkOverlap
	}
	return pieces, nil
}

var sentenceEndRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// sentenceSplitter packs whole sentences into chunks. When adding the
// next sentence would exceed chunkSize, the current chunk is closed and
// the new one is seeded with the trailing chunkOverlap characters of
// the previous chunk to preserve cross-boundary context.
type sentenceSplitter struct {
	chunkSize    int
	chunkOverlap int
}

func (s *sentenceSplitter) Split(text string) ([]Piece, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	sentences := splitSentences(trimmed)

	var pieces []Piece
	var current strings.Builder
	start := 0
	pos := 0
	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > s.chunkSize {
			content := strings.TrimSpace(current.String())
			if content != "" {
				pieces = append(pieces, Piece{Content: content, Start: start, End: start + current.Len()})
			}
			seed := tail(current.String(), s.chunkOverlap)
			start = pos - len(seed)
			current.Reset()
			current.WriteString(seed)
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		pos += len(sentence) + 1
	}
	if content := strings.TrimSpace(current.String()); content != "" {
		pieces = append(pieces, Piece{Content: content, Start: start, End: start + current.Len()})
	}
	return pieces, nil
}

// splitSentences returns trimmed sentences including their terminating
// punctuation, plus any unterminated trailing text.
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		if n <= 0 {
			return ""
		}
		return s
	}
	return s[len(s)-n:]
}
