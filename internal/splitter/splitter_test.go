package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragkit/internal/models"
)

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		size     int
		overlap  int
	}{
		{"overlap equals size", "character", 100, 100},
		{"overlap above size", "character", 100, 150},
		{"negative overlap", "character", 100, -1},
		{"zero size", "character", 0, 0},
		{"unknown strategy", "paragraph", 100, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.strategy, tt.size, tt.overlap)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrConfiguration)
		})
	}
}

func TestCharacterSplitterBoundaries(t *testing.T) {
	s, err := New("character", 1000, 200)
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 250) // 2500 chars
	pieces, err := s.Split(text)
	require.NoError(t, err)
	require.Len(t, pieces, 3)

	assert.Equal(t, 0, pieces[0].Start)
	assert.Equal(t, 1000, pieces[0].End)
	assert.Equal(t, 800, pieces[1].Start)
	assert.Equal(t, 1800, pieces[1].End)
	assert.Equal(t, 1600, pieces[2].Start)
	assert.Equal(t, 2500, pieces[2].End)
}

func TestCharacterSplitterOverlapInvariant(t *testing.T) {
	s, err := New("character", 300, 50)
	require.NoError(t, err)

	pieces, err := s.Split(strings.Repeat("x", 2000))
	require.NoError(t, err)
	require.Greater(t, len(pieces), 1)

	for i := 0; i < len(pieces)-1; i++ {
		assert.Equal(t, 50, pieces[i].End-pieces[i+1].Start)
	}
}

func TestCharacterSplitterCoverage(t *testing.T) {
	s, err := New("character", 400, 100)
	require.NoError(t, err)

	text := strings.Repeat("0123456789", 137)
	pieces, err := s.Split(text)
	require.NoError(t, err)

	// Reconstruct by dropping each chunk's leading overlap.
	var b strings.Builder
	for i, p := range pieces {
		content := p.Content
		if i > 0 {
			content = content[pieces[i-1].End-p.Start:]
		}
		b.WriteString(content)
	}
	assert.Equal(t, text, b.String())
}

func TestCharacterSplitterEdgeCases(t *testing.T) {
	s, err := New("character", 1000, 200)
	require.NoError(t, err)

	pieces, err := s.Split("")
	require.NoError(t, err)
	assert.Empty(t, pieces)

	pieces, err = s.Split("   \n\t  ")
	require.NoError(t, err)
	assert.Empty(t, pieces)

	pieces, err = s.Split("short text")
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Equal(t, "short text", pieces[0].Content)
}

func TestCharacterSplitterTrimsChunks(t *testing.T) {
	s, err := New("character", 10, 2)
	require.NoError(t, err)

	pieces, err := s.Split("abcdefgh  \n  klmnop")
	require.NoError(t, err)
	for _, p := range pieces {
		assert.Equal(t, strings.TrimSpace(p.Content), p.Content)
		assert.NotEmpty(t, p.Content)
	}
}

// fakeTokenizer treats whitespace-separated words as tokens.
type fakeTokenizer struct {
	vocab []string
	index map[string]int
}

func newFakeTokenizer() *fakeTokenizer {
	return &fakeTokenizer{index: map[string]int{}}
}

func (f *fakeTokenizer) Encode(text string) []int {
	words := strings.Fields(text)
	tokens := make([]int, len(words))
	for i, w := range words {
		id, ok := f.index[w]
		if !ok {
			id = len(f.vocab)
			f.index[w] = id
			f.vocab = append(f.vocab, w)
		}
		tokens[i] = id
	}
	return tokens
}

func (f *fakeTokenizer) Decode(tokens []int) string {
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = f.vocab[tok]
	}
	return strings.Join(words, " ")
}

func TestTokenSplitterWindows(t *testing.T) {
	s, err := New("token", 10, 2, WithTokenizer(newFakeTokenizer()))
	require.NoError(t, err)

	words := make([]string, 26)
	for i := range words {
		words[i] = string(rune('a' + i))
	}
	pieces, err := s.Split(strings.Join(words, " "))
	require.NoError(t, err)
	require.Len(t, pieces, 3)

	assert.Equal(t, "a b c d e f g h i j", pieces[0].Content)
	assert.Equal(t, "i j k l m n o p q r", pieces[1].Content)
	assert.Equal(t, "q r s t u v w x y z", pieces[2].Content)
	for i := 0; i < len(pieces)-1; i++ {
		assert.Equal(t, 2, pieces[i].End-pieces[i+1].Start)
	}
}

func TestTokenSplitterEmptyInput(t *testing.T) {
	s, err := New("token", 10, 2, WithTokenizer(newFakeTokenizer()))
	require.NoError(t, err)

	pieces, err := s.Split("  ")
	require.NoError(t, err)
	assert.Empty(t, pieces)
}

func TestSentenceSplitterPacksSentences(t *testing.T) {
	s, err := New("sentence", 80, 20)
	require.NoError(t, err)

	text := "The first sentence is here. The second sentence follows. " +
		"The third sentence arrives. The fourth sentence closes."
	pieces, err := s.Split(text)
	require.NoError(t, err)
	require.Greater(t, len(pieces), 1)

	// No chunk exceeds the size by more than one sentence, and every
	// chunk ends at a sentence boundary except where overlap seeds it.
	for _, p := range pieces {
		assert.NotEmpty(t, p.Content)
	}
	// Each subsequent chunk starts with the tail of the previous one.
	for i := 1; i < len(pieces); i++ {
		prev := pieces[i-1].Content
		seed := prev[len(prev)-20:]
		assert.True(t, strings.HasPrefix(pieces[i].Content, strings.TrimSpace(seed)),
			"chunk %d should start with the previous chunk's tail", i)
	}
}

func TestSentenceSplitterSingleSentence(t *testing.T) {
	s, err := New("sentence", 100, 10)
	require.NoError(t, err)

	pieces, err := s.Split("Just one sentence without much length.")
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Equal(t, "Just one sentence without much length.", pieces[0].Content)
}

func TestSentenceSplitterUnterminatedTail(t *testing.T) {
	s, err := New("sentence", 100, 10)
	require.NoError(t, err)

	pieces, err := s.Split("A complete sentence. And a trailing fragment without punctuation")
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Contains(t, pieces[0].Content, "trailing fragment")
}
