package splitter

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"ragkit/internal/models"
)

const defaultTokenizerModel = "gpt-3.5-turbo"

// Tokenizer abstracts the model tokenizer the token strategy counts with.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// TiktokenTokenizer wraps a tiktoken encoding for a given model.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	if model == "" {
		model = defaultTokenizerModel
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("%w: no tokenizer for model %q: %v", models.ErrConfiguration, model, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}
