package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer adapts a tiktoken encoding to the Tokenizer interface.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer resolves the encoding for model, falling back to
// cl100k_base for models tiktoken does not know. An error here means no
// encoding could be loaded at all; callers may then construct the
// chunker with a nil tokenizer and accept degraded character chunking.
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load tokenizer encoding: %w", err)
		}
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Encode(text string) ([]int, error) {
	return t.enc.Encode(text, nil, nil), nil
}

func (t *TiktokenTokenizer) Decode(tokens []int) (string, error) {
	return t.enc.Decode(tokens), nil
}
