package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken estimates with a real BPE tokenizer. Slower than Heuristic but
// accurate for models with a known encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken selects the encoding for the given model name, falling back to
// cl100k_base for unknown models.
func NewTiktoken(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Estimate(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
