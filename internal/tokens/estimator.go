package tokens

import "fmt"

// Estimator approximates the prompt cost of a text span. Implementations must
// be deterministic, and more text must never yield a smaller estimate.
type Estimator interface {
	Estimate(text string) int
}

// New returns the estimator selected by kind: "heuristic" (default) or
// "tiktoken". model is only consulted for the tiktoken variant.
func New(kind, model string) (Estimator, error) {
	switch kind {
	case "", "heuristic":
		return Heuristic{}, nil
	case "tiktoken":
		return NewTiktoken(model)
	default:
		return nil, fmt.Errorf("unknown estimator kind: %q", kind)
	}
}

// Heuristic counts characters in logographic scripts as one unit each and
// groups all other characters at four per unit, approximating sub-word
// tokenization cost without a real tokenizer.
type Heuristic struct{}

func (Heuristic) Estimate(text string) int {
	wide, narrow := 0, 0
	for _, r := range text {
		if isLogographic(r) {
			wide++
		} else {
			narrow++
		}
	}
	return wide + narrow/4
}

// isLogographic reports whether r falls in the CJK unified ideograph or
// compatibility ideograph blocks.
func isLogographic(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF:
		return true
	case r >= 0x3400 && r <= 0x4DBF:
		return true
	case r >= 0x20000 && r <= 0x2A6DF:
		return true
	case r >= 0x2A700 && r <= 0x2B73F:
		return true
	case r >= 0x2B740 && r <= 0x2B81F:
		return true
	case r >= 0x2B820 && r <= 0x2CEAF:
		return true
	case r >= 0xF900 && r <= 0xFAFF:
		return true
	case r >= 0x2F800 && r <= 0x2FA1F:
		return true
	}
	return false
}
