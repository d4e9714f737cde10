package prompt

import "fmt"

// BytesPerToken is the rough ratio used for token estimates.
const BytesPerToken = 4

// Stats is a size diagnostic for a data section.
// EstimatedTokens is a heuristic (bytes / 4), not a tokenizer count.
type Stats struct {
	Bytes           int     `json:"bytes"`
	KiB             float64 `json:"kib"`
	EstimatedTokens int     `json:"estimated_tokens"`
}

// Measure computes Stats for data.
func Measure(data string) Stats {
	n := len(data)
	return Stats{
		Bytes:           n,
		KiB:             float64(n) / 1024,
		EstimatedTokens: n / BytesPerToken,
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("%.2f KB, ~%d tokens (estimated)", s.KiB, s.EstimatedTokens)
}
