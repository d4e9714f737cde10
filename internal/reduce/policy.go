// Package reduce turns loaded tables into bounded text excerpts suitable for
// an LLM prompt.
package reduce

import (
	"errors"
	"fmt"
)

// Strategy names how an item was reduced.
type Strategy string

// Reduction strategies.
const (
	StrategyFull             Strategy = "full"
	StrategyHeadTailDescribe Strategy = "head_tail_describe"
	StrategyRaw              Strategy = "raw"
	StrategyEmpty            Strategy = "empty"
)

// Policy holds the row thresholds and window sizes used to pick a strategy.
type Policy struct {
	FullMaxRows     int64 `koanf:"full_max_rows"`
	MediumMaxRows   int64 `koanf:"medium_max_rows"`
	LargeMaxRows    int64 `koanf:"large_max_rows"`
	MediumWindow    int   `koanf:"medium_window"`
	LargeWindow     int   `koanf:"large_window"`
	VeryLargeWindow int   `koanf:"very_large_window"`
}

// DefaultPolicy returns the standard reduction thresholds.
func DefaultPolicy() Policy {
	return Policy{
		FullMaxRows:     75,
		MediumMaxRows:   200,
		LargeMaxRows:    3000,
		MediumWindow:    15,
		LargeWindow:     10,
		VeryLargeWindow: 5,
	}
}

// Plan returns the strategy for a table with n rows and, for
// head_tail_describe, the head and tail window size.
func (p Policy) Plan(n int64) (Strategy, int) {
	switch {
	case n == 0:
		return StrategyEmpty, 0
	case n <= p.FullMaxRows:
		return StrategyFull, 0
	case n <= p.MediumMaxRows:
		return StrategyHeadTailDescribe, p.MediumWindow
	case n <= p.LargeMaxRows:
		return StrategyHeadTailDescribe, p.LargeWindow
	default:
		return StrategyHeadTailDescribe, p.VeryLargeWindow
	}
}

// Validate checks that thresholds are increasing and windows are positive.
func (p Policy) Validate() error {
	var errs []error
	if p.FullMaxRows < 0 {
		errs = append(errs, fmt.Errorf("reduction.full_max_rows must be >= 0, got %d", p.FullMaxRows))
	}
	if p.MediumMaxRows < p.FullMaxRows {
		errs = append(errs, fmt.Errorf("reduction.medium_max_rows (%d) must be >= full_max_rows (%d)", p.MediumMaxRows, p.FullMaxRows))
	}
	if p.LargeMaxRows < p.MediumMaxRows {
		errs = append(errs, fmt.Errorf("reduction.large_max_rows (%d) must be >= medium_max_rows (%d)", p.LargeMaxRows, p.MediumMaxRows))
	}
	windows := []struct {
		name string
		size int
	}{
		{"medium_window", p.MediumWindow},
		{"large_window", p.LargeWindow},
		{"very_large_window", p.VeryLargeWindow},
	}
	for _, w := range windows {
		if w.size <= 0 {
			errs = append(errs, fmt.Errorf("reduction.%s must be > 0, got %d", w.name, w.size))
		}
	}
	return errors.Join(errs...)
}
