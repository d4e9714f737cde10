package reduce

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_PlanBoundaries(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		rows     int64
		strategy Strategy
		window   int
	}{
		{0, StrategyEmpty, 0},
		{1, StrategyFull, 0},
		{75, StrategyFull, 0},
		{76, StrategyHeadTailDescribe, 15},
		{200, StrategyHeadTailDescribe, 15},
		{201, StrategyHeadTailDescribe, 10},
		{3000, StrategyHeadTailDescribe, 10},
		{3001, StrategyHeadTailDescribe, 5},
		{1_000_000, StrategyHeadTailDescribe, 5},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d rows", tt.rows), func(t *testing.T) {
			strategy, window := p.Plan(tt.rows)
			assert.Equal(t, tt.strategy, strategy)
			assert.Equal(t, tt.window, window)
		})
	}
}

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	bad := DefaultPolicy()
	bad.MediumMaxRows = 10
	bad.VeryLargeWindow = 0

	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "medium_max_rows")
	assert.Contains(t, err.Error(), "very_large_window")
}
