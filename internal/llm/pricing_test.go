package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCost(t *testing.T) {
	tests := []struct {
		model string
		input float64
	}{
		{"gemini-2.0-flash", 0.1},
		{"google/gemini-2.0-flash-001", 0.1},
		{"claude-sonnet-4-20250514", 3},
		{"anthropic/claude-sonnet-4", 3},
		{"gpt-4o-2024-08-06", 2.5},
		{"claude-3-5-haiku-latest", 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			c := LookupCost(tt.model)
			require.NotNil(t, c)
			assert.Equal(t, tt.input, c.InputPerMTok)
		})
	}
}

func TestLookupCostUnknown(t *testing.T) {
	assert.Nil(t, LookupCost("mock"))
	assert.Nil(t, LookupCost(""))
}

func TestModelCost(t *testing.T) {
	c := ModelCost{InputPerMTok: 2, OutputPerMTok: 10}
	assert.InDelta(t, 0.012, c.Cost(1000, 1000), 1e-9)
}
