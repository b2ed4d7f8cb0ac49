package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupModelMetadata(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		m, ok := LookupModelMetadata("gpt-4o-mini")
		require.True(t, ok)
		assert.Equal(t, 128000, m.ContextWindow)
		assert.Equal(t, "gpt-4o-mini", m.ModelName)
	})

	t.Run("prefix match picks the longest registered key", func(t *testing.T) {
		// A dated snapshot must resolve to gpt-4o-mini, not gpt-4o.
		m, ok := LookupModelMetadata("gpt-4o-mini-2024-07-18")
		require.True(t, ok)
		assert.Equal(t, 0.00015, m.InputCostPer1K)
	})

	t.Run("unknown model misses", func(t *testing.T) {
		_, ok := LookupModelMetadata("totally-unknown-model")
		assert.False(t, ok)
	})
}

func TestModelMetadata_CalculateCost(t *testing.T) {
	m, ok := LookupModelMetadata("claude-3-5-sonnet-20241022")
	require.True(t, ok)

	// 1000 prompt + 2000 completion at 0.003/0.015 per 1k.
	cost := m.CalculateCost(1000, 2000)
	assert.InDelta(t, 0.003+0.03, cost, 1e-9)

	assert.Zero(t, FallbackModelMetadata.CalculateCost(5000, 5000))
}

func TestUsageLogTotalTokens(t *testing.T) {
	log := &LLMUsageLog{PromptTokens: 120, CompletionTokens: 34}
	assert.Equal(t, 154, log.TotalTokens())
}
