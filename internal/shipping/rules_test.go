package shipping

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeOptions_PortugalBlanketFree(t *testing.T) {
	options := ComputeOptions("PT", "Lisboa", decimal.NewFromInt(10))

	require.Len(t, options, 1)
	assert.Equal(t, OptionFreeShipping, options[0].ID)
	assert.Equal(t, "0.00", options[0].Price.StringFixed(2))
}

func TestComputeOptions_BrazilBlanketFree(t *testing.T) {
	options := ComputeOptions("br", "", decimal.NewFromInt(1))

	require.Len(t, options, 1)
	assert.Equal(t, OptionFreeShipping, options[0].ID)
}

// The PT/BR early return wins over the threshold and region rules, so Madeira
// still gets the single free option. Pins current behaviour.
func TestComputeOptions_MadeiraCoveredByBlanketRule(t *testing.T) {
	options := ComputeOptions("PT", "Madeira", decimal.NewFromInt(10))

	require.Len(t, options, 1)
	assert.Equal(t, OptionFreeShipping, options[0].ID)
}

func TestComputeOptions_EUAboveThreshold(t *testing.T) {
	options := ComputeOptions("DE", "", decimal.NewFromInt(600))

	require.Len(t, options, 3)
	assert.Equal(t, OptionFreeShipping, options[0].ID)
	assert.Equal(t, OptionDHLGround, options[1].ID)
	assert.Equal(t, OptionDHLAir, options[2].ID)
}

func TestComputeOptions_EUBelowThreshold(t *testing.T) {
	options := ComputeOptions("FR", "", decimal.NewFromInt(120))

	require.Len(t, options, 2)
	assert.Equal(t, OptionDHLGround, options[0].ID)
	assert.Equal(t, OptionDHLAir, options[1].ID)
}

func TestComputeOptions_NoRuleMatches(t *testing.T) {
	options := ComputeOptions("US", "California", decimal.NewFromInt(100))

	assert.Empty(t, options)
}

func TestComputeOptions_NonEUAboveThreshold(t *testing.T) {
	options := ComputeOptions("US", "", decimal.NewFromInt(900))

	require.Len(t, options, 1)
	assert.Equal(t, OptionFreeShipping, options[0].ID)
	assert.Equal(t, -10, options[0].SortOrder)
}

func TestComputeOptions_Deterministic(t *testing.T) {
	first := ComputeOptions("DE", "", decimal.NewFromInt(600))
	second := ComputeOptions("DE", "", decimal.NewFromInt(600))

	assert.Equal(t, first, second)

	seen := map[string]bool{}
	for _, o := range first {
		assert.False(t, seen[o.ID], "duplicate option id %s", o.ID)
		seen[o.ID] = true
	}
}

func TestIsIslandsRegion_AccentInsensitive(t *testing.T) {
	assert.True(t, isIslandsRegion("Açores"))
	assert.True(t, isIslandsRegion("acores"))
	assert.True(t, isIslandsRegion("Região Autónoma da Madeira"))
	assert.False(t, isIslandsRegion("Lisboa"))
}

func TestFind(t *testing.T) {
	options := ComputeOptions("ES", "", decimal.NewFromInt(50))

	opt, ok := Find(options, OptionDHLAir)
	require.True(t, ok)
	assert.Equal(t, "39.90", opt.Price.StringFixed(2))

	_, ok = Find(options, "nope")
	assert.False(t, ok)
}
