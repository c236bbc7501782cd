package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupportedEnumerationOrder(t *testing.T) {
	// The order is part of the API contract with clients.
	assert.Equal(t, []string{"USD", "USDC", "ETH", "BTC", "SOL"}, Supported)
}

func TestIsSupported(t *testing.T) {
	for _, code := range Supported {
		assert.True(t, IsSupported(code), code)
	}
	assert.False(t, IsSupported("usd"))
	assert.False(t, IsSupported("DOGE"))
	assert.False(t, IsSupported(""))
}

func TestUnitFactors(t *testing.T) {
	assert.Equal(t, int64(1_000_000), UnitFactor("USD"))
	assert.Equal(t, int64(1_000_000), UnitFactor("USDC"))
	assert.Equal(t, int64(1_000_000_000), UnitFactor("ETH"))
	assert.Equal(t, int64(1_000_000_000), UnitFactor("SOL"))
	assert.Equal(t, int64(100_000_000), UnitFactor("BTC"))
}

func TestUnitFactorPanicsOnUnknown(t *testing.T) {
	assert.Panics(t, func() { UnitFactor("DOGE") })
}
