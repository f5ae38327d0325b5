package pips

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySymbol(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		want   SymbolClass
	}{
		{"JPY pair", "USDJPY", ClassJPY},
		{"JPY cross", "EURJPY", ClassJPY},
		{"bitcoin", "BTCUSD", ClassCryptoMajor},
		{"ethereum", "ETHUSD", ClassCryptoMajor},
		{"ripple", "XRPUSD", ClassCryptoMinor},
		{"litecoin", "LTCUSD", ClassCryptoMinor},
		{"gold", "XAUUSD", ClassMetals},
		{"silver", "XAGUSD", ClassMetals},
		{"default fx", "EURUSD", ClassDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySymbol(tt.symbol))
		})
	}
}

func TestResolvePipValue(t *testing.T) {
	assert.Equal(t, 0.00012, ResolvePipValue("EURUSD", 0.00012), "prefers a reported, positive pip value")
	assert.Equal(t, FallbackPipValue(ClassDefault), ResolvePipValue("EURUSD", 0), "falls back to the symbol class table when reported is zero")
	assert.Equal(t, FallbackPipValue(ClassJPY), ResolvePipValue("USDJPY", -1), "falls back when reported is negative")
}

func TestUSDPerPipAndUSDToPips(t *testing.T) {
	// EURUSD-style instrument: tick value 1 USD per 0.00001 move, pip = 0.0001, 1 lot.
	usdPerPip := USDPerPip(1.0, 0.0001, 0.00001, 1.0)
	assert.InDelta(t, 10.0, usdPerPip, 0.0001)

	pips := USDToPips(25.0, usdPerPip)
	assert.InDelta(t, 2.5, pips, 0.0001)
}

func TestUSDPerPipZeroPoint(t *testing.T) {
	assert.Equal(t, 0.0, USDPerPip(1.0, 0.0001, 0, 1.0), "a zero point must never divide-by-zero into Inf/NaN")
}

func TestRoundPips(t *testing.T) {
	assert.Equal(t, 2.5, RoundPips(2.46))
	assert.Equal(t, 2.5, RoundPips(2.54))
	assert.Equal(t, -1.3, RoundPips(-1.27))
}

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, 150.123, RoundPrice(150.1234, ClassJPY))
	assert.Equal(t, 1.23457, RoundPrice(1.234567, ClassDefault))
	assert.Equal(t, 1950.12, RoundPrice(1950.1237, ClassMetals))
}

func TestRoundLots(t *testing.T) {
	assert.Equal(t, 0.5, RoundLots(0.503))
	assert.Equal(t, 0.01, RoundLots(0.005))
}
