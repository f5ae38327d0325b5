// Package pips converts between USD thresholds and pip/price quantities for
// the Versus engine, using the same per-symbol fallback table as the
// originating implementation.
package pips

import (
	"math"
	"strings"
)

// SymbolClass groups symbols that share pip-value and rounding behaviour.
type SymbolClass string

const (
	ClassJPY          SymbolClass = "jpy"
	ClassCryptoMajor  SymbolClass = "crypto_major"
	ClassCryptoMinor  SymbolClass = "crypto_minor"
	ClassMetals       SymbolClass = "metals"
	ClassDefault      SymbolClass = "default"
)

var cryptoMajorPrefixes = []string{"BTC", "ETH"}
var cryptoMinorPrefixes = []string{"XRP", "LTC", "BCH"}
var metalPrefixes = []string{"XAU", "XAG"}

// ClassifySymbol returns the symbol class per the fallback table: JPY pairs,
// major/minor crypto, metals, or default.
func ClassifySymbol(symbol string) SymbolClass {
	upper := strings.ToUpper(symbol)
	if strings.Contains(upper, "JPY") {
		return ClassJPY
	}
	if hasAnyPrefix(upper, cryptoMajorPrefixes) {
		return ClassCryptoMajor
	}
	if hasAnyPrefix(upper, cryptoMinorPrefixes) {
		return ClassCryptoMinor
	}
	if hasAnyPrefix(upper, metalPrefixes) {
		return ClassMetals
	}
	return ClassDefault
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// FallbackPipValue is the pip-value table fallback used when the agent's
// reported quote carries no usable pip_value.
func FallbackPipValue(class SymbolClass) float64 {
	switch class {
	case ClassJPY:
		return 0.01
	case ClassCryptoMajor:
		return 1.0
	case ClassCryptoMinor:
		return 0.01
	case ClassMetals:
		return 0.01
	default:
		return 0.0001
	}
}

// PriceDecimals is the number of decimal places prices are rounded to for
// the given symbol class.
func PriceDecimals(class SymbolClass) int {
	switch class {
	case ClassJPY:
		return 3
	case ClassCryptoMajor, ClassCryptoMinor, ClassMetals:
		return 2
	default:
		return 5
	}
}

// ResolvePipValue prefers reportedPipValue when positive, else falls back to
// the symbol-class table.
func ResolvePipValue(symbol string, reportedPipValue float64) float64 {
	if reportedPipValue > 0 {
		return reportedPipValue
	}
	return FallbackPipValue(ClassifySymbol(symbol))
}

// USDPerPip implements usd_per_pip = trade_tick_value * (pip_value / point) * lots.
func USDPerPip(tradeTickValue, pipValue, point, lots float64) float64 {
	if point == 0 {
		return 0
	}
	return tradeTickValue * (pipValue / point) * lots
}

// USDToPips converts a USD threshold into a pip distance given usd_per_pip.
func USDToPips(usdAmount, usdPerPip float64) float64 {
	if usdPerPip == 0 {
		return 0
	}
	return usdAmount / usdPerPip
}

// RoundPips rounds a pip distance to one decimal place, as required before
// use in the Transferir leg math.
func RoundPips(v float64) float64 {
	return math.Round(v*10) / 10
}

// RoundPrice rounds a price to the symbol class's configured decimals.
func RoundPrice(v float64, class SymbolClass) float64 {
	factor := math.Pow10(PriceDecimals(class))
	return math.Round(v*factor) / factor
}

// RoundLots rounds a lot size to two decimal places (used for the two
// half-lot legs opened on Account B).
func RoundLots(v float64) float64 {
	return math.Round(v*100) / 100
}
