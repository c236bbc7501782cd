// Package currency defines the closed set of currencies an account can hold.
// Balances, transfers, and journal amounts are always integers in the
// currency's smallest unit; USD pricing is in microdollars.
package currency

// Supported is the enumeration served to clients. Order is part of the API
// contract; do not reorder.
var Supported = []string{"USD", "USDC", "ETH", "BTC", "SOL"}

// unitFactors maps a currency to its smallest_unit_per_whole factor.
var unitFactors = map[string]int64{
	"USD":  1_000_000,     // micros
	"USDC": 1_000_000,     // micros
	"ETH":  1_000_000_000, // gwei
	"BTC":  100_000_000,   // satoshi
	"SOL":  1_000_000_000, // lamports
}

// IsSupported reports whether code is one of the supported currencies.
// Comparison is exact; clients must send upper-case codes.
func IsSupported(code string) bool {
	_, ok := unitFactors[code]
	return ok
}

// UnitFactor returns smallest units per whole currency unit. It panics on an
// unsupported code; validate with IsSupported first.
func UnitFactor(code string) int64 {
	factor, ok := unitFactors[code]
	if !ok {
		panic("unsupported currency: " + code)
	}
	return factor
}
