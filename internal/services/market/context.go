package market

import (
	"math"

	"CryptoArchive/internal/domain/models"
	"CryptoArchive/pkg/util"
)

var stablecoins = map[string]bool{
	SymbolUSDT: true,
	SymbolUSDC: true,
	"DAI":      true,
	"FDUSD":    true,
	"TUSD":     true,
	"USDE":     true,
	"PYUSD":    true,
	"USDS":     true,
}

// IsStablecoin reports whether symbol is a known USD stablecoin.
func IsStablecoin(symbol string) bool { return stablecoins[symbol] }

// Total3 is the basket total excluding BTC and ETH.
func Total3(b models.Basket) float64 {
	t := b.TotalMarketCap - b.Quotes[SymbolBTC].MarketCap - b.Quotes[SymbolETH].MarketCap
	if t < 0 {
		return 0
	}
	return t
}

// AltcoinSeasonIndex is the share (0-100) of basket altcoins, excluding BTC, ETH and
// stablecoins, whose 24h change beats BTC's. It is a 24h proxy of the usual 90-day index.
func AltcoinSeasonIndex(b models.Basket) int {
	btc, ok := b.Quotes[SymbolBTC]
	if !ok {
		return 0
	}
	var alts, beating int
	for sym, q := range b.Quotes {
		if sym == SymbolBTC || sym == SymbolETH || IsStablecoin(sym) {
			continue
		}
		alts++
		if q.PercentChange24h > btc.PercentChange24h {
			beating++
		}
	}
	if alts == 0 {
		return 0
	}
	return int(math.Round(float64(beating) / float64(alts) * 100))
}

// MarketContextFor derives the context shared by one capture's snapshots.
func MarketContextFor(b models.Basket, d models.DominanceSnapshot) models.MarketContext {
	btcDom := util.Round2(d.BTCDominance)
	total3 := Total3(b)
	idx := AltcoinSeasonIndex(b)
	return models.MarketContext{
		BTCDominance:       &btcDom,
		Total3MarketCap:    &total3,
		AltcoinSeasonIndex: &idx,
	}
}
