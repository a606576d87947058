package market

import (
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
)

// Thresholds are literal so archived signals stay comparable across releases.
const (
	altSeasonOthersMin   = 40.0
	altSeasonBTCMax      = 45.0
	strongOthersMin      = 45.0
	btcFallingBelow      = 50.0
	stablecoinFallingMax = 10.0
)

// Basket symbols the calculator requires.
const (
	SymbolBTC  = "BTC"
	SymbolETH  = "ETH"
	SymbolUSDT = "USDT"
	SymbolUSDC = "USDC"
)

const (
	AnomalyOthersNegative = "others_dominance_negative"
	AnomalyUSDTMissing    = "usdt_missing"
	AnomalyUSDCMissing    = "usdc_missing"
)

// ComputeDominance turns a basket of market caps into dominance ratios and an altcoin
// season signal. The denominator is b.TotalMarketCap, the sum over the sampled top-N
// universe, so every ratio is biased upward relative to the true total market cap.
// The ETH/BTC 24h delta is ETH's 24h % change minus BTC's, not a ratio of ratios.
func ComputeDominance(b models.Basket, now time.Time) (models.DominanceSnapshot, error) {
	btc, hasBTC := b.Quotes[SymbolBTC]
	eth, hasETH := b.Quotes[SymbolETH]
	usdt, hasUSDT := b.Quotes[SymbolUSDT]
	usdc, hasUSDC := b.Quotes[SymbolUSDC]

	var missing []string
	if !hasBTC {
		missing = append(missing, SymbolBTC)
	}
	if !hasETH {
		missing = append(missing, SymbolETH)
	}
	if !hasUSDT && !hasUSDC {
		missing = append(missing, SymbolUSDT+"|"+SymbolUSDC)
	}
	if b.TotalMarketCap <= 0 {
		missing = append(missing, "total")
	}
	if hasBTC && btc.Price <= 0 {
		missing = append(missing, SymbolBTC+".price")
	}
	if len(missing) > 0 {
		return models.DominanceSnapshot{}, errs.IncompleteBasket(missing...)
	}

	total := b.TotalMarketCap
	d := models.DominanceSnapshot{
		BTCDominance:    btc.MarketCap / total * 100,
		ETHDominance:    eth.MarketCap / total * 100,
		USDTDominance:   usdt.MarketCap / total * 100,
		USDCDominance:   usdc.MarketCap / total * 100,
		ETHBTCRatio:     eth.Price / btc.Price,
		ETHBTCChange24h: eth.PercentChange24h - btc.PercentChange24h,
		TotalMarketCap:  total,
		UniverseSize:    b.UniverseSize,
		ComputedAt:      now,
	}
	if !hasUSDT {
		d.Anomalies = append(d.Anomalies, AnomalyUSDTMissing)
	}
	if !hasUSDC {
		d.Anomalies = append(d.Anomalies, AnomalyUSDCMissing)
	}

	d.OthersDominance = 100 - d.BTCDominance - d.ETHDominance
	if d.OthersDominance < 0 {
		d.OthersDominance = 0
		d.Anomalies = append(d.Anomalies, AnomalyOthersNegative)
	}
	d.StablecoinDominance = d.USDTDominance + d.USDCDominance
	d.AltcoinSeason = ClassifyAltSeason(d.BTCDominance, d.OthersDominance, d.StablecoinDominance, d.ETHBTCChange24h)
	return d, nil
}

// ClassifyAltSeason derives the categorical signal from dominance percentages.
func ClassifyAltSeason(btcDom, othersDom, stableDom, ethbtcDelta float64) models.AltcoinSeasonSignal {
	strength := models.StrengthWeak
	switch {
	case othersDom > strongOthersMin:
		strength = models.StrengthStrong
	case othersDom > altSeasonOthersMin:
		strength = models.StrengthModerate
	}
	return models.AltcoinSeasonSignal{
		IsAltSeason: othersDom > altSeasonOthersMin && btcDom < altSeasonBTCMax,
		Strength:    strength,
		Indicators: models.AltSeasonIndicators{
			BTCDominanceFalling:        btcDom < btcFallingBelow,
			OthersDominanceRising:      othersDom > altSeasonOthersMin,
			ETHBTCRising:               ethbtcDelta > 0,
			StablecoinDominanceFalling: stableDom < stablecoinFallingMax,
		},
	}
}
