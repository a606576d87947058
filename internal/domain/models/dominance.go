package models

import "time"

// MarketQuote is one basket constituent.
type MarketQuote struct {
	Symbol           string  `json:"symbol"`
	Price            float64 `json:"price"`
	MarketCap        float64 `json:"marketCap"`
	PercentChange24h float64 `json:"percentChange24h"`
}

// Basket is the input to the dominance calculator. TotalMarketCap is the sum over the
// sampled universe (a top-N listing), not the true total crypto market cap.
type Basket struct {
	Quotes         map[string]MarketQuote `json:"quotes"`
	TotalMarketCap float64                `json:"totalMarketCap"`
	UniverseSize   int                    `json:"universeSize"`
}

type AltSeasonStrength string

const (
	StrengthWeak     AltSeasonStrength = "weak"
	StrengthModerate AltSeasonStrength = "moderate"
	StrengthStrong   AltSeasonStrength = "strong"
)

type AltSeasonIndicators struct {
	BTCDominanceFalling        bool `json:"btcDominanceFalling"`
	OthersDominanceRising      bool `json:"othersDominanceRising"`
	ETHBTCRising               bool `json:"ethbtcRising"`
	StablecoinDominanceFalling bool `json:"stablecoinDominanceFalling"`
}

type AltcoinSeasonSignal struct {
	IsAltSeason bool                `json:"isAltSeason"`
	Strength    AltSeasonStrength   `json:"strength"`
	Indicators  AltSeasonIndicators `json:"indicators"`
}

// DominanceSnapshot is derived on demand and never persisted.
// ETHBTCChange24h is ETH's 24h % change minus BTC's, a momentum proxy.
type DominanceSnapshot struct {
	BTCDominance        float64             `json:"btcDominance"`
	ETHDominance        float64             `json:"ethDominance"`
	OthersDominance     float64             `json:"othersDominance"`
	StablecoinDominance float64             `json:"stablecoinDominance"`
	USDTDominance       float64             `json:"usdtDominance"`
	USDCDominance       float64             `json:"usdcDominance"`
	ETHBTCRatio         float64             `json:"ethbtcRatio"`
	ETHBTCChange24h     float64             `json:"ethbtcChange24h"`
	TotalMarketCap      float64             `json:"totalMarketCap"`
	UniverseSize        int                 `json:"universeSize"`
	AltcoinSeason       AltcoinSeasonSignal `json:"altcoinSeasonSignal"`
	Anomalies           []string            `json:"anomalies,omitempty"`
	ComputedAt          time.Time           `json:"computedAt"`
}

// SentimentLabel summarizes tier-1 token moves.
type SentimentLabel string

const (
	SentimentRecovering SentimentLabel = "MARKET_RECOVERING"
	SentimentDumping    SentimentLabel = "MARKET_DUMPING"
	SentimentMixed      SentimentLabel = "MIXED_SIGNALS"
	SentimentWeak       SentimentLabel = "MARKET_WEAK"
)

type MarketSentiment struct {
	Label   SentimentLabel     `json:"label"`
	Up      int                `json:"up"`
	Down    int                `json:"down"`
	Changes map[string]float64 `json:"changes"`
}

// MarketOverview bundles the derived signals served on the market endpoint.
type MarketOverview struct {
	Dominance          DominanceSnapshot `json:"dominance"`
	Sentiment          MarketSentiment   `json:"sentiment"`
	Total3MarketCap    float64           `json:"total3MarketCap"`
	AltcoinSeasonIndex int               `json:"altcoinSeasonIndex"`
}
