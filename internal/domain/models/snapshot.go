package models

import "time"

// PricePoint is the normalized quote an upstream adapter hands to the archive.
type PricePoint struct {
	Symbol         string   `json:"symbol"`
	Price          float64  `json:"price"`
	PriceChange24h *float64 `json:"priceChange24h,omitempty"`
	Volume24h      *float64 `json:"volume24h,omitempty"`
	MarketCap      *float64 `json:"marketCap,omitempty"`
}

// MarketContext is shared by every snapshot written in one logPrices call.
type MarketContext struct {
	BTCDominance       *float64 `json:"btcDominance,omitempty"`
	Total3MarketCap    *float64 `json:"total3MarketCap,omitempty"`
	AltcoinSeasonIndex *int     `json:"altcoinSeasonIndex,omitempty"`
}

// PriceBatch is the ingestion payload for one capture: points plus their market context.
// A zero CapturedAt is stamped by the ingestor when the batch is written.
type PriceBatch struct {
	Prices     []PricePoint `json:"prices"`
	CapturedAt time.Time    `json:"capturedAt"`
	MarketContext
}

// PriceSnapshot is one archived row per (symbol, capture time). Rows are never mutated.
type PriceSnapshot struct {
	ID                 int64     `json:"id"`
	Symbol             string    `json:"symbol"`
	Price              float64   `json:"price"`
	PriceChange24h     *float64  `json:"priceChange24h"`
	Volume24h          *float64  `json:"volume24h"`
	MarketCap          *float64  `json:"marketCap"`
	BTCDominance       *float64  `json:"btcDominance"`
	Total3MarketCap    *float64  `json:"total3MarketCap"`
	AltcoinSeasonIndex *int      `json:"altcoinSeasonIndex"`
	CapturedAt         time.Time `json:"capturedAt"`
	CreatedAt          time.Time `json:"createdAt"`
}

// NewPriceSnapshot builds the row stored for p at capturedAt.
func NewPriceSnapshot(p PricePoint, mc MarketContext, capturedAt time.Time) PriceSnapshot {
	return PriceSnapshot{
		Symbol:             p.Symbol,
		Price:              p.Price,
		PriceChange24h:     p.PriceChange24h,
		Volume24h:          p.Volume24h,
		MarketCap:          p.MarketCap,
		BTCDominance:       mc.BTCDominance,
		Total3MarketCap:    mc.Total3MarketCap,
		AltcoinSeasonIndex: mc.AltcoinSeasonIndex,
		CapturedAt:         capturedAt,
		CreatedAt:          capturedAt,
	}
}
