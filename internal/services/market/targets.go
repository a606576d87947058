package market

import (
	"fmt"
	"math"
	"os"

	"CryptoArchive/internal/domain/models"
	"CryptoArchive/pkg/util"

	"gopkg.in/yaml.v3"
)

// Target is a planned entry price and allocation for one token.
type Target struct {
	Symbol     string  `yaml:"symbol"`
	Price      float64 `yaml:"price"`
	Allocation float64 `yaml:"allocation"`
}

const (
	targetBand        = 5.0
	targetExpensive   = 10.0
	targetPrediction  = 20.0
	targetSignal      = "Automated daily update"
	targetEntryLow    = 0.95
	targetEntryHigh   = 1.05
	targetStop        = 0.85
	targetTakeProfit1 = 1.20
	targetTakeProfit2 = 1.40
	targetTakeProfit3 = 1.60
)

// RecommendFromTargets compares live prices against planned entries.
// Within 5% of target or below it is a BUY; above it the call is HOLD (wait for a pullback).
// Targets without a live price are skipped.
func RecommendFromTargets(targets []Target, prices map[string]models.PricePoint) []models.Recommendation {
	out := make([]models.Recommendation, 0, len(targets))
	for _, t := range targets {
		p, ok := prices[t.Symbol]
		if !ok || t.Price <= 0 || p.Price <= 0 {
			continue
		}
		diff := (p.Price - t.Price) / t.Price * 100

		action := models.ActionBuy
		var reasoning string
		switch {
		case math.Abs(diff) <= targetBand:
			reasoning = "Within 5% of target entry zone"
		case diff > targetBand && diff <= targetExpensive:
			action = models.ActionHold
			reasoning = fmt.Sprintf("%.1f%% above target, wait for pullback", diff)
		case diff > targetExpensive:
			action = models.ActionHold
			reasoning = fmt.Sprintf("%.1f%% above target, too expensive", diff)
		default:
			reasoning = fmt.Sprintf("%.1f%% below target, strong buy opportunity", math.Abs(diff))
		}

		out = append(out, models.Recommendation{
			Symbol:               t.Symbol,
			Action:               action,
			Conviction:           models.ConvictionStrong,
			Allocation:           ptr(t.Allocation),
			EntryZoneMin:         ptr(t.Price * targetEntryLow),
			EntryZoneMax:         ptr(t.Price * targetEntryHigh),
			StopLoss:             ptr(t.Price * targetStop),
			TakeProfit1:          ptr(t.Price * targetTakeProfit1),
			TakeProfit2:          ptr(t.Price * targetTakeProfit2),
			TakeProfit3:          ptr(t.Price * targetTakeProfit3),
			PredictedPriceChange: ptr(targetPrediction),
			PredictionTimeframe:  models.TF30D,
			Reasoning:            reasoning,
			TechnicalSignals:     []string{targetSignal},
		})
	}
	return out
}

func ptr(v float64) *float64 { return &v }

// LoadTargets reads a YAML list of targets:
//
//	- symbol: SOL
//	  price: 140
//	  allocation: 10
func LoadTargets(path string) ([]Target, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	var out []Target
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}
	for i := range out {
		out[i].Symbol = util.NormalizeSymbol(out[i].Symbol)
		if out[i].Symbol == "" || out[i].Price <= 0 {
			return nil, fmt.Errorf("target %d needs a symbol and a positive price", i)
		}
	}
	return out, nil
}
