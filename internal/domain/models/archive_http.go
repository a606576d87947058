package models

// Requests for archive HTTP endpoints. Defined in domain for consistency and reuse.

type PricePointRequest struct {
	Symbol         string   `json:"symbol" validate:"required,max=20"`
	Price          float64  `json:"price" validate:"gt=0"`
	PriceChange24h *float64 `json:"priceChange24h"`
	Volume24h      *float64 `json:"volume24h" validate:"omitempty,gte=0"`
	MarketCap      *float64 `json:"marketCap" validate:"omitempty,gte=0"`
}

type LogPricesRequest struct {
	Prices             []PricePointRequest `json:"prices" validate:"required,min=1,max=500,dive"`
	BTCDominance       *float64            `json:"btcDominance" validate:"omitempty,gte=0,lte=100"`
	Total3MarketCap    *float64            `json:"total3MarketCap" validate:"omitempty,gte=0"`
	AltcoinSeasonIndex *int                `json:"altcoinSeasonIndex" validate:"omitempty,gte=0,lte=100"`
}

// Batch converts the request into the ingestion payload.
func (r *LogPricesRequest) Batch() PriceBatch {
	points := make([]PricePoint, 0, len(r.Prices))
	for _, p := range r.Prices {
		points = append(points, PricePoint{
			Symbol:         p.Symbol,
			Price:          p.Price,
			PriceChange24h: p.PriceChange24h,
			Volume24h:      p.Volume24h,
			MarketCap:      p.MarketCap,
		})
	}
	return PriceBatch{
		Prices: points,
		MarketContext: MarketContext{
			BTCDominance:       r.BTCDominance,
			Total3MarketCap:    r.Total3MarketCap,
			AltcoinSeasonIndex: r.AltcoinSeasonIndex,
		},
	}
}

type LogRecommendationRequest struct {
	Symbol               string   `json:"symbol" validate:"required,max=20"`
	Action               string   `json:"action" validate:"required,oneof=BUY SELL HOLD AVOID"`
	Conviction           string   `json:"conviction" validate:"required,oneof=VERY_STRONG STRONG MODERATE WEAK"`
	Allocation           *float64 `json:"allocation" validate:"omitempty,gte=0,lte=100"`
	EntryZoneMin         *float64 `json:"entryZoneMin" validate:"omitempty,gt=0"`
	EntryZoneMax         *float64 `json:"entryZoneMax" validate:"omitempty,gt=0"`
	StopLoss             *float64 `json:"stopLoss" validate:"omitempty,gt=0"`
	TakeProfit1          *float64 `json:"takeProfit1" validate:"omitempty,gt=0"`
	TakeProfit2          *float64 `json:"takeProfit2" validate:"omitempty,gt=0"`
	TakeProfit3          *float64 `json:"takeProfit3" validate:"omitempty,gt=0"`
	PredictedPriceChange *float64 `json:"predictedPriceChange"`
	PredictionTimeframe  string   `json:"predictionTimeframe" validate:"omitempty,oneof=1D 7D 30D"`
	Reasoning            string   `json:"reasoning" validate:"max=2000"`
	TechnicalSignals     []string `json:"technicalSignals" validate:"omitempty,max=20,dive,max=100"`
}

// Recommendation converts the request into the domain value.
func (r *LogRecommendationRequest) Recommendation() Recommendation {
	return Recommendation{
		Symbol:               r.Symbol,
		Action:               Action(r.Action),
		Conviction:           Conviction(r.Conviction),
		Allocation:           r.Allocation,
		EntryZoneMin:         r.EntryZoneMin,
		EntryZoneMax:         r.EntryZoneMax,
		StopLoss:             r.StopLoss,
		TakeProfit1:          r.TakeProfit1,
		TakeProfit2:          r.TakeProfit2,
		TakeProfit3:          r.TakeProfit3,
		PredictedPriceChange: r.PredictedPriceChange,
		PredictionTimeframe:  Timeframe(r.PredictionTimeframe),
		Reasoning:            r.Reasoning,
		TechnicalSignals:     r.TechnicalSignals,
	}
}

type UpdateVerdictRequest struct {
	ID                int64    `param:"id" json:"-" validate:"required,gt=0"`
	ActualPriceChange *float64 `json:"actualPriceChange" validate:"required"`
	Verdict           string   `json:"predictionAccurate" validate:"required,oneof=YES NO"`
}

type HistoryRequest struct {
	Symbol string `param:"symbol" json:"-" validate:"required,max=20"`
	Days   int    `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
}

type AccuracyRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"max=20"`
	Timeframe string `query:"timeframe" json:"timeframe" validate:"omitempty,oneof=1D 7D 30D"`
}
