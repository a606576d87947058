package models

import (
	"fmt"
	"strings"
	"time"

	"CryptoArchive/internal/domain/errs"
)

type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionHold  Action = "HOLD"
	ActionAvoid Action = "AVOID"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionAvoid:
		return true
	}
	return false
}

type Conviction string

const (
	ConvictionVeryStrong Conviction = "VERY_STRONG"
	ConvictionStrong     Conviction = "STRONG"
	ConvictionModerate   Conviction = "MODERATE"
	ConvictionWeak       Conviction = "WEAK"
)

func (c Conviction) IsValid() bool {
	switch c {
	case ConvictionVeryStrong, ConvictionStrong, ConvictionModerate, ConvictionWeak:
		return true
	}
	return false
}

// Verdict is the graded outcome of a prediction. PENDING is the only non-terminal state.
type Verdict string

const (
	VerdictPending Verdict = "PENDING"
	VerdictYes     Verdict = "YES"
	VerdictNo      Verdict = "NO"
)

func (v Verdict) IsTerminal() bool { return v == VerdictYes || v == VerdictNo }

// Recommendation is one archived trading call per (symbol, issue time).
// ActualPriceChange is set if and only if Verdict is terminal.
type Recommendation struct {
	ID                   int64      `json:"id"`
	Symbol               string     `json:"symbol"`
	Action               Action     `json:"action"`
	Conviction           Conviction `json:"conviction"`
	Allocation           *float64   `json:"allocation,omitempty"`
	EntryZoneMin         *float64   `json:"entryZoneMin,omitempty"`
	EntryZoneMax         *float64   `json:"entryZoneMax,omitempty"`
	StopLoss             *float64   `json:"stopLoss,omitempty"`
	TakeProfit1          *float64   `json:"takeProfit1,omitempty"`
	TakeProfit2          *float64   `json:"takeProfit2,omitempty"`
	TakeProfit3          *float64   `json:"takeProfit3,omitempty"`
	PredictedPriceChange *float64   `json:"predictedPriceChange,omitempty"`
	PredictionTimeframe  Timeframe  `json:"predictionTimeframe,omitempty"`
	Reasoning            string     `json:"reasoning,omitempty"`
	TechnicalSignals     []string   `json:"technicalSignals"`
	ActualPriceChange    *float64   `json:"actualPriceChange"`
	Verdict              Verdict    `json:"predictionAccurate"`
	IssuedAt             time.Time  `json:"issuedAt"`
	GradedAt             *time.Time `json:"gradedAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// Normalize uppercases the ticker and resets grading fields for a fresh insert.
func (r *Recommendation) Normalize() {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	r.Verdict = VerdictPending
	r.ActualPriceChange = nil
	r.GradedAt = nil
	if r.TechnicalSignals == nil {
		r.TechnicalSignals = []string{}
	}
}

// Validate rejects input that must never reach the store.
func (r *Recommendation) Validate() error {
	const op = "log_recommendation"
	if r.Symbol == "" {
		return errs.Validation(op, "symbol", "symbol is required")
	}
	if !r.Action.IsValid() {
		return errs.Validation(op, "action", fmt.Sprintf("action %q must be one of BUY, SELL, HOLD, AVOID", r.Action))
	}
	if !r.Conviction.IsValid() {
		return errs.Validation(op, "conviction", fmt.Sprintf("conviction %q must be one of VERY_STRONG, STRONG, MODERATE, WEAK", r.Conviction))
	}
	if r.Allocation != nil && (*r.Allocation < 0 || *r.Allocation > 100) {
		return errs.Validation(op, "allocation", "allocation must be between 0 and 100")
	}
	if r.EntryZoneMin != nil && r.EntryZoneMax != nil && *r.EntryZoneMin > *r.EntryZoneMax {
		return errs.Validation(op, "entryZone", "entryZoneMin must not exceed entryZoneMax")
	}
	if r.PredictionTimeframe != "" && !r.PredictionTimeframe.IsValid() {
		return errs.Validation(op, "predictionTimeframe", fmt.Sprintf("predictionTimeframe %q must be one of 1D, 7D, 30D", r.PredictionTimeframe))
	}
	return nil
}

// Gradable reports whether the row carries both a prediction and a horizon.
func (r *Recommendation) Gradable() bool {
	return r.PredictedPriceChange != nil && r.PredictionTimeframe.IsValid()
}

// DueAt is the earliest instant the recommendation may be graded.
func (r *Recommendation) DueAt() (time.Time, bool) {
	h, ok := r.PredictionTimeframe.Horizon()
	if !ok {
		return time.Time{}, false
	}
	return r.IssuedAt.Add(h), true
}
