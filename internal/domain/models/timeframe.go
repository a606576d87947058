package models

import "time"

// Timeframe is the horizon after which a prediction is checked.
type Timeframe string

const (
	TF1D  Timeframe = "1D"
	TF7D  Timeframe = "7D"
	TF30D Timeframe = "30D"
)

var horizons = map[Timeframe]time.Duration{
	TF1D:  24 * time.Hour,
	TF7D:  7 * 24 * time.Hour,
	TF30D: 30 * 24 * time.Hour,
}

// IsValid returns true if tf is a supported prediction timeframe.
func (tf Timeframe) IsValid() bool {
	_, ok := horizons[tf]
	return ok
}

// Horizon maps the timeframe to a wall-clock duration.
func (tf Timeframe) Horizon() (time.Duration, bool) {
	d, ok := horizons[tf]
	return d, ok
}

// Timeframes lists supported timeframes, shortest first.
func Timeframes() []Timeframe { return []Timeframe{TF1D, TF7D, TF30D} }
