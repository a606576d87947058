package models

import "time"

// AccuracyFilter narrows accuracy statistics; empty fields match everything.
type AccuracyFilter struct {
	Symbol    string
	Timeframe Timeframe
}

// AccuracyCounts are raw verdict tallies as read from the store.
type AccuracyCounts struct {
	Total      int64
	Accurate   int64
	Inaccurate int64
	Pending    int64
}

type AccuracyStats struct {
	Total        int64   `json:"total"`
	Accurate     int64   `json:"accurate"`
	Inaccurate   int64   `json:"inaccurate"`
	Pending      int64   `json:"pending"`
	AccuracyRate float64 `json:"accuracyRate"`
}

// VerdictEvent is published after a successful verdict transition.
type VerdictEvent struct {
	RunID             string    `json:"runId"`
	RecommendationID  int64     `json:"recommendationId"`
	Symbol            string    `json:"symbol"`
	Timeframe         Timeframe `json:"timeframe"`
	PredictedChange   float64   `json:"predictedChange"`
	ActualPriceChange float64   `json:"actualPriceChange"`
	Verdict           Verdict   `json:"verdict"`
	GradedAt          time.Time `json:"gradedAt"`
}

// GradeOutcome is the per-row result of a grading run.
type GradeOutcome struct {
	ID                int64    `json:"id"`
	Symbol            string   `json:"symbol"`
	Verdict           Verdict  `json:"verdict"`
	ActualPriceChange *float64 `json:"actualPriceChange,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// GradeReport summarizes one grading run.
type GradeReport struct {
	RunID    string         `json:"runId"`
	Due      int            `json:"due"`
	Graded   int            `json:"graded"`
	Deferred int            `json:"deferred"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	Outcomes []GradeOutcome `json:"outcomes"`
}
