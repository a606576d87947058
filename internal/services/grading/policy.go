package grading

import (
	"errors"

	"CryptoArchive/internal/domain/models"
	"CryptoArchive/pkg/util"
)

// MinMagnitudeRatio is the share of the predicted move the realized move must reach,
// in the predicted direction, for a YES. Overshooting the prediction is still a YES.
const MinMagnitudeRatio = 0.5

// FlatTolerance is the largest absolute move (in percent) that still confirms a 0% prediction.
const FlatTolerance = 2.0

var ErrInvalidIssuePrice = errors.New("price at issue must be positive")

// ActualChange is the realized percent move from the issue price, rounded to 2 dp.
func ActualChange(priceAtIssue, realized float64) (float64, error) {
	if priceAtIssue <= 0 {
		return 0, ErrInvalidIssuePrice
	}
	return util.PercentChange(priceAtIssue, realized), nil
}

// Judge compares a realized change against the prediction.
// Moving the realized change further from the prediction on the losing side never turns NO into YES.
func Judge(predicted, actual float64) models.Verdict {
	switch {
	case predicted > 0:
		if actual >= predicted*MinMagnitudeRatio {
			return models.VerdictYes
		}
	case predicted < 0:
		if actual <= predicted*MinMagnitudeRatio {
			return models.VerdictYes
		}
	default:
		if actual >= -FlatTolerance && actual <= FlatTolerance {
			return models.VerdictYes
		}
	}
	return models.VerdictNo
}
