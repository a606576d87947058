package market

import "CryptoArchive/internal/domain/models"

// Tier1 tokens drive the daily sentiment read.
var Tier1 = []string{"ETH", "SOL", "LINK", "SUI"}

const sentimentMove = 2.0

// Sentiment counts tier-1 tokens moving more than 2% either way over 24h.
// Tokens absent from changes are ignored.
func Sentiment(changes map[string]float64) models.MarketSentiment {
	s := models.MarketSentiment{Changes: make(map[string]float64, len(Tier1))}
	for _, sym := range Tier1 {
		ch, ok := changes[sym]
		if !ok {
			continue
		}
		s.Changes[sym] = ch
		switch {
		case ch > sentimentMove:
			s.Up++
		case ch < -sentimentMove:
			s.Down++
		}
	}
	switch {
	case s.Up >= 3:
		s.Label = models.SentimentRecovering
	case s.Down >= 3:
		s.Label = models.SentimentDumping
	case s.Up >= 2:
		s.Label = models.SentimentMixed
	default:
		s.Label = models.SentimentWeak
	}
	return s
}

// BasketChanges extracts 24h changes from a basket, keyed by symbol.
func BasketChanges(b models.Basket) map[string]float64 {
	out := make(map[string]float64, len(b.Quotes))
	for sym, q := range b.Quotes {
		out[sym] = q.PercentChange24h
	}
	return out
}
