package market

import (
	"testing"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// basket builds a basket whose total is 100 so caps read directly as percentages.
func basket(btc, eth float64) models.Basket {
	return models.Basket{
		Quotes: map[string]models.MarketQuote{
			"BTC":  {Symbol: "BTC", Price: 90000, MarketCap: btc, PercentChange24h: 1.0},
			"ETH":  {Symbol: "ETH", Price: 3375, MarketCap: eth, PercentChange24h: 3.5},
			"USDT": {Symbol: "USDT", Price: 1, MarketCap: 4.0},
			"USDC": {Symbol: "USDC", Price: 1, MarketCap: 1.3},
		},
		TotalMarketCap: 100,
		UniverseSize:   100,
	}
}

func TestComputeDominanceOthers(t *testing.T) {
	d, err := ComputeDominance(basket(48.5, 18.2), time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 48.5, d.BTCDominance, 1e-9)
	assert.InDelta(t, 18.2, d.ETHDominance, 1e-9)
	assert.InDelta(t, 33.3, d.OthersDominance, 0.1)
	assert.InDelta(t, 5.3, d.StablecoinDominance, 1e-9)
	assert.InDelta(t, 3375.0/90000.0, d.ETHBTCRatio, 1e-12)
	assert.InDelta(t, 2.5, d.ETHBTCChange24h, 1e-9)
	assert.False(t, d.AltcoinSeason.IsAltSeason)
	assert.Equal(t, models.StrengthWeak, d.AltcoinSeason.Strength)
	assert.Empty(t, d.Anomalies)
}

func TestComputeDominanceStrongAltSeason(t *testing.T) {
	d, err := ComputeDominance(basket(40.0, 14.0), time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 46.0, d.OthersDominance, 1e-9)
	assert.Equal(t, models.StrengthStrong, d.AltcoinSeason.Strength)
	assert.True(t, d.AltcoinSeason.IsAltSeason)
}

func TestComputeDominanceModerateAltSeason(t *testing.T) {
	d, err := ComputeDominance(basket(42.0, 16.0), time.Now())
	require.NoError(t, err)
	sig := d.AltcoinSeason
	assert.True(t, sig.IsAltSeason)
	assert.Equal(t, models.StrengthModerate, sig.Strength)
	assert.True(t, sig.Indicators.BTCDominanceFalling)
	assert.True(t, sig.Indicators.OthersDominanceRising)
	assert.True(t, sig.Indicators.ETHBTCRising)
	assert.True(t, sig.Indicators.StablecoinDominanceFalling)
}

func TestComputeDominanceIncompleteBasket(t *testing.T) {
	for _, drop := range [][]string{{"BTC"}, {"ETH"}, {"USDT", "USDC"}} {
		b := basket(48.5, 18.2)
		for _, sym := range drop {
			delete(b.Quotes, sym)
		}
		d, err := ComputeDominance(b, time.Now())
		require.Error(t, err, "dropped %v", drop)
		assert.True(t, errs.Is(err, errs.KindIncompleteBasket))
		assert.Zero(t, d.BTCDominance)
	}
}

func TestComputeDominanceSingleStablecoin(t *testing.T) {
	b := basket(48.5, 18.2)
	delete(b.Quotes, "USDC")
	d, err := ComputeDominance(b, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 4.0, d.StablecoinDominance, 1e-9)
	assert.Contains(t, d.Anomalies, AnomalyUSDCMissing)
}

func TestComputeDominanceClampsNegativeOthers(t *testing.T) {
	b := basket(80, 30)
	d, err := ComputeDominance(b, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.OthersDominance)
	assert.Contains(t, d.Anomalies, AnomalyOthersNegative)
}

func TestComputeDominanceZeroTotal(t *testing.T) {
	b := basket(48.5, 18.2)
	b.TotalMarketCap = 0
	_, err := ComputeDominance(b, time.Now())
	assert.True(t, errs.Is(err, errs.KindIncompleteBasket))
}
