package coinmarketcap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CryptoArchive/internal/domain/errs"
	"CryptoArchive/internal/domain/models"
	drepo "CryptoArchive/internal/domain/repository"
	xhttp "CryptoArchive/pkg/http"
	applogger "CryptoArchive/pkg/logger"
	"CryptoArchive/pkg/util"
)

const listingPath = "/cryptocurrency/listing"

type listingResponse struct {
	Data struct {
		CryptoCurrencyList []listingCoin `json:"cryptoCurrencyList"`
		TotalCount         string        `json:"totalCount"`
	} `json:"data"`
	Status struct {
		ErrorCode    json.Number `json:"error_code"`
		ErrorMessage string      `json:"error_message"`
	} `json:"status"`
}

type listingCoin struct {
	ID      int64          `json:"id"`
	Name    string         `json:"name"`
	Symbol  string         `json:"symbol"`
	Slug    string         `json:"slug"`
	CMCRank int            `json:"cmcRank"`
	Quotes  []listingQuote `json:"quotes"`
}

type listingQuote struct {
	Name             string  `json:"name"`
	Price            float64 `json:"price"`
	Volume24h        float64 `json:"volume24h"`
	MarketCap        float64 `json:"marketCap"`
	PercentChange24h float64 `json:"percentChange24h"`
}

// Config for the public listing adapter.
type Config struct {
	BaseURL        string
	ListingLimit   int
	DominanceLimit int
	Timeout        time.Duration
	Retries        int
	RetryBackoff   time.Duration
	Symbols        []string
}

// Client implements PriceSource over the public CoinMarketCap data API.
type Client struct {
	cfg  Config
	http *xhttp.Client
	l    *applogger.Logger
}

var _ drepo.PriceSource = (*Client)(nil)

// New creates a listing client.
func New(cfg Config, l *applogger.Logger) *Client {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	hc := xhttp.NewClient(
		xhttp.WithTimeout(cfg.Timeout),
		xhttp.WithUserAgent("crypto-archive/1.0"),
		xhttp.WithRetries(cfg.Retries, cfg.RetryBackoff),
	)
	return &Client{cfg: cfg, http: hc, l: l}
}

// FetchPrices returns one PricePoint per requested symbol present in the listing.
// An empty request falls back to the configured symbols. Symbols missing upstream are skipped.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) ([]models.PricePoint, error) {
	if len(symbols) == 0 {
		symbols = c.cfg.Symbols
	}
	coins, err := c.listing(ctx, c.cfg.ListingLimit)
	if err != nil {
		return nil, err
	}

	// The listing is sorted by market cap, so the first hit wins on duplicate tickers.
	bySymbol := make(map[string]listingCoin, len(coins))
	for _, coin := range coins {
		sym := util.NormalizeSymbol(coin.Symbol)
		if _, seen := bySymbol[sym]; !seen {
			bySymbol[sym] = coin
		}
	}

	out := make([]models.PricePoint, 0, len(symbols))
	var missing []string
	for _, s := range symbols {
		sym := util.NormalizeSymbol(s)
		coin, ok := bySymbol[sym]
		if !ok || len(coin.Quotes) == 0 || coin.Quotes[0].Price <= 0 {
			missing = append(missing, sym)
			continue
		}
		q := coin.Quotes[0]
		out = append(out, models.PricePoint{
			Symbol:         sym,
			Price:          q.Price,
			PriceChange24h: ptr(q.PercentChange24h),
			Volume24h:      ptr(q.Volume24h),
			MarketCap:      ptr(q.MarketCap),
		})
	}
	if len(missing) > 0 {
		c.l.Warn("coinmarketcap symbols not in listing", applogger.Strings("symbols", missing))
	}
	return out, nil
}

// FetchBasket returns the top-N listing (N = DominanceLimit) as a dominance basket.
// TotalMarketCap is the sum over those N coins.
func (c *Client) FetchBasket(ctx context.Context) (models.Basket, error) {
	coins, err := c.listing(ctx, c.cfg.DominanceLimit)
	if err != nil {
		return models.Basket{}, err
	}
	b := models.Basket{Quotes: make(map[string]models.MarketQuote, len(coins))}
	for _, coin := range coins {
		if len(coin.Quotes) == 0 {
			continue
		}
		q := coin.Quotes[0]
		b.TotalMarketCap += q.MarketCap
		b.UniverseSize++
		sym := util.NormalizeSymbol(coin.Symbol)
		if _, seen := b.Quotes[sym]; seen {
			continue
		}
		b.Quotes[sym] = models.MarketQuote{
			Symbol:           sym,
			Price:            q.Price,
			MarketCap:        q.MarketCap,
			PercentChange24h: q.PercentChange24h,
		}
	}
	return b, nil
}

func (c *Client) listing(ctx context.Context, limit int) ([]listingCoin, error) {
	start := time.Now()
	var resp listingResponse
	err := c.http.GetJSON(ctx, c.cfg.BaseURL+listingPath, url.Values{
		"start":    {"1"},
		"limit":    {strconv.Itoa(limit)},
		"sortBy":   {"market_cap"},
		"sortType": {"desc"},
		"convert":  {"USD"},
	}, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			c.l.Error("coinmarketcap listing status", applogger.Int("status", se.Code))
		} else {
			c.l.Error("coinmarketcap listing failed", applogger.Error(err))
		}
		return nil, errs.UpstreamUnavailable("coinmarketcap_listing", err)
	}
	if code := resp.Status.ErrorCode.String(); code != "" && code != "0" {
		return nil, errs.UpstreamUnavailable("coinmarketcap_listing",
			fmt.Errorf("error_code %s: %s", code, resp.Status.ErrorMessage))
	}
	if len(resp.Data.CryptoCurrencyList) == 0 {
		return nil, errs.UpstreamUnavailable("coinmarketcap_listing", errors.New("empty listing"))
	}
	c.l.Debug("coinmarketcap listing ok",
		applogger.Int("limit", limit),
		applogger.Int("coins", len(resp.Data.CryptoCurrencyList)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return resp.Data.CryptoCurrencyList, nil
}

func ptr(v float64) *float64 { return &v }
