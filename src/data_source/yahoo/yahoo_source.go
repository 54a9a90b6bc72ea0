package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"

	"github.com/shopspring/decimal"
)

type YahooFinanceSource struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewYahooFinanceSource(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *YahooFinanceSource {
	return &YahooFinanceSource{
		Config:  cfg,
		Network: netMgr,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

type YahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string   `json:"currency"`
				Symbol             string   `json:"symbol"`
				ExchangeName       string   `json:"exchangeName"`
				RegularMarketTime  int64    `json:"regularMarketTime"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				PreviousClose      *float64 `json:"previousClose"`
				ChartPreviousClose *float64 `json:"chartPreviousClose"`
				DataGranularity    string   `json:"dataGranularity"`
				Range              string   `json:"range"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					High   []*float64 `json:"high"`   // Use pointers to handle null
					Low    []*float64 `json:"low"`    // Use pointers to handle null
					Open   []*float64 `json:"open"`   // Use pointers to handle null
					Close  []*float64 `json:"close"`  // Use pointers to handle null
					Volume []*float64 `json:"volume"` // Use pointers to handle null
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) fetchChart(ctx context.Context, symbol string, params map[string]string) (*YahooChartResponse, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", strings.TrimRight(s.Config.DataSource.YahooBaseURL, "/"), url.PathEscape(symbol))

	body, err := s.Network.Get(ctx, endpoint, params, nil)
	if err != nil {
		// Yahoo answers unknown symbols with 404 and a chart.error body.
		if helpers.StatusCode(err) == 404 {
			return nil, fmt.Errorf("yahoo chart %s: %w", symbol, helpers.ErrNotFound)
		}
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}

	var resp YahooChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: json unmarshal failed: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s - %s: %w", resp.Chart.Error.Code, resp.Chart.Error.Description, helpers.ErrNotFound)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no result in response for %s: %w", symbol, helpers.ErrNotFound)
	}
	return &resp, nil
}

// -----------------------------------------------------------------------------

// Candles fetches daily bars for the configured range. Points with a missing
// close are dropped and timestamps are made strictly increasing.
func (s *YahooFinanceSource) Candles(ctx context.Context, symbol string) ([]models.MCandle, error) {
	resp, err := s.fetchChart(ctx, symbol, map[string]string{
		"interval": s.Config.DataSource.CandleInterval,
		"range":    s.Config.DataSource.CandleRange,
	})
	if err != nil {
		return nil, err
	}
	return s.parseCandles(symbol, resp), nil
}

// -----------------------------------------------------------------------------

func (s *YahooFinanceSource) parseCandles(symbol string, resp *YahooChartResponse) []models.MCandle {
	result := resp.Chart.Result[0]
	candles := make([]models.MCandle, 0, len(result.Timestamp))
	if len(result.Indicators.Quote) == 0 {
		return candles
	}
	quote := result.Indicators.Quote[0]

	at := func(values []*float64, i int) float64 {
		if i < len(values) && values[i] != nil {
			return *values[i]
		}
		return 0
	}

	skipped := 0
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			skipped++
			continue
		}
		candles = append(candles, models.MCandle{
			T: ts,
			O: at(quote.Open, i),
			H: at(quote.High, i),
			L: at(quote.Low, i),
			C: *quote.Close[i],
			V: at(quote.Volume, i),
		})
	}
	if skipped > 0 {
		s.Logger.Debug("Skipped %d null candles for %s", skipped, symbol)
	}

	sort.SliceStable(candles, func(i, j int) bool { return candles[i].T < candles[j].T })

	// Keep the last bar for a repeated timestamp.
	out := candles[:0]
	for _, c := range candles {
		if n := len(out); n > 0 && out[n-1].T == c.T {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// -----------------------------------------------------------------------------

// IndexSnapshot reads the latest price of an index from the chart metadata.
// Change and percent are rounded to two decimals.
func (s *YahooFinanceSource) IndexSnapshot(ctx context.Context, symbol string) (*models.MIndexSnapshot, error) {
	resp, err := s.fetchChart(ctx, symbol, map[string]string{"interval": "1d", "range": "1d"})
	if err != nil {
		return nil, err
	}
	return snapshotFromMeta(symbol, resp)
}

// -----------------------------------------------------------------------------

func snapshotFromMeta(symbol string, resp *YahooChartResponse) (*models.MIndexSnapshot, error) {
	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil {
		return nil, fmt.Errorf("no market price for %s", symbol)
	}
	prevPtr := meta.PreviousClose
	if prevPtr == nil {
		prevPtr = meta.ChartPreviousClose
	}
	if prevPtr == nil || *prevPtr == 0 {
		return nil, fmt.Errorf("no previous close for %s", symbol)
	}

	price := decimal.NewFromFloat(*meta.RegularMarketPrice)
	prev := decimal.NewFromFloat(*prevPtr)
	change := price.Sub(prev).Round(2)
	percent := change.Div(prev).Mul(decimal.NewFromInt(100)).Round(2)

	return &models.MIndexSnapshot{
		Symbol:  symbol,
		Price:   price.InexactFloat64(),
		Change:  change.InexactFloat64(),
		Percent: percent.InexactFloat64(),
	}, nil
}
