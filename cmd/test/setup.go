package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// upstreamKey is the Finnhub token the fake upstream insists on.
const upstreamKey = "smoke-key"

// fakeCompany is one listing served by the fake upstream.
type fakeCompany struct {
	Profile models.MCompanyProfile
	Quote   models.MQuote
	Base    float64
}

var fakeCompanies = map[string]fakeCompany{
	"AAPL": {
		Profile: models.MCompanyProfile{Name: "Apple Inc", Ticker: "AAPL", Exchange: "NASDAQ NMS - GLOBAL MARKET", FinnhubIndustry: "Technology", MarketCapitalization: models.Float(2950000)},
		Quote:   models.MQuote{CurrentPrice: models.Float(189.84), Change: models.Float(1.12), ChangePercent: models.Float(0.59), High: models.Float(190.32), Low: models.Float(188.19), Open: models.Float(188.5), PreviousClose: models.Float(188.72)},
		Base:    180,
	},
	"MSFT": {
		Profile: models.MCompanyProfile{Name: "Microsoft Corp", Ticker: "MSFT", Exchange: "NASDAQ NMS - GLOBAL MARKET", FinnhubIndustry: "Technology", MarketCapitalization: models.Float(3100000)},
		Quote:   models.MQuote{CurrentPrice: models.Float(415.5), Change: models.Float(-2.3), ChangePercent: models.Float(-0.55), High: models.Float(419), Low: models.Float(414.1), Open: models.Float(418), PreviousClose: models.Float(417.8)},
		Base:    400,
	},
}

var fakeIndices = map[string][2]float64{
	"^IXIC": {16742.39, 16600.12},
	"^GSPC": {5254.35, 5230.11},
	"^DJI":  {39807.37, 39760.08},
}

// -----------------------------------------------------------------------------

// setupUpstream serves the Finnhub and Yahoo endpoints the proxy calls, under
// /finnhub and /yahoo respectively.
func setupUpstream(appLogger *logger.Logger) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /finnhub/search", finnhubOnly(func(w http.ResponseWriter, r *http.Request) {
		q := strings.ToLower(r.URL.Query().Get("q"))
		result := []models.MSearchCandidate{}
		for symbol, c := range fakeCompanies {
			if strings.Contains(strings.ToLower(symbol), q) || strings.Contains(strings.ToLower(c.Profile.Name), q) {
				result = append(result, models.MSearchCandidate{Symbol: symbol, Description: strings.ToUpper(c.Profile.Name), Type: "Common Stock"})
			}
		}
		writeJSON(w, http.StatusOK, models.MSearchResponse{Count: len(result), Result: result})
	}))

	mux.HandleFunc("GET /finnhub/stock/profile2", finnhubOnly(func(w http.ResponseWriter, r *http.Request) {
		// Finnhub answers unknown symbols with an empty object.
		if c, ok := fakeCompanies[r.URL.Query().Get("symbol")]; ok {
			profile := c.Profile
			profile.Logo = "http://" + r.Host + "/logo.png"
			writeJSON(w, http.StatusOK, profile)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	}))

	mux.HandleFunc("GET /finnhub/quote", finnhubOnly(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := fakeCompanies[r.URL.Query().Get("symbol")]; ok {
			writeJSON(w, http.StatusOK, c.Quote)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"c": 0, "d": nil, "dp": nil, "h": 0, "l": 0, "o": 0, "pc": 0, "t": 0})
	}))

	mux.HandleFunc("GET /finnhub/news", finnhubOnly(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Unix()
		items := make([]models.MNewsItem, 0, 6)
		for i := 0; i < 6; i++ {
			items = append(items, models.MNewsItem{
				ID:       int64(1000 + i),
				Category: r.URL.Query().Get("category"),
				Datetime: now - int64(i*600),
				Headline: "Markets move on headline " + string(rune('A'+i)),
				Source:   "Smoke Wire",
			})
		}
		writeJSON(w, http.StatusOK, items)
	}))

	mux.HandleFunc("GET /yahoo/v8/finance/chart/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.PathValue("symbol")
		if r.URL.Query().Get("range") == "1d" {
			idx, ok := fakeIndices[symbol]
			if !ok {
				yahooNotFound(w)
				return
			}
			writeJSON(w, http.StatusOK, chartPayload(symbol, idx[0], idx[1], nil))
			return
		}
		c, ok := fakeCompanies[symbol]
		if !ok {
			yahooNotFound(w)
			return
		}
		writeJSON(w, http.StatusOK, chartPayload(symbol, c.Quote.CurrentPrice.Value, c.Quote.PreviousClose.Value, dailyCloses(c.Base, 90)))
	})

	mux.HandleFunc("GET /logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG\r\n\x1a\n"))
	})

	srv := httptest.NewServer(mux)
	appLogger.Info("Fake upstream listening on %s", srv.URL)
	return srv
}

// -----------------------------------------------------------------------------

func finnhubOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != upstreamKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid API key"})
			return
		}
		next(w, r)
	}
}

// -----------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// -----------------------------------------------------------------------------

func yahooNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"chart": map[string]any{
			"result": nil,
			"error":  map[string]string{"code": "Not Found", "description": "No data found, symbol may be delisted"},
		},
	})
}

// -----------------------------------------------------------------------------

type bar struct {
	t int64
	c float64
}

// dailyCloses walks a gentle zigzag over the last n weekdays, oldest first.
func dailyCloses(base float64, n int) []bar {
	bars := make([]bar, 0, n)
	day := time.Now().UTC().Truncate(24 * time.Hour).Add(14*time.Hour + 30*time.Minute)
	for len(bars) < n {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			step := float64(len(bars)%7) - 3
			bars = append(bars, bar{t: day.Unix(), c: base + step + float64(len(bars))/10})
		}
		day = day.AddDate(0, 0, -1)
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars
}

// -----------------------------------------------------------------------------

func chartPayload(symbol string, price, prevClose float64, bars []bar) map[string]any {
	ts := make([]int64, 0, len(bars))
	var open, high, low, closes, volume []any
	for i, b := range bars {
		ts = append(ts, b.t)
		// Yahoo leaves holes as nulls; keep one to exercise that path.
		if i == len(bars)/2 {
			open, high, low, closes, volume = append(open, nil), append(high, nil), append(low, nil), append(closes, nil), append(volume, nil)
			continue
		}
		open = append(open, b.c-0.5)
		high = append(high, b.c+1)
		low = append(low, b.c-1)
		closes = append(closes, b.c)
		volume = append(volume, 1_000_000+i*1000)
	}

	return map[string]any{
		"chart": map[string]any{
			"result": []any{map[string]any{
				"meta": map[string]any{
					"currency":           "USD",
					"symbol":             symbol,
					"regularMarketPrice": price,
					"previousClose":      prevClose,
					"dataGranularity":    "1d",
				},
				"timestamp": ts,
				"indicators": map[string]any{
					"quote": []any{map[string]any{
						"open": open, "high": high, "low": low, "close": closes, "volume": volume,
					}},
				},
			}},
			"error": nil,
		},
	}
}
