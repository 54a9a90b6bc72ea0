package models

import (
	"bytes"
	"encoding/json"
	"math"
)

// MOptionalFloat is a numeric field that upstream APIs may omit, null out or
// send as a non-number. Anything but a finite JSON number decodes as absent.
type MOptionalFloat struct {
	Value float64
	Valid bool
}

// Float returns a present value.
func Float(v float64) MOptionalFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MOptionalFloat{}
	}
	return MOptionalFloat{Value: v, Valid: true}
}

func (f *MOptionalFloat) UnmarshalJSON(data []byte) error {
	*f = MOptionalFloat{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == 'n' || data[0] == '"' || data[0] == '{' || data[0] == '[' || data[0] == 't' || data[0] == 'f' {
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	*f = Float(v)
	return nil
}

func (f MOptionalFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// MSearchCandidate is one row of a symbol search.
type MSearchCandidate struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// Label is the text shown in the suggestion list and written back to the
// input when the candidate is picked.
func (c MSearchCandidate) Label() string {
	return c.Description + " (" + c.Symbol + ")"
}

type MSearchResponse struct {
	Count  int                `json:"count,omitempty"`
	Result []MSearchCandidate `json:"result"`
	Error  string             `json:"error,omitempty"`
}

// MCompanyProfile mirrors the Finnhub profile2 payload fields the dashboard reads.
type MCompanyProfile struct {
	Name                 string         `json:"name"`
	Ticker               string         `json:"ticker"`
	Exchange             string         `json:"exchange"`
	FinnhubIndustry      string         `json:"finnhubIndustry"`
	MarketCapitalization MOptionalFloat `json:"marketCapitalization"`
	Logo                 string         `json:"logo"`
	Country              string         `json:"country"`
	Currency             string         `json:"currency"`
	WebURL               string         `json:"weburl"`
}

// MQuote mirrors the Finnhub quote payload.
type MQuote struct {
	CurrentPrice  MOptionalFloat `json:"c"`
	Change        MOptionalFloat `json:"d"`
	ChangePercent MOptionalFloat `json:"dp"`
	High          MOptionalFloat `json:"h"`
	Low           MOptionalFloat `json:"l"`
	Open          MOptionalFloat `json:"o"`
	PreviousClose MOptionalFloat `json:"pc"`
	Timestamp     int64          `json:"t"`
}

// MCandle is one daily bar; T is unix seconds.
type MCandle struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

// MNewsItem is a Finnhub market news article.
type MNewsItem struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Image    string `json:"image"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// MIndexSnapshot is the widget view of one market index.
type MIndexSnapshot struct {
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	Change  float64 `json:"change"`
	Percent float64 `json:"percent"`
}

// MMarketSnapshot is served on /api/market and pushed over the websocket.
// Indices that failed to load are nil and encode as null.
type MMarketSnapshot struct {
	Type       string                     `json:"type"`
	Indices    map[string]*MIndexSnapshot `json:"-"`
	MarketOpen bool                       `json:"market_open"`
	Timestamp  int64                      `json:"timestamp"`
}

// MarshalJSON flattens the indices next to the metadata so the payload reads
// {"nasdaq": {...}, "sp500": null, ..., "market_open": true}.
func (m MMarketSnapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Indices)+3)
	for k, v := range m.Indices {
		out[k] = v
	}
	out["type"] = m.Type
	out["market_open"] = m.MarketOpen
	out["timestamp"] = m.Timestamp
	return json.Marshal(out)
}

func (m *MMarketSnapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = MMarketSnapshot{Indices: make(map[string]*MIndexSnapshot)}
	for k, v := range raw {
		var err error
		switch k {
		case "type":
			err = json.Unmarshal(v, &m.Type)
		case "market_open":
			err = json.Unmarshal(v, &m.MarketOpen)
		case "timestamp":
			err = json.Unmarshal(v, &m.Timestamp)
		default:
			var idx *MIndexSnapshot
			err = json.Unmarshal(v, &idx)
			m.Indices[k] = idx
		}
		if err != nil {
			return err
		}
	}
	return nil
}
