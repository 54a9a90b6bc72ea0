package utils

import (
	"log"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// indexMICs maps index symbols to the exchange whose session they follow.
var indexMICs = map[string]string{
	"^IXIC":  "xnas",
	"^NDX":   "xnas",
	"^GSPC":  "xnys",
	"^DJI":   "xnys",
	"^RUT":   "xnys",
	"^FTSE":  "xlon",
	"^GDAXI": "xfra",
	"^FCHI":  "xpar",
	"^N225":  "xtks",
	"^HSI":   "xhkg",
}

// suffixMICs maps Yahoo ticker suffixes to ISO 10383 MIC codes.
var suffixMICs = map[string]string{
	".L":  "xlon",
	".PA": "xpar",
	".DE": "xfra",
	".AS": "xams",
	".MI": "xmil",
	".MC": "xmad",
	".SW": "xswx",
	".TO": "xtse",
	".T":  "xtks",
	".HK": "xhkg",
	".AX": "xasx",
}

// TradingCalendar answers whether the exchange behind a symbol is in session.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// MICForSymbol resolves the exchange for a symbol, defaulting to NYSE.
func MICForSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if mic, ok := indexMICs[symbol]; ok {
		return mic
	}
	if i := strings.LastIndex(symbol, "."); i > 0 {
		if mic, ok := suffixMICs[symbol[i:]]; ok {
			return mic
		}
	}
	return "xnys"
}

// -----------------------------------------------------------------------------

func GetCalendar(symbol string) *TradingCalendar {
	mic := MICForSymbol(symbol)

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		mic = "xnys"
		cal = calendar.GetCalendar(mic)
	}

	if cal == nil {
		log.Printf("WARNING: no calendar for %s; using Mon-Fri 09:30-16:00 New York", symbol)
		nyLoc, err := time.LoadLocation("America/New_York")
		if err != nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{MIC: mic, Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenAt checks if the market is in its regular session at t.
func (tc *TradingCalendar) IsOpenAt(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		minutes := t.Hour()*60 + t.Minute()
		return minutes >= 9*60+30 && minutes < 16*60
	}

	return tc.Calendar.IsOpen(t)
}
