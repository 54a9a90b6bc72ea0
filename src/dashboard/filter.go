package dashboard

import (
	"strings"

	"stock-dashboard/src/models"
)

// MaxSuggestions caps the suggestion list.
const MaxSuggestions = 10

var validTypes = map[string]bool{
	"COMMON STOCK": true,
	"ETF":          true,
	"ADR":          true,
	"MUTUAL FUND":  true,
}

var excludedKeywords = []string{"OTC", "PINK SHEET", "EXPLORATION", "MINING"}

// -----------------------------------------------------------------------------

// FilterCandidates keeps listed equities and funds from a raw search result,
// in source order, and returns at most MaxSuggestions of them. Foreign
// listings (dotted symbols), F-suffixed OTC tickers and OTC or resource
// shells are dropped.
func FilterCandidates(in []models.MSearchCandidate) []models.MSearchCandidate {
	out := make([]models.MSearchCandidate, 0, MaxSuggestions)
	for _, c := range in {
		if len(out) == MaxSuggestions {
			break
		}
		if keepCandidate(c) {
			out = append(out, c)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

func keepCandidate(c models.MSearchCandidate) bool {
	if strings.Contains(c.Symbol, ".") || strings.HasSuffix(c.Symbol, "F") {
		return false
	}
	if t := strings.ToUpper(c.Type); t != "" && !validTypes[t] {
		return false
	}
	desc := strings.ToUpper(c.Description)
	for _, kw := range excludedKeywords {
		if strings.Contains(desc, kw) {
			return false
		}
	}
	return true
}
