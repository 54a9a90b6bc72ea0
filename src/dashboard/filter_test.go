package dashboard

import (
	"fmt"
	"reflect"
	"testing"

	"stock-dashboard/src/models"
)

func TestFilterCandidatesExclusions(t *testing.T) {
	tests := []struct {
		name string
		in   models.MSearchCandidate
		keep bool
	}{
		{"common stock", models.MSearchCandidate{Symbol: "AAPL", Description: "APPLE INC", Type: "Common Stock"}, true},
		{"etf", models.MSearchCandidate{Symbol: "SPY", Description: "SPDR S&P 500", Type: "ETF"}, true},
		{"missing type", models.MSearchCandidate{Symbol: "MSFT", Description: "MICROSOFT"}, true},
		{"dotted symbol", models.MSearchCandidate{Symbol: "BRK.A", Description: "BERKSHIRE", Type: "Common Stock"}, false},
		{"f suffix", models.MSearchCandidate{Symbol: "XOMF", Description: "EXXON", Type: "Common Stock"}, false},
		{"otc mining", models.MSearchCandidate{Symbol: "ACME", Description: "ACME OTC MINING", Type: "Common Stock"}, false},
		{"pink sheet lower case", models.MSearchCandidate{Symbol: "PNK", Description: "some pink sheet co", Type: "ADR"}, false},
		{"exploration", models.MSearchCandidate{Symbol: "EXP", Description: "Gold Exploration Ltd", Type: "Common Stock"}, false},
		{"warrant", models.MSearchCandidate{Symbol: "ABCW", Description: "ABC WARRANT", Type: "Warrant"}, false},
		{"mutual fund", models.MSearchCandidate{Symbol: "VFIAX", Description: "VANGUARD 500", Type: "Mutual Fund"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterCandidates([]models.MSearchCandidate{tt.in})
			if kept := len(got) == 1; kept != tt.keep {
				t.Errorf("FilterCandidates(%+v) kept = %v, want %v", tt.in, kept, tt.keep)
			}
		})
	}
}

func TestFilterCandidatesCapsAndPreservesOrder(t *testing.T) {
	var in []models.MSearchCandidate
	for i := 0; i < 25; i++ {
		in = append(in, models.MSearchCandidate{Symbol: fmt.Sprintf("S%02d", i), Description: "CO", Type: "Common Stock"})
		in = append(in, models.MSearchCandidate{Symbol: fmt.Sprintf("X%02d.L", i), Description: "FOREIGN", Type: "Common Stock"})
	}

	got := FilterCandidates(in)
	if len(got) != MaxSuggestions {
		t.Fatalf("len = %d, want %d", len(got), MaxSuggestions)
	}
	for i, c := range got {
		if want := fmt.Sprintf("S%02d", i); c.Symbol != want {
			t.Errorf("got[%d] = %s, want %s", i, c.Symbol, want)
		}
	}

	if again := FilterCandidates(got); !reflect.DeepEqual(again, got) {
		t.Errorf("filter is not idempotent: %v != %v", again, got)
	}
}

func TestFilterCandidatesEmpty(t *testing.T) {
	if got := FilterCandidates(nil); len(got) != 0 {
		t.Errorf("FilterCandidates(nil) = %v", got)
	}
}
