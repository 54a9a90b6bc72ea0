package dashboard

import (
	"sync"

	"stock-dashboard/src/models"
)

// ActiveQuery identifies the current search and data batch. A token is
// current only while it equals the value stored here; issuing a new one
// invalidates every older token.
type ActiveQuery struct {
	CurrentSymbol      string
	PendingSearchToken uint64
	PendingDataToken   uint64
}

// StateReader is the read-only view of the session handed to anything that
// only redraws (chart option changes, theme switches, wishlist affordance).
type StateReader interface {
	Active() ActiveQuery
	Displayed() (symbol string, series []models.MCandle)
	Selected() string
}

// ViewState is the per-page session: the selected suggestion, the displayed
// symbol and its price history, and the live request tokens. Only the
// controllers that own a token may write the fields it guards.
type ViewState struct {
	mu sync.Mutex

	selected    string
	symbol      string
	series      []models.MCandle
	searchToken uint64
	dataToken   uint64
}

// -----------------------------------------------------------------------------

func NewViewState() *ViewState {
	return &ViewState{}
}

// -----------------------------------------------------------------------------

func (s *ViewState) Active() ActiveQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ActiveQuery{CurrentSymbol: s.symbol, PendingSearchToken: s.searchToken, PendingDataToken: s.dataToken}
}

// -----------------------------------------------------------------------------

// Displayed returns the symbol and series of the last committed fetch.
func (s *ViewState) Displayed() (string, []models.MCandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbol, s.series
}

// -----------------------------------------------------------------------------

func (s *ViewState) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// -----------------------------------------------------------------------------

func (s *ViewState) setSelected(symbol string) {
	s.mu.Lock()
	s.selected = symbol
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (s *ViewState) nextSearchToken() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchToken++
	return s.searchToken
}

// isCurrentSearch reports whether token is still the latest search.
func (s *ViewState) isCurrentSearch(token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return token == s.searchToken
}

// -----------------------------------------------------------------------------

// beginData issues a new data token, forgets the displayed data and runs
// reset, so a chart option change during the fetch has nothing stale to redraw.
func (s *ViewState) beginData(reset func()) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataToken++
	s.symbol = ""
	s.series = nil
	if reset != nil {
		reset()
	}
	return s.dataToken
}

// -----------------------------------------------------------------------------

// commitData runs apply and records symbol and series if token is still the
// current data token. apply runs under the session lock so no newer batch
// can interleave with the display update.
func (s *ViewState) commitData(token uint64, symbol string, series []models.MCandle, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.dataToken {
		return false
	}
	s.symbol = symbol
	s.series = series
	if apply != nil {
		apply()
	}
	return true
}

// -----------------------------------------------------------------------------

// finishData runs fn if token is still the live data token.
func (s *ViewState) finishData(token uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.dataToken {
		return false
	}
	fn()
	return true
}

// -----------------------------------------------------------------------------

// redraw runs fn with the displayed data while holding the session, so it
// cannot interleave with a commit.
func (s *ViewState) redraw(fn func(symbol string, series []models.MCandle)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.symbol, s.series)
}
