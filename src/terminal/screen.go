package terminal

import (
	"sync"

	"stock-dashboard/src/dashboard"
	"stock-dashboard/src/models"
)

// Frame is a copy of everything on screen at one instant.
type Frame struct {
	Suggestions []models.MSearchCandidate
	SuggestOpen bool
	Active      int
	Searching   bool

	Message      string
	MessageError bool

	Loading bool
	Data    *dashboard.DisplayModel

	WishSymbol  string
	WishVisible bool
	WishFilled  bool

	State  dashboard.State
	Chart  *dashboard.ChartSpec
	Market *models.MMarketSnapshot

	ShowRows bool
	Rows     []dashboard.WishlistRow

	News *dashboard.NewsFeed
}

// -----------------------------------------------------------------------------

// Screen is the dashboard.View of the terminal client. Controllers write to it
// from their own goroutines; the bubbletea model reads a Frame after each
// change notification.
type Screen struct {
	mu    sync.Mutex
	frame Frame
	chart *chartHandle

	input    string
	inputSet bool

	changed chan struct{}
}

var _ dashboard.View = (*Screen)(nil)

// -----------------------------------------------------------------------------

func NewScreen() *Screen {
	return &Screen{
		frame:   Frame{Active: -1},
		changed: make(chan struct{}, 1),
	}
}

// -----------------------------------------------------------------------------

// Changed fires at least once after any number of updates.
func (s *Screen) Changed() <-chan struct{} {
	return s.changed
}

func (s *Screen) touch() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Screen) update(fn func(f *Frame)) {
	s.mu.Lock()
	fn(&s.frame)
	s.mu.Unlock()
	s.touch()
}

// -----------------------------------------------------------------------------

// Snapshot returns the current frame. Slices are copied.
func (s *Screen) Snapshot() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.frame
	f.Suggestions = append([]models.MSearchCandidate(nil), s.frame.Suggestions...)
	f.Rows = append([]dashboard.WishlistRow(nil), s.frame.Rows...)
	if s.frame.Data != nil {
		d := *s.frame.Data
		f.Data = &d
	}
	if s.frame.News != nil {
		n := *s.frame.News
		n.Side = append([]models.MNewsItem(nil), s.frame.News.Side...)
		f.News = &n
	}
	if s.chart != nil {
		spec := s.chart.spec
		f.Chart = &spec
	}
	return f
}

// -----------------------------------------------------------------------------

// TakeInput returns text written by a controller since the last call.
func (s *Screen) TakeInput() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.input, s.inputSet
	s.inputSet = false
	return text, ok
}

// -----------------------------------------------------------------------------
// dashboard.View
// -----------------------------------------------------------------------------

func (s *Screen) ShowSuggestions(items []models.MSearchCandidate, active int) {
	s.update(func(f *Frame) {
		f.Suggestions = append([]models.MSearchCandidate(nil), items...)
		f.SuggestOpen = true
		f.Active = active
	})
}

func (s *Screen) HideSuggestions() {
	s.update(func(f *Frame) {
		f.Suggestions = nil
		f.SuggestOpen = false
		f.Active = -1
	})
}

func (s *Screen) SetSearching(busy bool) {
	s.update(func(f *Frame) { f.Searching = busy })
}

func (s *Screen) SetInputText(text string) {
	s.mu.Lock()
	s.input, s.inputSet = text, true
	s.mu.Unlock()
	s.touch()
}

func (s *Screen) ShowMessage(text string, isError bool) {
	s.update(func(f *Frame) { f.Message, f.MessageError = text, isError })
}

func (s *Screen) ClearMessage() {
	s.update(func(f *Frame) { f.Message, f.MessageError = "", false })
}

func (s *Screen) SetLoading(busy bool) {
	s.update(func(f *Frame) { f.Loading = busy })
}

func (s *Screen) ClearData() {
	s.update(func(f *Frame) { f.Data = nil })
}

func (s *Screen) ShowData(m dashboard.DisplayModel) {
	s.update(func(f *Frame) { f.Data = &m })
}

func (s *Screen) SetWishlistAffordance(symbol string, visible, filled bool) {
	s.update(func(f *Frame) {
		f.WishSymbol, f.WishVisible, f.WishFilled = symbol, visible, filled
	})
}

func (s *Screen) SetState(st dashboard.State) {
	s.update(func(f *Frame) { f.State = st })
}

// -----------------------------------------------------------------------------
// Extras outside the controller contract
// -----------------------------------------------------------------------------

// SetMarket shows the latest market snapshot in the header.
func (s *Screen) SetMarket(snap *models.MMarketSnapshot) {
	s.update(func(f *Frame) { f.Market = snap })
}

// SetWishlistRows fills the wishlist panel; nil hides it.
func (s *Screen) SetWishlistRows(rows []dashboard.WishlistRow) {
	s.update(func(f *Frame) { f.Rows, f.ShowRows = rows, rows != nil })
}

// SetNews replaces the front page news block.
func (s *Screen) SetNews(feed dashboard.NewsFeed) {
	s.update(func(f *Frame) { f.News = &feed })
}
