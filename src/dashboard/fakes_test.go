package dashboard

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

func testLogger() *logger.Logger {
	return logger.NewLoggerWithWriter(nil, "test", io.Discard)
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// -----------------------------------------------------------------------------

type affordance struct {
	symbol  string
	visible bool
	filled  bool
}

type fakeView struct {
	mu           sync.Mutex
	suggestions  [][]models.MSearchCandidate
	active       []int
	open         bool
	hidden       int
	input        string
	messages     []string
	errorMessage bool
	data         []DisplayModel
	cleared      int
	loading      bool
	affordance   affordance
	states       []State
}

func (v *fakeView) ShowSuggestions(items []models.MSearchCandidate, active int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.suggestions = append(v.suggestions, append([]models.MSearchCandidate(nil), items...))
	v.active = append(v.active, active)
	v.open = true
}

func (v *fakeView) HideSuggestions() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.open = false
	v.hidden++
}

func (v *fakeView) SetSearching(bool) {}

func (v *fakeView) SetInputText(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.input = text
}

func (v *fakeView) ShowMessage(text string, isError bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = append(v.messages, text)
	v.errorMessage = isError
}

func (v *fakeView) ClearMessage() {}

func (v *fakeView) SetLoading(busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = busy
}

func (v *fakeView) ClearData() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cleared++
}

func (v *fakeView) ShowData(m DisplayModel) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data = append(v.data, m)
}

func (v *fakeView) SetWishlistAffordance(symbol string, visible, filled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.affordance = affordance{symbol: symbol, visible: visible, filled: filled}
}

func (v *fakeView) SetState(s State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.states = append(v.states, s)
}

func (v *fakeView) lastSuggestions() ([]models.MSearchCandidate, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.suggestions) == 0 {
		return nil, false
	}
	return v.suggestions[len(v.suggestions)-1], true
}

func (v *fakeView) lastMessage() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.messages) == 0 {
		return ""
	}
	return v.messages[len(v.messages)-1]
}

func (v *fakeView) shown() []DisplayModel {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]DisplayModel(nil), v.data...)
}

func (v *fakeView) currentAffordance() affordance {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.affordance
}

// -----------------------------------------------------------------------------

type fakeHandle struct {
	r      *fakeRenderer
	spec   ChartSpec
	colors []ThemeColors
}

func (h *fakeHandle) ApplyTheme(c ThemeColors) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.colors = append(h.colors, c)
}

func (h *fakeHandle) Destroy() {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.r.destroyed++
	h.r.live--
}

type fakeRenderer struct {
	mu        sync.Mutex
	rendered  []ChartSpec
	handles   []*fakeHandle
	destroyed int
	live      int
}

func (r *fakeRenderer) Render(spec ChartSpec) (ChartHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := &fakeHandle{r: r, spec: spec}
	r.rendered = append(r.rendered, spec)
	r.handles = append(r.handles, h)
	r.live++
	return h, nil
}

func (r *fakeRenderer) counts() (rendered, destroyed, live int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rendered), r.destroyed, r.live
}

// -----------------------------------------------------------------------------

type fakeAPI struct {
	mu      sync.Mutex
	calls   []string
	search  func(ctx context.Context, q string) ([]models.MSearchCandidate, error)
	profile func(ctx context.Context, s string) (*models.MCompanyProfile, error)
	quote   func(ctx context.Context, s string) (*models.MQuote, error)
	candles func(ctx context.Context, s string) ([]models.MCandle, error)
}

func (a *fakeAPI) record(call string) {
	a.mu.Lock()
	a.calls = append(a.calls, call)
	a.mu.Unlock()
}

func (a *fakeAPI) callList() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeAPI) Search(ctx context.Context, q string) ([]models.MSearchCandidate, error) {
	a.record("search:" + q)
	if a.search == nil {
		return nil, nil
	}
	return a.search(ctx, q)
}

func (a *fakeAPI) Profile(ctx context.Context, s string) (*models.MCompanyProfile, error) {
	a.record("profile:" + s)
	if a.profile == nil {
		return &models.MCompanyProfile{Name: s + " Inc", Exchange: "NASDAQ", FinnhubIndustry: "Technology"}, nil
	}
	return a.profile(ctx, s)
}

func (a *fakeAPI) Quote(ctx context.Context, s string) (*models.MQuote, error) {
	a.record("quote:" + s)
	if a.quote == nil {
		return &models.MQuote{CurrentPrice: models.Float(100), Change: models.Float(1), ChangePercent: models.Float(1)}, nil
	}
	return a.quote(ctx, s)
}

func (a *fakeAPI) Candles(ctx context.Context, s string) ([]models.MCandle, error) {
	a.record("candles:" + s)
	if a.candles == nil {
		return []models.MCandle{{T: 1704067200, C: 100}, {T: 1704153600, C: 101}}, nil
	}
	return a.candles(ctx, s)
}

// -----------------------------------------------------------------------------

type fakeStore struct {
	mu       sync.Mutex
	rows     map[string]models.MWishlistEntry
	nextID   int64
	listErr  error
	addErr   error
	delErr   error
	session  *models.MSession
	addCalls int
	delCalls int
}

func newFakeStore(symbols ...string) *fakeStore {
	s := &fakeStore{
		rows:    make(map[string]models.MWishlistEntry),
		session: &models.MSession{AccessToken: "token", User: models.MUser{ID: "u1", Email: "a@b.c"}},
	}
	for _, sym := range symbols {
		s.nextID++
		s.rows[sym] = models.MWishlistEntry{ID: s.nextID, TickerSymbol: sym, CreatedAt: time.Unix(s.nextID, 0)}
	}
	return s
}

func (s *fakeStore) GetSession(context.Context) (*models.MSession, error) {
	return s.session, nil
}

func (s *fakeStore) ListWishlist(context.Context) ([]models.MWishlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.MWishlistEntry, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) AddWishlist(_ context.Context, symbol string) (*models.MWishlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCalls++
	if s.addErr != nil {
		return nil, s.addErr
	}
	if _, ok := s.rows[symbol]; ok {
		return nil, helpers.ErrDuplicate
	}
	s.nextID++
	e := models.MWishlistEntry{ID: s.nextID, TickerSymbol: symbol, CreatedAt: time.Unix(s.nextID, 0)}
	s.rows[symbol] = e
	return &e, nil
}

func (s *fakeStore) RemoveWishlist(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delCalls++
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.rows, symbol)
	return nil
}
