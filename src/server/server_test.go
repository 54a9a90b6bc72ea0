package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"stock-dashboard/src/auth"
	"stock-dashboard/src/helpers"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeSymbols struct {
	mu       sync.Mutex
	searches []string
	err      error
	profiles map[string]string
}

func (f *fakeSymbols) Search(_ context.Context, q string) ([]models.MSearchCandidate, error) {
	f.mu.Lock()
	f.searches = append(f.searches, q)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []models.MSearchCandidate{{Symbol: "AAPL", Description: "APPLE INC", Type: "Common Stock"}}, nil
}

func (f *fakeSymbols) Profile(_ context.Context, symbol string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if raw, ok := f.profiles[symbol]; ok {
		return json.RawMessage(raw), nil
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeSymbols) Quote(_ context.Context, symbol string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"c":189.84,"pc":188.72}`), nil
}

func (f *fakeSymbols) News(context.Context, string) ([]models.MNewsItem, error) {
	return nil, errors.New("not used")
}

type fakeCharts struct {
	candles []models.MCandle
	err     error
}

func (f *fakeCharts) Candles(context.Context, string) ([]models.MCandle, error) {
	return f.candles, f.err
}

func (f *fakeCharts) IndexSnapshot(context.Context, string) (*models.MIndexSnapshot, error) {
	return nil, errors.New("not used")
}

type fakeNetwork struct {
	contentType string
	body        string
	chunked     bool
	err         error
}

func (f *fakeNetwork) Get(context.Context, string, map[string]string, map[string]string) ([]byte, error) {
	return nil, errors.New("not used")
}

func (f *fakeNetwork) Open(context.Context, string) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	length := int64(len(f.body))
	if f.chunked {
		length = -1
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Type": []string{f.contentType}},
		Body:          io.NopCloser(strings.NewReader(f.body)),
		ContentLength: length,
	}, nil
}

type memStore struct {
	mu      sync.Mutex
	entries map[string][]models.MWishlistEntry
	nextID  int64
	pingErr error
}

func newMemStore() *memStore {
	return &memStore{entries: map[string][]models.MWishlistEntry{}}
}

func (m *memStore) Initialize() error { return nil }

func (m *memStore) List(_ context.Context, userID string) ([]models.MWishlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.MWishlistEntry{}, m.entries[userID]...), nil
}

func (m *memStore) Add(_ context.Context, userID, ticker string) (*models.MWishlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries[userID] {
		if e.TickerSymbol == ticker {
			return nil, helpers.ErrDuplicate
		}
	}
	m.nextID++
	e := models.MWishlistEntry{ID: m.nextID, UserID: userID, TickerSymbol: ticker, CreatedAt: time.Unix(1700000000, 0).UTC()}
	m.entries[userID] = append(m.entries[userID], e)
	return &e, nil
}

func (m *memStore) Remove(_ context.Context, userID, ticker string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[userID][:0]
	for _, e := range m.entries[userID] {
		if e.TickerSymbol != ticker {
			kept = append(kept, e)
		}
	}
	m.entries[userID] = kept
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }
func (m *memStore) Close() error               { return nil }

type fakeMarket struct {
	snapshot *models.MMarketSnapshot
	news     []models.MNewsItem
	newsErr  error
}

func (f *fakeMarket) Snapshot(context.Context) *models.MMarketSnapshot { return f.snapshot }

func (f *fakeMarket) News(context.Context) ([]models.MNewsItem, error) { return f.news, f.newsErr }

// -----------------------------------------------------------------------------

type fixture struct {
	srv     *DashboardServer
	symbols *fakeSymbols
	charts  *fakeCharts
	network *fakeNetwork
	store   *memStore
	market  *fakeMarket
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		symbols: &fakeSymbols{profiles: map[string]string{"AAPL": `{"name":"Apple Inc","exchange":"NASDAQ","ipo":"1980-12-12"}`}},
		charts:  &fakeCharts{},
		network: &fakeNetwork{contentType: "image/png", body: "png-bytes"},
		store:   newMemStore(),
		market: &fakeMarket{snapshot: &models.MMarketSnapshot{
			Type:      "MARKET",
			Indices:   map[string]*models.MIndexSnapshot{"nasdaq": {Symbol: "^IXIC", Price: 100, Change: 1, Percent: 1.01}, "sp500": nil},
			Timestamp: 1700000000,
		}},
	}
	cfg := &models.MConfig{CorsOrigins: []string{"*"}}
	f.srv = NewDashboardServer(cfg, logger.NewLoggerWithWriter(cfg, "test", io.Discard), Dependencies{
		Symbols:  f.symbols,
		Charts:   f.charts,
		Network:  f.network,
		Store:    f.store,
		Verifier: auth.NewStaticVerifier(map[string]string{"good-token": "user-1"}),
		Market:   f.market,
	})
	t.Cleanup(func() { f.srv.Stop(context.Background()) })
	return f
}

func (f *fixture) do(method, target, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

// -----------------------------------------------------------------------------
// Market proxy
// -----------------------------------------------------------------------------

func TestSearchShortQueryIsEmpty(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"", "a", "%20b%20"} {
		w := f.do(http.MethodGet, "/api/search?q="+q, "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("q=%q status %d", q, w.Code)
		}
		var resp models.MSearchResponse
		decode(t, w, &resp)
		if resp.Result == nil || len(resp.Result) != 0 {
			t.Errorf("q=%q result = %#v", q, resp.Result)
		}
	}
	if len(f.symbols.searches) != 0 {
		t.Errorf("upstream called for short queries: %v", f.symbols.searches)
	}
	if got := f.do(http.MethodGet, "/api/search?q=a", "", "").Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestSearchProxiesUpstream(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/search?q=+ap+", "", "")
	var resp models.MSearchResponse
	decode(t, w, &resp)
	if resp.Count != 1 || resp.Result[0].Symbol != "AAPL" {
		t.Errorf("resp = %+v", resp)
	}
	if len(f.symbols.searches) != 1 || f.symbols.searches[0] != "ap" {
		t.Errorf("upstream query = %v", f.symbols.searches)
	}

	f.symbols.err = errors.New("boom")
	w = f.do(http.MethodGet, "/api/search?q=ap", "", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
	decode(t, w, &resp)
	if resp.Error != "Server error" || resp.Result == nil {
		t.Errorf("error resp = %+v", resp)
	}
}

func TestProfilePassesJSONThrough(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/profile?symbol=aapl", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	// Fields the dashboard does not model survive the proxy.
	if !strings.Contains(w.Body.String(), `"ipo":"1980-12-12"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestMissingSymbol(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/profile", "/api/quote?symbol=", "/api/candles?symbol=%20"} {
		w := f.do(http.MethodGet, path, "", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}
}

func TestUpstreamStatusMapping(t *testing.T) {
	f := newFixture(t)

	f.symbols.err = helpers.NewTransportError("upstream", http.StatusTooManyRequests, errors.New("limit"))
	if w := f.do(http.MethodGet, "/api/quote?symbol=AAPL", "", ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("429 mapped to %d", w.Code)
	}

	f.symbols.err = helpers.NewTransportError("upstream", http.StatusInternalServerError, errors.New("down"))
	w := f.do(http.MethodGet, "/api/quote?symbol=AAPL", "", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("500 mapped to %d", w.Code)
	}
	var resp models.MErrorResponse
	decode(t, w, &resp)
	if resp.Error != "Failed to fetch quote" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestCandles(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/candles?symbol=AAPL", "", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty candles = %d %s", w.Code, w.Body.String())
	}

	f.charts.candles = []models.MCandle{{T: 1, C: 10}, {T: 2, C: 11}}
	var candles []models.MCandle
	decode(t, f.do(http.MethodGet, "/api/candles?symbol=AAPL", "", ""), &candles)
	if len(candles) != 2 || candles[1].C != 11 {
		t.Errorf("candles = %+v", candles)
	}

	f.charts.err = helpers.ErrNotFound
	if w := f.do(http.MethodGet, "/api/candles?symbol=ZZZZ", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("not found mapped to %d", w.Code)
	}
}

func TestLogoProxy(t *testing.T) {
	f := newFixture(t)

	if w := f.do(http.MethodGet, "/api/logo", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing url = %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/logo?url=ftp://example.com/a.png", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("ftp url = %d", w.Code)
	}

	w := f.do(http.MethodGet, "/api/logo?url=https://static.example.com/AAPL.png", "", "")
	if w.Code != http.StatusOK || w.Body.String() != "png-bytes" {
		t.Fatalf("logo = %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Type") != "image/png" || w.Header().Get("Cache-Control") == "" {
		t.Errorf("headers = %v", w.Header())
	}

	f.network.chunked = true
	if w := f.do(http.MethodGet, "/api/logo?url=https://static.example.com/AAPL.png", "", ""); w.Code != http.StatusOK || w.Body.String() != "png-bytes" {
		t.Errorf("chunked logo = %d %q", w.Code, w.Body.String())
	}

	f.network.body = strings.Repeat("x", maxLogoBytes+1024)
	w = f.do(http.MethodGet, "/api/logo?url=https://static.example.com/big.png", "", "")
	if w.Code != http.StatusBadGateway || w.Body.Len() > 1024 {
		t.Errorf("oversized chunked logo = %d, %d bytes", w.Code, w.Body.Len())
	}

	f.network.chunked = false
	f.network.body = "<html>login</html>"
	f.network.contentType = "text/html"
	if w := f.do(http.MethodGet, "/api/logo?url=https://static.example.com/page", "", ""); w.Code != http.StatusBadGateway {
		t.Errorf("html logo = %d", w.Code)
	}

	f.network.err = helpers.NewTransportError("upstream", 404, errors.New("gone"))
	w = f.do(http.MethodGet, "/api/logo?url=https://static.example.com/AAPL.png", "", "")
	var resp models.MErrorResponse
	decode(t, w, &resp)
	if w.Code != http.StatusInternalServerError || resp.Error != "Error fetching image." {
		t.Errorf("failed logo = %d %+v", w.Code, resp)
	}
}

func TestMarketAndNews(t *testing.T) {
	f := newFixture(t)

	var raw map[string]json.RawMessage
	decode(t, f.do(http.MethodGet, "/api/market", "", ""), &raw)
	if string(raw["sp500"]) != "null" || raw["nasdaq"] == nil || string(raw["type"]) != `"MARKET"` {
		t.Errorf("market = %v", raw)
	}

	f.market.newsErr = errors.New("down")
	if w := f.do(http.MethodGet, "/api/news", "", ""); w.Code != http.StatusBadGateway {
		t.Errorf("news without cache = %d", w.Code)
	}

	// A stale feed is still served when the refresh fails.
	f.market.news = []models.MNewsItem{{ID: 1, Headline: "old"}}
	w := f.do(http.MethodGet, "/api/news", "", "")
	var items []models.MNewsItem
	decode(t, w, &items)
	if w.Code != http.StatusOK || len(items) != 1 {
		t.Errorf("stale news = %d %+v", w.Code, items)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	var body map[string]interface{}
	decode(t, f.do(http.MethodGet, "/api/health", "", ""), &body)
	if body["status"] != "ok" || body["store"] != "ok" {
		t.Errorf("health = %v", body)
	}

	f.store.pingErr = errors.New("closed")
	decode(t, f.do(http.MethodGet, "/api/health", "", ""), &body)
	if body["store"] != "unavailable" {
		t.Errorf("health with broken store = %v", body)
	}
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/wishlist", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("allow origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Errorf("allow headers = %q", w.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestCORSAllowList(t *testing.T) {
	cfg := &models.MConfig{CorsOrigins: []string{"https://dash.example.com/"}}
	srv := NewDashboardServer(cfg, logger.NewLoggerWithWriter(cfg, "test", io.Discard), Dependencies{Market: &fakeMarket{}})
	defer srv.Stop(context.Background())

	for origin, want := range map[string]string{
		"https://dash.example.com": "https://dash.example.com",
		"https://evil.example.com": "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/market", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("origin %s: allow = %q, want %q", origin, got, want)
		}
	}
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)
	if id := f.do(http.MethodGet, "/api/market", "", "").Header().Get(headerRequestID); len(id) != 36 {
		t.Errorf("generated id = %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/market", nil)
	req.Header.Set(headerRequestID, "trace-123")
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	if got := w.Header().Get(headerRequestID); got != "trace-123" {
		t.Errorf("echoed id = %q", got)
	}
}

// -----------------------------------------------------------------------------
// Wishlist
// -----------------------------------------------------------------------------

func TestWishlistRequiresToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/wishlist", "", "")
	var resp models.MErrorResponse
	decode(t, w, &resp)
	if w.Code != http.StatusUnauthorized || resp.Error != "No token provided. You must be logged in." {
		t.Errorf("no token = %d %q", w.Code, resp.Error)
	}

	w = f.do(http.MethodGet, "/api/wishlist", "bad-token", "")
	decode(t, w, &resp)
	if w.Code != http.StatusUnauthorized || resp.Error != "Invalid or expired token." {
		t.Errorf("bad token = %d %q", w.Code, resp.Error)
	}
}

func TestWishlistLifecycle(t *testing.T) {
	f := newFixture(t)
	const tok = "good-token"

	w := f.do(http.MethodPost, "/api/wishlist", tok, `{"ticker":"aapl"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add = %d %s", w.Code, w.Body.String())
	}
	var added models.MWishlistAddResponse
	decode(t, w, &added)
	if added.Data.TickerSymbol != "AAPL" || added.Message != "Ticker added to wishlist!" {
		t.Errorf("added = %+v", added)
	}

	w = f.do(http.MethodPost, "/api/wishlist", tok, `{"ticker":"AAPL"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate add = %d", w.Code)
	}

	var entries []models.MWishlistEntry
	decode(t, f.do(http.MethodGet, "/api/wishlist", tok, ""), &entries)
	if len(entries) != 1 || entries[0].TickerSymbol != "AAPL" {
		t.Errorf("entries = %+v", entries)
	}
	// user_id never leaves the server.
	if strings.Contains(f.do(http.MethodGet, "/api/wishlist", tok, "").Body.String(), "user-1") {
		t.Error("user id leaked in wishlist response")
	}

	w = f.do(http.MethodDelete, "/api/wishlist", tok, `{"ticker":"AAPL"}`)
	if w.Code != http.StatusOK {
		t.Errorf("remove = %d", w.Code)
	}
	decode(t, f.do(http.MethodGet, "/api/wishlist", tok, ""), &entries)
	if len(entries) != 0 {
		t.Errorf("entries after remove = %+v", entries)
	}
}

func TestWishlistDeleteByQuery(t *testing.T) {
	f := newFixture(t)
	f.store.Add(context.Background(), "user-1", "MSFT")

	if w := f.do(http.MethodDelete, "/api/wishlist?ticker=msft", "good-token", ""); w.Code != http.StatusOK {
		t.Fatalf("remove = %d", w.Code)
	}
	if entries, _ := f.store.List(context.Background(), "user-1"); len(entries) != 0 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestWishlistRejectsBadTicker(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		body string
		want string
	}{
		{`{}`, "Ticker symbol is required."},
		{`{"ticker":"   "}`, "Ticker symbol is required."},
		{`{"ticker":"DROP TABLE"}`, "Invalid ticker symbol."},
		{`{"ticker":"ABCDEFGHIJKLMNOPQRSTU"}`, "Invalid ticker symbol."},
		{`not json`, "Invalid request body."},
	}
	for _, tt := range tests {
		w := f.do(http.MethodPost, "/api/wishlist", "good-token", tt.body)
		var resp models.MErrorResponse
		decode(t, w, &resp)
		if w.Code != http.StatusBadRequest || resp.Error != tt.want {
			t.Errorf("%s: %d %q, want 400 %q", tt.body, w.Code, resp.Error, tt.want)
		}
	}
}

// -----------------------------------------------------------------------------
// WebSocket
// -----------------------------------------------------------------------------

func TestWebSocketBroadcastAndReplay(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	snap := &models.MMarketSnapshot{
		Type:      "MARKET",
		Indices:   map[string]*models.MIndexSnapshot{"dowjones": {Symbol: "^DJI", Price: 39000}},
		Timestamp: 1700000100,
	}
	f.srv.Broadcast(snap)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var got models.MMarketSnapshot
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Timestamp != snap.Timestamp || got.Indices["dowjones"] == nil || got.Indices["dowjones"].Price != 39000 {
		t.Errorf("pushed = %+v", got)
	}

	if err := conn.WriteJSON(map[string]string{"command": "snapshot"}); err != nil {
		t.Fatal(err)
	}
	var replay models.MMarketSnapshot
	if err := conn.ReadJSON(&replay); err != nil {
		t.Fatal(err)
	}
	if replay.Timestamp != snap.Timestamp {
		t.Errorf("replay = %+v", replay)
	}

	if err := conn.WriteJSON(map[string]string{"command": "subscribe"}); err != nil {
		t.Fatal(err)
	}
	var reply models.MErrorResponse
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatal(err)
	}
	if reply.Error != "Unknown command" || reply.Details != "subscribe" {
		t.Errorf("unknown command reply = %+v", reply)
	}

	// Anything that is not JSON ends the subscription.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestBroadcastNilIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.srv.Broadcast(nil)
	var body map[string]interface{}
	decode(t, f.do(http.MethodGet, "/api/health", "", ""), &body)
	if body["latest_update"].(float64) != 0 {
		t.Errorf("latest_update = %v", body["latest_update"])
	}
}
