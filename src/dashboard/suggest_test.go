package dashboard

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/models"
)

const testDelay = 20 * time.Millisecond

func newSuggestController(api *fakeAPI) (*SuggestionController, *fakeView) {
	view := &fakeView{}
	c := NewSuggestionController(context.Background(), api, view, NewViewState(), NewMachine(nil), testLogger())
	c.Delay = testDelay
	return c, view
}

func TestDefaultDebounce(t *testing.T) {
	if DefaultDebounce != 300*time.Millisecond {
		t.Errorf("DefaultDebounce = %v", DefaultDebounce)
	}
}

func TestTypingTwoLettersShowsFilteredSuggestion(t *testing.T) {
	api := &fakeAPI{
		search: func(context.Context, string) ([]models.MSearchCandidate, error) {
			return []models.MSearchCandidate{{Symbol: "AAPL", Description: "Apple Inc", Type: "Common Stock"}}, nil
		},
	}
	view := &fakeView{}
	renderer := &fakeRenderer{}
	cfg := &models.MConfig{}
	cfg.Client.DebounceMillis = int(testDelay / time.Millisecond)
	d := New(cfg, api, newFakeStore(), view, renderer, nil, testLogger())
	defer d.Close()

	d.OnInput("AA")
	waitFor(t, "suggestions", func() bool { _, ok := view.lastSuggestions(); return ok })

	items, _ := view.lastSuggestions()
	if len(items) != 1 || items[0].Label() != "Apple Inc (AAPL)" {
		t.Fatalf("suggestions = %+v", items)
	}
	if calls := api.callList(); len(calls) != 1 || calls[0] != "search:AA" {
		t.Errorf("calls = %v", calls)
	}

	d.Suggest.Select(items[0])
	d.Wait()

	want := map[string]bool{"profile:AAPL": true, "quote:AAPL": true, "candles:AAPL": true}
	for _, c := range api.callList()[1:] {
		delete(want, c)
	}
	if len(want) != 0 {
		t.Errorf("missing requests %v in %v", want, api.callList())
	}
	if view.input != "Apple Inc (AAPL)" {
		t.Errorf("input = %q", view.input)
	}
	if shown := view.shown(); len(shown) != 1 || shown[0].Symbol != "AAPL" {
		t.Errorf("shown = %+v", shown)
	}
}

func TestDebounceCoalescesKeystrokes(t *testing.T) {
	api := &fakeAPI{}
	c, view := newSuggestController(api)
	defer c.Close()

	c.OnInput("AP")
	c.OnInput("APP")
	c.OnInput("APPL")
	waitFor(t, "suggestions", func() bool { _, ok := view.lastSuggestions(); return ok })

	if calls := api.callList(); len(calls) != 1 || calls[0] != "search:APPL" {
		t.Errorf("calls = %v, want one search for APPL", calls)
	}
}

func TestNewSearchAbortsPrevious(t *testing.T) {
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	var firstAborted bool

	api := &fakeAPI{}
	api.search = func(ctx context.Context, q string) ([]models.MSearchCandidate, error) {
		if q == "AP" {
			started <- struct{}{}
			<-ctx.Done()
			mu.Lock()
			firstAborted = true
			mu.Unlock()
			// A transport that ignores cancellation still gets discarded.
			return []models.MSearchCandidate{{Symbol: "STALE", Type: "Common Stock"}}, nil
		}
		return []models.MSearchCandidate{{Symbol: "APP", Description: "AppLovin", Type: "Common Stock"}}, nil
	}
	c, view := newSuggestController(api)
	defer c.Close()

	c.OnInput("AP")
	<-started
	c.OnInput("APP")
	waitFor(t, "second results", func() bool { _, ok := view.lastSuggestions(); return ok })
	waitFor(t, "first search aborted", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstAborted
	})
	time.Sleep(2 * testDelay)

	view.mu.Lock()
	defer view.mu.Unlock()
	for _, list := range view.suggestions {
		for _, item := range list {
			if item.Symbol == "STALE" {
				t.Fatal("stale results reached the suggestion list")
			}
		}
	}
	if len(view.suggestions) != 1 || view.suggestions[0][0].Symbol != "APP" {
		t.Errorf("suggestions = %+v", view.suggestions)
	}
}

func TestSearchTokenAdvancesPerSearch(t *testing.T) {
	api := &fakeAPI{search: func(context.Context, string) ([]models.MSearchCandidate, error) {
		return []models.MSearchCandidate{{Symbol: "AAPL", Type: "Common Stock"}}, nil
	}}
	c, view := newSuggestController(api)
	defer c.Close()

	c.OnInput("ap")
	waitFor(t, "first results", func() bool { _, ok := view.lastSuggestions(); return ok })
	first := c.State.Active().PendingSearchToken

	c.OnInput("apple")
	waitFor(t, "second search", func() bool { return c.State.Active().PendingSearchToken > first })
	if c.State.isCurrentSearch(first) {
		t.Error("older search token still current")
	}
}

func TestShortInputClearsWithoutSearching(t *testing.T) {
	api := &fakeAPI{}
	c, view := newSuggestController(api)
	defer c.Close()

	c.OnInput("AA")
	c.OnInput("A")
	time.Sleep(3 * testDelay)

	if calls := api.callList(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
	if _, ok := view.lastSuggestions(); ok {
		t.Error("suggestions shown for a short query")
	}
	if view.open {
		t.Error("suggestion list left open")
	}
}

func TestSearchFailureShowsMessage(t *testing.T) {
	api := &fakeAPI{
		search: func(context.Context, string) ([]models.MSearchCandidate, error) {
			return nil, helpers.NewTransportError("search", http.StatusInternalServerError, nil)
		},
	}
	c, view := newSuggestController(api)
	defer c.Close()

	c.OnInput("GOOG")
	waitFor(t, "message", func() bool { return view.lastMessage() != "" })

	if msg := view.lastMessage(); msg != SuggestionsUnavailable {
		t.Errorf("message = %q", msg)
	}
	if _, ok := view.lastSuggestions(); ok {
		t.Error("suggestions shown after failure")
	}
	if c.Machine.State() != StateError {
		t.Errorf("state = %s", c.Machine.State())
	}
}

func TestEmptyFilteredResultShowsNoResults(t *testing.T) {
	api := &fakeAPI{
		search: func(context.Context, string) ([]models.MSearchCandidate, error) {
			return []models.MSearchCandidate{{Symbol: "BRK.A", Type: "Common Stock"}}, nil
		},
	}
	c, view := newSuggestController(api)
	defer c.Close()

	c.OnInput("BRK")
	waitFor(t, "suggestions", func() bool { _, ok := view.lastSuggestions(); return ok })
	if items, _ := view.lastSuggestions(); len(items) != 0 {
		t.Errorf("items = %+v, want none", items)
	}
}

func TestKeyboardNavigation(t *testing.T) {
	api := &fakeAPI{
		search: func(context.Context, string) ([]models.MSearchCandidate, error) {
			return []models.MSearchCandidate{
				{Symbol: "AAA", Type: "ETF"},
				{Symbol: "BBB", Type: "ETF"},
				{Symbol: "CCC", Type: "ETF"},
			}, nil
		},
	}
	c, view := newSuggestController(api)
	defer c.Close()

	var selected string
	c.OnSelect = func(s string) { selected = s }

	c.OnInput("ETF")
	waitFor(t, "suggestions", func() bool { _, ok := view.lastSuggestions(); return ok })

	keys := []Key{KeyDown, KeyDown, KeyDown, KeyDown, KeyUp, KeyUp}
	want := []int{0, 1, 2, 0, 2, 1}
	for i, k := range keys {
		c.OnKey(k)
		view.mu.Lock()
		got := view.active[len(view.active)-1]
		view.mu.Unlock()
		if got != want[i] {
			t.Fatalf("after key %d active = %d, want %d", i, got, want[i])
		}
	}

	c.OnKey(KeyEnter)
	if selected != "BBB" {
		t.Errorf("selected = %q, want BBB", selected)
	}
	if c.State.Selected() != "BBB" {
		t.Errorf("state selection = %q", c.State.Selected())
	}
}

func TestEnterWithoutSelectionSubmitsInput(t *testing.T) {
	c, _ := newSuggestController(&fakeAPI{})
	defer c.Close()

	var submitted string
	c.OnSubmit = func(s string) { submitted = s }

	c.OnInput("tsla")
	c.OnKey(KeyEnter)
	if submitted != "tsla" {
		t.Errorf("submitted = %q", submitted)
	}
}

func TestEscapeAbortsInFlightSearch(t *testing.T) {
	started := make(chan struct{}, 1)
	aborted := make(chan struct{})
	api := &fakeAPI{
		search: func(ctx context.Context, _ string) ([]models.MSearchCandidate, error) {
			started <- struct{}{}
			<-ctx.Done()
			close(aborted)
			return nil, helpers.NewTransportError("search", 0, ctx.Err())
		},
	}
	c, view := newSuggestController(api)
	defer c.Close()

	c.OnInput("MSFT")
	<-started
	c.OnKey(KeyEscape)

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("search was not aborted")
	}
	time.Sleep(testDelay)
	if msg := view.lastMessage(); msg != "" {
		t.Errorf("aborted search surfaced %q", msg)
	}
}
