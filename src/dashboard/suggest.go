package dashboard

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// DefaultDebounce is the pause after the last keystroke before searching.
const DefaultDebounce = 300 * time.Millisecond

// MinQueryLength is the shortest query that triggers a search.
const MinQueryLength = 2

// SuggestionsUnavailable is shown when a search request fails.
const SuggestionsUnavailable = "Could not fetch suggestions. Please try again later."

// Key is a navigation key routed to the suggestion list.
type Key int

const (
	KeyDown Key = iota
	KeyUp
	KeyEnter
	KeyEscape
)

// SuggestionController turns keystrokes into a filtered suggestion list. At
// most one debounce timer and one search request are live; starting either
// cancels its predecessor first.
type SuggestionController struct {
	API     interfaces.IMarketAPI
	View    View
	State   *ViewState
	Machine *Machine
	Logger  *logger.Logger
	Delay   time.Duration

	// OnSelect is called with the symbol of a committed suggestion.
	OnSelect func(symbol string)
	// OnSubmit is called with the raw input when Enter has nothing to commit.
	OnSubmit func(input string)

	ctx context.Context

	mu       sync.Mutex
	text     string
	items    []models.MSearchCandidate
	open     bool
	active   int
	timer    *time.Timer
	timerGen uint64
	cancel   context.CancelFunc
}

// -----------------------------------------------------------------------------

// NewSuggestionController creates a controller whose searches are children of ctx.
func NewSuggestionController(ctx context.Context, api interfaces.IMarketAPI, view View, state *ViewState, machine *Machine, log *logger.Logger) *SuggestionController {
	return &SuggestionController{
		API:     api,
		View:    view,
		State:   state,
		Machine: machine,
		Logger:  log,
		Delay:   DefaultDebounce,
		ctx:     ctx,
		active:  -1,
	}
}

// -----------------------------------------------------------------------------

// Text returns the current input.
func (c *SuggestionController) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// -----------------------------------------------------------------------------

// OnInput handles one keystroke. Short queries close the list at once;
// longer ones restart the debounce timer.
func (c *SuggestionController) OnInput(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.text = raw
	c.State.setSelected("")
	c.View.ClearMessage()
	c.stopTimerLocked()

	query := strings.TrimSpace(raw)
	if utf8.RuneCountInString(query) < MinQueryLength {
		c.abortLocked()
		c.closeLocked()
		c.fire(EventDismiss)
		return
	}

	c.View.SetSearching(true)
	c.fire(EventInput)

	c.timerGen++
	gen := c.timerGen
	c.timer = time.AfterFunc(c.Delay, func() { c.search(gen, query) })
}

// -----------------------------------------------------------------------------

// search runs when the debounce timer for gen fires.
func (c *SuggestionController) search(gen uint64, query string) {
	c.mu.Lock()
	if gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.abortLocked()
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel
	token := c.State.nextSearchToken()
	c.mu.Unlock()

	results, err := c.API.Search(ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer search, Escape or a selection aborted this one.
	if ctx.Err() != nil || !c.State.isCurrentSearch(token) {
		cancel()
		return
	}
	c.cancel = nil
	cancel()

	if err != nil {
		if helpers.IsCancellation(err) {
			return
		}
		c.Logger.Warning("Search API error for %q: %v", query, err)
		c.closeLocked()
		c.View.ShowMessage(SuggestionsUnavailable, true)
		c.fire(EventSuggestionsFailed)
		return
	}

	c.items = FilterCandidates(results)
	c.active = -1
	c.open = true
	c.View.SetSearching(false)
	c.View.ShowSuggestions(c.items, c.active)
	c.fire(EventSuggestions)
}

// -----------------------------------------------------------------------------

// OnKey handles list navigation.
func (c *SuggestionController) OnKey(k Key) {
	c.mu.Lock()

	n := len(c.items)
	switch k {
	case KeyDown:
		if c.open && n > 0 {
			c.active = (c.active + 1) % n
			c.View.ShowSuggestions(c.items, c.active)
		}
		c.mu.Unlock()

	case KeyUp:
		if c.open && n > 0 {
			if c.active < 0 {
				c.active = n - 1
			} else {
				c.active = (c.active - 1 + n) % n
			}
			c.View.ShowSuggestions(c.items, c.active)
		}
		c.mu.Unlock()

	case KeyEnter:
		if c.open && c.active >= 0 && c.active < n {
			cand := c.items[c.active]
			c.mu.Unlock()
			c.Select(cand)
			return
		}
		c.dismissLocked()
		text := c.text
		c.mu.Unlock()
		if c.OnSubmit != nil {
			c.OnSubmit(text)
		}

	case KeyEscape:
		c.dismissLocked()
		c.mu.Unlock()

	default:
		c.mu.Unlock()
	}
}

// -----------------------------------------------------------------------------

// Select commits a candidate: the input shows its label, the list closes and
// the symbol is handed to OnSelect.
func (c *SuggestionController) Select(cand models.MSearchCandidate) {
	c.mu.Lock()
	c.dismissLocked()
	c.text = cand.Label()
	c.View.SetInputText(c.text)
	c.State.setSelected(cand.Symbol)
	c.mu.Unlock()

	if c.OnSelect != nil {
		c.OnSelect(cand.Symbol)
	}
}

// -----------------------------------------------------------------------------

// Close stops the timer and aborts any search.
func (c *SuggestionController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.abortLocked()
}

// -----------------------------------------------------------------------------

func (c *SuggestionController) dismissLocked() {
	c.stopTimerLocked()
	c.abortLocked()
	c.closeLocked()
	c.fire(EventDismiss)
}

// -----------------------------------------------------------------------------

func (c *SuggestionController) stopTimerLocked() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// -----------------------------------------------------------------------------

func (c *SuggestionController) abortLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// -----------------------------------------------------------------------------

func (c *SuggestionController) closeLocked() {
	c.items = nil
	c.open = false
	c.active = -1
	c.View.HideSuggestions()
	c.View.SetSearching(false)
}

// -----------------------------------------------------------------------------

func (c *SuggestionController) fire(ev Event) {
	if _, err := c.Machine.Fire(ev); err != nil {
		c.Logger.Debug("State machine: %v", err)
	}
}
