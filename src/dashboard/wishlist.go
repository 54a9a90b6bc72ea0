package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"

	"golang.org/x/sync/errgroup"
)

// detailConcurrency bounds the profile/quote lookups behind the wishlist table.
const detailConcurrency = 4

// WishlistRow is one line of the wishlist table.
type WishlistRow struct {
	Symbol   string
	Name     string
	Industry string
	Price    string
}

// WishlistSync mirrors the signed-in user's wishlist and keeps the heart
// affordance of the displayed symbol in step with it. Local state changes
// only after the store confirms a change.
type WishlistSync struct {
	Store  interfaces.IUserStore
	View   View
	Logger *logger.Logger

	// op serialises round-trips to the store.
	op sync.Mutex

	mu        sync.Mutex
	entries   map[string]models.MWishlistEntry
	displayed string
}

// -----------------------------------------------------------------------------

func NewWishlistSync(store interfaces.IUserStore, view View, log *logger.Logger) *WishlistSync {
	return &WishlistSync{
		Store:   store,
		View:    view,
		Logger:  log,
		entries: make(map[string]models.MWishlistEntry),
	}
}

// -----------------------------------------------------------------------------

// Load replaces the local set with the stored wishlist. A failed load leaves
// an empty set; it is not an error for the page.
func (w *WishlistSync) Load(ctx context.Context) {
	w.op.Lock()
	defer w.op.Unlock()
	w.reload(ctx)
}

// -----------------------------------------------------------------------------

func (w *WishlistSync) reload(ctx context.Context) {
	rows, err := w.Store.ListWishlist(ctx)
	if err != nil {
		w.Logger.Warning("Failed to fetch wishlist: %v", err)
		rows = nil
	}

	entries := make(map[string]models.MWishlistEntry, len(rows))
	for _, r := range rows {
		if key := canonical(r.TickerSymbol); key != "" {
			entries[key] = r
		}
	}

	w.mu.Lock()
	w.entries = entries
	w.syncLocked()
	w.mu.Unlock()
	w.Logger.Debug("Wishlist loaded: %d entries", len(entries))
}

// -----------------------------------------------------------------------------

// resync refreshes the set after the store reported key as a duplicate. When
// the list cannot be fetched the known entries stay and key is recorded
// locally, since the conflict proves the row exists.
func (w *WishlistSync) resync(ctx context.Context, key string) {
	rows, err := w.Store.ListWishlist(ctx)
	if err != nil {
		w.Logger.Warning("Failed to resync wishlist after duplicate %s: %v", key, err)
		w.mu.Lock()
		if _, ok := w.entries[key]; !ok {
			w.entries[key] = models.MWishlistEntry{TickerSymbol: key, CreatedAt: time.Now().UTC()}
		}
		w.syncLocked()
		w.mu.Unlock()
		return
	}

	entries := make(map[string]models.MWishlistEntry, len(rows)+1)
	for _, r := range rows {
		if k := canonical(r.TickerSymbol); k != "" {
			entries[k] = r
		}
	}
	if _, ok := entries[key]; !ok {
		// Removed again between the conflict and the list.
		w.Logger.Info("%s left the wishlist during resync", key)
	}

	w.mu.Lock()
	w.entries = entries
	w.syncLocked()
	w.mu.Unlock()
}

// -----------------------------------------------------------------------------

// ToggleError reports a failed wishlist round-trip along with the change that
// was attempted.
type ToggleError struct {
	Symbol   string
	Removing bool
	Err      error
}

func (e *ToggleError) Error() string {
	if e.Removing {
		return fmt.Sprintf("remove %s from wishlist: %v", e.Symbol, e.Err)
	}
	return fmt.Sprintf("add %s to wishlist: %v", e.Symbol, e.Err)
}

func (e *ToggleError) Unwrap() error { return e.Err }

// -----------------------------------------------------------------------------

func (w *WishlistSync) IsWishlisted(symbol string) bool {
	key := canonical(symbol)
	if key == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.entries[key]
	return ok
}

// -----------------------------------------------------------------------------

// Entries returns the wishlist ordered by the time each symbol was added.
func (w *WishlistSync) Entries() []models.MWishlistEntry {
	w.mu.Lock()
	out := make([]models.MWishlistEntry, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, e)
	}
	w.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TickerSymbol < out[j].TickerSymbol
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// -----------------------------------------------------------------------------

// Display makes symbol the displayed company and draws its affordance.
func (w *WishlistSync) Display(symbol string) {
	w.mu.Lock()
	w.displayed = canonical(symbol)
	w.syncLocked()
	w.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Hide removes the affordance while nothing is displayed.
func (w *WishlistSync) Hide() {
	w.mu.Lock()
	w.displayed = ""
	w.syncLocked()
	w.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Toggle removes symbol if it is wishlisted and adds it otherwise, and
// returns whether it is wishlisted afterwards. Store failures come back as a
// *ToggleError naming the attempted change.
func (w *WishlistSync) Toggle(ctx context.Context, symbol string) (bool, error) {
	key := canonical(symbol)
	if key == "" {
		return false, helpers.NewValidationError("Ticker symbol is required.")
	}

	w.op.Lock()
	defer w.op.Unlock()

	if w.IsWishlisted(key) {
		if err := w.Store.RemoveWishlist(ctx, key); err != nil {
			w.Logger.Error("Failed to remove %s from wishlist: %v", key, err)
			return true, &ToggleError{Symbol: key, Removing: true, Err: err}
		}
		w.mu.Lock()
		delete(w.entries, key)
		w.syncLocked()
		w.mu.Unlock()
		return false, nil
	}

	entry, err := w.Store.AddWishlist(ctx, key)
	if err != nil {
		if errors.Is(err, helpers.ErrDuplicate) {
			// Added from another session; the store is the source of truth.
			w.Logger.Info("%s is already in the wishlist; resyncing", key)
			w.resync(ctx, key)
			return w.IsWishlisted(key), nil
		}
		w.Logger.Error("Failed to add %s to wishlist: %v", key, err)
		return false, &ToggleError{Symbol: key, Err: err}
	}
	if entry == nil {
		return false, &ToggleError{Symbol: key, Err: errors.New("empty response")}
	}

	w.mu.Lock()
	stored := canonical(entry.TickerSymbol)
	if stored == "" {
		stored = key
	}
	w.entries[stored] = *entry
	w.syncLocked()
	w.mu.Unlock()
	return true, nil
}

// -----------------------------------------------------------------------------

// syncLocked redraws the affordance of the displayed symbol.
func (w *WishlistSync) syncLocked() {
	if w.displayed == "" {
		w.View.SetWishlistAffordance("", false, false)
		return
	}
	_, filled := w.entries[w.displayed]
	w.View.SetWishlistAffordance(w.displayed, true, filled)
}

// -----------------------------------------------------------------------------

// Details looks up name, industry and price for every wishlisted symbol.
// A lookup that fails leaves placeholders in its row.
func (w *WishlistSync) Details(ctx context.Context, api interfaces.IMarketAPI) ([]WishlistRow, error) {
	entries := w.Entries()
	rows := make([]WishlistRow, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)
	for i, e := range entries {
		i, symbol := i, canonical(e.TickerSymbol)
		g.Go(func() error {
			row := WishlistRow{Symbol: symbol, Name: symbol, Industry: Placeholder, Price: Placeholder}

			if p, err := api.Profile(gctx, symbol); err != nil {
				w.Logger.Warning("Profile fetch error for %s: %v", symbol, err)
			} else if p != nil {
				row.Name = strings.TrimSpace(p.Name)
				if row.Name == "" {
					row.Name = symbol
				}
				row.Industry = orPlaceholder(p.FinnhubIndustry)
			}

			if q, err := api.Quote(gctx, symbol); err != nil {
				w.Logger.Warning("Quote fetch error for %s: %v", symbol, err)
			} else if q != nil && q.CurrentPrice.Valid && q.CurrentPrice.Value > 0 {
				row.Price = fmt.Sprintf("$%.2f", q.CurrentPrice.Value)
			}

			rows[i] = row
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// -----------------------------------------------------------------------------

func canonical(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
