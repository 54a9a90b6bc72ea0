package dashboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/models"
)

func newDashboard(t *testing.T, store *fakeStore) (*Dashboard, *fakeView, *fakeRenderer) {
	t.Helper()
	view := &fakeView{}
	renderer := &fakeRenderer{}
	d := New(&models.MConfig{}, &fakeAPI{}, store, view, renderer, nil, testLogger())
	t.Cleanup(d.Close)
	return d, view, renderer
}

func TestStartRequiresSession(t *testing.T) {
	store := newFakeStore()
	store.session = nil
	d, _, _ := newDashboard(t, store)
	if err := d.Start(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("Start without session = %v", err)
	}

	store.session = &models.MSession{AccessToken: "t", ExpiresAt: time.Now().Add(-time.Minute)}
	if err := d.Start(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("Start with expired session = %v", err)
	}
}

func TestStartLoadsWishlist(t *testing.T) {
	d, _, _ := newDashboard(t, newFakeStore("AAPL"))
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !d.Wishlist.IsWishlisted("aapl") {
		t.Error("wishlist not loaded on start")
	}
	if d.Session() == nil {
		t.Error("session not kept")
	}
}

func TestDashboardFetchAndToggle(t *testing.T) {
	store := newFakeStore()
	d, view, renderer := newDashboard(t, store)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatal(err)
	}

	var ve *helpers.ValidationError
	if err := d.ToggleWishlist(ctx); !errors.As(err, &ve) {
		t.Errorf("toggle with nothing displayed = %v", err)
	}

	d.OnInput("Apple Inc (aapl)")
	d.OnKey(KeyEnter)
	d.Wait()

	if shown := view.shown(); len(shown) != 1 || shown[0].Symbol != "AAPL" {
		t.Fatalf("shown = %+v", shown)
	}
	if err := d.ToggleWishlist(ctx); err != nil {
		t.Fatal(err)
	}
	if a := view.currentAffordance(); !a.filled || a.symbol != "AAPL" {
		t.Errorf("affordance = %+v", a)
	}

	if err := d.SetChartType("candlestick"); err == nil {
		t.Error("unknown chart type accepted")
	}
	if err := d.SetGranularity("month"); err != nil {
		t.Fatal(err)
	}
	if rendered, _, live := renderer.counts(); rendered != 2 || live != 1 {
		t.Errorf("rendered=%d live=%d", rendered, live)
	}
}

func TestToggleFailureSurfacesMessage(t *testing.T) {
	store := newFakeStore()
	store.addErr = errors.New("down")
	d, view, _ := newDashboard(t, store)

	if err := d.ToggleSymbol(context.Background(), "amd"); err == nil {
		t.Fatal("expected error")
	}
	if msg := view.lastMessage(); msg != "Failed to add AMD to wishlist." {
		t.Errorf("message = %q", msg)
	}
}

func TestToggleFailureNamesAttemptedChange(t *testing.T) {
	store := newFakeStore("TSLA")
	store.delErr = errors.New("down")
	d, view, _ := newDashboard(t, store)
	ctx := context.Background()
	d.Wishlist.Load(ctx)

	err := d.ToggleSymbol(ctx, "tsla")
	var te *ToggleError
	if !errors.As(err, &te) || !te.Removing || te.Symbol != "TSLA" {
		t.Fatalf("err = %v", err)
	}
	if msg := view.lastMessage(); msg != "Failed to remove TSLA from wishlist." {
		t.Errorf("message = %q", msg)
	}
}

func TestSetThemePersists(t *testing.T) {
	d, _, _ := newDashboard(t, newFakeStore())
	d.PrefsPath = filepath.Join(t.TempDir(), "prefs", "preferences.yaml")

	d.SetTheme(ThemeLight)
	if d.Theme() != ThemeLight {
		t.Errorf("theme = %s", d.Theme())
	}
	prefs, err := LoadPreferences(d.PrefsPath)
	if err != nil {
		t.Fatal(err)
	}
	if prefs.Theme != string(ThemeLight) {
		t.Errorf("saved theme = %q", prefs.Theme)
	}
}

func TestLoadPreferencesDefaults(t *testing.T) {
	dir := t.TempDir()

	prefs, err := LoadPreferences(filepath.Join(dir, "missing.yaml"))
	if err != nil || prefs.Theme != string(ThemeDark) {
		t.Fatalf("missing file = %+v, %v", prefs, err)
	}

	path := filepath.Join(dir, "odd.yaml")
	if err := os.WriteFile(path, []byte("theme: sepia\nemail: a@b.c\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	prefs, err = LoadPreferences(path)
	if err != nil {
		t.Fatal(err)
	}
	if prefs.Theme != string(ThemeDark) || prefs.Email != "a@b.c" {
		t.Errorf("prefs = %+v", prefs)
	}
}
