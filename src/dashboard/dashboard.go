package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// ErrNoSession means nobody is signed in; the caller should show the login.
var ErrNoSession = errors.New("no active session")

// Dashboard wires the controllers of one dashboard page together.
type Dashboard struct {
	Config *models.MConfig
	API    interfaces.IMarketAPI
	Users  interfaces.IUserStore
	View   View
	Logger *logger.Logger

	State    *ViewState
	Machine  *Machine
	Chart    *ChartAdapter
	Wishlist *WishlistSync
	Data     *StockDataController
	Suggest  *SuggestionController

	Prefs     *Preferences
	PrefsPath string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	session *models.MSession
}

// -----------------------------------------------------------------------------

func New(cfg *models.MConfig, api interfaces.IMarketAPI, users interfaces.IUserStore, view View, renderer ChartRenderer, prefs *Preferences, log *logger.Logger) *Dashboard {
	if prefs == nil {
		prefs = &Preferences{Theme: string(ThemeDark)}
	}

	loc := time.UTC
	if tz := cfg.Client.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Warning("Unknown timezone %q, charting in UTC: %v", tz, err)
		} else {
			loc = l
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		Config: cfg,
		API:    api,
		Users:  users,
		View:   view,
		Logger: log,
		State:  NewViewState(),
		Prefs:  prefs,
		ctx:    ctx,
		cancel: cancel,
	}

	d.Machine = NewMachine(func(from, to State) {
		log.Debug("State %s -> %s", from, to)
		view.SetState(to)
	})
	d.Chart = NewChartAdapter(renderer, loc, ParseTheme(prefs.Theme))
	d.Wishlist = NewWishlistSync(users, view, log.Named("Wishlist"))
	d.Data = NewStockDataController(api, view, d.Chart, d.Wishlist, d.State, d.Machine, log.Named("StockData"))
	d.Suggest = NewSuggestionController(ctx, api, view, d.State, d.Machine, log.Named("Suggestions"))
	if cfg.Client.DebounceMillis > 0 {
		d.Suggest.Delay = time.Duration(cfg.Client.DebounceMillis) * time.Millisecond
	}
	d.Suggest.OnSelect = func(symbol string) { d.FetchStockData(symbol) }
	d.Suggest.OnSubmit = func(string) { d.FetchStockData("") }

	return d
}

// -----------------------------------------------------------------------------

// Start checks the session and loads the wishlist. Without a valid session
// it returns ErrNoSession.
func (d *Dashboard) Start(ctx context.Context) error {
	session, err := d.Users.GetSession(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if session == nil || session.AccessToken == "" || session.Expired(time.Now()) {
		return ErrNoSession
	}

	d.mu.Lock()
	d.session = session
	d.mu.Unlock()

	d.Logger.Info("Dashboard started for %s", session.User.Email)
	d.Wishlist.Load(ctx)
	return nil
}

// -----------------------------------------------------------------------------

func (d *Dashboard) Session() *models.MSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// -----------------------------------------------------------------------------

// OnInput forwards a keystroke to the suggestion controller.
func (d *Dashboard) OnInput(text string) {
	d.Suggest.OnInput(text)
}

// -----------------------------------------------------------------------------

func (d *Dashboard) OnKey(k Key) {
	d.Suggest.OnKey(k)
}

// -----------------------------------------------------------------------------

// FetchStockData loads symbol (or whatever the input resolves to) in the
// background.
func (d *Dashboard) FetchStockData(symbol string) {
	input := d.Suggest.Text()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		err := d.Data.Fetch(d.ctx, symbol, input)
		if err != nil && !errors.Is(err, ErrSuperseded) && !helpers.IsCancellation(err) {
			d.Logger.Debug("Fetch finished with: %v", err)
		}
	}()
}

// -----------------------------------------------------------------------------

// ToggleWishlist flips the displayed symbol's wishlist membership.
func (d *Dashboard) ToggleWishlist(ctx context.Context) error {
	symbol, _ := d.State.Displayed()
	if symbol == "" {
		return helpers.NewValidationError("Ticker symbol is required.")
	}
	return d.ToggleSymbol(ctx, symbol)
}

// -----------------------------------------------------------------------------

// ToggleSymbol flips symbol's wishlist membership, surfacing failures on the view.
func (d *Dashboard) ToggleSymbol(ctx context.Context, symbol string) error {
	if _, err := d.Wishlist.Toggle(ctx, symbol); err != nil {
		var ve *helpers.ValidationError
		var te *ToggleError
		switch {
		case errors.As(err, &ve):
			d.View.ShowMessage(ve.Message, true)
		case errors.As(err, &te) && te.Removing:
			d.View.ShowMessage(fmt.Sprintf("Failed to remove %s from wishlist.", te.Symbol), true)
		default:
			d.View.ShowMessage(fmt.Sprintf("Failed to add %s to wishlist.", canonical(symbol)), true)
		}
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// WishlistDetails builds the wishlist table.
func (d *Dashboard) WishlistDetails(ctx context.Context) ([]WishlistRow, error) {
	return d.Wishlist.Details(ctx, d.API)
}

// -----------------------------------------------------------------------------

func (d *Dashboard) SetChartType(s string) error {
	ct, err := ParseChartType(s)
	if err != nil {
		return err
	}
	_, g := d.Data.ChartOptions()
	d.Data.SetChartOptions(ct, g)
	return nil
}

// -----------------------------------------------------------------------------

func (d *Dashboard) SetGranularity(s string) error {
	g, err := ParseGranularity(s)
	if err != nil {
		return err
	}
	ct, _ := d.Data.ChartOptions()
	d.Data.SetChartOptions(ct, g)
	return nil
}

// -----------------------------------------------------------------------------

// SetTheme recolours the chart and persists the choice.
func (d *Dashboard) SetTheme(t Theme) {
	d.Chart.ApplyTheme(t)

	d.mu.Lock()
	d.Prefs.Theme = string(t)
	prefs, path := *d.Prefs, d.PrefsPath
	d.mu.Unlock()

	if path == "" {
		return
	}
	if err := prefs.Save(path); err != nil {
		d.Logger.Warning("Saving theme preference failed: %v", err)
	}
}

// -----------------------------------------------------------------------------

// Theme returns the current theme.
func (d *Dashboard) Theme() Theme {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ParseTheme(d.Prefs.Theme)
}

// -----------------------------------------------------------------------------

// Wait blocks until background fetches have finished.
func (d *Dashboard) Wait() {
	d.wg.Wait()
}

// -----------------------------------------------------------------------------

// Close aborts pending work and waits for it to unwind.
func (d *Dashboard) Close() {
	d.Suggest.Close()
	d.cancel()
	d.wg.Wait()
}
