package dashboard

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placeholder is shown for any field without a usable value.
const Placeholder = "-"

// ErrSuperseded is returned by a fetch whose result was discarded because a
// newer fetch started after it.
var ErrSuperseded = errors.New("superseded by a newer request")

var parenSymbol = regexp.MustCompile(`\(([^)]+)\)`)

// DisplayModel is the formatted company and quote panel.
type DisplayModel struct {
	Symbol        string
	CompanyName   string
	Description   string
	Sector        string
	Exchange      string
	MarketCap     string
	Logo          string
	Price         string
	Change        string
	ChangeClass   string // "pos", "neg" or empty
	PreviousClose string
	Open          string
	High          string
	Low           string
}

// -----------------------------------------------------------------------------

// ResolveSymbol picks the symbol to fetch: an explicit symbol, else the last
// selected suggestion, else a parenthesised ticker in the input ("Apple Inc
// (AAPL)"), else the input itself. The result is upper case.
func ResolveSymbol(explicit, selected, input string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return strings.ToUpper(s)
	}
	if s := strings.TrimSpace(selected); s != "" {
		return strings.ToUpper(s)
	}
	input = strings.TrimSpace(input)
	if m := parenSymbol.FindStringSubmatch(input); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			return strings.ToUpper(s)
		}
	}
	return strings.ToUpper(input)
}

// -----------------------------------------------------------------------------

// StockDataController loads profile, quote and price history for a symbol
// and publishes them to the view, the chart and the wishlist affordance.
type StockDataController struct {
	API      interfaces.IMarketAPI
	View     View
	Chart    *ChartAdapter
	Wishlist *WishlistSync
	State    *ViewState
	Machine  *Machine
	Logger   *logger.Logger

	printer *message.Printer

	mu          sync.Mutex
	chartType   ChartType
	granularity Granularity
}

// -----------------------------------------------------------------------------

func NewStockDataController(api interfaces.IMarketAPI, view View, chart *ChartAdapter, wishlist *WishlistSync, state *ViewState, machine *Machine, log *logger.Logger) *StockDataController {
	return &StockDataController{
		API:         api,
		View:        view,
		Chart:       chart,
		Wishlist:    wishlist,
		State:       state,
		Machine:     machine,
		Logger:      log,
		printer:     message.NewPrinter(language.English),
		chartType:   ChartLine,
		granularity: GroupWeek,
	}
}

// -----------------------------------------------------------------------------

// ChartOptions returns the current chart type and grouping.
func (c *StockDataController) ChartOptions() (ChartType, Granularity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chartType, c.granularity
}

// -----------------------------------------------------------------------------

// SetChartOptions changes the chart type and grouping and redraws the last
// fetched series without refetching.
func (c *StockDataController) SetChartOptions(ct ChartType, g Granularity) {
	c.mu.Lock()
	c.chartType, c.granularity = ct, g
	c.mu.Unlock()

	c.State.redraw(func(symbol string, series []models.MCandle) {
		if len(series) == 0 {
			return
		}
		if err := c.Chart.Render(series, ct, g); err != nil {
			c.Logger.Warning("Redrawing chart for %s failed: %v", symbol, err)
		}
	})
}

// -----------------------------------------------------------------------------

// Fetch resolves the symbol and loads the three datasets concurrently. Any
// failure, or an unusable result, resets the panel and shows one message.
// Only the most recent call may change the display; older calls return
// ErrSuperseded once they complete.
func (c *StockDataController) Fetch(ctx context.Context, explicit, input string) error {
	symbol := ResolveSymbol(explicit, c.State.Selected(), input)
	if symbol == "" {
		c.Logger.Info("No symbol provided.")
		return nil
	}

	c.Logger.Info("Fetching data for: %s", symbol)
	token := c.State.beginData(func() {
		c.clearDisplay()
		c.View.SetLoading(true)
	})
	c.fire(EventFetch)

	var (
		wg      sync.WaitGroup
		profile *models.MCompanyProfile
		quote   *models.MQuote
		candles []models.MCandle
		errs    [3]error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		profile, errs[0] = c.API.Profile(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		quote, errs[1] = c.API.Quote(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		candles, errs[2] = c.API.Candles(ctx, symbol)
	}()
	wg.Wait()

	failure := firstFailure(errs)
	if failure == nil && !complete(profile, quote) {
		c.Logger.Info("Incomplete or zero data for %s", symbol)
		failure = helpers.NewIncompleteDataError(symbol)
	}

	if failure != nil {
		if !c.State.finishData(token, func() { c.fail(symbol, failure) }) {
			return ErrSuperseded
		}
		return failure
	}

	model := c.Format(symbol, profile, quote)
	if !c.State.commitData(token, symbol, candles, func() { c.show(model, candles) }) {
		c.Logger.Debug("Discarding stale data for %s", symbol)
		return ErrSuperseded
	}
	return nil
}

// -----------------------------------------------------------------------------

var datasetLabels = [3]string{"company profile", "stock quote", "price history"}

// firstFailure reports the first failed dataset in profile, quote, candles order.
func firstFailure(errs [3]error) error {
	for i, err := range errs {
		if err == nil {
			continue
		}
		if helpers.IsCancellation(err) {
			return err
		}
		msg := "Could not get " + datasetLabels[i]
		if code := helpers.StatusCode(err); code != 0 {
			msg = fmt.Sprintf("%s (%d)", msg, code)
		}
		return &helpers.TransportError{
			DashboardError: helpers.DashboardError{Message: msg + ".", Cause: err},
			Dataset:        datasetLabels[i],
			StatusCode:     helpers.StatusCode(err),
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func complete(p *models.MCompanyProfile, q *models.MQuote) bool {
	if p == nil || q == nil || p.Name == "" || p.Exchange == "" {
		return false
	}
	return q.CurrentPrice.Valid && q.CurrentPrice.Value != 0
}

// -----------------------------------------------------------------------------

// fail runs under the session lock for the current token.
func (c *StockDataController) fail(symbol string, err error) {
	c.clearDisplay()
	c.View.SetLoading(false)
	c.State.selected = ""

	if helpers.IsCancellation(err) {
		c.fire(EventFetchAborted)
		return
	}

	var incomplete *helpers.IncompleteDataError
	var transport *helpers.TransportError
	switch {
	case errors.As(err, &incomplete):
		c.View.ShowMessage(incomplete.Message, true)
	case errors.As(err, &transport):
		c.Logger.Error("Error fetching stock data for %s: %v", symbol, transport.Cause)
		c.View.ShowMessage("Error: "+transport.Message+" Please check the symbol or try again.", true)
	default:
		c.View.ShowMessage("Error: Could not fetch data. Please check the symbol or try again.", true)
	}
	c.fire(EventFetchFailed)
}

// -----------------------------------------------------------------------------

// show runs under the session lock for the current token.
func (c *StockDataController) show(model DisplayModel, candles []models.MCandle) {
	c.View.SetLoading(false)
	c.View.ClearMessage()
	c.View.ShowData(model)
	c.State.selected = ""

	if len(candles) > 0 {
		ct, g := c.ChartOptions()
		if err := c.Chart.Render(candles, ct, g); err != nil {
			c.Logger.Warning("Rendering chart for %s failed: %v", model.Symbol, err)
		}
	} else {
		c.Logger.Warning("No valid candle data received for %s", model.Symbol)
		c.Chart.Clear()
	}

	c.Wishlist.Display(model.Symbol)
	c.fire(EventFetchSucceeded)
}

// -----------------------------------------------------------------------------

func (c *StockDataController) clearDisplay() {
	c.View.ClearData()
	c.View.ClearMessage()
	c.Chart.Clear()
	c.Wishlist.Hide()
}

// -----------------------------------------------------------------------------

func (c *StockDataController) fire(ev Event) {
	if _, err := c.Machine.Fire(ev); err != nil {
		c.Logger.Debug("State machine: %v", err)
	}
}

// -----------------------------------------------------------------------------

// LogoProxy is implemented by APIs that serve company logos through their own
// image proxy.
type LogoProxy interface {
	LogoURL(raw string) string
}

// Format turns a profile and quote into display strings. Every field falls
// back to Placeholder on its own.
func (c *StockDataController) Format(symbol string, p *models.MCompanyProfile, q *models.MQuote) DisplayModel {
	m := DisplayModel{
		Symbol:        symbol,
		CompanyName:   orPlaceholder(p.Name),
		Description:   orPlaceholder(p.FinnhubIndustry),
		Sector:        orPlaceholder(p.FinnhubIndustry),
		Exchange:      orPlaceholder(p.Exchange),
		MarketCap:     Placeholder,
		Logo:          p.Logo,
		Price:         dollars(q.CurrentPrice),
		Change:        Placeholder,
		PreviousClose: dollars(q.PreviousClose),
		Open:          dollars(q.Open),
		High:          dollars(q.High),
		Low:           dollars(q.Low),
	}

	if lp, ok := c.API.(LogoProxy); ok {
		m.Logo = lp.LogoURL(p.Logo)
	}
	if mc := p.MarketCapitalization; mc.Valid && mc.Value != 0 {
		m.MarketCap = c.printer.Sprintf("$%v", number.Decimal(mc.Value, number.MaxFractionDigits(3)))
	}
	if q.Change.Valid && q.ChangePercent.Valid {
		m.Change = fmt.Sprintf("%.2f (%.2f%%)", q.Change.Value, q.ChangePercent.Value)
		m.ChangeClass = "pos"
		if q.Change.Value < 0 {
			m.ChangeClass = "neg"
		}
	}
	return m
}

// -----------------------------------------------------------------------------

func dollars(v models.MOptionalFloat) string {
	if !v.Valid {
		return Placeholder
	}
	return fmt.Sprintf("$%.2f", v.Value)
}

// -----------------------------------------------------------------------------

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}
