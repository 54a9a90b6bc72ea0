package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stock-dashboard/src/apiclient"
	"stock-dashboard/src/config"
	"stock-dashboard/src/dashboard"
	"stock-dashboard/src/grpc_control"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
	"stock-dashboard/src/terminal"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// session is one headless dashboard driven against the live backend.
type session struct {
	conf   *config.Config
	api    *apiclient.Client
	screen *terminal.Screen
	dash   *dashboard.Dashboard
	logger *logger.Logger
}

// step is one named check of the scenario.
type step struct {
	name string
	run  func(ctx context.Context, s *session) error
}

var scenario = []step{
	{"sign in and load wishlist", stepStart},
	{"type and pick a suggestion", stepSuggest},
	{"add displayed symbol to wishlist", stepAddWishlist},
	{"switch chart options", stepChartOptions},
	{"build wishlist table", stepWishlistTable},
	{"unknown symbol shows an error", stepUnknownSymbol},
	{"remove from wishlist", stepRemoveWishlist},
	{"market widget over websocket", stepMarketStream},
	{"front page news", stepNews},
	{"logo proxy", stepLogo},
	{"grpc health", stepHealth},
}

// -----------------------------------------------------------------------------

// runScenario plays every step in order and stops at the first failure.
func runScenario(ctx context.Context, conf *config.Config, appLogger *logger.Logger) error {
	api := apiclient.NewClient(conf.MConfig, appLogger.Named("API"))
	api.SetSession(&models.MSession{
		AccessToken: smokeToken,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        models.MUser{ID: smokeUserID, Email: "smoke@example.com"},
	})

	screen := terminal.NewScreen()
	prefs := &dashboard.Preferences{Theme: string(dashboard.ThemeDark)}
	d := dashboard.New(conf.MConfig, api, api, screen, terminal.NewChartRenderer(screen), prefs, appLogger.Named("Dashboard"))
	d.PrefsPath = conf.Client.PreferencesPath
	defer d.Close()

	s := &session{conf: conf, api: api, screen: screen, dash: d, logger: appLogger}

	for i, st := range scenario {
		start := time.Now()
		if err := st.run(ctx, s); err != nil {
			appLogger.Error("[%d/%d] %s: FAILED: %v", i+1, len(scenario), st.name, err)
			return fmt.Errorf("%s: %w", st.name, err)
		}
		appLogger.Info("[%d/%d] %s: ok (%v)", i+1, len(scenario), st.name, time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// -----------------------------------------------------------------------------

// waitFor blocks until the screen shows a frame accepted by ok.
func (s *session) waitFor(ctx context.Context, what string, ok func(f terminal.Frame) bool) (terminal.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for {
		f := s.screen.Snapshot()
		if ok(f) {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return f, fmt.Errorf("timed out waiting for %s (state %s, message %q)", what, f.State, f.Message)
		case <-s.screen.Changed():
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// -----------------------------------------------------------------------------

func stepStart(ctx context.Context, s *session) error {
	if err := s.dash.Start(ctx); err != nil {
		return err
	}
	if entries := s.dash.Wishlist.Entries(); len(entries) != 0 {
		return fmt.Errorf("fresh user has %d wishlist entries", len(entries))
	}
	return nil
}

// -----------------------------------------------------------------------------

func stepSuggest(ctx context.Context, s *session) error {
	s.dash.OnInput("app")
	f, err := s.waitFor(ctx, "suggestions", func(f terminal.Frame) bool {
		return f.SuggestOpen && len(f.Suggestions) > 0
	})
	if err != nil {
		return err
	}
	if f.Suggestions[0].Symbol != "AAPL" {
		return fmt.Errorf("first suggestion is %q", f.Suggestions[0].Symbol)
	}

	s.dash.OnKey(dashboard.KeyDown)
	s.dash.OnKey(dashboard.KeyEnter)

	f, err = s.waitFor(ctx, "AAPL panel", func(f terminal.Frame) bool {
		return f.State == dashboard.StateDisplaying && f.Data != nil && f.Chart != nil
	})
	if err != nil {
		return err
	}
	if f.Data.Symbol != "AAPL" || f.Data.CompanyName != "Apple Inc" {
		return fmt.Errorf("displayed %q (%q)", f.Data.Symbol, f.Data.CompanyName)
	}
	if !strings.HasPrefix(f.Data.Price, "$") || f.Data.ChangeClass != "pos" {
		return fmt.Errorf("price %q change class %q", f.Data.Price, f.Data.ChangeClass)
	}
	if f.Chart.Type != dashboard.ChartLine || f.Chart.Granularity != dashboard.GroupWeek || len(f.Chart.Points) == 0 {
		return fmt.Errorf("unexpected chart %s/%s with %d points", f.Chart.Type, f.Chart.Granularity, len(f.Chart.Points))
	}
	if !f.WishVisible || f.WishFilled {
		return fmt.Errorf("wishlist affordance visible=%v filled=%v", f.WishVisible, f.WishFilled)
	}
	return nil
}

// -----------------------------------------------------------------------------

func stepAddWishlist(ctx context.Context, s *session) error {
	if err := s.dash.ToggleWishlist(ctx); err != nil {
		return err
	}
	if _, err := s.waitFor(ctx, "filled heart", func(f terminal.Frame) bool { return f.WishFilled }); err != nil {
		return err
	}

	entries, err := s.api.ListWishlist(ctx)
	if err != nil {
		return err
	}
	if len(entries) != 1 || entries[0].TickerSymbol != "AAPL" {
		return fmt.Errorf("server wishlist is %v", entries)
	}

	// A second add from another client must come back as a duplicate.
	if _, err := s.api.AddWishlist(ctx, "aapl"); err == nil {
		return errors.New("duplicate add succeeded")
	}
	return nil
}

// -----------------------------------------------------------------------------

func stepChartOptions(ctx context.Context, s *session) error {
	if err := s.dash.SetChartType("bar"); err != nil {
		return err
	}
	if err := s.dash.SetGranularity("month"); err != nil {
		return err
	}
	f, err := s.waitFor(ctx, "monthly bars", func(f terminal.Frame) bool {
		return f.Chart != nil && f.Chart.Type == dashboard.ChartBar && f.Chart.Granularity == dashboard.GroupMonth
	})
	if err != nil {
		return err
	}
	// Roughly 90 weekdays span four or five calendar months.
	if n := len(f.Chart.Points); n < 4 || n > 6 {
		return fmt.Errorf("monthly series has %d points", n)
	}
	if err := s.dash.SetChartType("candlestick"); err == nil {
		return errors.New("unknown chart type accepted")
	}

	s.dash.SetTheme(dashboard.ThemeLight)
	if s.dash.Theme() != dashboard.ThemeLight {
		return errors.New("theme not applied")
	}
	saved, err := dashboard.LoadPreferences(s.conf.Client.PreferencesPath)
	if err != nil {
		return err
	}
	if saved.Theme != string(dashboard.ThemeLight) {
		return fmt.Errorf("saved theme is %q", saved.Theme)
	}
	return nil
}

// -----------------------------------------------------------------------------

func stepWishlistTable(ctx context.Context, s *session) error {
	rows, err := s.dash.WishlistDetails(ctx)
	if err != nil {
		return err
	}
	if len(rows) != 1 || rows[0].Symbol != "AAPL" || rows[0].Name != "Apple Inc" || rows[0].Industry != "Technology" {
		return fmt.Errorf("wishlist rows %+v", rows)
	}
	return nil
}

// -----------------------------------------------------------------------------

func stepUnknownSymbol(ctx context.Context, s *session) error {
	s.dash.FetchStockData("ZZZZ")

	f, err := s.waitFor(ctx, "error message", func(f terminal.Frame) bool {
		return f.State == dashboard.StateError && f.MessageError
	})
	if err != nil {
		return err
	}
	if f.Data != nil || f.Chart != nil || f.WishVisible {
		return errors.New("stale panel left on screen after a failed fetch")
	}
	return nil
}

// -----------------------------------------------------------------------------

func stepRemoveWishlist(ctx context.Context, s *session) error {
	if err := s.dash.ToggleSymbol(ctx, "AAPL"); err != nil {
		return err
	}
	if s.dash.Wishlist.IsWishlisted("AAPL") {
		return errors.New("AAPL still wishlisted locally")
	}
	entries, err := s.api.ListWishlist(ctx)
	if err != nil {
		return err
	}
	if len(entries) != 0 {
		return fmt.Errorf("server wishlist is %v", entries)
	}
	return nil
}

// -----------------------------------------------------------------------------

func stepMarketStream(ctx context.Context, s *session) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	got := make(chan *models.MMarketSnapshot, 1)
	go func() {
		err := s.api.StreamMarket(ctx, func(snap *models.MMarketSnapshot) {
			select {
			case got <- snap:
			default:
			}
			cancel()
		})
		if err != nil {
			s.logger.Warning("Market stream ended: %v", err)
		}
	}()

	select {
	case snap := <-got:
		for _, idx := range s.conf.Market.Indices {
			if snap.Indices[idx.Key] == nil {
				return fmt.Errorf("index %s missing from snapshot", idx.Key)
			}
		}
		nasdaq := snap.Indices["nasdaq"]
		if nasdaq.Change != 142.27 {
			return fmt.Errorf("nasdaq change %v", nasdaq.Change)
		}
		return nil
	case <-ctx.Done():
		return errors.New("no snapshot received")
	}
}

// -----------------------------------------------------------------------------

func stepNews(ctx context.Context, s *session) error {
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go dashboard.PollNews(pollCtx, s.api, time.Hour, s.screen.SetNews, s.logger.Named("News"))

	f, err := s.waitFor(ctx, "news feed", func(f terminal.Frame) bool { return f.News != nil })
	if err != nil {
		return err
	}
	if f.News.Featured == nil || len(f.News.Side) != dashboard.SideNewsCount {
		return fmt.Errorf("news feed featured=%v side=%d message=%q", f.News.Featured != nil, len(f.News.Side), f.News.Message)
	}
	return nil
}

// -----------------------------------------------------------------------------

func stepLogo(ctx context.Context, s *session) error {
	s.dash.FetchStockData("MSFT")
	f, err := s.waitFor(ctx, "MSFT panel", func(f terminal.Frame) bool {
		return f.State == dashboard.StateDisplaying && f.Data != nil && f.Data.Symbol == "MSFT"
	})
	if err != nil {
		return err
	}
	logo := f.Data.Logo
	if !strings.HasPrefix(logo, s.conf.Client.APIURL+"/api/logo?url=") {
		return fmt.Errorf("logo url %q", logo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logo, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" || len(body) == 0 {
		return fmt.Errorf("logo came back %d as %q (%d bytes)", resp.StatusCode, resp.Header.Get("Content-Type"), len(body))
	}
	return nil
}

// -----------------------------------------------------------------------------

func stepHealth(ctx context.Context, s *session) error {
	addr := fmt.Sprintf("%s:%d", s.conf.GrpcHost, s.conf.GrpcPort)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, service := range []string{"", grpc_control.ServiceWishlist, grpc_control.ServiceMarket} {
		for {
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
			if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
				break
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("service %q not serving: %v", service, err)
			case <-time.After(200 * time.Millisecond):
			}
		}
	}
	return nil
}
