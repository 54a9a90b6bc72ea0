package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"stock-dashboard/src/apiclient"
	"stock-dashboard/src/auth"
	"stock-dashboard/src/config"
	"stock-dashboard/src/dashboard"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
	"stock-dashboard/src/terminal"

	tea "github.com/charmbracelet/bubbletea"
)

// envPassword supplies the password for -login and -signup so it never shows
// up in the process list.
const envPassword = "DASHBOARD_PASSWORD"

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	token := flag.String("token", "", "bearer token to use instead of signing in")
	login := flag.String("login", "", "email or username to sign in with ($"+envPassword+" holds the password)")
	logout := flag.Bool("logout", false, "forget the saved session and exit")
	signup := flag.String("signup", "", "email to register a new account with ($"+envPassword+" holds the password)")
	username := flag.String("username", "", "username for -signup")
	flag.Parse()

	// 1. Config
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 2. Logger. The terminal belongs to the UI, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if path := config.Client.LogPath; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	appLogger := logger.NewLoggerWithWriter(config.MConfig, "Terminal", logOut)

	// 3. Preferences
	prefsPath := config.Client.PreferencesPath
	if prefsPath == "" {
		if prefsPath, err = dashboard.DefaultPreferencesPath(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	prefs, err := dashboard.LoadPreferences(prefsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *logout {
		forget(config.MConfig, prefs, prefsPath, appLogger)
		return
	}

	// 4. Session
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var session *models.MSession
	if *signup != "" {
		session, err = register(ctx, config.MConfig, *username, *signup, appLogger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Sign up failed: %v\n", err)
			os.Exit(1)
		}
		if session == nil {
			fmt.Println("Account created. Confirm your email, then run with -login.")
			return
		}
	} else {
		session, err = resolveSession(ctx, config.MConfig, prefs, *token, *login, appLogger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Sign in failed: %v\n", err)
			os.Exit(1)
		}
	}
	if session != nil && *token == "" {
		prefs.Remember(session)
		if err := prefs.Save(prefsPath); err != nil {
			appLogger.Warning("Saving session failed: %v", err)
		}
	}

	// 5. Dashboard
	api := apiclient.NewClient(config.MConfig, appLogger.Named("API"))
	api.SetSession(session)

	screen := terminal.NewScreen()
	d := dashboard.New(config.MConfig, api, api, screen, terminal.NewChartRenderer(screen), prefs, appLogger)
	d.PrefsPath = prefsPath
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		if errors.Is(err, dashboard.ErrNoSession) {
			fmt.Fprintln(os.Stderr, "Not signed in. Run with -login <email or username> or -token <token>.")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
		os.Exit(1)
	}

	// 6. Market widget and news
	go streamMarket(ctx, api, screen, appLogger.Named("Market"))
	go dashboard.PollNews(ctx, api, dashboard.DefaultNewsInterval, screen.SetNews, appLogger.Named("News"))

	// 7. UI
	p := tea.NewProgram(terminal.NewModel(ctx, d, screen, appLogger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------------

// resolveSession prefers an explicit token, then a fresh sign in, then the
// saved session. A nil session means nobody is signed in.
func resolveSession(ctx context.Context, cfg *models.MConfig, prefs *dashboard.Preferences, token, login string, log *logger.Logger) (*models.MSession, error) {
	if token = strings.TrimSpace(token); token != "" {
		return &models.MSession{AccessToken: token}, nil
	}

	if login != "" {
		if cfg.Auth.Provider != "supabase" {
			return nil, fmt.Errorf("sign in needs the supabase auth provider, use -token instead")
		}
		client := auth.NewSupabaseClient(cfg, log.Named("Auth"))
		return client.SignIn(ctx, login, os.Getenv(envPassword))
	}

	if s := prefs.Session; s != nil && !s.Expired(time.Now()) {
		return s, nil
	}
	return nil, nil
}

// -----------------------------------------------------------------------------

// register creates an account. A nil session means the provider wants the
// email confirmed before the first sign in.
func register(ctx context.Context, cfg *models.MConfig, username, email string, log *logger.Logger) (*models.MSession, error) {
	if cfg.Auth.Provider != "supabase" {
		return nil, fmt.Errorf("sign up needs the supabase auth provider")
	}
	client := auth.NewSupabaseClient(cfg, log.Named("Auth"))
	return client.SignUp(ctx, username, email, os.Getenv(envPassword))
}

// -----------------------------------------------------------------------------

func forget(cfg *models.MConfig, prefs *dashboard.Preferences, path string, log *logger.Logger) {
	if s := prefs.Session; s != nil && cfg.Auth.Provider == "supabase" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := auth.NewSupabaseClient(cfg, log.Named("Auth")).SignOut(ctx, s.AccessToken); err != nil {
			log.Warning("Sign out failed: %v", err)
		}
	}
	prefs.Remember(nil)
	if err := prefs.Save(path); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println("Signed out.")
}

// -----------------------------------------------------------------------------

// streamMarket keeps the header's market snapshot live, reconnecting after
// a dropped websocket.
func streamMarket(ctx context.Context, api *apiclient.Client, screen *terminal.Screen, log *logger.Logger) {
	if snap, err := api.Market(ctx); err == nil {
		screen.SetMarket(snap)
	} else {
		log.Warning("Initial market snapshot failed: %v", err)
	}

	delay := time.Second
	for ctx.Err() == nil {
		start := time.Now()
		if err := api.StreamMarket(ctx, screen.SetMarket); err != nil {
			log.Warning("Market stream dropped: %v", err)
		}
		if time.Since(start) > time.Minute {
			delay = time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}
