package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
	"stock-dashboard/src/utils"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// closedRefreshInterval throttles index refreshes while every tracked market is closed.
const closedRefreshInterval = 15 * time.Minute

// refreshTimeout bounds one scheduled refresh.
const refreshTimeout = 30 * time.Second

// MarketWatcher keeps the index widget snapshot and the news feed fresh on a
// cron schedule and serves cached copies to HTTP handlers.
type MarketWatcher struct {
	Config    *models.MConfig
	Charts    interfaces.IChartSource
	Symbols   interfaces.ISymbolSource
	Scheduler *utils.MarketScheduler
	Logger    *logger.Logger

	cron  *cron.Cron
	group singleflight.Group
	now   func() time.Time

	mu        sync.RWMutex
	snapshot  *models.MMarketSnapshot
	news      []models.MNewsItem
	listeners []func(*models.MMarketSnapshot)
}

// -----------------------------------------------------------------------------

func NewMarketWatcher(cfg *models.MConfig, charts interfaces.IChartSource, symbols interfaces.ISymbolSource, log *logger.Logger) *MarketWatcher {
	tracked := make([]string, 0, len(cfg.Market.Indices))
	for _, idx := range cfg.Market.Indices {
		tracked = append(tracked, idx.Symbol)
	}

	return &MarketWatcher{
		Config:    cfg,
		Charts:    charts,
		Symbols:   symbols,
		Scheduler: utils.NewMarketScheduler(tracked, log.Named("MarketScheduler")),
		Logger:    log,
		now:       time.Now,
	}
}

// -----------------------------------------------------------------------------

// OnSnapshot registers a callback for every refreshed snapshot.
func (w *MarketWatcher) OnSnapshot(fn func(*models.MMarketSnapshot)) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Start schedules the refresh jobs and kicks off an initial load.
func (w *MarketWatcher) Start() error {
	w.cron = cron.New(cron.WithSeconds())

	if _, err := w.cron.AddFunc(w.Config.Market.RefreshCron, w.scheduledMarketRefresh); err != nil {
		return fmt.Errorf("invalid market refresh schedule %q: %w", w.Config.Market.RefreshCron, err)
	}
	if _, err := w.cron.AddFunc(w.Config.Market.NewsCron, w.scheduledNewsRefresh); err != nil {
		return fmt.Errorf("invalid news refresh schedule %q: %w", w.Config.Market.NewsCron, err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		w.RefreshMarket(ctx)
		if _, err := w.RefreshNews(ctx); err != nil {
			w.Logger.Warning("Initial news load failed: %v", err)
		}
	}()

	w.cron.Start()
	w.Logger.Info("Market watcher started (indices: %s, news: %s)", w.Config.Market.RefreshCron, w.Config.Market.NewsCron)
	return nil
}

// -----------------------------------------------------------------------------

// Stop halts the scheduler and waits for running jobs.
func (w *MarketWatcher) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
}

// -----------------------------------------------------------------------------

func (w *MarketWatcher) scheduledMarketRefresh() {
	if !w.shouldRefresh(w.now()) {
		w.Logger.Debug("Markets closed; skipping index refresh")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	w.RefreshMarket(ctx)
}

// -----------------------------------------------------------------------------

func (w *MarketWatcher) scheduledNewsRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if _, err := w.RefreshNews(ctx); err != nil {
		w.Logger.Warning("News refresh failed: %v", err)
	}
}

// -----------------------------------------------------------------------------

// shouldRefresh refreshes every tick while a market is open and at most every
// closedRefreshInterval otherwise.
func (w *MarketWatcher) shouldRefresh(now time.Time) bool {
	if w.Scheduler.AnyMarketOpen() {
		return true
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.snapshot == nil {
		return true
	}
	return now.Sub(time.Unix(w.snapshot.Timestamp, 0)) >= closedRefreshInterval
}

// -----------------------------------------------------------------------------

// Snapshot returns the cached snapshot, loading it on first use.
func (w *MarketWatcher) Snapshot(ctx context.Context) *models.MMarketSnapshot {
	w.mu.RLock()
	snap := w.snapshot
	w.mu.RUnlock()
	if snap != nil {
		return snap
	}
	return w.RefreshMarket(ctx)
}

// -----------------------------------------------------------------------------

// RefreshMarket fetches every configured index concurrently. An index that
// fails is reported as nil; the snapshot itself is always produced.
// Concurrent callers share one upstream round.
func (w *MarketWatcher) RefreshMarket(ctx context.Context) *models.MMarketSnapshot {
	v, _, _ := w.group.Do("market", func() (interface{}, error) {
		indices := make(map[string]*models.MIndexSnapshot, len(w.Config.Market.Indices))
		var mu sync.Mutex
		var wg sync.WaitGroup

		for _, idx := range w.Config.Market.Indices {
			wg.Add(1)
			go func(idx models.MIndexConfig) {
				defer wg.Done()
				snap, err := w.Charts.IndexSnapshot(ctx, idx.Symbol)
				if err != nil {
					w.Logger.Warning("Error fetching index %s (%s): %v", idx.Key, idx.Symbol, err)
					snap = nil
				}
				mu.Lock()
				indices[idx.Key] = snap
				mu.Unlock()
			}(idx)
		}
		wg.Wait()

		snapshot := &models.MMarketSnapshot{
			Type:       "MARKET",
			Indices:    indices,
			MarketOpen: w.Scheduler.AnyMarketOpen(),
			Timestamp:  w.now().Unix(),
		}

		w.mu.Lock()
		w.snapshot = snapshot
		listeners := append([]func(*models.MMarketSnapshot){}, w.listeners...)
		w.mu.Unlock()

		for _, fn := range listeners {
			fn(snapshot)
		}
		return snapshot, nil
	})
	return v.(*models.MMarketSnapshot)
}

// -----------------------------------------------------------------------------

// News returns the cached feed, loading it on first use.
func (w *MarketWatcher) News(ctx context.Context) ([]models.MNewsItem, error) {
	w.mu.RLock()
	news := w.news
	w.mu.RUnlock()
	if news != nil {
		return news, nil
	}
	return w.RefreshNews(ctx)
}

// -----------------------------------------------------------------------------

// RefreshNews reloads the news feed. On failure the previous feed is kept and
// returned alongside the error.
func (w *MarketWatcher) RefreshNews(ctx context.Context) ([]models.MNewsItem, error) {
	v, err, _ := w.group.Do("news", func() (interface{}, error) {
		items, err := w.Symbols.News(ctx, w.Config.Market.NewsCategory)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []models.MNewsItem{}
		}
		w.mu.Lock()
		w.news = items
		w.mu.Unlock()
		return items, nil
	})
	if err != nil {
		w.mu.RLock()
		cached := w.news
		w.mu.RUnlock()
		return cached, err
	}
	return v.([]models.MNewsItem), nil
}
