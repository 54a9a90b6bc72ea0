package dashboard

import (
	"context"
	"time"

	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

const (
	// SideNewsCount is the number of headlines listed beside the featured story.
	SideNewsCount = 5

	NoNewsText     = "No trending news available at the moment."
	NewsFailedText = "Failed to load news. Please try again later."

	// DefaultNewsInterval matches the server's news refresh.
	DefaultNewsInterval = 5 * time.Minute
)

// NewsSource is the part of the API that serves the general news feed.
type NewsSource interface {
	News(ctx context.Context) ([]models.MNewsItem, error)
}

// NewsFeed is the front page news block: one featured story, up to five
// side headlines, or a message when there is nothing to show.
type NewsFeed struct {
	Featured *models.MNewsItem
	Side     []models.MNewsItem
	Message  string
	Failed   bool
}

// -----------------------------------------------------------------------------

// BuildNewsFeed lays out a fetched feed. The first item is featured and the
// next SideNewsCount are listed beside it.
func BuildNewsFeed(items []models.MNewsItem, err error) NewsFeed {
	if err != nil {
		return NewsFeed{Message: NewsFailedText, Failed: true}
	}
	if len(items) == 0 {
		return NewsFeed{Message: NoNewsText}
	}

	featured := items[0]
	rest := items[1:]
	if len(rest) > SideNewsCount {
		rest = rest[:SideNewsCount]
	}
	return NewsFeed{
		Featured: &featured,
		Side:     append([]models.MNewsItem(nil), rest...),
	}
}

// -----------------------------------------------------------------------------

// PollNews publishes the feed once immediately and then every interval until
// ctx ends.
func PollNews(ctx context.Context, src NewsSource, interval time.Duration, publish func(NewsFeed), log *logger.Logger) {
	if interval <= 0 {
		interval = DefaultNewsInterval
	}

	load := func() {
		items, err := src.News(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warning("Failed to fetch news: %v", err)
		}
		publish(BuildNewsFeed(items, err))
	}

	load()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			load()
		}
	}
}
