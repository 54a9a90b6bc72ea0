package dashboard

import (
	"fmt"
	"math"
	"sync"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/models"
)

// ChartType selects how the close series is drawn.
type ChartType string

const (
	ChartLine ChartType = "line"
	ChartBar  ChartType = "bar"
	ChartArea ChartType = "area"
)

// Granularity selects the bucket size of the close series.
type Granularity string

const (
	GroupWeek  Granularity = "week"
	GroupMonth Granularity = "month"
)

const (
	seriesBorderColor     = "#1e90ff"
	seriesBackgroundColor = "rgba(30,144,255,0.3)"
)

// -----------------------------------------------------------------------------

func ParseChartType(s string) (ChartType, error) {
	switch t := ChartType(s); t {
	case ChartLine, ChartBar, ChartArea:
		return t, nil
	}
	return "", helpers.NewValidationError("unknown chart type %q", s)
}

// -----------------------------------------------------------------------------

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case GroupWeek, GroupMonth:
		return g, nil
	}
	return "", helpers.NewValidationError("unknown grouping %q", s)
}

// -----------------------------------------------------------------------------

// ChartPoint is one bucket of the grouped series.
type ChartPoint struct {
	Label   string
	Tooltip string
	Close   float64
}

// ChartSpec is the complete description handed to a ChartRenderer.
type ChartSpec struct {
	Type            ChartType
	Granularity     Granularity
	Points          []ChartPoint
	XLabel          string
	YLabel          string
	SeriesLabel     string
	Fill            bool
	Tension         float64
	BorderColor     string
	BackgroundColor string
	Colors          ThemeColors
}

// RendererKind is the primitive the renderer draws: area charts are filled lines.
func (s ChartSpec) RendererKind() string {
	if s.Type == ChartArea {
		return string(ChartLine)
	}
	return string(s.Type)
}

// -----------------------------------------------------------------------------

// weekOfYear numbers weeks from January 1st of t's year, offset by the
// weekday January 1st falls on, so week 1 ends on the first Saturday.
func weekOfYear(t time.Time) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	days := t.Sub(jan1).Hours() / 24
	return int(math.Ceil((days + float64(jan1.Weekday()) + 1) / 7))
}

// -----------------------------------------------------------------------------

// GroupCandles collapses candles into weekly or monthly buckets, each holding
// the last close of the period. Calendar fields are read in loc.
func GroupCandles(candles []models.MCandle, g Granularity, loc *time.Location) []ChartPoint {
	if loc == nil {
		loc = time.UTC
	}

	type bucket struct {
		key   string
		first time.Time
		close float64
	}
	var buckets []bucket

	for _, c := range candles {
		t := time.Unix(c.T, 0).In(loc)
		var key string
		newBucket := false
		switch g {
		case GroupMonth:
			key = fmt.Sprintf("%d-%d", t.Year(), t.Month())
		default:
			key = fmt.Sprintf("%d-%d", t.Year(), weekOfYear(t))
			newBucket = t.Weekday() == time.Sunday
		}

		n := len(buckets)
		if n == 0 || buckets[n-1].key != key || newBucket {
			buckets = append(buckets, bucket{key: key, first: t, close: c.C})
			continue
		}
		buckets[n-1].close = c.C
	}

	points := make([]ChartPoint, len(buckets))
	for i, b := range buckets {
		if g == GroupMonth {
			label := b.first.Format("Jan 2006")
			points[i] = ChartPoint{Label: label, Tooltip: label, Close: b.close}
			continue
		}
		points[i] = ChartPoint{
			Label:   fmt.Sprintf("Week %d", i+1),
			Tooltip: b.first.Format("01/02/2006"),
			Close:   b.close,
		}
	}
	return points
}

// -----------------------------------------------------------------------------

// BuildChartSpec groups candles and fills in the presentation settings for
// the chart type and theme.
func BuildChartSpec(candles []models.MCandle, ct ChartType, g Granularity, theme Theme, loc *time.Location) ChartSpec {
	xLabel := "Week"
	if g == GroupMonth {
		xLabel = "Month"
	}
	tension := 0.3
	if ct == ChartBar {
		tension = 0
	}
	return ChartSpec{
		Type:            ct,
		Granularity:     g,
		Points:          GroupCandles(candles, g, loc),
		XLabel:          xLabel,
		YLabel:          "Price ($)",
		SeriesLabel:     "Close Price",
		Fill:            ct == ChartArea,
		Tension:         tension,
		BorderColor:     seriesBorderColor,
		BackgroundColor: seriesBackgroundColor,
		Colors:          theme.Colors(),
	}
}

// -----------------------------------------------------------------------------

// ChartAdapter owns the single live chart. Every Render disposes of the
// previous chart before drawing a new one.
type ChartAdapter struct {
	Renderer ChartRenderer
	Location *time.Location

	mu     sync.Mutex
	handle ChartHandle
	theme  Theme
}

// -----------------------------------------------------------------------------

func NewChartAdapter(renderer ChartRenderer, loc *time.Location, theme Theme) *ChartAdapter {
	return &ChartAdapter{Renderer: renderer, Location: loc, theme: theme}
}

// -----------------------------------------------------------------------------

func (a *ChartAdapter) Render(candles []models.MCandle, ct ChartType, g Granularity) error {
	if len(candles) == 0 {
		return helpers.NewValidationError("no price history to chart")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.destroyLocked()
	handle, err := a.Renderer.Render(BuildChartSpec(candles, ct, g, a.theme, a.Location))
	if err != nil {
		return err
	}
	a.handle = handle
	return nil
}

// -----------------------------------------------------------------------------

func (a *ChartAdapter) Clear() {
	a.mu.Lock()
	a.destroyLocked()
	a.mu.Unlock()
}

// -----------------------------------------------------------------------------

// ApplyTheme recolours the live chart in place.
func (a *ChartAdapter) ApplyTheme(theme Theme) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.theme = theme
	if a.handle != nil {
		a.handle.ApplyTheme(theme.Colors())
	}
}

// -----------------------------------------------------------------------------

func (a *ChartAdapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handle != nil
}

// -----------------------------------------------------------------------------

func (a *ChartAdapter) destroyLocked() {
	if a.handle != nil {
		a.handle.Destroy()
		a.handle = nil
	}
}
