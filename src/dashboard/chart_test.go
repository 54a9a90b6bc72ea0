package dashboard

import (
	"errors"
	"testing"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/models"
)

func day(year int, month time.Month, d, hour, minute int) int64 {
	return time.Date(year, month, d, hour, minute, 0, 0, time.UTC).Unix()
}

func TestWeekOfYear(t *testing.T) {
	tests := []struct {
		ts   int64
		want int
	}{
		{day(2024, 1, 1, 0, 0), 1}, // Monday
		{day(2024, 1, 6, 0, 0), 1}, // Saturday
		{day(2024, 1, 7, 0, 0), 2}, // Sunday
		{day(2024, 1, 8, 0, 0), 2}, // Monday
		{day(2023, 1, 1, 0, 0), 1}, // Sunday, Jan 1st
		{day(2023, 1, 8, 0, 0), 2}, // Sunday
	}
	for _, tt := range tests {
		got := weekOfYear(time.Unix(tt.ts, 0).UTC())
		if got != tt.want {
			t.Errorf("weekOfYear(%s) = %d, want %d", time.Unix(tt.ts, 0).UTC().Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestGroupCandlesAcrossWeekBoundary(t *testing.T) {
	candles := []models.MCandle{{T: 1704067200, C: 100}, {T: 1704672000, C: 105}}

	weeks := GroupCandles(candles, GroupWeek, time.UTC)
	if len(weeks) != 2 {
		t.Fatalf("weekly buckets = %d, want 2", len(weeks))
	}
	if weeks[0].Close != 100 || weeks[1].Close != 105 {
		t.Errorf("weekly closes = %v, %v", weeks[0].Close, weeks[1].Close)
	}
	if weeks[1].Label != "Week 2" || weeks[1].Tooltip != "01/08/2024" {
		t.Errorf("week label = %q tooltip = %q", weeks[1].Label, weeks[1].Tooltip)
	}

	months := GroupCandles(candles, GroupMonth, time.UTC)
	if len(months) != 1 {
		t.Fatalf("monthly buckets = %d, want 1", len(months))
	}
	if months[0].Close != 105 || months[0].Label != "Jan 2024" {
		t.Errorf("month = %+v, want close 105 label Jan 2024", months[0])
	}
}

func TestGroupCandlesKeepsLastCloseOfWeek(t *testing.T) {
	var candles []models.MCandle
	for d := 1; d <= 5; d++ {
		candles = append(candles, models.MCandle{T: day(2024, 1, d, 0, 0), C: float64(100 + d)})
	}

	got := GroupCandles(candles, GroupWeek, time.UTC)
	if len(got) != 1 {
		t.Fatalf("buckets = %d, want 1", len(got))
	}
	if got[0].Close != 105 || got[0].Label != "Week 1" || got[0].Tooltip != "01/01/2024" {
		t.Errorf("bucket = %+v", got[0])
	}
}

func TestGroupCandlesSundayStartsNewWeek(t *testing.T) {
	// Intraday timestamps push Saturday afternoon into the next week number,
	// so only the Sunday rule separates it from Sunday.
	candles := []models.MCandle{
		{T: day(2024, 1, 6, 14, 30), C: 1},
		{T: day(2024, 1, 7, 14, 30), C: 2},
	}
	if w1, w2 := weekOfYear(time.Unix(candles[0].T, 0).UTC()), weekOfYear(time.Unix(candles[1].T, 0).UTC()); w1 != w2 {
		t.Fatalf("expected equal week numbers, got %d and %d", w1, w2)
	}
	if got := GroupCandles(candles, GroupWeek, time.UTC); len(got) != 2 {
		t.Errorf("buckets = %d, want 2", len(got))
	}
}

func TestGroupCandlesSinglePoint(t *testing.T) {
	candles := []models.MCandle{{T: 1704067200, C: 42}}
	for _, g := range []Granularity{GroupWeek, GroupMonth} {
		got := GroupCandles(candles, g, nil)
		if len(got) != 1 || got[0].Close != 42 {
			t.Errorf("%s: got %+v", g, got)
		}
	}
}

func TestBuildChartSpec(t *testing.T) {
	candles := []models.MCandle{{T: 1704067200, C: 1}}

	area := BuildChartSpec(candles, ChartArea, GroupMonth, ThemeLight, time.UTC)
	if !area.Fill || area.RendererKind() != "line" || area.Tension != 0.3 {
		t.Errorf("area spec = %+v", area)
	}
	if area.XLabel != "Month" || area.YLabel != "Price ($)" || area.SeriesLabel != "Close Price" {
		t.Errorf("labels = %q %q %q", area.XLabel, area.YLabel, area.SeriesLabel)
	}
	if area.Colors != ThemeLight.Colors() {
		t.Errorf("colors = %+v", area.Colors)
	}

	bar := BuildChartSpec(candles, ChartBar, GroupWeek, ThemeDark, time.UTC)
	if bar.Fill || bar.RendererKind() != "bar" || bar.Tension != 0 || bar.XLabel != "Week" {
		t.Errorf("bar spec = %+v", bar)
	}
}

func TestParseChartOptions(t *testing.T) {
	if ct, err := ParseChartType("area"); err != nil || ct != ChartArea {
		t.Errorf("ParseChartType(area) = %v, %v", ct, err)
	}
	var ve *helpers.ValidationError
	if _, err := ParseChartType("pie"); !errors.As(err, &ve) {
		t.Errorf("ParseChartType(pie) err = %v, want ValidationError", err)
	}
	if _, err := ParseGranularity("day"); !errors.As(err, &ve) {
		t.Errorf("ParseGranularity(day) err = %v, want ValidationError", err)
	}
}

func TestChartAdapterDisposesPreviousChart(t *testing.T) {
	r := &fakeRenderer{}
	a := NewChartAdapter(r, time.UTC, ThemeDark)
	candles := []models.MCandle{{T: 1704067200, C: 1}, {T: 1704672000, C: 2}}

	for _, ct := range []ChartType{ChartLine, ChartBar, ChartArea} {
		if err := a.Render(candles, ct, GroupWeek); err != nil {
			t.Fatalf("Render(%s): %v", ct, err)
		}
	}
	rendered, destroyed, live := r.counts()
	if rendered != 3 || destroyed != 2 || live != 1 {
		t.Errorf("rendered=%d destroyed=%d live=%d, want 3/2/1", rendered, destroyed, live)
	}

	a.ApplyTheme(ThemeLight)
	if rendered, _, _ := r.counts(); rendered != 3 {
		t.Errorf("theme change re-rendered the chart")
	}
	last := r.handles[len(r.handles)-1]
	if len(last.colors) != 1 || last.colors[0] != ThemeLight.Colors() {
		t.Errorf("theme colors = %+v", last.colors)
	}

	a.Clear()
	if _, _, live := r.counts(); live != 0 || a.Active() {
		t.Errorf("chart still live after Clear")
	}

	if err := a.Render(nil, ChartLine, GroupWeek); err == nil {
		t.Error("Render with no candles should fail")
	}
}
