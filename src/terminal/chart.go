package terminal

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"stock-dashboard/src/dashboard"

	"github.com/charmbracelet/lipgloss"
)

const axisWidth = 10

var errNoPoints = errors.New("chart has no points")

// -----------------------------------------------------------------------------

// ChartRenderer draws charts into a Screen. Only one chart is live at a
// time; a destroyed handle no longer affects the screen.
type ChartRenderer struct {
	screen *Screen
}

var _ dashboard.ChartRenderer = (*ChartRenderer)(nil)

func NewChartRenderer(s *Screen) *ChartRenderer {
	return &ChartRenderer{screen: s}
}

// -----------------------------------------------------------------------------

func (r *ChartRenderer) Render(spec dashboard.ChartSpec) (dashboard.ChartHandle, error) {
	if len(spec.Points) == 0 {
		return nil, errNoPoints
	}
	spec.Points = append([]dashboard.ChartPoint(nil), spec.Points...)
	h := &chartHandle{screen: r.screen, spec: spec}

	r.screen.mu.Lock()
	r.screen.chart = h
	r.screen.mu.Unlock()
	r.screen.touch()
	return h, nil
}

// -----------------------------------------------------------------------------

type chartHandle struct {
	screen *Screen
	spec   dashboard.ChartSpec // guarded by screen.mu
}

func (h *chartHandle) ApplyTheme(c dashboard.ThemeColors) {
	h.screen.mu.Lock()
	h.spec.Colors = c
	live := h.screen.chart == h
	h.screen.mu.Unlock()
	if live {
		h.screen.touch()
	}
}

func (h *chartHandle) Destroy() {
	h.screen.mu.Lock()
	live := h.screen.chart == h
	if live {
		h.screen.chart = nil
	}
	h.screen.mu.Unlock()
	if live {
		h.screen.touch()
	}
}

// -----------------------------------------------------------------------------
// Drawing
// -----------------------------------------------------------------------------

// DrawChart lays spec out in a width x height plot area plus a title, an
// x axis and a label row. Bars fill up to the value, lines mark it and area
// charts shade below the line.
func DrawChart(spec dashboard.ChartSpec, width, height int) []string {
	plotWidth := width - axisWidth
	if plotWidth < 2 {
		plotWidth = 2
	}
	if height < 2 {
		height = 2
	}

	points := samplePoints(spec.Points, plotWidth)
	lo, hi := valueRange(points)

	grid := make([][]rune, height)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", len(points)))
	}
	for x, p := range points {
		top := int(math.Round((p.Close - lo) / (hi - lo) * float64(height-1)))
		for y := 0; y <= top; y++ {
			row := height - 1 - y
			switch {
			case spec.RendererKind() == string(dashboard.ChartBar):
				grid[row][x] = '█'
			case y == top:
				grid[row][x] = '•'
			case spec.Fill:
				grid[row][x] = '░'
			}
		}
	}

	axis := lipgloss.NewStyle()
	if strings.HasPrefix(spec.Colors.Text, "#") {
		axis = axis.Foreground(lipgloss.Color(spec.Colors.Text))
	}
	series := lipgloss.NewStyle()
	if strings.HasPrefix(spec.BorderColor, "#") {
		series = series.Foreground(lipgloss.Color(spec.BorderColor))
	}

	lines := make([]string, 0, height+3)
	lines = append(lines, axis.Bold(true).Render(fmt.Sprintf("%s · %s by %s", spec.SeriesLabel, spec.YLabel, spec.XLabel)))
	for y, row := range grid {
		label := strings.Repeat(" ", axisWidth-1)
		switch y {
		case 0:
			label = fmt.Sprintf("%*.2f", axisWidth-1, hi)
		case height - 1:
			label = fmt.Sprintf("%*.2f", axisWidth-1, lo)
		}
		lines = append(lines, axis.Render(label+"│")+series.Render(string(row)))
	}
	lines = append(lines, axis.Render(strings.Repeat(" ", axisWidth-1)+"└"+strings.Repeat("─", len(points))))
	lines = append(lines, axis.Render(strings.Repeat(" ", axisWidth)+xLabels(points)))
	return lines
}

// -----------------------------------------------------------------------------

// samplePoints keeps at most n evenly spaced points, always including the
// first and the last.
func samplePoints(points []dashboard.ChartPoint, n int) []dashboard.ChartPoint {
	if len(points) <= n {
		return points
	}
	out := make([]dashboard.ChartPoint, n)
	for i := range out {
		out[i] = points[i*(len(points)-1)/(n-1)]
	}
	return out
}

func valueRange(points []dashboard.ChartPoint) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, p.Close)
		hi = math.Max(hi, p.Close)
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi
}

func xLabels(points []dashboard.ChartPoint) string {
	first, last := points[0].Label, points[len(points)-1].Label
	if len(points) == 1 {
		return first
	}
	gap := len(points) - len([]rune(first)) - len([]rune(last))
	if gap < 1 {
		return first
	}
	return first + strings.Repeat(" ", gap) + last
}
