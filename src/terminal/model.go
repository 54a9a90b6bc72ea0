package terminal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"stock-dashboard/src/dashboard"
	"stock-dashboard/src/logger"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultWidth = 80
	chartHeight  = 10
)

var chartTypes = []string{"line", "bar", "area"}

// Controller is the part of dashboard.Dashboard the terminal drives.
type Controller interface {
	OnInput(text string)
	OnKey(k dashboard.Key)
	ToggleWishlist(ctx context.Context) error
	SetChartType(s string) error
	SetGranularity(s string) error
	SetTheme(t dashboard.Theme)
	Theme() dashboard.Theme
	WishlistDetails(ctx context.Context) ([]dashboard.WishlistRow, error)
}

type changedMsg struct{}

type toggledMsg struct{ err error }

type detailsMsg struct {
	rows []dashboard.WishlistRow
	err  error
}

// -----------------------------------------------------------------------------

// Model is the bubbletea program of the terminal dashboard. Controllers push
// into the Screen; Model redraws whenever the Screen reports a change.
type Model struct {
	ctx    context.Context
	ctrl   Controller
	screen *Screen
	logger *logger.Logger

	input     textinput.Model
	lastInput string
	frame     Frame

	theme     dashboard.Theme
	styles    styles
	chartType int
	monthly   bool

	width, height int
}

// -----------------------------------------------------------------------------

func NewModel(ctx context.Context, ctrl Controller, screen *Screen, log *logger.Logger) Model {
	in := textinput.New()
	in.Placeholder = "Search company or ticker (e.g. Apple, AAPL)"
	in.Prompt = "Search ▸ "
	in.CharLimit = 64
	in.Focus()

	theme := ctrl.Theme()
	return Model{
		ctx:    ctx,
		ctrl:   ctrl,
		screen: screen,
		logger: log,
		input:  in,
		frame:  screen.Snapshot(),
		theme:  theme,
		styles: newStyles(theme),
	}
}

// -----------------------------------------------------------------------------

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(m.screen.Changed()))
}

// -----------------------------------------------------------------------------

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = msg.Width - len(m.input.Prompt) - 1
		return m, nil

	case changedMsg:
		if text, ok := m.screen.TakeInput(); ok {
			m.input.SetValue(text)
			m.input.CursorEnd()
			m.lastInput = text
		}
		m.frame = m.screen.Snapshot()
		return m, waitForChange(m.screen.Changed())

	case toggledMsg:
		if msg.err != nil {
			m.logger.Debug("Wishlist toggle failed: %v", msg.err)
		}
		return m, nil

	case detailsMsg:
		if msg.err != nil {
			m.logger.Warning("Loading wishlist details failed: %v", msg.err)
			m.screen.ShowMessage("Could not load your wishlist.", true)
			return m, nil
		}
		rows := msg.rows
		if rows == nil {
			rows = []dashboard.WishlistRow{}
		}
		m.screen.SetWishlistRows(rows)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// -----------------------------------------------------------------------------

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "up":
		m.ctrl.OnKey(dashboard.KeyUp)
		return m, nil
	case "down":
		m.ctrl.OnKey(dashboard.KeyDown)
		return m, nil
	case "enter":
		m.ctrl.OnKey(dashboard.KeyEnter)
		return m, nil
	case "esc":
		m.ctrl.OnKey(dashboard.KeyEscape)
		return m, nil

	case "ctrl+w":
		ctx, ctrl := m.ctx, m.ctrl
		return m, func() tea.Msg { return toggledMsg{err: ctrl.ToggleWishlist(ctx)} }

	case "ctrl+t":
		m.chartType = (m.chartType + 1) % len(chartTypes)
		if err := m.ctrl.SetChartType(chartTypes[m.chartType]); err != nil {
			m.screen.ShowMessage(err.Error(), true)
		}
		return m, nil

	case "ctrl+g":
		m.monthly = !m.monthly
		g := "week"
		if m.monthly {
			g = "month"
		}
		if err := m.ctrl.SetGranularity(g); err != nil {
			m.screen.ShowMessage(err.Error(), true)
		}
		return m, nil

	case "ctrl+l":
		if m.theme == dashboard.ThemeLight {
			m.theme = dashboard.ThemeDark
		} else {
			m.theme = dashboard.ThemeLight
		}
		m.styles = newStyles(m.theme)
		theme, ctrl := m.theme, m.ctrl
		return m, func() tea.Msg {
			ctrl.SetTheme(theme)
			return nil
		}

	case "ctrl+o":
		if m.frame.ShowRows {
			m.screen.SetWishlistRows(nil)
			return m, nil
		}
		ctx, ctrl := m.ctx, m.ctrl
		return m, func() tea.Msg {
			rows, err := ctrl.WishlistDetails(ctx)
			return detailsMsg{rows: rows, err: err}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != m.lastInput {
		m.lastInput = v
		m.ctrl.OnInput(v)
	}
	return m, cmd
}

// -----------------------------------------------------------------------------
// Rendering
// -----------------------------------------------------------------------------

func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	f := m.frame
	st := m.styles

	var b strings.Builder
	b.WriteString(st.header.Render(padOrTrunc(m.marketLine(), width)))
	b.WriteString("\n\n")

	b.WriteString(m.input.View())
	if f.Searching {
		b.WriteString(st.dim.Render("  searching…"))
	}
	b.WriteString("\n")

	if f.SuggestOpen {
		if len(f.Suggestions) == 0 {
			b.WriteString(st.suggestion.Inherit(st.dim).Render(dashboard.NoResultsText) + "\n")
		}
		for i, c := range f.Suggestions {
			style := st.suggestion
			if i == f.Active {
				style = st.active
			}
			b.WriteString(style.Render(c.Label()) + "\n")
		}
	}

	if f.Message != "" {
		style := st.infoText
		if f.MessageError {
			style = st.errorText
		}
		b.WriteString("\n" + style.Render(f.Message) + "\n")
	}

	if f.Loading {
		b.WriteString("\n" + st.dim.Render("Loading…") + "\n")
	}

	if f.Data != nil {
		b.WriteString("\n" + m.dataPanel(*f.Data, f) + "\n")
	}

	if f.Chart != nil {
		b.WriteString("\n" + strings.Join(DrawChart(*f.Chart, width, chartHeight), "\n") + "\n")
	}

	if f.ShowRows {
		b.WriteString("\n" + m.wishlistPanel(f.Rows) + "\n")
	}

	// News fills the front page until a company is displayed.
	if f.News != nil && f.Data == nil && !f.ShowRows && !f.Loading {
		b.WriteString("\n" + m.newsPanel(*f.News, width) + "\n")
	}

	help := " ↑/↓ select  enter load  esc close  ^w wishlist  ^o my list  ^t chart  ^g week/month  ^l theme  ^c quit"
	b.WriteString("\n" + st.footer.Render(padOrTrunc(help, width)))
	return b.String()
}

// -----------------------------------------------------------------------------

func (m Model) marketLine() string {
	f := m.frame
	parts := []string{" Stock Dashboard"}
	if f.Market != nil {
		keys := make([]string, 0, len(f.Market.Indices))
		for k := range f.Market.Indices {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			idx := f.Market.Indices[k]
			if idx == nil {
				parts = append(parts, strings.ToUpper(k)+" n/a")
				continue
			}
			parts = append(parts, fmt.Sprintf("%s %.2f (%+.2f%%)", strings.ToUpper(k), idx.Price, idx.Percent))
		}
		if f.Market.MarketOpen {
			parts = append(parts, "market open")
		} else {
			parts = append(parts, "market closed")
		}
	}
	return strings.Join(parts, "   ")
}

// -----------------------------------------------------------------------------

func (m Model) dataPanel(d dashboard.DisplayModel, f Frame) string {
	st := m.styles

	title := st.symbol.Render(d.Symbol) + "  " + st.value.Render(d.CompanyName)
	if f.WishVisible {
		star := "☆ add to wishlist (^w)"
		if f.WishFilled {
			star = "★ in wishlist (^w)"
		}
		title += "  " + st.star.Render(star)
	}

	change := d.Change
	switch d.ChangeClass {
	case "pos":
		change = st.gain.Render(change)
	case "neg":
		change = st.loss.Render(change)
	}

	row := func(label, value string) string {
		return st.label.Render(fmt.Sprintf("%-15s", label)) + value
	}
	left := lipgloss.JoinVertical(lipgloss.Left,
		row("Price", st.value.Render(d.Price)),
		row("Change", change),
		row("Previous close", d.PreviousClose),
		row("Open", d.Open),
		row("High", d.High),
		row("Low", d.Low),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		row("Sector", d.Sector),
		row("Exchange", d.Exchange),
		row("Market cap", d.MarketCap),
		row("Description", d.Description),
	)
	if d.Logo != "" {
		right = lipgloss.JoinVertical(lipgloss.Left, right, row("Logo", st.dim.Render(d.Logo)))
	}
	return title + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, left, "    ", right)
}

// -----------------------------------------------------------------------------

func (m Model) wishlistPanel(rows []dashboard.WishlistRow) string {
	st := m.styles
	lines := []string{st.value.Render("My wishlist")}
	if len(rows) == 0 {
		lines = append(lines, st.dim.Render("Your wishlist is empty."))
	}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s %-30s %-24s %10s",
			st.symbol.Render(fmt.Sprintf("%-8s", r.Symbol)), r.Name, r.Industry, r.Price))
	}
	return strings.Join(lines, "\n")
}

// -----------------------------------------------------------------------------

func (m Model) newsPanel(feed dashboard.NewsFeed, width int) string {
	st := m.styles
	lines := []string{st.value.Render("Top news")}
	if feed.Featured == nil {
		style := st.dim
		if feed.Failed {
			style = st.errorText
		}
		return strings.Join(append(lines, style.Render(feed.Message)), "\n")
	}

	item := feed.Featured
	lines = append(lines, st.symbol.Render(padOrTrunc(item.Headline, width)))
	meta := []string{}
	if item.Datetime > 0 {
		meta = append(meta, time.Unix(item.Datetime, 0).Format("01/02/2006"))
	}
	if item.Source != "" {
		meta = append(meta, item.Source)
	}
	if item.URL != "" {
		meta = append(meta, item.URL)
	}
	if len(meta) > 0 {
		lines = append(lines, st.dim.Render(padOrTrunc(strings.Join(meta, "  "), width)))
	}
	for _, side := range feed.Side {
		lines = append(lines, padOrTrunc("  • "+side.Headline, width))
	}
	return strings.Join(lines, "\n")
}

// -----------------------------------------------------------------------------

func padOrTrunc(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
