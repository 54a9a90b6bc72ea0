package dashboard

import "stock-dashboard/src/models"

// NoResultsText is the single non-selectable row shown for an empty
// suggestion list.
const NoResultsText = "No matching results found."

// View is everything the controllers draw on. Implementations are called from
// controller goroutines; they must return quickly and must not call back into
// a controller synchronously.
type View interface {
	// ShowSuggestions renders the candidate list with active highlighted
	// (-1 for none). An empty slice means "no matching results".
	ShowSuggestions(items []models.MSearchCandidate, active int)
	HideSuggestions()
	SetSearching(busy bool)
	SetInputText(text string)

	ShowMessage(text string, isError bool)
	ClearMessage()

	SetLoading(busy bool)
	ClearData()
	ShowData(m DisplayModel)
	SetWishlistAffordance(symbol string, visible, filled bool)

	SetState(s State)
}

// Theme is the colour scheme of the page.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme defaults anything unknown to dark.
func ParseTheme(s string) Theme {
	if Theme(s) == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

// ThemeColors are the axis and grid colours a chart needs for a theme.
type ThemeColors struct {
	Text string
	Grid string
}

func (t Theme) Colors() ThemeColors {
	if t == ThemeLight {
		return ThemeColors{Text: "#333333", Grid: "rgba(0,0,0,0.1)"}
	}
	return ThemeColors{Text: "#e0e0e0", Grid: "rgba(255,255,255,0.1)"}
}

// ChartRenderer draws a prepared series. Each Render returns a new handle;
// the caller destroys the previous one first.
type ChartRenderer interface {
	Render(spec ChartSpec) (ChartHandle, error)
}

// ChartHandle is one live chart.
type ChartHandle interface {
	ApplyTheme(c ThemeColors)
	Destroy()
}
