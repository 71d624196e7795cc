package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"enam/internal/dashboard"
	"enam/internal/record"
)

var (
	chartSymbolStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartTrackStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	chartMarkStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	chartDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	chartErrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	deviationStyles = map[string]lipgloss.Style{
		"green":  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		"red":    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		"orange": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
)

var (
	ten      = decimal.NewFromInt(10)
	minusTen = decimal.NewFromInt(-10)
	half     = decimal.RequireFromString("0.5")
)

// DeviationColor classifies a percentage deviation: above +10 is green,
// below -10 red, anything between orange.
func DeviationColor(pct decimal.Decimal) string {
	switch {
	case pct.GreaterThan(ten):
		return "green"
	case pct.LessThan(minusTen):
		return "red"
	}
	return "orange"
}

// BarChart draws one horizontal bar per record comparing an actual volume
// with its average. The bar is coloured by the deviation and a marker shows
// where the average falls.
type BarChart struct {
	Symbol, Avg, Actual, Pct string
	// Width is the bar track length in cells.
	Width int

	out string
}

// String returns the chart from the last Render.
func (c *BarChart) String() string { return c.out }

// ShowError replaces the chart with an error line.
func (c *BarChart) ShowError(err error) {
	c.out = chartErrStyle.Render("Failed to load data: " + err.Error())
}

func (c *BarChart) Render(records []record.Record, _ []Column) error {
	if len(records) == 0 {
		c.out = chartDimStyle.Render(Placeholder)
		return nil
	}
	width := c.Width
	if width <= 0 {
		width = 40
	}
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.bar(r, width))
	}
	c.out = b.String()
	return nil
}

func (c *BarChart) bar(r record.Record, width int) string {
	avg, _ := r.Get(c.Avg).Decimal()
	actual, _ := r.Get(c.Actual).Decimal()
	pct, ok := r.Get(c.Pct).Decimal()
	if !ok {
		pct, _ = dashboard.Deviation(avg, actual)
	}
	color := DeviationColor(pct)

	filled, mark := BarGeometry(avg, actual, width)
	track := []rune(strings.Repeat("█", filled) + strings.Repeat("░", width-filled))
	var bar strings.Builder
	for i, ch := range track {
		switch {
		case i == mark:
			bar.WriteString(chartMarkStyle.Render("│"))
		case i < filled:
			bar.WriteString(deviationStyles[color].Render(string(ch)))
		default:
			bar.WriteString(chartTrackStyle.Render(string(ch)))
		}
	}

	symbol := strings.TrimSpace(r.Get(c.Symbol).String())
	return fmt.Sprintf("%s %s %s %s",
		chartSymbolStyle.Render(fmt.Sprintf("%-12s", symbol)),
		bar.String(),
		deviationStyles[color].Render(fmt.Sprintf("%8s", pct.StringFixed(2)+"%")),
		chartDimStyle.Render("avg "+dashboard.FormatCompact(avg)+" new "+dashboard.FormatCompact(actual)),
	)
}

// BarGeometry returns how many of width cells the actual value fills and at
// which cell the average marker sits. The scale runs to the larger of the
// two values plus half the average.
func BarGeometry(avg, actual decimal.Decimal, width int) (filled, mark int) {
	scale := decimal.Max(avg, actual).Add(avg.Mul(half))
	if !scale.IsPositive() {
		return 0, 0
	}
	w := decimal.NewFromInt(int64(width))
	filled = int(actual.Div(scale).Mul(w).IntPart())
	mark = int(avg.Div(scale).Mul(w).IntPart())
	filled = min(max(filled, 0), width)
	mark = min(max(mark, 0), width-1)
	return filled, mark
}
