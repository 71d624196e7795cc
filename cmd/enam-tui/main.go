package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"enam/internal/config"
	"enam/internal/controller"
	"enam/internal/dashboard"
	"enam/internal/filter"
	"enam/internal/pages"
	"enam/internal/portfolio"
	"enam/internal/render"
	"enam/internal/source"
	"enam/internal/util"
)

// Styles.
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	tabStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	tabActive   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6")).Padding(0, 1)
	filterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// chromeHeight is the tab bar, header, filter line and footer.
const chromeHeight = 4

var rangeSequence = []filter.Bucket{filter.AllTime, filter.OneDay, filter.OneWeek, filter.OneMonth}

// Messages.
type loadedMsg struct {
	page string
	l    controller.Loaded
}

// tab is one page with its controller and terminal surface.
type tab struct {
	page    *pages.Page
	ctrl    *controller.Controller
	surface render.Surface
	loading bool
}

// Model.
type model struct {
	ctx    context.Context
	cancel context.CancelFunc
	src    source.Source
	folio  portfolio.Service
	logger *slog.Logger
	now    func() time.Time

	tabs   []*tab
	active int

	viewport      viewport.Model
	search        textinput.Model
	searching     bool
	ready         bool
	width, height int
}

func initialModel(ctx context.Context, cancel context.CancelFunc, cat *pages.Catalogue, src source.Source, folio portfolio.Service, logger *slog.Logger) model {
	m := model{
		ctx:    ctx,
		cancel: cancel,
		src:    src,
		folio:  folio,
		logger: logger,
		now:    time.Now,
		search: textinput.New(),
	}
	m.search.Prompt = "search: "
	for _, p := range cat.Pages() {
		surf := p.Live(m.now)
		m.tabs = append(m.tabs, &tab{
			page:    p,
			surface: surf,
			ctrl:    controller.New(&p.Pipeline, src, folio, surf, logger),
		})
	}
	return m
}

func (m model) Init() tea.Cmd {
	return m.loadCmd(m.active)
}

// loadCmd starts a load of tab i. The token is taken now so a later load of
// the same tab supersedes this one.
func (m model) loadCmd(i int) tea.Cmd {
	t := m.tabs[i]
	t.loading = true
	token := t.ctrl.BeginLoad()
	ctx := m.ctx
	return func() tea.Msg {
		return loadedMsg{page: t.page.Name, l: t.ctrl.Fetch(ctx, token)}
	}
}

func (m model) current() *tab { return m.tabs[m.active] }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		for _, t := range m.tabs {
			if t.page.Name != msg.page {
				continue
			}
			if t.ctrl.CompleteLoad(msg.l) {
				t.loading = false
				m.logger.Info("page loaded", "page", msg.page, "records", len(t.ctrl.Dataset().All), "error", msg.l.Err)
			}
		}
		m.refreshContent()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		t := m.current()
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case "tab", "shift+tab":
			step := 1
			if msg.String() == "shift+tab" {
				step = len(m.tabs) - 1
			}
			m.active = (m.active + step) % len(m.tabs)
			m.refreshContent()
			if !m.current().ctrl.Loaded() && !m.current().loading {
				return m, m.loadCmd(m.active)
			}
			return m, nil
		case "R":
			return m, m.loadCmd(m.active)
		case "r":
			if _, ok := firstDim(t.page, controller.Range); ok {
				cur := slices.Index(rangeSequence, t.ctrl.Filters().Range)
				t.ctrl.Dispatch(controller.RangeChange(rangeSequence[(cur+1)%len(rangeSequence)]))
			}
		case "e":
			if d, ok := firstDim(t.page, controller.Choice); ok {
				t.ctrl.Dispatch(controller.EqualChange(d.Field, nextChoice(t.ctrl.Options(d.Field), t.ctrl.Filters().Equal[d.Field])))
			}
		case "/":
			if d, ok := firstDim(t.page, controller.Search); ok {
				m.searching = true
				m.search.SetValue(t.ctrl.Filters().Search[d.Field])
				m.search.Focus()
				return m, textinput.Blink
			}
		case "n", "pgdown":
			t.ctrl.Dispatch(controller.Next())
		case "p", "pgup":
			t.ctrl.Dispatch(controller.Prev())
		case "+", "-":
			if len(t.page.PageSizes) > 0 {
				t.ctrl.Dispatch(controller.PageSizeChange(nextSize(t.page.PageSizes, t.ctrl.Dataset().PageSize, msg.String() == "+")))
			}
		case "x":
			t.ctrl.Dispatch(controller.Change{Kind: controller.Reset})
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			if lt, ok := t.surface.(*render.LiveTable); ok {
				lt.ToggleSort(int(msg.String()[0] - '1'))
				t.ctrl.Dispatch(controller.SortChange(lt.Sort()))
			}
		default:
			if lt, ok := t.surface.(*render.LiveTable); ok {
				cmd := lt.Update(msg)
				m.refreshContent()
				return m, cmd
			}
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		m.refreshContent()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(m.height-chromeHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		for _, t := range m.tabs {
			if lt, ok := t.surface.(*render.LiveTable); ok {
				lt.SetPageSize(max(vpHeight-2, 3))
			}
		}
		m.refreshContent()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		t := m.current()
		if d, ok := firstDim(t.page, controller.Search); ok {
			t.ctrl.Dispatch(controller.SearchChange(d.Field, m.search.Value()))
		}
		fallthrough
	case "esc":
		m.searching = false
		m.search.Blur()
		m.refreshContent()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *model) refreshContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderContent())
}

func (m model) renderContent() string {
	t := m.current()
	if t.loading && !t.ctrl.Loaded() {
		return dimStyle.Render("  Loading...")
	}
	switch s := t.surface.(type) {
	case *render.LiveTable:
		return s.View()
	case fmt.Stringer:
		return s.String()
	}
	return ""
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}
	t := m.current()

	var tabs []string
	for i, tb := range m.tabs {
		st := tabStyle
		if i == m.active {
			st = tabActive
		}
		tabs = append(tabs, st.Render(tb.page.Name))
	}
	tabBar := padOrTrunc(lipgloss.JoinHorizontal(lipgloss.Top, tabs...), m.width)

	ds := t.ctrl.Dataset()
	headerText := fmt.Sprintf(" %s    %s of %s records", t.page.Title,
		dashboard.FormatInt(int64(len(ds.Filtered))), dashboard.FormatInt(int64(len(ds.All))))
	if ds.PageSize > 0 {
		headerText += fmt.Sprintf("    page %d/%d (%d per page)", ds.CurrentPage, t.ctrl.TotalPages(), ds.PageSize)
	}
	if lt, ok := t.surface.(*render.LiveTable); ok && lt.Sort().Column != "" {
		dir := "asc"
		if lt.Sort().Desc {
			dir = "desc"
		}
		headerText += fmt.Sprintf("    sort: %s %s", lt.Sort().Column, dir)
	}
	headerBar := headerStyle.Render(padOrTrunc(headerText, m.width))

	filterLine := filterStyle.Render(padOrTrunc(" "+describeFilters(t.page, t.ctrl.Filters()), m.width))
	if m.searching {
		filterLine = m.search.View()
	}

	footerText := " q quit  tab page  r range  e exchange/source  / search  n/p page  +/- size  x reset  R reload  1-9 sort"
	footerBar := footerStyle.Render(padOrTrunc(footerText, m.width))

	return tabBar + "\n" + headerBar + "\n" + filterLine + "\n" + m.viewport.View() + "\n" + footerBar
}

func describeFilters(p *pages.Page, fs controller.FilterState) string {
	var parts []string
	for _, d := range p.Dimensions {
		switch d.Kind {
		case controller.Range:
			parts = append(parts, d.Param+"="+string(fs.Range))
		case controller.Choice:
			if v := fs.Equal[d.Field]; v != "" {
				parts = append(parts, d.Param+"="+v)
			}
		case controller.Search:
			if v := fs.Search[d.Field]; v != "" {
				parts = append(parts, fmt.Sprintf("%s=%q", d.Param, v))
			}
		case controller.Tokens:
			if n := len(fs.Selected[d.Field]); n > 0 {
				parts = append(parts, fmt.Sprintf("%s: %d selected", d.Param, n))
			}
		case controller.Day:
			if day, ok := fs.Dates[d.Field]; ok && !day.IsZero() {
				parts = append(parts, d.Param+"="+day.Format("02 Jan 2006"))
			}
		}
	}
	if len(parts) == 0 {
		return "no filters"
	}
	return strings.Join(parts, "  ")
}

func firstDim(p *pages.Page, kind controller.DimensionKind) (controller.Dimension, bool) {
	for _, d := range p.Dimensions {
		if d.Kind == kind {
			return d, true
		}
	}
	return controller.Dimension{}, false
}

// nextChoice cycles "" -> options[0] -> ... -> options[n-1] -> "".
func nextChoice(options []string, cur string) string {
	if len(options) == 0 {
		return ""
	}
	i := slices.Index(options, cur)
	if i+1 >= len(options) {
		return ""
	}
	return options[i+1]
}

func nextSize(sizes []int, cur int, up bool) int {
	i := slices.Index(sizes, cur)
	switch {
	case i < 0:
		return sizes[0]
	case up:
		return sizes[min(i+1, len(sizes)-1)]
	}
	return sizes[max(i-1, 0)]
}

func padOrTrunc(s string, width int) string {
	w := lipgloss.Width(s)
	if w > width {
		return lipgloss.NewStyle().MaxWidth(width).Render(s)
	}
	return s + strings.Repeat(" ", width-w)
}

func main() {
	logPath := fmt.Sprintf("/tmp/enam-tui-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger := util.NewLoggerTo(logFile, cfg.Logging.Level, "text")

	cat := pages.Default()
	if err := cat.Apply(cfg.Pages); err != nil {
		fmt.Fprintf(os.Stderr, "applying page overrides: %v\n", err)
		os.Exit(1)
	}
	src := source.NewFetcher(cfg.Sources.BaseURL, cfg.Sources.DataDir, logger)

	folio, err := portfolio.Open(cfg, logger)
	if err != nil {
		logger.Warn("portfolio unavailable, scoped pages will fail", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(
		initialModel(ctx, cancel, cat, src, folio, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
