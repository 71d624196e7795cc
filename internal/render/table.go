package render

import (
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"enam/internal/record"
)

const (
	maxWrapWidth   = 32
	maxNoWrapWidth = 64
)

var (
	liveHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	liveEmptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(1, 2)
	liveErrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(1, 2)
)

// LiveTable is a long-lived terminal table. The first Render fixes the
// column layout and applies the initial sort; later Renders only replace
// the rows, keeping whatever sort and page size the user has chosen since.
type LiveTable struct {
	Now func() time.Time

	model    table.Model
	built    bool
	cols     []Column
	records  []record.Record
	shown    []record.Record
	sort     Sort
	pageSize int
	err      error
}

// NewLiveTable returns an unbuilt table with an initial sort and page size.
func NewLiveTable(initial Sort, pageSize int) *LiveTable {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &LiveTable{sort: initial, pageSize: pageSize}
}

func (t *LiveTable) Render(records []record.Record, cols []Column) error {
	t.err = nil
	if !t.built {
		t.cols = cols
		st := table.DefaultStyles()
		st.Header = st.Header.Bold(true)
		t.model = table.New(
			table.WithColumns(t.layout(records)),
			table.WithHeight(t.pageSize),
			table.WithFocused(true),
			table.WithStyles(st),
		)
		t.built = true
	}
	t.records = append([]record.Record(nil), records...)
	t.refresh()
	return nil
}

// ShowError keeps the layout but shows err instead of rows.
func (t *LiveTable) ShowError(err error) { t.err = err }

// Sort returns the current sort.
func (t *LiveTable) Sort() Sort { return t.sort }

// SetSort re-sorts the visible rows.
func (t *LiveTable) SetSort(s Sort) {
	t.sort = s
	if t.built {
		t.refresh()
	}
}

// ToggleSort sorts by the i-th column, flipping the direction when it is
// already the sort column.
func (t *LiveTable) ToggleSort(i int) {
	if i < 0 || i >= len(t.cols) {
		return
	}
	key := t.cols[i].Key
	s := Sort{Column: key}
	if t.sort.Column == key {
		s.Desc = !t.sort.Desc
	}
	t.SetSort(s)
}

// PageSize returns the number of visible rows.
func (t *LiveTable) PageSize() int { return t.pageSize }

// SetPageSize changes the number of visible rows.
func (t *LiveTable) SetPageSize(n int) {
	if n <= 0 {
		return
	}
	t.pageSize = n
	if t.built {
		t.model.SetHeight(n)
	}
}

// Columns returns the layout fixed by the first Render.
func (t *LiveTable) Columns() []Column { return t.cols }

// Rows returns the records in display order.
func (t *LiveTable) Rows() []record.Record { return t.shown }

// Selected returns the record under the cursor.
func (t *LiveTable) Selected() (record.Record, bool) {
	i := t.model.Cursor()
	if i < 0 || i >= len(t.shown) {
		return record.Record{}, false
	}
	return t.shown[i], true
}

// Update forwards navigation keys to the underlying table.
func (t *LiveTable) Update(msg tea.Msg) tea.Cmd {
	if !t.built {
		return nil
	}
	var cmd tea.Cmd
	t.model, cmd = t.model.Update(msg)
	return cmd
}

// View draws the table, the placeholder or the error.
func (t *LiveTable) View() string {
	switch {
	case t.err != nil:
		return liveErrStyle.Render("Failed to load data: " + t.err.Error())
	case !t.built || len(t.shown) == 0:
		return liveEmptyStyle.Render(Placeholder)
	}
	return t.model.View()
}

// Title renders a header bar naming the sort.
func (t *LiveTable) Title(name string) string {
	s := name
	if t.sort.Column != "" {
		dir := "asc"
		if t.sort.Desc {
			dir = "desc"
		}
		s += "  sorted by " + t.sort.Column + " " + dir
	}
	return liveHeaderStyle.Render(s)
}

func (t *LiveTable) refresh() {
	now := nowOr(t.Now)
	t.shown = SortRecords(t.records, t.sort, t.cols)
	rows := make([]table.Row, len(t.shown))
	for i, r := range t.shown {
		row := make(table.Row, len(t.cols))
		for j, c := range t.cols {
			text := c.Text(r, now)
			if c.Kind == Link && text != "" {
				text = "⤓ " + text
			}
			row[j] = text
		}
		rows[i] = row
	}
	t.model.SetRows(rows)
	if t.model.Cursor() >= len(rows) {
		t.model.SetCursor(max(len(rows)-1, 0))
	}
}

func (t *LiveTable) layout(records []record.Record) []table.Column {
	now := nowOr(t.Now)
	out := make([]table.Column, len(t.cols))
	for i, c := range t.cols {
		limit := maxWrapWidth
		if c.NoWrap {
			limit = maxNoWrapWidth
		}
		w := utf8.RuneCountInString(c.Header())
		for _, r := range records {
			w = max(w, utf8.RuneCountInString(c.Text(r, now)))
		}
		out[i] = table.Column{Title: c.Header(), Width: min(w, limit)}
	}
	return out
}
