package render

import (
	"strings"
	"time"

	"enam/internal/record"
)

// Markdown renders records as a GitHub-flavoured markdown table, suitable
// for glamour or for pasting into notes. Link cells become [Download](url).
type Markdown struct {
	Sort Sort
	Now  func() time.Time

	out string
}

// String returns the markdown from the last Render.
func (m *Markdown) String() string { return m.out }

// ShowError replaces the output with an error paragraph.
func (m *Markdown) ShowError(err error) {
	m.out = "**Failed to load data:** " + escapeCell(err.Error()) + "\n"
}

func (m *Markdown) Render(records []record.Record, cols []Column) error {
	if len(records) == 0 || len(cols) == 0 {
		m.out = "_" + Placeholder + "_\n"
		return nil
	}
	now := nowOr(m.Now)
	var b strings.Builder

	b.WriteString("|")
	for _, c := range cols {
		b.WriteString(" " + escapeCell(c.Header()) + " |")
	}
	b.WriteString("\n|")
	for _, c := range cols {
		if c.Kind == Number {
			b.WriteString(" ---: |")
		} else {
			b.WriteString(" --- |")
		}
	}
	b.WriteByte('\n')

	for _, r := range SortRecords(records, m.Sort, cols) {
		b.WriteString("|")
		for _, c := range cols {
			text := escapeCell(c.Text(r, now))
			if c.Kind == Link && text != "" {
				text = "[Download](" + text + ")"
			}
			b.WriteString(" " + text + " |")
		}
		b.WriteByte('\n')
	}
	m.out = b.String()
	return nil
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

func escapeCell(s string) string { return cellEscaper.Replace(s) }
