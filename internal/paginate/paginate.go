// Package paginate splits filtered record lists into pages, builds the
// page-button strip, and groups consecutive display rows by key.
package paginate

import (
	"strconv"

	"enam/internal/record"
)

// Page sizes offered by paginated feeds.
var PageSizes = []int{10, 25, 50, 100}

// Window parameters for the page-button strip.
const (
	// CollapseAbove is the page count above which buttons collapse into a
	// window with ellipses.
	CollapseAbove = 7
	// Radius is how many pages either side of the current page stay visible.
	Radius = 2
)

// TotalPages returns the page count for n records, never less than 1.
func TotalPages(n, size int) int {
	if size <= 0 || n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// Clamp limits page to [1, TotalPages(n, size)].
func Clamp(page, n, size int) int {
	total := TotalPages(n, size)
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}

// Slice returns the records on the given 1-based page after clamping. A
// non-positive size returns everything.
func Slice(records []record.Record, page, size int) []record.Record {
	if size <= 0 {
		return records
	}
	page = Clamp(page, len(records), size)
	start := (page - 1) * size
	if start >= len(records) {
		return records[:0]
	}
	end := start + size
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}

// ButtonKind distinguishes entries in the page-button strip.
type ButtonKind int

const (
	Prev ButtonKind = iota
	Number
	Ellipsis
	Next
)

// Button is one entry of the page-button strip. Page is the page the button
// navigates to (0 for ellipses).
type Button struct {
	Kind     ButtonKind `json:"kind"`
	Page     int        `json:"page,omitempty"`
	Active   bool       `json:"active,omitempty"`
	Disabled bool       `json:"disabled,omitempty"`
}

// Label returns the button caption.
func (b Button) Label() string {
	switch b.Kind {
	case Prev:
		return "«"
	case Next:
		return "»"
	case Ellipsis:
		return "…"
	}
	return strconv.Itoa(b.Page)
}

// Gap reports whether b is an ellipsis.
func (b Button) Gap() bool { return b.Kind == Ellipsis }

// Pages returns just the page numbers of the strip, with 0 marking an
// ellipsis, omitting previous/next.
func Pages(buttons []Button) []int {
	var out []int
	for _, b := range buttons {
		switch b.Kind {
		case Number:
			out = append(out, b.Page)
		case Ellipsis:
			out = append(out, 0)
		}
	}
	return out
}

// Strip builds the page-button strip for the current page. With
// CollapseAbove pages or fewer every page is listed. Otherwise page 1 and
// the last page are always shown, a window of Radius pages surrounds the
// current one, and an ellipsis replaces any gap wider than one page.
// Previous and Next are disabled on the first and last page. A single page
// yields no buttons at all.
func Strip(total, current int) []Button {
	if total <= 1 {
		return nil
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	buttons := []Button{{Kind: Prev, Page: current - 1, Disabled: current == 1}}
	num := func(p int) Button { return Button{Kind: Number, Page: p, Active: p == current} }

	if total <= CollapseAbove {
		for p := 1; p <= total; p++ {
			buttons = append(buttons, num(p))
		}
	} else {
		start := max(1, current-Radius)
		end := min(total, current+Radius)
		if start > 1 {
			buttons = append(buttons, num(1))
			if start > 2 {
				buttons = append(buttons, Button{Kind: Ellipsis})
			}
		}
		for p := start; p <= end; p++ {
			buttons = append(buttons, num(p))
		}
		if end < total {
			if end < total-1 {
				buttons = append(buttons, Button{Kind: Ellipsis})
			}
			buttons = append(buttons, num(total))
		}
	}

	next := current + 1
	if next > total {
		next = total
	}
	return append(buttons, Button{Kind: Next, Page: next, Disabled: current == total})
}
