package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/okian/devinfo/internal/domain/facts"
	"github.com/okian/devinfo/internal/domain/preference"
)

// ANSI styles per theme: label, value, notice.
var themes = map[string][3]string{
	preference.ThemeLight: {"\x1b[1;34m", "\x1b[30m", "\x1b[33m"},
	preference.ThemeDark:  {"\x1b[1;36m", "\x1b[97m", "\x1b[93m"},
}

const ansiReset = "\x1b[0m"

// renderer prints card rows, colored by theme when w is a terminal.
type renderer struct {
	w     io.Writer
	style [3]string
	color bool
}

func newRenderer(w io.Writer, theme string) *renderer {
	style, ok := themes[theme]
	if !ok {
		style = themes[preference.ThemeLight]
	}
	return &renderer{w: w, style: style, color: terminalFile(w) != nil}
}

// terminalFile returns w as a file when it is a terminal.
func terminalFile(w io.Writer) *os.File {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return nil
	}
	return f
}

func (r *renderer) paint(style, s string) string {
	if !r.color {
		return s
	}
	return style + s + ansiReset
}

func (r *renderer) rows(rows []facts.Row) {
	width := 0
	for _, row := range rows {
		width = max(width, len(row.Label))
	}
	for _, row := range rows {
		label := row.Label + ":" + strings.Repeat(" ", width-len(row.Label))
		fmt.Fprintf(r.w, "%s %s\n", r.paint(r.style[0], label), r.paint(r.style[1], row.Text))
	}
}

func (r *renderer) notices(ns []facts.Notice) {
	for _, n := range ns {
		fmt.Fprintln(r.w, r.paint(r.style[2], "! "+n.Message))
	}
}

func (r *renderer) line(s string) {
	fmt.Fprintln(r.w, s)
}

// changedRows picks the rows for fields in changed, in display order.
func changedRows(f facts.Facts, changed []facts.Field, more bool) []facts.Row {
	want := make(map[facts.Field]bool, len(changed))
	for _, c := range changed {
		want[c] = true
	}
	var out []facts.Row
	for _, row := range f.Rows(more) {
		if want[row.Field] {
			out = append(out, row)
		}
	}
	return out
}
