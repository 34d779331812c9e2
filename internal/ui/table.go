package ui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table writes aligned columns with a styled header
type Table struct {
	w *tabwriter.Writer
}

// NewTable starts a table with the given header
func NewTable(out io.Writer, headers ...string) *Table {
	t := &Table{w: tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)}
	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = HeaderStyle.Render(h)
	}
	fmt.Fprintln(t.w, strings.Join(styled, "\t"))
	return t
}

// Row appends one row
func (t *Table) Row(cells ...string) {
	fmt.Fprintln(t.w, strings.Join(cells, "\t"))
}

// Flush writes the table
func (t *Table) Flush() error {
	return t.w.Flush()
}
