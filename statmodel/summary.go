package statmodel

import (
	"fmt"
	"strings"
)

// Fmter formats the elements of an array of values.  The second
// argument is the column heading.
type Fmter func(interface{}, string) []string

// SummaryTable holds the summary values for a fitted model.
type SummaryTable struct {

	// Title
	Title string

	// Column names
	ColNames []string

	// Formatters for the column values
	ColFmt []Fmter

	// Cols[j] is the j^th column.  It's concrete type should
	// be an array, e.g. of numbers or strings.
	Cols []interface{}

	// Values at the top of the summary, laid out in two columns.
	Top []string

	// Messages displayed below the table
	Msg []string
}

// StringFmt left-justifies a column of strings to a common width.
func StringFmt(x interface{}, h string) []string {
	y := x.([]string)
	m := len(h)
	for _, s := range y {
		if len(s) > m {
			m = len(s)
		}
	}
	z := make([]string, len(y))
	for i, s := range y {
		z[i] = fmt.Sprintf("%-*s", m, s)
	}
	return z
}

// FloatFmt formats a column of numbers with four decimal places.
func FloatFmt(x interface{}, h string) []string {
	y := x.([]float64)
	z := make([]string, len(y))
	for i, v := range y {
		z[i] = fmt.Sprintf("%10.4f", v)
	}
	return z
}

// top lays out the header values in two columns separated by gap
// spaces.
func (s *SummaryTable) top(gap int) string {

	var w [2]int
	for j, x := range s.Top {
		if len(x) > w[j%2] {
			w[j%2] = len(x)
		}
	}

	var b strings.Builder
	for j, x := range s.Top {
		fmt.Fprintf(&b, "%-*s", w[j%2], x)
		if j%2 == 1 {
			b.WriteString("\n")
		} else {
			b.WriteString(strings.Repeat(" ", gap))
		}
	}
	if len(s.Top)%2 == 1 {
		b.WriteString("\n")
	}

	return b.String()
}

// String returns the table as a string.
func (s *SummaryTable) String() string {

	if len(s.ColFmt) != len(s.Cols) || len(s.ColNames) != len(s.Cols) {
		panic("statmodel: summary table columns, names and formatters differ in length")
	}

	const gap = 10

	var tab [][]string
	var wx []int
	for j, c := range s.Cols {
		u := s.ColFmt[j](c, s.ColNames[j])
		tab = append(tab, u)
		w := len(s.ColNames[j])
		if len(u) > 0 && len(u[0]) > w {
			w = len(u[0])
		}
		wx = append(wx, w)
	}

	header := s.top(gap)

	// Total width of the table
	var tw int
	for _, w := range wx {
		tw += w
	}
	if tw < len(s.Title) {
		tw = len(s.Title)
	}
	for _, line := range strings.Split(header, "\n") {
		if len(line) > tw {
			tw = len(line)
		}
	}

	var buf strings.Builder

	// Center the title
	buf.WriteString(strings.Repeat(" ", (tw-len(s.Title))/2))
	buf.WriteString(s.Title + "\n")
	buf.WriteString(strings.Repeat("=", tw) + "\n")
	buf.WriteString(header)
	buf.WriteString(strings.Repeat("-", tw) + "\n")

	for j, c := range s.ColNames {
		fmt.Fprintf(&buf, "%*s", wx[j], c)
	}
	buf.WriteString("\n")
	buf.WriteString(strings.Repeat("-", tw) + "\n")

	var nrow int
	if len(tab) > 0 {
		nrow = len(tab[0])
	}
	for i := 0; i < nrow; i++ {
		for j := range tab {
			fmt.Fprintf(&buf, "%*s", wx[j], tab[j][i])
		}
		buf.WriteString("\n")
	}
	buf.WriteString(strings.Repeat("-", tw) + "\n")

	for _, msg := range s.Msg {
		buf.WriteString(msg + "\n")
	}

	return buf.String()
}
