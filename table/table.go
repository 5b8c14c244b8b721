// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table prints rows of stored quotes as CSV or aligned text.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/quotes/db"
)

// Row of a table.
type Row interface {
	CSV() []string // an encoding/csv compatible row representation
}

var _ Row = db.Bar{}

// Table of rows with an optional header.
type Table struct {
	Header []string // may be nil
	Rows   []Row
}

// NewTable creates a Table with optional column headers, which must match
// the number of cells in each row.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// NewBarTable creates a table of bars with the standard header.
func NewBarTable(bars []db.Bar) *Table {
	t := NewTable(db.BarHeader()...)
	for _, b := range bars {
		t.AddRow(b)
	}
	return t
}

// KV is a two-column key / value row.
type KV struct {
	Key   string
	Value string
}

// CSV implements Row.
func (r KV) CSV() []string { return []string{r.Key, r.Value} }

// NewSummaryTable presents the summary as a key / value table.
func NewSummaryTable(symbol, interval string, s db.Summary) *Table {
	t := NewTable("", fmt.Sprintf("%s %s", symbol, interval))
	t.AddRow(
		KV{"bars", fmt.Sprintf("%d", s.Bars)},
		KV{"first", s.First},
		KV{"last", s.Last},
		KV{"mean close", fmt.Sprintf("%.4f", s.MeanClose)},
		KV{"stddev close", fmt.Sprintf("%.4f", s.StdClose)},
		KV{"total volume", fmt.Sprintf("%d", s.Volume)},
	)
	return t
}

// Cells is a row of plain strings.
type Cells []string

// CSV implements Row.
func (c Cells) CSV() []string { return c }

// NewRawTable creates a table of unparsed string rows.
func NewRawTable(header []string, rows [][]string) *Table {
	t := NewTable(header...)
	for _, r := range rows {
		t.AddRow(Cells(r))
	}
	return t
}

// AddRow adds one or more rows to the table.
func (t *Table) AddRow(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Params for printing a Table.
type Params struct {
	Rows        int  // print only the first Rows rows; 0 = all
	Tail        int  // print only the last Tail rows; 0 = all; applied after Rows
	NoHeader    bool // do not print the header
	MaxColWidth int  // WriteText only; 0 = unlimited, otherwise must be >= 4
}

// selected returns the rows to print in their order.
func (t *Table) selected(p Params) []Row {
	rows := t.Rows
	if p.Rows > 0 && len(rows) > p.Rows {
		rows = rows[:p.Rows]
	}
	if p.Tail > 0 && len(rows) > p.Tail {
		rows = rows[len(rows)-p.Tail:]
	}
	return rows
}

func (t *Table) withHeader(p Params) bool {
	return !p.NoHeader && len(t.Header) > 0
}

// WriteCSV writes the table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if t.withHeader(p) {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for _, r := range t.selected(p) {
		if err := cw.Write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	return errors.Annotate(cw.Error(), "failed to flush written rows")
}

// WriteText writes the table as right-aligned text columns.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	var lines [][]string
	if t.withHeader(p) {
		lines = append(lines, t.Header)
	}
	for _, r := range t.selected(p) {
		lines = append(lines, r.CSV())
	}
	if len(lines) == 0 {
		return nil
	}
	widths := make([]int, len(lines[0]))
	for i, l := range lines {
		if len(l) != len(widths) {
			return errors.Reason("line %d has %d cells, expected %d", i, len(l), len(widths))
		}
		for j, c := range l {
			n := utf8.RuneCountInString(c)
			if p.MaxColWidth > 0 && n > p.MaxColWidth {
				n = p.MaxColWidth
			}
			if n > widths[j] {
				widths[j] = n
			}
		}
	}
	if t.withHeader(p) {
		sep := make([]string, len(widths))
		for j, n := range widths {
			sep[j] = strings.Repeat("-", n)
		}
		lines = append(lines[:1], append([][]string{sep}, lines[1:]...)...)
	}
	for _, l := range lines {
		cells := make([]string, len(l))
		for j, c := range l {
			if r := []rune(c); len(r) > widths[j] {
				c = string(r[:widths[j]-2]) + ".."
			}
			cells[j] = strings.Repeat(" ", widths[j]-utf8.RuneCountInString(c)) + c
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, " | ")); err != nil {
			return errors.Annotate(err, "failed to write line")
		}
	}
	return nil
}
