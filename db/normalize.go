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

package db

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/quotes/config"
	"github.com/stockparfait/quotes/fault"
)

// ColumnConfig lists the accepted header names for each Bar field. Matching is
// case-insensitive and ignores surrounding spaces.
type ColumnConfig struct {
	Timestamp []string `json:"timestamp" default:"timestamp,time"`
	Open      []string `json:"open" default:"open"`
	High      []string `json:"high" default:"high"`
	Low       []string `json:"low" default:"low"`
	Close     []string `json:"close" default:"close"`
	Volume    []string `json:"volume" default:"volume"`
}

var _ config.Section = &ColumnConfig{}

// InitSection implements config.Section.
func (c *ColumnConfig) InitSection(js any) error {
	return errors.Annotate(config.Init(c, js), "failed to init ColumnConfig")
}

// NewColumnConfig creates the default column mapping.
func NewColumnConfig() *ColumnConfig {
	var c ColumnConfig
	if err := c.InitSection(map[string]any{}); err != nil {
		panic(errors.Annotate(err, "failed to init default ColumnConfig"))
	}
	return &c
}

// Column indices in the canonical order of Bar fields.
const (
	colTimestamp = iota
	colOpen
	colHigh
	colLow
	colClose
	colVolume
	numColumns
)

var columnNames = [numColumns]string{"timestamp", "open", "high", "low", "close", "volume"}

// MapColumns finds the header index of each Bar field. Columns not named in
// the config are ignored; a missing Bar field is a fault.Schema error.
func (c *ColumnConfig) MapColumns(header []string) ([numColumns]int, error) {
	var idx [numColumns]int
	names := [numColumns][]string{c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume}
	var missing []string
	for j, accepted := range names {
		idx[j] = -1
		for i, h := range header {
			if matchName(h, accepted) {
				idx[j] = i
				break
			}
		}
		if idx[j] < 0 {
			missing = append(missing, columnNames[j])
		}
	}
	if len(missing) > 0 {
		return idx, fault.New(fault.Schema, "missing columns [%s] in header [%s]",
			strings.Join(missing, ", "), strings.Join(header, ", "))
	}
	return idx, nil
}

func matchName(h string, accepted []string) bool {
	h = strings.TrimSpace(h)
	for _, a := range accepted {
		if strings.EqualFold(h, a) {
			return true
		}
	}
	return false
}

// Normalize converts raw table rows into bars, preserving the row order. The
// timestamp column is parsed with layout, prices as exact decimals and volume
// as a non-negative integer. Any unparseable cell or a repeated timestamp is a
// fault.Schema error. Zero rows yield zero bars.
func (c *ColumnConfig) Normalize(header []string, rows [][]string, layout string) ([]Bar, error) {
	idx, err := c.MapColumns(header)
	if err != nil {
		return nil, err
	}
	bars := make([]Bar, 0, len(rows))
	seen := make(map[time.Time]int, len(rows))
	for i, row := range rows {
		b, err := parseBar(row, idx, layout)
		if err != nil {
			return nil, errors.Annotate(err, "row %d", i+1)
		}
		if j, ok := seen[b.Timestamp]; ok {
			return nil, fault.New(fault.Schema, "row %d: timestamp %s repeats row %d",
				i+1, b.Timestamp.Format(TimeLayout), j+1)
		}
		seen[b.Timestamp] = i
		bars = append(bars, b)
	}
	return bars, nil
}

// Normalize with the default column mapping.
func Normalize(header []string, rows [][]string, layout string) ([]Bar, error) {
	return NewColumnConfig().Normalize(header, rows, layout)
}

func cell(row []string, i int, name string) (string, error) {
	if i >= len(row) {
		return "", fault.New(fault.Schema, "no %s cell in a row of %d", name, len(row))
	}
	return strings.TrimSpace(row[i]), nil
}

func parseBar(row []string, idx [numColumns]int, layout string) (b Bar, err error) {
	s, err := cell(row, idx[colTimestamp], "timestamp")
	if err != nil {
		return
	}
	if b.Timestamp, err = time.Parse(layout, s); err != nil {
		err = fault.Wrap(fault.Schema, err, "invalid timestamp '%s'", s)
		return
	}
	prices := []*decimal.Decimal{&b.Open, &b.High, &b.Low, &b.Close}
	for k, p := range prices {
		name := columnNames[colOpen+k]
		if s, err = cell(row, idx[colOpen+k], name); err != nil {
			return
		}
		if *p, err = decimal.NewFromString(s); err != nil {
			err = fault.Wrap(fault.Schema, err, "invalid %s '%s'", name, s)
			return
		}
	}
	if s, err = cell(row, idx[colVolume], "volume"); err != nil {
		return
	}
	if b.Volume, err = strconv.ParseUint(s, 10, 64); err != nil {
		err = fault.Wrap(fault.Schema, err, "invalid volume '%s'", s)
		return
	}
	return b, nil
}
